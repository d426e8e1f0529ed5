package reqloop

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvfsclient/pvfsclient/internal/credcache"
	"github.com/pvfsclient/pvfsclient/internal/device"
	"github.com/pvfsclient/pvfsclient/internal/logging"
	"github.com/pvfsclient/pvfsclient/internal/racache"
	"github.com/pvfsclient/pvfsclient/internal/rpc/rpctest"
)

type countingIssuer struct{ calls int }

func (c *countingIssuer) Issue(ctx context.Context, uid, gid uint32) (*credcache.Credential, error) {
	c.calls++
	return &credcache.Credential{UID: uid, GID: gid}, nil
}

// TestResetCacheTimeoutsExtendsLaterLookups exercises C11 by driving the
// credential cache directly: a short initial timeout expires an entry
// quickly, but after ResetCacheTimeouts installs a longer one, the next
// cached entry survives the same wait.
func TestResetCacheTimeoutsExtendsLaterLookups(t *testing.T) {
	issuer := &countingIssuer{}
	creds, err := credcache.New(issuer, 10*time.Millisecond, time.Millisecond, 16)
	require.NoError(t, err)
	logger, err := logging.NewLogger(&logging.Config{Output: io.Discard})
	require.NoError(t, err)

	l := NewLoop(Deps{
		Device:    device.NewStub(),
		Transport: rpctest.New(),
		Creds:     creds,
		RACache:   racache.New(4096, 4),
		Logger:    logger,
		Config:    DefaultConfig(),
	})

	ctx := context.Background()
	_, err = creds.Lookup(ctx, 1, 1) // issuer call 1, cached under the 10ms timeout
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = creds.Lookup(ctx, 1, 1) // expired: issuer call 2, re-cached under 10ms again
	require.NoError(t, err)
	assert.Equal(t, 2, issuer.calls, "entry should have expired under the short timeout")

	time.Sleep(30 * time.Millisecond)
	l.ResetCacheTimeouts(Tuning{CCacheTimeout: time.Hour})

	_, err = creds.Lookup(ctx, 1, 1) // expired again: issuer call 3, re-cached under the new hour-long timeout
	require.NoError(t, err)
	assert.Equal(t, 3, issuer.calls)

	time.Sleep(30 * time.Millisecond)
	_, err = creds.Lookup(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, issuer.calls, "entry should survive under the extended timeout")
}
