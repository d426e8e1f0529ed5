package credcache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type stubIssuer struct {
	calls int
	next  func(uid, gid uint32) (*Credential, error)
}

func (s *stubIssuer) Issue(ctx context.Context, uid, gid uint32) (*Credential, error) {
	s.calls++
	return s.next(uid, gid)
}

func TestLookupCachesAndReturnsClones(t *testing.T) {
	issuer := &stubIssuer{next: func(uid, gid uint32) (*Credential, error) {
		return &Credential{UID: uid, GID: gid, Signature: []byte("sig"), Issuer: uuid.New()}, nil
	}}
	c, err := New(issuer, time.Minute, 0, 16)
	require.NoError(t, err)

	got1, err := c.Lookup(context.Background(), 1000, 1000)
	require.NoError(t, err)
	got2, err := c.Lookup(context.Background(), 1000, 1000)
	require.NoError(t, err)

	assert.Equal(t, 1, issuer.calls, "second lookup must hit the cache, not re-issue")
	assert.NotSame(t, got1, got2, "lookups must return distinct clones")
	got1.Signature[0] = 'X'
	assert.NotEqual(t, got1.Signature, got2.Signature, "mutating one clone must not affect another")
}

func TestLookupExpiresUsingCredentialExpiryMinusMargin(t *testing.T) {
	issuer := &stubIssuer{next: func(uid, gid uint32) (*Credential, error) {
		return &Credential{UID: uid, GID: gid, Signature: []byte("sig"), ExpiresAt: time.Now().Add(20 * time.Millisecond)}, nil
	}}
	c, err := New(issuer, time.Hour, 10*time.Millisecond, 16)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, issuer.calls)

	time.Sleep(15 * time.Millisecond)

	_, err = c.Lookup(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, issuer.calls, "credential must have expired before the configured timeout due to the safety margin")
}

func TestNegativeCredentialsAreNotCached(t *testing.T) {
	issuer := &stubIssuer{next: func(uid, gid uint32) (*Credential, error) {
		return &Credential{UID: uid, GID: gid, Negative: true}, nil
	}}
	c, err := New(issuer, time.Minute, 0, 16)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), 2, 2)
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, issuer.calls)
	assert.Equal(t, 0, c.Len())
}

func TestPurgeOnStatusEvictsOnlyOnPermissionErrors(t *testing.T) {
	issuer := &stubIssuer{next: func(uid, gid uint32) (*Credential, error) {
		return &Credential{UID: uid, GID: gid, Signature: []byte("sig")}, nil
	}}
	c, err := New(issuer, time.Minute, 0, 16)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), 9, 9)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.PurgeOnStatus(9, 9, -1) // arbitrary non-permission error
	assert.Equal(t, 1, c.Len())

	c.PurgeOnStatus(9, 9, int32(-unix.EACCES))
	assert.Equal(t, 0, c.Len())
}

func TestIsPermissionError(t *testing.T) {
	assert.True(t, IsPermissionError(int32(-unix.EPERM)))
	assert.True(t, IsPermissionError(int32(-unix.EACCES)))
	assert.False(t, IsPermissionError(int32(-unix.ENOENT)))
}
