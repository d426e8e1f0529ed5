package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pvfsclient/pvfsclient/internal/constants"
	"github.com/pvfsclient/pvfsclient/internal/credcache"
)

// keyFileIssuer implements credcache.Issuer by signing (uid,gid,expiry)
// tuples with a key read from --keypath, the way the original passes
// opts.keypath into generate_credential (original_source/src/apps/
// kernel/linux/pvfs2-client-core.c). credcache.Issuer itself is out of
// scope for the cache package (it only specifies the contract); this is
// the concrete implementation the daemon actually runs with.
type keyFileIssuer struct {
	key      []byte
	issuerID uuid.UUID
	ttl      time.Duration
}

func newKeyFileIssuer(keypath string, ttl time.Duration) (*keyFileIssuer, error) {
	var key []byte
	if keypath != "" {
		b, err := os.ReadFile(keypath)
		if err != nil {
			return nil, fmt.Errorf("read keypath %s: %w", keypath, err)
		}
		key = b
	}
	if ttl <= 0 {
		ttl = constants.DefaultCredentialCacheTimeout
	}
	return &keyFileIssuer{key: key, issuerID: uuid.New(), ttl: ttl}, nil
}

func (i *keyFileIssuer) Issue(ctx context.Context, uid, gid uint32) (*credcache.Credential, error) {
	expiresAt := time.Now().Add(i.ttl)

	mac := hmac.New(sha256.New, i.key)
	fmt.Fprintf(mac, "%d:%d:%d", uid, gid, expiresAt.Unix())

	return &credcache.Credential{
		UID:       uid,
		GID:       gid,
		Signature: mac.Sum(nil),
		Issuer:    i.issuerID,
		ExpiresAt: expiresAt,
	}, nil
}
