// Package credcache implements the credential cache (spec.md §3, §4.5,
// C3): a bounded (uid,gid)→signed-credential cache with expiry derived
// from both a configured timeout and the credential's own expiry, and
// negative-result eviction on permission errors.
//
// Only ever touched from the main-loop goroutine (spec.md §5), so no
// internal locking is needed; the bound on entry count is provided by
// hashicorp/golang-lru/v2 (internal/racache keeps its own container/list
// LRU instead), with a manual per-entry expiry check on top since
// golang-lru has no native per-item TTL.
package credcache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sys/unix"

	"github.com/pvfsclient/pvfsclient/internal/constants"
)

// Issuer is the external collaborator that produces a signed credential
// for a (uid,gid) pair — spawning a subprocess or calling a signing
// helper (spec.md §4.5). It is out of scope for this module; only its
// contract is specified here.
type Issuer interface {
	Issue(ctx context.Context, uid, gid uint32) (*Credential, error)
}

// Key identifies one cache entry.
type Key struct {
	UID, GID uint32
}

type entry struct {
	cred      *Credential
	expiresAt time.Time
}

// Cache is the bounded credential cache.
type Cache struct {
	lru     *lru.Cache[Key, entry]
	issuer  Issuer
	timeout time.Duration
	margin  time.Duration
}

// New builds a Cache backed by an LRU of at most size entries. timeout
// is the --ccache timeout CLI value; margin defaults to
// constants.CredentialSafetyMargin when zero.
func New(issuer Issuer, timeout time.Duration, margin time.Duration, size int) (*Cache, error) {
	if margin <= 0 {
		margin = constants.CredentialSafetyMargin
	}
	if size <= 0 {
		size = 1024
	}
	l, err := lru.New[Key, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, issuer: issuer, timeout: timeout, margin: margin}, nil
}

// Lookup returns a cloned credential for (uid,gid), issuing and caching
// a fresh one on miss or expiry (spec.md §4.5). Negative credentials are
// returned to the caller but never cached.
func (c *Cache) Lookup(ctx context.Context, uid, gid uint32) (*Credential, error) {
	key := Key{UID: uid, GID: gid}

	if e, ok := c.lru.Get(key); ok {
		if time.Now().Before(e.expiresAt) {
			return e.cred.Clone(), nil
		}
		c.lru.Remove(key)
	}

	cred, err := c.issuer.Issue(ctx, uid, gid)
	if err != nil {
		return nil, err
	}
	if cred.Negative {
		return cred, nil
	}

	expiry := c.timeout
	if !cred.ExpiresAt.IsZero() {
		if untilCred := time.Until(cred.ExpiresAt) - c.margin; untilCred < expiry {
			expiry = untilCred
		}
	}
	c.lru.Add(key, entry{cred: cred, expiresAt: time.Now().Add(expiry)})

	return cred.Clone(), nil
}

// SetTimeout updates the cache's base timeout for entries issued from
// this point on (spec.md §4.3 supplement 3, cache timeout reset on
// reconnect). Entries already cached keep the expiry they were given at
// insertion time.
func (c *Cache) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

// Purge removes the (uid,gid) entry unconditionally.
func (c *Cache) Purge(uid, gid uint32) {
	c.lru.Remove(Key{UID: uid, GID: gid})
}

// PurgeOnStatus removes the (uid,gid) entry if status is a
// permission-denied or access-denied completion (spec.md §4.5
// Invalidation); it is a no-op for any other status.
func (c *Cache) PurgeOnStatus(uid, gid uint32, status int32) {
	if IsPermissionError(status) {
		c.Purge(uid, gid)
	}
}

// IsPermissionError reports whether status matches one of the
// permission-denied / access-denied errnos spec.md §4.5 names.
func IsPermissionError(status int32) bool {
	errno := -status
	return errno == int32(unix.EPERM) || errno == int32(unix.EACCES)
}

// Len reports the number of cached entries, for metrics and tests.
func (c *Cache) Len() int { return c.lru.Len() }

var errNilIssuer = errors.New("credcache: issuer must not be nil")

// NewWithDefaultTimeout is a convenience constructor using
// constants.DefaultCredentialCacheTimeout.
func NewWithDefaultTimeout(issuer Issuer, size int) (*Cache, error) {
	if issuer == nil {
		return nil, errNilIssuer
	}
	return New(issuer, constants.DefaultCredentialCacheTimeout, 0, size)
}
