package credcache

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a signed (uid,gid,timeout,issuer) token the RPC layer
// requires on every call (spec.md GLOSSARY). Negative credentials carry
// no Signature and are never cached (spec.md §4.5).
type Credential struct {
	UID, GID  uint32
	Signature []byte
	Issuer    uuid.UUID
	ExpiresAt time.Time
	Negative  bool
}

// Clone returns a copy whose Signature does not alias the cache's own
// copy, per spec.md §5 "Credentials are cloned on lookup so the cache's
// copy is never externally mutated."
func (c *Credential) Clone() *Credential {
	clone := *c
	if c.Signature != nil {
		clone.Signature = append([]byte(nil), c.Signature...)
	}
	return &clone
}
