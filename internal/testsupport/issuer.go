// Package testsupport holds test doubles shared across this module's own
// _test.go files, the way the teacher's testing.go gives external callers
// a MockBackend instead of making every caller hand-roll one. Unlike
// internal/device.Stub and internal/rpc/rpctest.Fake (doubles for the two
// collaborators reqloop/dispatch own outright), this package holds the
// smaller doubles that multiple unrelated packages needed identical
// copies of before this package existed.
package testsupport

import (
	"context"

	"github.com/pvfsclient/pvfsclient/internal/credcache"
)

// StubIssuer is a credcache.Issuer that signs nothing and never fails,
// for tests that need a working credential cache but don't care about
// signature material.
type StubIssuer struct{}

func (StubIssuer) Issue(ctx context.Context, uid, gid uint32) (*credcache.Credential, error) {
	return &credcache.Credential{UID: uid, GID: gid}, nil
}

var _ credcache.Issuer = StubIssuer{}
