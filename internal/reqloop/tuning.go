package reqloop

import "github.com/pvfsclient/pvfsclient/internal/logging"

// ResetCacheTimeouts implements C11: installing bounded-cache timeouts
// from t, independent of the CLI-supplied defaults (spec.md §4.6,
// SUPPLEMENTED FEATURES #3, grounded on original_source/src/client/
// sysint/acache.h's PINT_acache_set_info(ACACHE_TIMEOUT_MSECS, ...)).
// Nothing in this module calls it; the remount coordinator does not
// invoke it, and no code derives a Tuning from server configuration.
//
// Only the credential cache's timeout is actually live-adjustable here:
// this module's readahead cache (internal/racache) is invalidation- and
// LRU-driven with no per-entry TTL (spec.md §4.3 "Eviction" names no
// timeout), so there is no acache/ncache timeout store to write back
// into. Acache/Ncache values are still accepted and logged for CLI/
// operator compatibility with the original's tuning surface.
func (l *Loop) ResetCacheTimeouts(t Tuning) {
	l.creds.SetTimeout(t.CCacheTimeout)
	l.logger.Event(logging.EventCache, "cache timeouts reset",
		"ccache", t.CCacheTimeout, "capcache", t.CapCacheTimeout,
		"acache", t.ACacheTimeout, "ncache", t.NCacheTimeout)
}
