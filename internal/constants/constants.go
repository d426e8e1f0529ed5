// Package constants holds size limits and defaults shared across the
// request core. Keeping them in one leaf package avoids import cycles
// between the device, cache, and dispatch layers.
package constants

import "time"

// DevicePath is the character device the kernel module exposes for
// upcall/downcall traffic.
const DevicePath = "/dev/pvfsreq"

// Response-side allocation bounds (spec.md §4.2 step 4).
const (
	MaxXattrValue = 64 * 1024
	MaxXattrList  = 1024
	MaxXattrKey   = 256
)

// IOXGroupMax bounds how many (offset,length) pairs are combined into one
// sub-operation of an iox upcall (spec.md §4.4).
const IOXGroupMax = 64

// Readahead cache defaults (spec.md §4.3, §6 CLI surface).
const (
	DefaultReadaheadSize     = 1 << 20 // bytes per block
	DefaultReadaheadCount    = 8       // default block pool capacity (and readcnt config value)
	DefaultReadaheadPinned   = 4       // pinned-block config value; internal/racache does not read it
	DefaultRACachePoolBlocks = 256
)

// Bounded-cache defaults (spec.md §6 CLI surface).
const (
	DefaultACacheTimeout          = 60 * time.Second
	DefaultACacheSoftLimit        = 5120
	DefaultACacheHardLimit        = 10240
	DefaultACacheReclaimPercent   = 25
	DefaultNCacheTimeout          = 60 * time.Second
	DefaultNCacheSoftLimit        = 5120
	DefaultNCacheHardLimit        = 10240
	DefaultNCacheReclaimPercent   = 25
	DefaultCredentialCacheTimeout = 3600 * time.Second
	DefaultCapCacheTimeout        = 3600 * time.Second
	// CredentialSafetyMargin is subtracted from a signed credential's own
	// expiry so a cached clone can never expire mid-flight (spec.md §4.5).
	CredentialSafetyMargin = 5 * time.Second
)

// Shared-buffer pool defaults (spec.md §3, §6 CLI surface: --desc-count,
// --desc-size).
const (
	DefaultDescCount   = 512
	DefaultIODescSize  = 1 << 20
	DefaultRADescCount = 64
	DefaultRADescSize  = 4096
)

// Perf-counter defaults (spec.md §6: --perf-time-interval-secs,
// --perf-history-size).
const (
	DefaultPerfIntervalSecs = 10
	DefaultPerfHistorySize  = 6
)

// MaxBatch and TPollMS bound one main-loop iteration (spec.md §4.1).
const (
	MaxBatch = 64
	TPollMS  = 10
)
