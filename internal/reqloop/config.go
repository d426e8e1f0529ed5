package reqloop

import (
	"time"

	"github.com/pvfsclient/pvfsclient/internal/constants"
	"github.com/pvfsclient/pvfsclient/internal/logging"
)

// Config collects every CLI-tunable knob the main loop, remount
// coordinator, and bounded caches read at startup (spec.md §6 "CLI
// surface"). It replaces the original's process-wide singleton options
// block with an explicit struct threaded through the constructors
// (spec.md §9 design note "Global mutable state").
type Config struct {
	ACacheTimeout        time.Duration
	ACacheSoftLimit      int
	ACacheHardLimit      int
	ACacheReclaimPercent int

	NCacheTimeout        time.Duration
	NCacheSoftLimit      int
	NCacheHardLimit      int
	NCacheReclaimPercent int

	CCacheTimeout   time.Duration
	CapCacheTimeout time.Duration

	PerfIntervalSecs int
	PerfHistorySize  int

	ReadaheadSize    uint32
	ReadaheadCount   uint32
	ReadaheadReadCnt uint32
	ReadaheadPinned  int

	LogFile    string
	LogType    logging.OutputType
	LogStamp   logging.StampMode
	GossipMask logging.EventMask

	DescCount int
	DescSize  int

	Child   bool
	Events  string
	KeyPath string
}

// DefaultConfig returns the CLI defaults spec.md §6 names, sourced from
// internal/constants.
func DefaultConfig() Config {
	return Config{
		ACacheTimeout:        constants.DefaultACacheTimeout,
		ACacheSoftLimit:      constants.DefaultACacheSoftLimit,
		ACacheHardLimit:      constants.DefaultACacheHardLimit,
		ACacheReclaimPercent: constants.DefaultACacheReclaimPercent,

		NCacheTimeout:        constants.DefaultNCacheTimeout,
		NCacheSoftLimit:      constants.DefaultNCacheSoftLimit,
		NCacheHardLimit:      constants.DefaultNCacheHardLimit,
		NCacheReclaimPercent: constants.DefaultNCacheReclaimPercent,

		CCacheTimeout:   constants.DefaultCredentialCacheTimeout,
		CapCacheTimeout: constants.DefaultCapCacheTimeout,

		PerfIntervalSecs: constants.DefaultPerfIntervalSecs,
		PerfHistorySize:  constants.DefaultPerfHistorySize,

		ReadaheadSize:    constants.DefaultReadaheadSize,
		ReadaheadCount:   constants.DefaultReadaheadCount,
		ReadaheadReadCnt: constants.DefaultReadaheadCount,
		ReadaheadPinned:  constants.DefaultReadaheadPinned,

		LogStamp: logging.StampDatetime,

		DescCount: constants.DefaultDescCount,
		DescSize:  constants.DefaultIODescSize,
	}
}

// Tuning is the subset of Config that can be re-derived mid-session from
// live server configuration (spec.md §4.3 supplement: cache timeout
// reset on reconnect).
type Tuning struct {
	ACacheTimeout   time.Duration
	NCacheTimeout   time.Duration
	CCacheTimeout   time.Duration
	CapCacheTimeout time.Duration
}
