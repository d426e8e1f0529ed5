package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pvfsclient/pvfsclient/internal/logging"
	"github.com/pvfsclient/pvfsclient/internal/reqloop"
)

// cliFlags mirrors spec.md §6's CLI surface one field per flag, bound
// directly by pflag rather than parsed out of a generic map (the
// teacher's cmd/ublk-mem/main.go does the same with stdlib flag; this
// binary upgrades to cobra/pflag for the larger surface SPEC_FULL.md
// names).
type cliFlags struct {
	acacheTimeoutMS     int
	acacheSoftLimit     int
	acacheHardLimit     int
	acacheReclaimPct    int
	ncacheTimeoutMS     int
	ncacheSoftLimit     int
	ncacheHardLimit     int
	ncacheReclaimPct    int
	ccacheTimeoutSecs   int
	capcacheTimeoutSecs int

	perfIntervalSecs int
	perfHistorySize  int

	readaheadSize    int
	readaheadCount   int
	readaheadReadcnt int
	readaheadPinned  int

	logfile    string
	logtype    string
	logstamp   string
	gossipMask string

	descCount int
	descSize  int

	child   bool
	events  string
	keypath string

	devicePath string
	server     string
}

func (f *cliFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()

	fl.IntVar(&f.acacheTimeoutMS, "acache-timeout", 60000, "attribute cache entry timeout in milliseconds")
	fl.IntVar(&f.acacheSoftLimit, "acache-soft-limit", 5120, "attribute cache soft entry limit")
	fl.IntVar(&f.acacheHardLimit, "acache-hard-limit", 10240, "attribute cache hard entry limit")
	fl.IntVar(&f.acacheReclaimPct, "acache-reclaim-percentage", 25, "attribute cache reclaim percentage at hard limit")

	fl.IntVar(&f.ncacheTimeoutMS, "ncache-timeout", 60000, "name cache entry timeout in milliseconds")
	fl.IntVar(&f.ncacheSoftLimit, "ncache-soft-limit", 5120, "name cache soft entry limit")
	fl.IntVar(&f.ncacheHardLimit, "ncache-hard-limit", 10240, "name cache hard entry limit")
	fl.IntVar(&f.ncacheReclaimPct, "ncache-reclaim-percentage", 25, "name cache reclaim percentage at hard limit")

	fl.IntVar(&f.ccacheTimeoutSecs, "ccache-timeout", 3600, "credential cache entry timeout in seconds")
	fl.IntVar(&f.capcacheTimeoutSecs, "capcache-timeout", 3600, "capability cache entry timeout in seconds")

	fl.IntVar(&f.perfIntervalSecs, "perf-time-interval-secs", 10, "perf counter sample interval in seconds")
	fl.IntVar(&f.perfHistorySize, "perf-history-size", 6, "number of perf counter samples to retain")

	fl.IntVar(&f.readaheadSize, "readahead-size", 1<<20, "readahead block size in bytes")
	fl.IntVar(&f.readaheadCount, "readahead-count", 8, "readahead block pool capacity")
	fl.IntVar(&f.readaheadReadcnt, "readahead-readcnt", 8, "default speculative read count hint (stored in the loop config; the readahead cache does not read it)")
	fl.IntVar(&f.readaheadPinned, "readahead-pinned", 4, "readahead pinned-block count (stored in the loop config; the readahead cache does not read it)")

	fl.StringVar(&f.logfile, "logfile", "", "log file path (empty: stderr)")
	fl.StringVar(&f.logtype, "logtype", "file", "log output: file|syslog")
	fl.StringVar(&f.logstamp, "logstamp", "datetime", "log timestamp format: none|usec|datetime")
	fl.StringVar(&f.gossipMask, "gossip-mask", "", "comma-separated debug event categories: network,cache,readahead,io")

	fl.IntVar(&f.descCount, "desc-count", 512, "I/O descriptor pool size")
	fl.IntVar(&f.descSize, "desc-size", 1<<20, "I/O descriptor shared-buffer slot size in bytes")

	fl.BoolVar(&f.child, "child", false, "suppress core dumps (running under a supervisor)")
	fl.StringVar(&f.events, "events", "", "comma-separated event log filter (stored in the loop config; the logger does not read it)")
	fl.StringVar(&f.keypath, "keypath", "", "path to the credential signing key")

	fl.StringVar(&f.devicePath, "device", "", "character device path (default: internal/constants.DevicePath)")
	fl.StringVar(&f.server, "server", "", "address of one cluster server the RPC transport connects to")
}

// toReqloopConfig builds the internal/reqloop.Config Run needs from the
// flags bound above. Timeouts are parsed as plain integers on the CLI
// (spec.md §6) and converted to time.Duration here, once, rather than
// carrying string/int units deeper into the daemon.
func (f *cliFlags) toReqloopConfig() reqloop.Config {
	return reqloop.Config{
		ACacheTimeout:        time.Duration(f.acacheTimeoutMS) * time.Millisecond,
		ACacheSoftLimit:      f.acacheSoftLimit,
		ACacheHardLimit:      f.acacheHardLimit,
		ACacheReclaimPercent: f.acacheReclaimPct,

		NCacheTimeout:        time.Duration(f.ncacheTimeoutMS) * time.Millisecond,
		NCacheSoftLimit:      f.ncacheSoftLimit,
		NCacheHardLimit:      f.ncacheHardLimit,
		NCacheReclaimPercent: f.ncacheReclaimPct,

		CCacheTimeout:   time.Duration(f.ccacheTimeoutSecs) * time.Second,
		CapCacheTimeout: time.Duration(f.capcacheTimeoutSecs) * time.Second,

		PerfIntervalSecs: f.perfIntervalSecs,
		PerfHistorySize:  f.perfHistorySize,

		ReadaheadSize:    uint32(f.readaheadSize),
		ReadaheadCount:   uint32(f.readaheadCount),
		ReadaheadReadCnt: uint32(f.readaheadReadcnt),
		ReadaheadPinned:  f.readaheadPinned,

		LogFile:    f.logfile,
		LogType:    parseLogType(f.logtype),
		LogStamp:   parseLogStamp(f.logstamp),
		GossipMask: logging.ParseEventMask(f.gossipMask),

		DescCount: f.descCount,
		DescSize:  f.descSize,

		Child:   f.child,
		Events:  f.events,
		KeyPath: f.keypath,
	}
}

func parseLogType(s string) logging.OutputType {
	if s == "syslog" {
		return logging.OutputSyslog
	}
	return logging.OutputFile
}

func parseLogStamp(s string) logging.StampMode {
	switch s {
	case "usec":
		return logging.StampUsec
	case "none":
		return logging.StampNone
	default:
		return logging.StampDatetime
	}
}
