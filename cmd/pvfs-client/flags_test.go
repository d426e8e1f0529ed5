package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pvfsclient/pvfsclient/internal/logging"
)

func TestToReqloopConfigConvertsUnits(t *testing.T) {
	f := &cliFlags{
		acacheTimeoutMS:   1500,
		ccacheTimeoutSecs: 120,
		perfIntervalSecs:  5,
		perfHistorySize:   3,
		readaheadSize:     4096,
		readaheadCount:    16,
		logtype:           "syslog",
		logstamp:          "usec",
		gossipMask:        "cache,io",
		descCount:         64,
	}

	cfg := f.toReqloopConfig()

	assert.Equal(t, 1500*time.Millisecond, cfg.ACacheTimeout)
	assert.Equal(t, 120*time.Second, cfg.CCacheTimeout)
	assert.Equal(t, 5, cfg.PerfIntervalSecs)
	assert.Equal(t, 3, cfg.PerfHistorySize)
	assert.Equal(t, uint32(4096), cfg.ReadaheadSize)
	assert.Equal(t, logging.OutputSyslog, cfg.LogType)
	assert.Equal(t, logging.StampUsec, cfg.LogStamp)
	assert.Equal(t, logging.EventCache|logging.EventIO, cfg.GossipMask)
	assert.Equal(t, 64, cfg.DescCount)
}

func TestParseLogTypeDefaultsToFile(t *testing.T) {
	assert.Equal(t, logging.OutputFile, parseLogType("file"))
	assert.Equal(t, logging.OutputFile, parseLogType("nonsense"))
	assert.Equal(t, logging.OutputSyslog, parseLogType("syslog"))
}

func TestParseLogStampDefaultsToDatetime(t *testing.T) {
	assert.Equal(t, logging.StampNone, parseLogStamp("none"))
	assert.Equal(t, logging.StampUsec, parseLogStamp("usec"))
	assert.Equal(t, logging.StampDatetime, parseLogStamp("anything-else"))
}
