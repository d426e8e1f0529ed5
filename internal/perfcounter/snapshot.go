package perfcounter

import (
	"bytes"
	"fmt"
	"time"
)

// CategorySnapshot is one category's cumulative counters at sample time.
type CategorySnapshot struct {
	Ops          uint64
	Errors       uint64
	AvgLatencyNs uint64
}

// Snapshot is one point-in-time sample across every category, the unit
// stored in Counters' history ring.
type Snapshot struct {
	Time       time.Time
	Categories [categoryCount]CategorySnapshot
}

// Snapshot implements dispatch.PerfSnapshotter: it renders the current
// tallies plus history as a text blob, the same shape
// PINT_perf_generate_text produced for the original's PerfCount
// downcall buffer (spec.md §4.2 inline kinds).
func (c *Counters) Snapshot() []byte {
	var buf bytes.Buffer

	now := Snapshot{Time: time.Now()}
	c.mu.Lock()
	for cat := Category(0); cat < categoryCount; cat++ {
		t := c.tallies[cat]
		cs := CategorySnapshot{Ops: t.opCount, Errors: t.errCount}
		if t.opCount > 0 {
			cs.AvgLatencyNs = t.latencySum / t.opCount
		}
		now.Categories[cat] = cs
	}
	c.mu.Unlock()

	writeSnapshot(&buf, now)
	buf.WriteString("# history\n")
	for _, snap := range c.History() {
		writeSnapshot(&buf, snap)
	}

	return buf.Bytes()
}

func writeSnapshot(buf *bytes.Buffer, snap Snapshot) {
	fmt.Fprintf(buf, "%s\n", snap.Time.Format(time.RFC3339Nano))
	for cat := Category(0); cat < categoryCount; cat++ {
		cs := snap.Categories[cat]
		fmt.Fprintf(buf, "  %-9s ops=%d errors=%d avg_latency_ns=%d\n",
			Category(cat), cs.Ops, cs.Errors, cs.AvgLatencyNs)
	}
}
