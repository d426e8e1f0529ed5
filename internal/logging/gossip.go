package logging

import "strings"

// EventMask is the bitmask type behind --gossip-mask=EVENTS (SPEC_FULL.md
// supplement 2). Each bit names an internal event category; a log call
// tagged with a category is only emitted when that bit is set.
type EventMask uint32

const (
	EventNetwork EventMask = 1 << iota
	EventCache
	EventReadahead
	EventIO
)

var eventNames = map[string]EventMask{
	"network":   EventNetwork,
	"cache":     EventCache,
	"readahead": EventReadahead,
	"io":        EventIO,
}

// ParseEventMask parses a comma-separated --gossip-mask value such as
// "cache,readahead" into an EventMask. Unknown names are ignored so a
// newer daemon doesn't reject an operator's existing flags wholesale.
func ParseEventMask(s string) EventMask {
	var mask EventMask
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if bit, ok := eventNames[tok]; ok {
			mask |= bit
		}
	}
	return mask
}
