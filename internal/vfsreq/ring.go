package vfsreq

// Ring is the fixed-size, never-growing array of descriptors the main
// loop parks as unexpected receives (spec.md §4.1 "the ring of
// descriptors never grows"). Descriptor identity never changes; only
// contents are recycled via Descriptor.Reset.
type Ring struct {
	descs []*Descriptor
}

// NewRing preallocates n descriptors, all initially in the Unexpected
// state ready to be posted to the device.
func NewRing(n int) *Ring {
	descs := make([]*Descriptor, n)
	for i := range descs {
		descs[i] = &Descriptor{Unexpected: true}
	}
	return &Ring{descs: descs}
}

// Len reports the ring's fixed size.
func (r *Ring) Len() int { return len(r.descs) }

// At returns the descriptor occupying slot i. i is the caller's own
// bookkeeping index (e.g. the order descriptors were posted in); the
// ring does not itself track which slots are "in use" since a
// descriptor's own state flags answer that.
func (r *Ring) At(i int) *Descriptor { return r.descs[i] }

// All returns the full backing slice, for callers that need to post an
// entire initial batch of unexpected receives at startup.
func (r *Ring) All() []*Descriptor { return r.descs }
