package iobuf

import "github.com/pvfsclient/pvfsclient/internal/constants"

// NewIOPool builds the shared I/O buffer pool sized by --desc-count /
// --desc-size (spec.md §6).
func NewIOPool(descCount, descSize int) (*Pool, error) {
	if descCount <= 0 {
		descCount = constants.DefaultDescCount
	}
	if descSize <= 0 {
		descSize = constants.DefaultIODescSize
	}
	return New(KindIO, descCount, descSize)
}

// NewReaddirPool builds the shared Readdir buffer pool sized by its
// arguments; a non-positive value selects constants.DefaultRADescCount /
// constants.DefaultRADescSize. No CLI flag sets either.
func NewReaddirPool(descCount, descSize int) (*Pool, error) {
	if descCount <= 0 {
		descCount = constants.DefaultRADescCount
	}
	if descSize <= 0 {
		descSize = constants.DefaultRADescSize
	}
	return New(KindReaddir, descCount, descSize)
}
