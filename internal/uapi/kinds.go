// Package uapi defines the wire-level shapes shared with the kernel
// module: upcall/downcall headers, the operation kind enum, the khandle
// byte layout, and the readdir/readdirplus trailer encoding.
package uapi

// Kind identifies the upcall/downcall operation (spec.md §3, Request
// descriptor "kind").
type Kind uint32

const (
	KindLookup Kind = iota
	KindCreate
	KindSymlink
	KindGetattr
	KindSetattr
	KindRemove
	KindMkdir
	KindReaddir
	KindReaddirPlus
	KindRename
	KindTruncate
	KindGetXAttr
	KindSetXAttr
	KindRemoveXAttr
	KindListXAttr
	KindStatfs
	KindMount
	KindUmount
	KindPerfCount
	KindParam
	KindFsKey
	KindFileIO
	KindFileIOX
	KindRACacheFlush
	KindCancel
	KindFsync
	KindFeatures
)

var kindNames = map[Kind]string{
	KindLookup:       "Lookup",
	KindCreate:       "Create",
	KindSymlink:      "Symlink",
	KindGetattr:      "Getattr",
	KindSetattr:      "Setattr",
	KindRemove:       "Remove",
	KindMkdir:        "Mkdir",
	KindReaddir:      "Readdir",
	KindReaddirPlus:  "ReaddirPlus",
	KindRename:       "Rename",
	KindTruncate:     "Truncate",
	KindGetXAttr:     "GetXAttr",
	KindSetXAttr:     "SetXAttr",
	KindRemoveXAttr:  "RemoveXAttr",
	KindListXAttr:    "ListXAttr",
	KindStatfs:       "Statfs",
	KindMount:        "Mount",
	KindUmount:       "Umount",
	KindPerfCount:    "PerfCount",
	KindParam:        "Param",
	KindFsKey:        "FsKey",
	KindFileIO:       "FileIO",
	KindFileIOX:      "FileIOX",
	KindRACacheFlush: "RACacheFlush",
	KindCancel:       "Cancel",
	KindFsync:        "Fsync",
	KindFeatures:     "Features",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// InlineOnly reports whether a kind is serviced synchronously by the main
// loop without ever touching the RPC layer (spec.md §4.2 "Inline-only
// kinds").
func (k Kind) InlineOnly() bool {
	switch k {
	case KindUmount, KindPerfCount, KindParam, KindFsKey, KindCancel,
		KindFeatures, KindRACacheFlush:
		return true
	default:
		return false
	}
}

// Cancellable reports whether the kernel may cancel an in-flight op of
// this kind (spec.md §5 "Cancellation semantics": only I/O and I/O-X).
func (k Kind) Cancellable() bool {
	return k == KindFileIO || k == KindFileIOX
}

// InvalidatesRACache reports whether completing an upcall of this kind
// must flush the readahead cache for its target object (spec.md §4.3
// "Invalidation").
func (k Kind) InvalidatesRACache() bool {
	switch k {
	case KindTruncate, KindRemove, KindFsync, KindRACacheFlush:
		return true
	default:
		return false
	}
}
