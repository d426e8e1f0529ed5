package uapi

import "encoding/binary"

// Handle is the RPC-side scalar object reference (spec.md glossary:
// "Handle / Khandle").
type Handle uint64

// Khandle is the kernel-side fixed 16-byte representation of a Handle.
type Khandle [16]byte

// KhandleFromHandle truncates/expands an RPC-side Handle into the 16-byte
// kernel form (spec.md §4.2 step 3). The kernel's inode-derivation code
// expects bytes 0..4 and 12..16 of the handle with 8 zero bytes inserted
// between (spec.md §6 "Readdir encoding").
func KhandleFromHandle(h Handle) Khandle {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], uint64(h))

	var kh Khandle
	copy(kh[0:4], raw[0:4])
	// bytes 4:12 are the inserted zero padding.
	copy(kh[12:16], raw[4:8])
	return kh
}

// HandleFromKhandle is the inverse of KhandleFromHandle, reconstructing
// the RPC-side scalar from the kernel's 16-byte layout.
func HandleFromKhandle(kh Khandle) Handle {
	var raw [8]byte
	copy(raw[0:4], kh[0:4])
	copy(raw[4:8], kh[12:16])
	return Handle(binary.LittleEndian.Uint64(raw[:]))
}
