package uapi

import (
	"encoding/binary"
	"fmt"
)

// DirEntry is one decoded readdir entry (spec.md §6 "Readdir encoding").
type DirEntry struct {
	Name    string
	Khandle Khandle
}

// ReaddirPage is the full decoded payload of a readdir trailer.
type ReaddirPage struct {
	Token            uint64
	DirectoryVersion uint64
	Entries          []DirEntry
}

// ErrTruncatedTrailer is returned when a trailer buffer ends before a
// complete record could be decoded.
var ErrTruncatedTrailer = fmt.Errorf("uapi: truncated trailer")

func pad8(n int) int {
	if r := n % 8; r != 0 {
		return n + (8 - r)
	}
	return n
}

// EncodeReaddir serializes a ReaddirPage using the layout specified in
// spec.md §6: `{token:u64, directory_version:u64, count:u32}` followed by
// `count` entries each `{name_len:u32, name bytes, name padding to 8,
// khandle: 16 bytes}`.
func EncodeReaddir(page ReaddirPage) []byte {
	size := 8 + 8 + 4
	for _, e := range page.Entries {
		size += 4 + pad8(len(e.Name)) + 16
	}

	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], page.Token)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], page.DirectoryVersion)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(page.Entries)))
	off += 4

	for _, e := range page.Entries {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Name)))
		off += 4
		copy(buf[off:], e.Name)
		off += pad8(len(e.Name))
		copy(buf[off:], e.Khandle[:])
		off += 16
	}

	return buf
}

// DecodeReaddir is the inverse of EncodeReaddir. Property (5) in spec.md
// §8 requires decode(encode(xs)) == xs for any dirent list up to
// MAX_DIRENTS.
func DecodeReaddir(buf []byte) (ReaddirPage, error) {
	var page ReaddirPage
	if len(buf) < 20 {
		return page, ErrTruncatedTrailer
	}

	off := 0
	page.Token = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	page.DirectoryVersion = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	count := binary.LittleEndian.Uint32(buf[off:])
	off += 4

	page.Entries = make([]DirEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(buf) {
			return page, ErrTruncatedTrailer
		}
		nameLen := int(binary.LittleEndian.Uint32(buf[off:]))
		off += 4

		padded := pad8(nameLen)
		if off+padded+16 > len(buf) {
			return page, ErrTruncatedTrailer
		}

		name := string(buf[off : off+nameLen])
		off += padded

		var kh Khandle
		copy(kh[:], buf[off:off+16])
		off += 16

		page.Entries = append(page.Entries, DirEntry{Name: name, Khandle: kh})
	}

	return page, nil
}

// PlusEntry pairs a readdir entry with its recovery-lookup error code, the
// attributes (when the lookup succeeded) and an optional symlink target
// (spec.md §6 "Readdirplus encoding").
type PlusEntry struct {
	DirEntry
	ErrorCode  int32
	Attr       Attr
	LinkTarget string // only valid when Attr.IsSymlink() && mask selects link targets
}

// ReaddirPlusPage is the decoded payload of a readdirplus trailer: a
// readdir payload followed by per-entry error codes (padded to 8-byte
// alignment) followed by fixed-size attribute structures, each optionally
// followed by a link-target string.
type ReaddirPlusPage struct {
	Token            uint64
	DirectoryVersion uint64
	Entries          []PlusEntry
	// WantLinkTargets mirrors the upcall's attribute mask selecting link
	// targets; only honored for symlink entries.
	WantLinkTargets bool
}

// EncodeReaddirPlus serializes a ReaddirPlusPage per spec.md §6.
func EncodeReaddirPlus(page ReaddirPlusPage) []byte {
	base := ReaddirPage{
		Token:            page.Token,
		DirectoryVersion: page.DirectoryVersion,
	}
	for _, e := range page.Entries {
		base.Entries = append(base.Entries, e.DirEntry)
	}
	buf := EncodeReaddir(base)

	errSize := pad8(4 * len(page.Entries))
	errBuf := make([]byte, errSize)
	for i, e := range page.Entries {
		binary.LittleEndian.PutUint32(errBuf[i*4:], uint32(e.ErrorCode))
	}
	buf = append(buf, errBuf...)

	for _, e := range page.Entries {
		buf = append(buf, EncodeAttr(e.Attr)...)
		if page.WantLinkTargets && e.Attr.IsSymlink() {
			// Always emit the length field for a symlink entry, even when
			// LinkTarget is "", so DecodeReaddirPlus's unconditional
			// length read (gated on the same WantLinkTargets/IsSymlink
			// pair) stays in sync with what was written.
			lt := make([]byte, 4+pad8(len(e.LinkTarget)))
			binary.LittleEndian.PutUint32(lt, uint32(len(e.LinkTarget)))
			copy(lt[4:], e.LinkTarget)
			buf = append(buf, lt...)
		}
	}

	return buf
}

// DecodeReaddirPlus is the inverse of EncodeReaddirPlus.
func DecodeReaddirPlus(buf []byte, wantLinkTargets bool) (ReaddirPlusPage, error) {
	base, err := DecodeReaddir(buf)
	if err != nil {
		return ReaddirPlusPage{}, err
	}

	off := 8 + 8 + 4
	for _, e := range base.Entries {
		off += 4 + pad8(len(e.Name)) + 16
	}

	count := len(base.Entries)
	errSize := pad8(4 * count)
	if off+errSize > len(buf) {
		return ReaddirPlusPage{}, ErrTruncatedTrailer
	}
	errs := make([]int32, count)
	for i := 0; i < count; i++ {
		errs[i] = int32(binary.LittleEndian.Uint32(buf[off+i*4:]))
	}
	off += errSize

	page := ReaddirPlusPage{
		Token:            base.Token,
		DirectoryVersion: base.DirectoryVersion,
		WantLinkTargets:  wantLinkTargets,
	}

	for i, de := range base.Entries {
		if off+AttrSize > len(buf) {
			return ReaddirPlusPage{}, ErrTruncatedTrailer
		}
		attr, err := DecodeAttr(buf[off : off+AttrSize])
		if err != nil {
			return ReaddirPlusPage{}, err
		}
		off += AttrSize

		pe := PlusEntry{DirEntry: de, ErrorCode: errs[i], Attr: attr}

		if wantLinkTargets && attr.IsSymlink() {
			if off+4 > len(buf) {
				return ReaddirPlusPage{}, ErrTruncatedTrailer
			}
			ltLen := int(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
			padded := pad8(ltLen)
			if off+padded > len(buf) {
				return ReaddirPlusPage{}, ErrTruncatedTrailer
			}
			pe.LinkTarget = string(buf[off : off+ltLen])
			off += padded
		}

		page.Entries = append(page.Entries, pe)
	}

	return page, nil
}
