package uapi

import "encoding/binary"

// Tag is the kernel-assigned 64-bit opaque identifier that uniquely
// identifies one upcall/downcall round-trip (spec.md glossary: "Tag").
type Tag uint64

// UpcallHeader is the fixed-size leading section of every upcall (spec.md
// §6 "Upcall format").
type UpcallHeader struct {
	Tag        Tag
	Kind       Kind
	Uid        uint32
	Gid        uint32
	Pid        uint32
	HasTrailer bool
}

// DowncallHeader is the fixed-size leading section of every downcall
// (spec.md §6 "Downcall format").
type DowncallHeader struct {
	Tag         Tag
	Kind        Kind
	Status      int32
	TrailerSize uint32
	// TrailerBuf, when TrailerSize > 0, is always a slice within a readdir
	// or I/O mapped region (spec.md §6).
	TrailerBuf []byte
}

// UpcallHeaderSize is the encoded size of UpcallHeader on the device
// wire: tag(8) + kind(4) + uid(4) + gid(4) + pid(4) + has_trailer(1) + 3
// bytes padding.
const UpcallHeaderSize = 8 + 4 + 4 + 4 + 4 + 1 + 3

// DecodeUpcallHeader decodes the fixed leading section of an upcall read
// off the character device.
func DecodeUpcallHeader(buf []byte) (UpcallHeader, error) {
	if len(buf) < UpcallHeaderSize {
		return UpcallHeader{}, ErrTruncatedTrailer
	}
	var h UpcallHeader
	off := 0
	h.Tag = Tag(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	h.Kind = Kind(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	h.Uid = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Gid = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.Pid = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.HasTrailer = buf[off] != 0
	return h, nil
}

// DowncallHeaderSize is the encoded size of DowncallHeader's fixed
// section, not including TrailerBuf (which is written separately as a
// scatter-list entry per spec.md §4.8).
const DowncallHeaderSize = 8 + 4 + 4 + 4

// EncodeDowncallHeader serializes a DowncallHeader's fixed section for
// the device write.
func EncodeDowncallHeader(h DowncallHeader) []byte {
	buf := make([]byte, DowncallHeaderSize)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], uint64(h.Tag))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.Kind))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.Status))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.TrailerSize)
	return buf
}
