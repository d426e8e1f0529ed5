package uapi

import (
	"encoding/binary"
	"fmt"
)

// FileType mirrors the subset of POSIX file types the daemon needs to
// distinguish (symlinks get special handling in Getattr and readdirplus).
type FileType uint8

const (
	FileTypeRegular FileType = iota
	FileTypeDirectory
	FileTypeSymlink
	FileTypeOther
)

// Attr is the fixed-size inode attribute structure carried in Getattr/
// Setattr downcalls and readdirplus entries.
type Attr struct {
	Handle Handle
	Type   FileType
	Mode   uint32
	Size   uint64
	Atime  int64
	Mtime  int64
	Ctime  int64
	Uid    uint32
	Gid    uint32
}

// IsSymlink reports whether the attribute describes a symbolic link.
func (a Attr) IsSymlink() bool { return a.Type == FileTypeSymlink }

// AttrSize is the encoded size of Attr in bytes.
const AttrSize = 8 + 1 + 3 /*pad*/ + 4 + 8 + 8 + 8 + 8 + 4 + 4

// EncodeAttr serializes an Attr to its fixed-size wire form.
func EncodeAttr(a Attr) []byte {
	buf := make([]byte, AttrSize)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], uint64(a.Handle))
	off += 8
	buf[off] = byte(a.Type)
	off += 4 // 1 byte + 3 padding
	binary.LittleEndian.PutUint32(buf[off:], a.Mode)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], a.Size)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(a.Atime))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(a.Mtime))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(a.Ctime))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], a.Uid)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], a.Gid)
	off += 4
	return buf
}

// DecodeAttr is the inverse of EncodeAttr.
func DecodeAttr(buf []byte) (Attr, error) {
	if len(buf) < AttrSize {
		return Attr{}, fmt.Errorf("uapi: short attr buffer: %d < %d", len(buf), AttrSize)
	}
	var a Attr
	off := 0
	a.Handle = Handle(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	a.Type = FileType(buf[off])
	off += 4
	a.Mode = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	a.Size = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	a.Atime = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	a.Mtime = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	a.Ctime = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	a.Uid = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	a.Gid = binary.LittleEndian.Uint32(buf[off:])
	return a, nil
}
