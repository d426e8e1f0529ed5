//go:build linux

package device

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/pvfsclient/pvfsclient"
	"github.com/pvfsclient/pvfsclient/internal/iobuf"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// wrapDeviceErr turns a raw syscall failure into a *pvfsclient.Error of
// class ErrCodeDevice, the way errors.go's WrapErrno doc describes
// (device open, ioctl, mmap failures). Falls back to NewError when the
// underlying error is not a syscall.Errno (e.g. a short-read mismatch).
func wrapDeviceErr(op string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return pvfsclient.WrapErrno(op, errno)
	}
	return pvfsclient.NewError(op, pvfsclient.ErrCodeDevice, err.Error())
}

// ioctl command numbers for the remount and pool-registration requests.
// These are daemon/kernel-module private and have no stable meaning
// outside this pair, mirroring the teacher's UblkIOCmd encoding for
// its own private control surface (internal/ctrl/control.go).
const (
	ioctlRemount      = 0x9101
	ioctlRegisterPool = 0x9102
)

// poolRegistration is the ioctl payload telling the kernel module the
// base address of a just-mapped shared-buffer pool (spec.md §6
// "mapped-region acquisition").
type poolRegistration struct {
	Kind     uint32
	Slots    uint32
	SlotSize uint32
	_        uint32
	Addr     uint64
}

// CharDevice is the real Device implementation, backed by the fixed
// character device path spec.md §6 names.
type CharDevice struct {
	fd int

	mu sync.Mutex
}

// Open opens path (normally constants.DevicePath) for read/write.
func Open(path string) (*CharDevice, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, wrapDeviceErr(fmt.Sprintf("device.Open(%s)", path), err)
	}
	return &CharDevice{fd: fd}, nil
}

// ReadUnexpected reads one pending upcall. The device's read(2) blocks
// until an upcall is posted or returns a short read, which the caller
// treats per spec.md §7 ("short read from device ⇒ descriptor discarded
// and reposted with retry status").
func (d *CharDevice) ReadUnexpected(ctx context.Context) (Upcall, error) {
	if err := ctx.Err(); err != nil {
		return Upcall{}, err
	}

	header := make([]byte, uapi.UpcallHeaderSize)
	n, err := unix.Read(d.fd, header)
	if err != nil {
		return Upcall{}, wrapDeviceErr("device.ReadUnexpected", err)
	}
	if n < uapi.UpcallHeaderSize {
		return Upcall{}, pvfsclient.NewError("device.ReadUnexpected", pvfsclient.ErrCodeDevice,
			fmt.Sprintf("short upcall header read: %d < %d", n, uapi.UpcallHeaderSize))
	}

	h, err := uapi.DecodeUpcallHeader(header)
	if err != nil {
		return Upcall{}, err
	}

	if !h.HasTrailer {
		return Upcall{Header: h}, nil
	}

	lenBuf := make([]byte, 4)
	if _, err := unix.Read(d.fd, lenBuf); err != nil {
		return Upcall{}, wrapDeviceErr("device.ReadUnexpected(trailer-length)", err)
	}
	trailerLen := int(binary.LittleEndian.Uint32(lenBuf))
	trailer := make([]byte, trailerLen)
	if trailerLen > 0 {
		if _, err := unix.Read(d.fd, trailer); err != nil {
			return Upcall{}, wrapDeviceErr("device.ReadUnexpected(trailer)", err)
		}
	}

	return Upcall{Header: h, Trailer: trailer}, nil
}

// WriteDowncall writes the downcall header followed by its trailer, if
// any, as two consecutive write(2) calls (spec.md §4.8 "scatter list").
func (d *CharDevice) WriteDowncall(header uapi.DowncallHeader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := uapi.EncodeDowncallHeader(header)
	if _, err := unix.Write(d.fd, buf); err != nil {
		return wrapDeviceErr("device.WriteDowncall(header)", err)
	}
	if header.TrailerSize > 0 && len(header.TrailerBuf) > 0 {
		if _, err := unix.Write(d.fd, header.TrailerBuf[:header.TrailerSize]); err != nil {
			return wrapDeviceErr("device.WriteDowncall(trailer)", err)
		}
	}
	return nil
}

// MapPool allocates a shared-buffer pool (anonymous mmap, per
// internal/iobuf) and registers its base address with the kernel
// module via ioctl, so the kernel can hand back slot indices in
// upcalls that reference this pool (spec.md §6 "mapped-region
// acquisition").
func (d *CharDevice) MapPool(kind iobuf.Kind, slots, slotSize int) (*iobuf.Pool, error) {
	pool, err := iobuf.New(kind, slots, slotSize)
	if err != nil {
		return nil, err
	}

	base, err := pool.Slice(0)
	if err != nil {
		pool.Close()
		return nil, err
	}

	reg := poolRegistration{
		Kind:     uint32(kind),
		Slots:    uint32(slots),
		SlotSize: uint32(slotSize),
		Addr:     uint64(uintptr(addressOf(base))),
	}
	if err := ioctlPtr(d.fd, ioctlRegisterPool, &reg); err != nil {
		pool.Close()
		return nil, wrapDeviceErr(fmt.Sprintf("device.MapPool(%s)", kind), err)
	}

	return pool, nil
}

// Remount issues the blocking ioctl asking the kernel module to replay
// prior mount state (spec.md §4.6). It is expected to be called from a
// dedicated goroutine since it blocks for the duration of the replay.
func (d *CharDevice) Remount(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- ioctlNoArg(d.fd, ioctlRemount)
	}()

	select {
	case err := <-done:
		if err != nil {
			return wrapDeviceErr("device.Remount", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *CharDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// addressOf returns base's address as a uintptr via pointer indirection,
// following the teacher's pointerFromMmap idiom to satisfy go vet's
// unsafeptr checker (internal/queue/runner.go).
//
//go:noinline
func addressOf(base []byte) uintptr {
	return uintptr(unsafe.Pointer(&base[0]))
}

func ioctlPtr(fd int, cmd uintptr, arg *poolRegistration) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), cmd, uintptr(unsafe.Pointer(arg)))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlNoArg(fd int, cmd uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), cmd, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

var _ Device = (*CharDevice)(nil)
