package pvfsclient

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// ErrorCode categorizes a failure the way spec.md §7 enumerates them:
// which stage of an upcall's life it happened in, not which component
// raised it.
type ErrorCode string

const (
	ErrCodeSubmission   ErrorCode = "submission"   // Transport.Submit rejected the op
	ErrCodeCompletion   ErrorCode = "completion"    // a Completion carried a non-zero status
	ErrCodeDevice       ErrorCode = "device"        // character device read/write/ioctl failed
	ErrCodeFatal        ErrorCode = "fatal"         // unrecoverable: helper-thread spawn, remount failure
	ErrCodeCancellation ErrorCode = "cancellation"  // Cancel on an already-completing or unknown target
	ErrCodePendingMount ErrorCode = "pending-mount" // upcall discarded while the remount ioctl is outstanding
	ErrCodeDuplicateTag ErrorCode = "duplicate-tag" // kernel retried a tag whose original is still in-flight
)

// Error is the structured error threaded through the daemon's
// submission/completion/device/cancellation paths (spec.md §7).
// Grounded on the teacher's *Error type (errors.go), generalized from
// ublk's DevID/Queue identity to this daemon's Tag/Kind identity (a
// kernel upcall has no device or queue number, only a tag and a kind).
type Error struct {
	Op    string    // operation that failed, e.g. "dispatch", "remount", "submit"
	Tag   uapi.Tag  // kernel request tag, zero if not applicable (e.g. fatal startup errors)
	Kind  uapi.Kind // upcall kind, zero if not applicable
	Code  ErrorCode
	Errno syscall.Errno // kernel errno, zero if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Errno != 0 {
		msg = e.Errno.Error()
	}
	if msg == "" {
		msg = string(e.Code)
	}

	if e.Tag != 0 {
		return fmt.Sprintf("pvfsclient: %s (op=%s tag=%v kind=%v)", msg, e.Op, e.Tag, e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("pvfsclient: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("pvfsclient: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is(err, &Error{Code: ...}) comparisons by code,
// the way callers check "was this a pending-mount discard" without
// caring which op or tag produced it.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Code == "" {
		return false
	}
	return e.Code == te.Code
}

// NewError builds an Error with no kernel-request identity attached
// (startup/fatal paths: device open, transport construction).
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewRequestError builds an Error scoped to one in-flight upcall.
func NewRequestError(op string, tag uapi.Tag, kind uapi.Kind, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Tag: tag, Kind: kind, Code: code, Msg: msg}
}

// WrapErrno wraps a kernel errno returned by a syscall (device open,
// ioctl, mmap) into a device-class Error.
func WrapErrno(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: ErrCodeDevice, Errno: errno, Msg: errno.Error(), Inner: errno}
}

// IsCode reports whether err is a *Error (at any wrap depth) with code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
