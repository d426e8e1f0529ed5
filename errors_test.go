package pvfsclient

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

func TestErrorFormatsWithTagAndKind(t *testing.T) {
	err := NewRequestError("dispatch", 42, uapi.KindGetattr, ErrCodeCompletion, "remote returned ENOENT")
	assert.Contains(t, err.Error(), "tag=42")
	assert.Contains(t, err.Error(), "op=dispatch")
}

func TestErrorFormatsWithoutTag(t *testing.T) {
	err := NewError("remount", ErrCodeFatal, "ioctl failed")
	assert.Equal(t, "pvfsclient: ioctl failed (op=remount)", err.Error())
}

func TestWrapErrnoCarriesErrno(t *testing.T) {
	err := WrapErrno("device.Open", syscall.ENOENT)
	assert.Equal(t, ErrCodeDevice, err.Code)
	assert.Equal(t, syscall.ENOENT, err.Errno)
	assert.True(t, errors.Is(err, syscall.ENOENT))
}

func TestIsCodeMatchesByCodeOnly(t *testing.T) {
	err := NewRequestError("cancel", 7, uapi.KindFileIO, ErrCodeCancellation, "target not found")
	assert.True(t, IsCode(err, ErrCodeCancellation))
	assert.False(t, IsCode(err, ErrCodeDevice))
	assert.False(t, IsCode(nil, ErrCodeCancellation))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	var err error = NewRequestError("dispatch", 1, uapi.KindLookup, ErrCodeDuplicateTag, "")
	assert.True(t, errors.Is(err, &Error{Code: ErrCodeDuplicateTag}))
	assert.False(t, errors.Is(err, &Error{Code: ErrCodeFatal}))
}

func TestErrorUnwrapReturnsInner(t *testing.T) {
	err := WrapErrno("device.Open", syscall.EACCES)
	assert.Equal(t, syscall.EACCES, err.Unwrap())
}
