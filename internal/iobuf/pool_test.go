package iobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidDimensions(t *testing.T) {
	_, err := New(KindIO, 0, 4096)
	assert.Error(t, err)

	_, err = New(KindIO, 4, 0)
	assert.Error(t, err)
}

func TestSliceIsIndependentPerSlot(t *testing.T) {
	p, err := New(KindIO, 4, 128)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 4, p.Slots())
	assert.Equal(t, 128, p.SlotSize())
	assert.Equal(t, KindIO, p.Kind())

	s0, err := p.Slice(0)
	require.NoError(t, err)
	s1, err := p.Slice(1)
	require.NoError(t, err)

	require.Len(t, s0, 128)
	require.Len(t, s1, 128)

	s0[0] = 0xAA
	assert.NotEqual(t, byte(0xAA), s1[0], "writing slot 0 must not alias slot 1")
}

func TestSliceRejectsOutOfRangeIndex(t *testing.T) {
	p, err := New(KindReaddir, 2, 64)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Slice(-1)
	assert.Error(t, err)

	_, err = p.Slice(2)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	p, err := New(KindIO, 1, 64)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestNewIOPoolAndReaddirPoolUseDefaultsWhenZero(t *testing.T) {
	io, err := NewIOPool(0, 0)
	require.NoError(t, err)
	defer io.Close()
	assert.Positive(t, io.Slots())
	assert.Positive(t, io.SlotSize())

	rd, err := NewReaddirPool(0, 0)
	require.NoError(t, err)
	defer rd.Close()
	assert.Equal(t, KindReaddir, rd.Kind())
}
