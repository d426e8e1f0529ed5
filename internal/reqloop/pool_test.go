package reqloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorPoolAcquireExhaustsAndReleaseRefills(t *testing.T) {
	p := newDescriptorPool(2)
	assert.Equal(t, 2, p.available())

	d1, ok := p.acquire()
	require.True(t, ok)
	d2, ok := p.acquire()
	require.True(t, ok)
	assert.Equal(t, 0, p.available())

	_, ok = p.acquire()
	assert.False(t, ok)

	d1.Tag = 9
	d1.Kind = 3
	p.release(d1)
	assert.Equal(t, 1, p.available())

	d3, ok := p.acquire()
	require.True(t, ok)
	assert.Same(t, d1, d3)
	assert.Zero(t, d3.Tag)
	assert.Zero(t, d3.Kind)

	p.release(d2)
	assert.Equal(t, 2, p.available())
}

func TestDescriptorPoolZeroCountStillUsable(t *testing.T) {
	p := newDescriptorPool(0)
	assert.Equal(t, 1, p.available())
}
