package inflight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvfsclient/pvfsclient/internal/uapi"
	"github.com/pvfsclient/pvfsclient/internal/vfsreq"
)

func TestInsertRejectsDuplicateTag(t *testing.T) {
	tbl := New()
	d1 := &vfsreq.Descriptor{Tag: uapi.Tag(1)}
	d2 := &vfsreq.Descriptor{Tag: uapi.Tag(1)}

	require.NoError(t, tbl.Insert(uapi.Tag(1), d1))

	err := tbl.Insert(uapi.Tag(1), d2)
	assert.ErrorIs(t, err, ErrDuplicateTag)

	got, ok := tbl.Lookup(uapi.Tag(1))
	require.True(t, ok)
	assert.Same(t, d1, got, "original descriptor must survive a duplicate-tag insert")
}

func TestRemoveDeletesAndReturnsOwner(t *testing.T) {
	tbl := New()
	d := &vfsreq.Descriptor{Tag: uapi.Tag(5)}
	require.NoError(t, tbl.Insert(uapi.Tag(5), d))

	got, ok := tbl.Remove(uapi.Tag(5))
	require.True(t, ok)
	assert.Same(t, d, got)

	_, ok = tbl.Lookup(uapi.Tag(5))
	assert.False(t, ok)

	_, ok = tbl.Remove(uapi.Tag(5))
	assert.False(t, ok)
}

func TestLenTracksOutstandingTags(t *testing.T) {
	tbl := New()
	assert.Equal(t, 0, tbl.Len())

	require.NoError(t, tbl.Insert(uapi.Tag(1), &vfsreq.Descriptor{}))
	require.NoError(t, tbl.Insert(uapi.Tag(2), &vfsreq.Descriptor{}))
	assert.Equal(t, 2, tbl.Len())

	tbl.Remove(uapi.Tag(1))
	assert.Equal(t, 1, tbl.Len())
}
