package mfs_test

import (
	"encoding/binary"
	"testing"

	"github.com/dargueta/mapfs/mfs"
	maptest "github.com/dargueta/mapfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The serialized struct sizes are load-bearing: the layout formula and every
// region offset depend on them.
func TestSerializedRecordSizes(t *testing.T) {
	assert.EqualValues(
		t, mfs.SuperblockSize, binary.Size(mfs.Superblock{}),
		"superblock serializes to the wrong size")
	assert.EqualValues(
		t, mfs.InodeSize, binary.Size(mfs.Inode{}),
		"inode serializes to the wrong size")
	assert.EqualValues(
		t, mfs.DirentSize, binary.Size(mfs.RawDirent{}),
		"directory entry serializes to the wrong size")
}

func TestNewSuperblockLayout(t *testing.T) {
	sb := mfs.NewSuperblock(mfs.ImageSize)

	// (1 MiB·4 − 48·4) / (64·4 + 4096·4 + 2) = 252 objects of each kind.
	assert.EqualValues(t, 252, sb.InodeCount, "wrong inode count")
	assert.EqualValues(t, 252, sb.BlockCount, "wrong block count")
	assert.EqualValues(t, 32, sb.BitmapSize(), "wrong bitmap size")

	assert.EqualValues(t, 48, sb.ImapOffset)
	assert.EqualValues(t, 80, sb.DmapOffset)
	assert.EqualValues(t, 112, sb.InodeTableOffset)
	assert.EqualValues(t, 16240, sb.DataOffset)

	end := sb.DataOffset + int64(sb.BlockCount)*mfs.BlockSize
	assert.LessOrEqual(
		t, end, int64(mfs.ImageSize), "data region extends past the image")
}

func TestSuperblockRoundTrip(t *testing.T) {
	original := mfs.NewSuperblock(mfs.ImageSize)
	original.RootIno = 7

	buf := make([]byte, mfs.SuperblockSize)
	require.NoError(t, mfs.StoreSuperblock(buf, original))

	loaded, err := mfs.LoadSuperblock(buf)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestSuperblockValidateRejectsGarbage(t *testing.T) {
	buf := make([]byte, mfs.SuperblockSize)
	sb, err := mfs.LoadSuperblock(buf)
	require.NoError(t, err)

	assert.Error(t, sb.Validate(mfs.ImageSize), "all-zero superblock accepted")
}

func TestFormattedImageBinds(t *testing.T) {
	buf := maptest.FormatImageBytes(t)
	img := maptest.ImageFromBytes(t, buf)

	sb := img.Superblock()
	assert.Equal(t, int32(mfs.Magic), sb.Magic)
	assert.GreaterOrEqual(t, sb.RootIno, int32(0))

	root, err := img.Inode(sb.RootIno)
	require.NoError(t, err)
	assert.True(t, root.IsDir(), "root is not a directory")
	assert.EqualValues(t, 1, root.Nlink)
	assert.EqualValues(t, 1, root.Dnum)
}
