package mfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dargueta/mapfs/mfs"
	maptest "github.com/dargueta/mapfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenImageCreatesBackingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	img, err := mfs.OpenImage(path)
	require.NoError(t, err)
	defer img.Unmount()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, mfs.ImageSize, info.Size(),
		"backing file must be exactly one MiB")

	root, err := img.Inode(img.RootIno())
	require.NoError(t, err)
	assert.True(t, root.IsDir())
}

// A valid image that lost its tail is extended back to full size on mount.
func TestOpenImageExtendsShortFile(t *testing.T) {
	path := maptest.CreateImageFile(t)
	require.NoError(t, os.Truncate(path, mfs.ImageSize/2))

	img, err := mfs.OpenImage(path)
	require.NoError(t, err)
	defer img.Unmount()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, mfs.ImageSize, info.Size())
}

func TestOpenImageRejectsOversizedFile(t *testing.T) {
	path := maptest.CreateImageFile(t)
	require.NoError(t, os.Truncate(path, mfs.ImageSize+1))

	_, err := mfs.OpenImage(path)
	assert.Error(t, err)
}

func TestOpenImageRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeros.img")
	require.NoError(t, os.WriteFile(path, make([]byte, mfs.ImageSize), 0o644))

	_, err := mfs.OpenImage(path)
	assert.Error(t, err, "an all-zero image must not mount")
}

func TestUnmountTwice(t *testing.T) {
	path := maptest.CreateImageFile(t)

	img, err := mfs.OpenImage(path)
	require.NoError(t, err)

	require.NoError(t, img.Unmount())
	assert.NoError(t, img.Unmount(), "second unmount is a no-op")
}

func TestSyncBufferBacked(t *testing.T) {
	buf := maptest.FormatImageBytes(t)
	img := maptest.ImageFromBytes(t, buf)
	assert.NoError(t, img.Sync())
}
