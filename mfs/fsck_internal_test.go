package mfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// scratchImage formats an in-memory image and returns it with a driver.
// These tests poke at private state, so they can't use the shared fixtures.
func scratchImage(t *testing.T) (*Image, *Driver) {
	buf := make([]byte, ImageSize)
	require.NoError(t, Format(bytesextra.NewReadWriteSeeker(buf)))

	img, err := ImageFromBuffer(buf)
	require.NoError(t, err)
	return img, NewDriver(img)
}

func TestCheckCleanImage(t *testing.T) {
	img, drv := scratchImage(t)

	require.NoError(t, img.Check())

	require.NoError(t, drv.Mkdir("/d", 0o755))
	require.NoError(t, drv.Mknod("/d/f", 0o100644))
	_, err := drv.Write("/d/f", make([]byte, 5*BlockSize), 0)
	require.NoError(t, err)

	require.NoError(t, img.Check())
}

func TestCheckStrayInodeBit(t *testing.T) {
	img, _ := scratchImage(t)

	img.imap().Set(17, true)

	err := img.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allocated but not reachable")
}

func TestCheckStrayBlockBit(t *testing.T) {
	img, _ := scratchImage(t)

	img.dmap().Set(40, true)

	err := img.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no live inode references it")
}

func TestCheckLiveInodeMarkedFree(t *testing.T) {
	img, _ := scratchImage(t)

	img.imap().Set(int(img.RootIno()), false)

	err := img.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marked free in the bitmap")
}

func TestCheckReferencedBlockMarkedFree(t *testing.T) {
	img, _ := scratchImage(t)

	root, err := img.Inode(img.RootIno())
	require.NoError(t, err)
	img.dmap().Set(int(root.Dptrs[0]), false)

	err = img.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marked free")
}

func TestCheckWrongBlockCount(t *testing.T) {
	img, _ := scratchImage(t)

	root, err := img.Inode(img.RootIno())
	require.NoError(t, err)
	root.Dnum = 5
	require.NoError(t, img.PutInode(&root))

	err = img.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records 5 data blocks")
}

func TestCheckBrokenParentEntry(t *testing.T) {
	img, drv := scratchImage(t)

	require.NoError(t, drv.Mkdir("/d", 0o755))

	ino, err := img.Resolve("/d")
	require.NoError(t, err)
	dir, err := img.Inode(ino)
	require.NoError(t, err)

	raw := img.dirent(&dir, 0)
	raw.Ino = ino // point ".." at the directory itself
	img.putDirent(&dir, 0, &raw)

	err = img.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parent entry")
}

func TestCheckSharedBlock(t *testing.T) {
	img, drv := scratchImage(t)

	require.NoError(t, drv.Mknod("/a", 0o100644))
	require.NoError(t, drv.Mknod("/b", 0o100644))

	inoA, err := img.Resolve("/a")
	require.NoError(t, err)
	inoB, err := img.Resolve("/b")
	require.NoError(t, err)

	nodeA, err := img.Inode(inoA)
	require.NoError(t, err)
	nodeB, err := img.Inode(inoB)
	require.NoError(t, err)

	img.freeBlock(nodeB.Dptrs[0])
	nodeB.Dptrs[0] = nodeA.Dptrs[0]
	require.NoError(t, img.PutInode(&nodeB))

	err = img.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "referenced by both")
}
