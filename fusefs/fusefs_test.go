package fusefs

import (
	"syscall"
	"testing"

	"github.com/dargueta/mapfs"
	maptest "github.com/dargueta/mapfs/testing"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The pathfs callbacks are plain method calls, so the translation layer is
// testable without a kernel mount.

func TestGetAttrTranslation(t *testing.T) {
	fs := NewFileSystem(maptest.MountScratch(t))

	require.Equal(t, fuse.OK, fs.Mknod("hello", mapfs.FileMode, 0, nil))

	attr, status := fs.GetAttr("hello", nil)
	require.Equal(t, fuse.OK, status)
	assert.EqualValues(t, mapfs.FileMode, attr.Mode)
	assert.EqualValues(t, 0, attr.Size)
	assert.EqualValues(t, 1, attr.Nlink)

	_, status = fs.GetAttr("missing", nil)
	assert.Equal(t, fuse.ENOENT, status)
}

func TestStatusTranslation(t *testing.T) {
	assert.Equal(t, fuse.OK, toStatus(nil))
	assert.Equal(
		t,
		fuse.Status(syscall.ENOTEMPTY),
		toStatus(mapfs.NewDriverError(syscall.ENOTEMPTY)))
	assert.Equal(t, fuse.EIO, toStatus(assert.AnError))
}

func TestFileReadWrite(t *testing.T) {
	fs := NewFileSystem(maptest.MountScratch(t))

	handle, status := fs.Create("f", 0, mapfs.FileMode, nil)
	require.Equal(t, fuse.OK, status)

	written, status := handle.Write([]byte("through the bridge"), 0)
	require.Equal(t, fuse.OK, status)
	assert.EqualValues(t, 18, written)

	dest := make([]byte, 64)
	result, status := handle.Read(dest, 0)
	require.Equal(t, fuse.OK, status)

	data, status := result.Bytes(nil)
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, []byte("through the bridge"), data)
}

func TestOpenDirListsEntries(t *testing.T) {
	fs := NewFileSystem(maptest.MountScratch(t))

	require.Equal(t, fuse.OK, fs.Mkdir("d", 0o755, nil))
	require.Equal(t, fuse.OK, fs.Mknod("d/child", mapfs.FileMode, 0, nil))

	stream, status := fs.OpenDir("d", nil)
	require.Equal(t, fuse.OK, status)

	names := []string{}
	for _, entry := range stream {
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{".", "..", "child"}, names)
}

func TestSymlinkThroughBridge(t *testing.T) {
	fs := NewFileSystem(maptest.MountScratch(t))

	require.Equal(t, fuse.OK, fs.Mknod("target", mapfs.FileMode, 0, nil))
	require.Equal(t, fuse.OK, fs.Symlink("/target", "link", nil))

	value, status := fs.Readlink("link", nil)
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, "/target", value)
}

func TestStatFsTranslation(t *testing.T) {
	fs := NewFileSystem(maptest.MountScratch(t))

	out := fs.StatFs("")
	require.NotNil(t, out)
	assert.EqualValues(t, 252, out.Blocks)
	assert.EqualValues(t, 4096, out.Bsize)
}
