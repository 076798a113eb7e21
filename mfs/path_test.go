package mfs_test

import (
	"syscall"
	"testing"

	"github.com/dargueta/mapfs/mfs"
	maptest "github.com/dargueta/mapfs/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasename(t *testing.T) {
	cases := map[string]string{
		"/a":        "a",
		"/a/b/c":    "c",
		"/a/b/":     "b",
		"/":         "",
		"/deep/x.y": "x.y",
	}
	for path, expected := range cases {
		assert.Equal(t, expected, mfs.Basename(path), "path %q", path)
	}
}

func TestParentPath(t *testing.T) {
	cases := map[string]string{
		"/a":     "/",
		"/a/b/c": "/a/b/",
		"/a/b/":  "/a/",
		"/":      "/",
	}
	for path, expected := range cases {
		assert.Equal(t, expected, mfs.ParentPath(path), "path %q", path)
	}
}

func TestResolveRoot(t *testing.T) {
	drv := maptest.MountScratch(t)
	img := drv.Image()

	ino, err := img.Resolve("/")
	require.NoError(t, err)
	assert.Equal(t, img.RootIno(), ino)
}

func TestResolveWalksDirectories(t *testing.T) {
	drv := maptest.MountScratch(t)

	require.NoError(t, drv.Mkdir("/d", 0o755))
	require.NoError(t, drv.Mkdir("/d/e", 0o755))
	require.NoError(t, drv.Mknod("/d/e/f", fileMode))

	img := drv.Image()

	ino, err := img.Resolve("/d/e/f")
	require.NoError(t, err)

	node, err := img.Inode(ino)
	require.NoError(t, err)
	assert.True(t, node.IsFile())

	// Doubled and trailing slashes are tolerated.
	again, err := img.Resolve("//d/e//f/")
	require.NoError(t, err)
	assert.Equal(t, ino, again)
}

func TestResolveMissingComponent(t *testing.T) {
	drv := maptest.MountScratch(t)

	_, err := drv.Image().Resolve("/no/such/thing")
	assert.ErrorIs(t, err, syscall.ENOENT)
}

// A regular file in the middle of a path terminates resolution.
func TestResolveFileMidPath(t *testing.T) {
	drv := maptest.MountScratch(t)
	require.NoError(t, drv.Mknod("/plain", fileMode))

	_, err := drv.Image().Resolve("/plain/child")
	assert.ErrorIs(t, err, syscall.ENOENT)
}
