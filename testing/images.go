// Package testing holds fixtures shared by the test suites: formatted
// images, both as plain byte buffers and as real temp files that can be
// memory-mapped.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/dargueta/mapfs/mfs"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// FormatImageBytes returns a freshly formatted image as an in-memory byte
// slice. It is guaranteed to either return a valid image or fail the test
// and abort.
func FormatImageBytes(t *testing.T) []byte {
	buf := make([]byte, mfs.ImageSize)

	err := mfs.Format(bytesextra.NewReadWriteSeeker(buf))
	require.NoError(t, err, "failed to format in-memory image")
	return buf
}

// ImageFromBytes binds an image over a formatted buffer.
func ImageFromBytes(t *testing.T, buf []byte) *mfs.Image {
	img, err := mfs.ImageFromBuffer(buf)
	require.NoError(t, err, "failed to bind image over buffer")
	return img
}

// CreateImageFile formats a fresh image inside a per-test temp directory and
// returns its path.
func CreateImageFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "disk.img")

	err := mfs.FormatFile(path)
	require.NoError(t, err, "failed to format image file %s", path)
	return path
}

// MountScratch mounts a driver over a brand-new image file. The driver is
// unmounted when the test finishes.
func MountScratch(t *testing.T) *mfs.Driver {
	path := filepath.Join(t.TempDir(), "disk.img")

	drv, err := mfs.Mount(path)
	require.NoError(t, err, "failed to mount fresh image at %s", path)

	// Unmounting twice is harmless, so tests may also unmount explicitly.
	t.Cleanup(func() { drv.Unmount() })
	return drv
}
