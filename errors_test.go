package mapfs_test

import (
	"syscall"
	"testing"

	"github.com/dargueta/mapfs"
	"github.com/stretchr/testify/assert"
)

func TestDriverErrorDefaultMessage(t *testing.T) {
	err := mapfs.NewDriverError(syscall.ENOENT)
	assert.Equal(t, syscall.ENOENT.Error(), err.Error(), "error message is wrong")
	assert.Equal(t, syscall.ENOENT, err.Errno())
	assert.ErrorIs(t, err, syscall.ENOENT)
}

func TestDriverErrorWithMessage(t *testing.T) {
	err := mapfs.NewDriverErrorWithMessage(syscall.ENOSPC, "directory is full")
	assert.Equal(
		t,
		syscall.ENOSPC.Error()+": directory is full",
		err.Error(),
		"error message is wrong")
	assert.ErrorIs(t, err, syscall.ENOSPC)
}

func TestFileStatModeChecks(t *testing.T) {
	dir := mapfs.FileStat{ModeFlags: mapfs.DirectoryMode}
	assert.True(t, dir.IsDir())
	assert.False(t, dir.IsFile())

	file := mapfs.FileStat{ModeFlags: mapfs.FileMode}
	assert.True(t, file.IsFile())
	assert.False(t, file.IsSymlink())

	link := mapfs.FileStat{ModeFlags: mapfs.SymlinkMode}
	assert.True(t, link.IsSymlink())
	assert.False(t, link.IsDir())
}
