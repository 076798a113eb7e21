// Package fusefs bridges a mapfs driver to the kernel through FUSE. The
// bridge is deliberately thin: it prepends the leading slash the kernel
// strips, converts errno-typed driver errors into FUSE status codes, and
// nothing else. Serialization of parallel kernel callbacks happens inside
// the driver.
package fusefs

import (
	"errors"
	"time"

	"github.com/dargueta/mapfs"
	"github.com/dargueta/mapfs/mfs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
)

// FileSystem implements [pathfs.FileSystem] over a [mfs.Driver].
type FileSystem struct {
	pathfs.FileSystem
	drv *mfs.Driver
}

// NewFileSystem wraps a driver for mounting. Operations the engine does not
// support fall through to the embedded default implementation's ENOSYS.
func NewFileSystem(drv *mfs.Driver) *FileSystem {
	return &FileSystem{
		FileSystem: pathfs.NewDefaultFileSystem(),
		drv:        drv,
	}
}

func (fs *FileSystem) String() string {
	return "mapfs"
}

// absPath restores the leading slash the FUSE library strips from names.
func absPath(name string) string {
	return "/" + name
}

// toStatus converts a driver error into the FUSE status for its errno.
func toStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}

	var driverErr *mapfs.DriverError
	if errors.As(err, &driverErr) {
		return fuse.Status(driverErr.Errno())
	}
	return fuse.EIO
}

func fillAttr(stat *mapfs.FileStat, out *fuse.Attr) {
	out.Ino = stat.InodeNumber
	out.Mode = stat.ModeFlags
	out.Nlink = uint32(stat.Nlinks)
	out.Owner = fuse.Owner{Uid: stat.Uid, Gid: stat.Gid}
	out.Size = uint64(stat.Size)
	out.Blksize = uint32(stat.BlockSize)
	out.Blocks = uint64(stat.NumBlocks)
	out.Atime = uint64(stat.LastAccessed.Unix())
	out.Mtime = uint64(stat.LastModified.Unix())
	out.Ctime = uint64(stat.CreatedAt.Unix())
}

func (fs *FileSystem) GetAttr(
	name string, context *fuse.Context,
) (*fuse.Attr, fuse.Status) {
	stat, err := fs.drv.GetAttr(absPath(name))
	if err != nil {
		return nil, toStatus(err)
	}

	var attr fuse.Attr
	fillAttr(&stat, &attr)
	return &attr, fuse.OK
}

func (fs *FileSystem) Access(
	name string, mode uint32, context *fuse.Context,
) fuse.Status {
	return toStatus(fs.drv.Access(absPath(name)))
}

func (fs *FileSystem) Mknod(
	name string, mode uint32, dev uint32, context *fuse.Context,
) fuse.Status {
	return toStatus(fs.drv.Mknod(absPath(name), mode))
}

func (fs *FileSystem) Mkdir(
	name string, mode uint32, context *fuse.Context,
) fuse.Status {
	return toStatus(fs.drv.Mkdir(absPath(name), mode))
}

func (fs *FileSystem) Rmdir(name string, context *fuse.Context) fuse.Status {
	return toStatus(fs.drv.Rmdir(absPath(name)))
}

func (fs *FileSystem) Unlink(name string, context *fuse.Context) fuse.Status {
	return toStatus(fs.drv.Unlink(absPath(name)))
}

func (fs *FileSystem) Rename(
	oldName string, newName string, context *fuse.Context,
) fuse.Status {
	return toStatus(fs.drv.Rename(absPath(oldName), absPath(newName)))
}

func (fs *FileSystem) Link(
	oldName string, newName string, context *fuse.Context,
) fuse.Status {
	return toStatus(fs.drv.Link(absPath(oldName), absPath(newName)))
}

func (fs *FileSystem) Symlink(
	value string, linkName string, context *fuse.Context,
) fuse.Status {
	return toStatus(fs.drv.Symlink(value, absPath(linkName)))
}

func (fs *FileSystem) Readlink(
	name string, context *fuse.Context,
) (string, fuse.Status) {
	target, err := fs.drv.Readlink(absPath(name), mfs.BlockSize)
	return target, toStatus(err)
}

func (fs *FileSystem) Chmod(
	name string, mode uint32, context *fuse.Context,
) fuse.Status {
	return toStatus(fs.drv.Chmod(absPath(name), mode))
}

func (fs *FileSystem) Utimens(
	name string, atime *time.Time, mtime *time.Time, context *fuse.Context,
) fuse.Status {
	now := time.Now()
	if atime == nil {
		atime = &now
	}
	if mtime == nil {
		mtime = &now
	}
	return toStatus(fs.drv.Utimens(absPath(name), *atime, *mtime))
}

func (fs *FileSystem) Truncate(
	name string, size uint64, context *fuse.Context,
) fuse.Status {
	return toStatus(fs.drv.Truncate(absPath(name), int64(size)))
}

func (fs *FileSystem) Open(
	name string, flags uint32, context *fuse.Context,
) (nodefs.File, fuse.Status) {
	err := fs.drv.Open(absPath(name))
	if err != nil {
		return nil, toStatus(err)
	}
	return newFile(fs.drv, absPath(name)), fuse.OK
}

func (fs *FileSystem) Create(
	name string, flags uint32, mode uint32, context *fuse.Context,
) (nodefs.File, fuse.Status) {
	err := fs.drv.Mknod(absPath(name), mode)
	if err != nil {
		return nil, toStatus(err)
	}
	return newFile(fs.drv, absPath(name)), fuse.OK
}

func (fs *FileSystem) OpenDir(
	name string, context *fuse.Context,
) ([]fuse.DirEntry, fuse.Status) {
	entries, err := fs.drv.ReadDir(absPath(name))
	if err != nil {
		return nil, toStatus(err)
	}

	stream := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		stream = append(stream, fuse.DirEntry{
			Name: entry.Name,
			Mode: entry.Stat.ModeFlags,
			Ino:  entry.Stat.InodeNumber,
		})
	}
	return stream, fuse.OK
}

func (fs *FileSystem) StatFs(name string) *fuse.StatfsOut {
	stat := fs.drv.StatFs()
	return &fuse.StatfsOut{
		Blocks:  stat.TotalBlocks,
		Bfree:   stat.BlocksFree,
		Bavail:  stat.BlocksAvailable,
		Files:   stat.Files,
		Ffree:   stat.FilesFree,
		Bsize:   uint32(stat.BlockSize),
		NameLen: uint32(stat.MaxNameLength),
	}
}
