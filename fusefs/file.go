package fusefs

import (
	"github.com/dargueta/mapfs/mfs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
)

// file is the open-file handle the bridge hands to the kernel. The engine
// has no open-file table, so the handle is just the path plus the driver.
type file struct {
	nodefs.File
	drv  *mfs.Driver
	path string
}

func newFile(drv *mfs.Driver, path string) nodefs.File {
	return &file{
		File: nodefs.NewDefaultFile(),
		drv:  drv,
		path: path,
	}
}

func (f *file) String() string {
	return "mapfs:" + f.path
}

func (f *file) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	n, err := f.drv.Read(f.path, dest, off)
	if err != nil {
		return nil, toStatus(err)
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

func (f *file) Write(data []byte, off int64) (uint32, fuse.Status) {
	n, err := f.drv.Write(f.path, data, off)
	return uint32(n), toStatus(err)
}

func (f *file) Truncate(size uint64) fuse.Status {
	return toStatus(f.drv.Truncate(f.path, int64(size)))
}

func (f *file) GetAttr(out *fuse.Attr) fuse.Status {
	stat, err := f.drv.GetAttr(f.path)
	if err != nil {
		return toStatus(err)
	}
	fillAttr(&stat, out)
	return fuse.OK
}

func (f *file) Flush() fuse.Status {
	return fuse.OK
}

func (f *file) Fsync(flags int) fuse.Status {
	return toStatus(f.drv.Sync())
}
