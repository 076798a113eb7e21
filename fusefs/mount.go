package fusefs

import (
	"github.com/dargueta/mapfs/mfs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
)

// Mount attaches the driver to `mountpoint` and returns the serving loop.
// The caller runs [fuse.Server.Serve] and is responsible for unmounting the
// server and then the driver on shutdown.
func Mount(drv *mfs.Driver, mountpoint string, debug bool) (*fuse.Server, error) {
	nfs := pathfs.NewPathNodeFs(NewFileSystem(drv), nil)

	server, _, err := nodefs.MountRoot(mountpoint, nfs.Root(), nil)
	if err != nil {
		return nil, err
	}

	server.SetDebug(debug)
	return server, nil
}
