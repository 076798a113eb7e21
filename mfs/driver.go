package mfs

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/dargueta/mapfs"
)

// Driver is the public face of the engine: every host-visible operation takes
// a path, resolves it against the image, and manipulates inodes and blocks.
// The engine itself is single-threaded; a single mutex serializes dispatches
// so the driver can sit under a bridge that issues parallel callbacks.
type Driver struct {
	mutex sync.Mutex
	img   *Image
	uid   int32
	gid   int32
}

// Mount opens (or creates and formats) the backing file at `path` and
// returns a driver over it. Newly created objects are owned by the current
// process identity.
func Mount(path string) (*Driver, error) {
	img, err := OpenImage(path)
	if err != nil {
		return nil, err
	}
	return NewDriver(img), nil
}

// NewDriver wraps an already-open image.
func NewDriver(img *Image) *Driver {
	return &Driver{
		img: img,
		uid: int32(os.Getuid()),
		gid: int32(os.Getgid()),
	}
}

// Image exposes the underlying image, mainly for consistency checking and
// inspection tools.
func (drv *Driver) Image() *Image {
	return drv.img
}

// Unmount flushes and releases the image. The driver must not be used
// afterwards.
func (drv *Driver) Unmount() error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()
	return drv.img.Unmount()
}

// Sync flushes the mapping to the backing file.
func (drv *Driver) Sync() error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()
	return drv.img.Sync()
}

////////////////////////////////////////////////////////////////////////////////
// Internal helpers. These assume the mutex is held.

func (drv *Driver) resolveInode(path string) (Inode, error) {
	ino, err := drv.img.Resolve(path)
	if err != nil {
		return Inode{}, err
	}
	return drv.img.Inode(ino)
}

func (drv *Driver) exists(path string) bool {
	_, err := drv.img.Resolve(path)
	return err == nil
}

// resolveParent resolves the directory that holds (or would hold) the final
// component of `path`, plus the component name itself.
func (drv *Driver) resolveParent(path string) (Inode, string, error) {
	dir, err := drv.resolveInode(ParentPath(path))
	if err != nil {
		return Inode{}, "", err
	}
	return dir, Basename(path), nil
}

func checkName(name string) error {
	if len(name) > MaxNameLen {
		return mapfs.NewDriverErrorWithMessage(syscall.ENAMETOOLONG, name)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Metadata operations

// Access reports whether `path` resolves, refreshing the access time when it
// does.
func (drv *Driver) Access(path string) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return err
	}
	return drv.img.touch(&node, false)
}

// Open checks that `path` resolves. The engine has no open-file table, so
// this is an existence check with the same atime side effect access has.
func (drv *Driver) Open(path string) error {
	return drv.Access(path)
}

// GetAttr returns the stat information for `path`.
func (drv *Driver) GetAttr(path string) (mapfs.FileStat, error) {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return mapfs.FileStat{}, err
	}

	err = drv.img.touch(&node, false)
	if err != nil {
		return mapfs.FileStat{}, err
	}
	return node.Stat(), nil
}

// Mknod creates a regular file or a directory under the parent of `path`,
// branching on the type bits of `mode`. Created objects get the canonical
// file or directory mode.
func (drv *Driver) Mknod(path string, mode uint32) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()
	return drv.mknod(path, mode)
}

func (drv *Driver) mknod(path string, mode uint32) error {
	dir, name, err := drv.resolveParent(path)
	if err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	if drv.exists(path) {
		return mapfs.NewDriverErrorWithMessage(syscall.EEXIST, path)
	}

	createMode := int32(mapfs.FileMode)
	if mode&mapfs.S_IFMT == mapfs.S_IFDIR {
		createMode = mapfs.DirectoryMode
	}

	_, err = drv.img.createInode(&dir, name, createMode, drv.uid, drv.gid)
	return err
}

// Mkdir creates a directory.
func (drv *Driver) Mkdir(path string, mode uint32) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()
	return drv.mknod(path, mapfs.DirectoryMode)
}

// Rmdir removes an empty directory and releases its inode and blocks.
func (drv *Driver) Rmdir(path string) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	dir, err := drv.resolveInode(path)
	if err != nil {
		return err
	}
	if !dir.IsDir() {
		return mapfs.NewDriverErrorWithMessage(syscall.ENOTDIR, path)
	}
	if dir.Ino == drv.img.RootIno() {
		return mapfs.NewDriverErrorWithMessage(syscall.EBUSY, path)
	}
	if !drv.img.dirIsEmpty(&dir) {
		return mapfs.NewDriverErrorWithMessage(syscall.ENOTEMPTY, path)
	}

	parent, _, err := drv.resolveParent(path)
	if err != nil {
		return err
	}

	drv.img.dirRemove(&parent, dir.Ino)
	drv.img.deleteInode(&dir)
	return nil
}

// Unlink removes the directory entry for `path` and drops one hard link.
// When the last link goes, the inode and every block it holds are freed.
func (drv *Driver) Unlink(path string) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return err
	}
	if node.IsDir() {
		return mapfs.NewDriverErrorWithMessage(syscall.EISDIR, path)
	}

	dir, _, err := drv.resolveParent(path)
	if err != nil {
		return err
	}

	drv.img.dirRemove(&dir, node.Ino)

	node.Nlink--
	if node.Nlink == 0 {
		drv.img.deleteInode(&node)
		return nil
	}
	return drv.img.touch(&node, true)
}

// Link creates a new directory entry `to` pointing at the inode `from`
// resolves to, incrementing its hard-link count.
func (drv *Driver) Link(from string, to string) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(from)
	if err != nil {
		return err
	}
	if drv.exists(to) {
		return mapfs.NewDriverErrorWithMessage(syscall.EEXIST, to)
	}

	dir, name, err := drv.resolveParent(to)
	if err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}

	err = drv.img.dirAdd(&dir, node.Ino, name)
	if err != nil {
		return err
	}

	node.Nlink++
	return drv.img.touch(&node, true)
}

// Symlink creates a symbolic link at `to` whose first data block stores the
// path `from`. The target must resolve. Resolution never follows the link
// afterwards; readlink is the only consumer of the stored path.
func (drv *Driver) Symlink(from string, to string) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	if !drv.exists(from) {
		return mapfs.NewDriverErrorWithMessage(syscall.ENOENT, from)
	}
	if drv.exists(to) {
		return mapfs.NewDriverErrorWithMessage(syscall.EEXIST, to)
	}
	if len(from) >= BlockSize {
		return mapfs.NewDriverErrorWithMessage(syscall.ENAMETOOLONG, from)
	}

	dir, name, err := drv.resolveParent(to)
	if err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}

	node, err := drv.img.createInode(
		&dir, name, mapfs.SymlinkMode, drv.uid, drv.gid)
	if err != nil {
		return err
	}

	block := drv.img.blockSlice(node.Dptrs[0])
	copy(block, from)
	block[len(from)] = 0

	node.Size = int32(len(from))
	return drv.img.PutInode(&node)
}

// Readlink returns up to `size` bytes of the stored link target.
func (drv *Driver) Readlink(path string, size int) (string, error) {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return "", err
	}

	target := int(node.Size)
	if target > size {
		target = size
	}

	block := drv.img.blockSlice(node.Dptrs[0])
	result := string(block[:target])

	err = drv.img.touch(&node, false)
	return result, err
}

// Rename moves the entry for `from` into the directory holding `to`, under
// the new basename. The inode is untouched; hard links are preserved.
func (drv *Driver) Rename(from string, to string) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(from)
	if err != nil {
		return err
	}
	if drv.exists(to) {
		return mapfs.NewDriverErrorWithMessage(syscall.EEXIST, to)
	}

	newDir, newName, err := drv.resolveParent(to)
	if err != nil {
		return err
	}
	if err := checkName(newName); err != nil {
		return err
	}

	oldDir, _, err := drv.resolveParent(from)
	if err != nil {
		return err
	}

	drv.img.dirRemove(&oldDir, node.Ino)

	err = drv.img.dirAdd(&newDir, node.Ino, newName)
	if err != nil {
		// Put the old entry back so a full target directory doesn't orphan
		// the inode.
		drv.img.dirAdd(&oldDir, node.Ino, Basename(from))
		return err
	}

	return drv.img.touch(&node, true)
}

// Chmod replaces the inode's mode with the caller's.
func (drv *Driver) Chmod(path string, mode uint32) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return err
	}

	node.Mode = int32(mode)
	return drv.img.touch(&node, true)
}

// Utimens sets the access and modification timestamps, at second
// granularity.
func (drv *Driver) Utimens(path string, atime time.Time, mtime time.Time) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return err
	}

	node.Atime = int32(atime.Unix())
	node.Mtime = int32(mtime.Unix())
	return drv.img.PutInode(&node)
}

////////////////////////////////////////////////////////////////////////////////
// File data operations

// Read copies file contents starting at `offset` into `buf`, clamped to the
// end of the file. Returns the number of bytes read.
func (drv *Driver) Read(path string, buf []byte, offset int64) (int, error) {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return 0, err
	}

	n := drv.img.readData(&node, buf, offset)

	err = drv.img.touch(&node, false)
	return n, err
}

// Write copies `data` into the file at `offset`, growing it as needed. The
// size afterwards is the larger of the old size and offset plus the bytes
// written, so overwrites in place don't inflate the file.
func (drv *Driver) Write(path string, data []byte, offset int64) (int, error) {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return 0, err
	}

	// A write past the current end first zero-fills the gap so block
	// pointers stay a dense prefix; the format has no representation for
	// holes.
	if offset > int64(node.Size) {
		err = drv.img.truncate(&node, offset)
		if err != nil {
			// Keep whatever allocations happened so the bitmaps and the
			// record stay in agreement.
			drv.img.PutInode(&node)
			return 0, err
		}
	}

	written, writeErr := drv.img.writeData(&node, data, offset)

	if end := offset + int64(written); end > int64(node.Size) {
		node.Size = int32(end)
	}

	err = drv.img.touch(&node, true)
	if writeErr != nil {
		return written, writeErr
	}
	return written, err
}

// Truncate resizes the file at `path` to exactly `size` bytes.
func (drv *Driver) Truncate(path string, size int64) error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	node, err := drv.resolveInode(path)
	if err != nil {
		return err
	}

	err = drv.img.truncate(&node, size)
	touchErr := drv.img.touch(&node, true)
	if err != nil {
		return err
	}
	return touchErr
}

////////////////////////////////////////////////////////////////////////////////
// Directory listing

// ReadDir lists the directory at `path`. "." is synthesized from the
// directory itself; ".." and everything else comes straight from the stored
// entry table.
func (drv *Driver) ReadDir(path string) ([]mapfs.DirEntry, error) {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	dir, err := drv.resolveInode(path)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, mapfs.NewDriverErrorWithMessage(syscall.ENOTDIR, path)
	}

	entries := []mapfs.DirEntry{{Name: ".", Stat: dir.Stat()}}

	for _, raw := range drv.img.dirSlots(&dir) {
		node, err := drv.img.Inode(raw.Ino)
		if err != nil {
			return nil, err
		}
		entries = append(entries, mapfs.DirEntry{
			Name: direntName(&raw),
			Stat: node.Stat(),
		})
	}

	err = drv.img.touch(&dir, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// StatFs summarizes image usage from the allocation bitmaps.
func (drv *Driver) StatFs() mapfs.FSStat {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()

	sb := drv.img.sb
	freeBlocks := uint64(0)
	dmap := drv.img.dmap()
	for i := int32(0); i < sb.BlockCount; i++ {
		if !dmap.Get(int(i)) {
			freeBlocks++
		}
	}

	freeInodes := uint64(0)
	imap := drv.img.imap()
	for i := int32(0); i < sb.InodeCount; i++ {
		if !imap.Get(int(i)) {
			freeInodes++
		}
	}

	return mapfs.FSStat{
		BlockSize:       BlockSize,
		TotalBlocks:     uint64(sb.BlockCount),
		BlocksFree:      freeBlocks,
		BlocksAvailable: freeBlocks,
		Files:           uint64(sb.InodeCount),
		FilesFree:       freeInodes,
		MaxNameLength:   MaxNameLen,
	}
}
