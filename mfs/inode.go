package mfs

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/dargueta/mapfs"
	"github.com/noxer/bytewriter"
)

// Inode is one fixed-size inode record, in its serialized layout. Timestamps
// have second granularity. Unused direct and indirect slots hold [NoBlock].
type Inode struct {
	Ino      int32
	Mode     int32
	Size     int32
	Uid      int32
	Gid      int32
	Atime    int32
	Ctime    int32
	Mtime    int32
	Nlink    int32
	Dnum     int32
	Dptrs    [NumDirectBlocks]int32
	Indirect int32
	Reserved [8]byte
}

func (node *Inode) IsDir() bool {
	return uint32(node.Mode)&mapfs.S_IFMT == mapfs.S_IFDIR
}

func (node *Inode) IsFile() bool {
	return uint32(node.Mode)&mapfs.S_IFMT == mapfs.S_IFREG
}

func (node *Inode) IsSymlink() bool {
	return uint32(node.Mode)&mapfs.S_IFMT == mapfs.S_IFLNK
}

// Stat converts the record into the platform-independent stat form. Block
// counts are reported in 512-byte units, the convention stat(2) uses.
func (node *Inode) Stat() mapfs.FileStat {
	return mapfs.FileStat{
		InodeNumber:  uint64(node.Ino),
		Nlinks:       uint64(node.Nlink),
		ModeFlags:    uint32(node.Mode),
		Uid:          uint32(node.Uid),
		Gid:          uint32(node.Gid),
		Size:         int64(node.Size),
		BlockSize:    BlockSize,
		NumBlocks:    int64(node.Dnum) * (BlockSize / 512),
		CreatedAt:    time.Unix(int64(node.Ctime), 0),
		LastAccessed: time.Unix(int64(node.Atime), 0),
		LastModified: time.Unix(int64(node.Mtime), 0),
	}
}

// Inode deserializes inode record `ino` from the inode table.
func (img *Image) Inode(ino int32) (Inode, error) {
	var node Inode
	reader := bytes.NewReader(img.inodeSlice(ino))
	err := binary.Read(reader, binary.LittleEndian, &node)
	return node, err
}

// PutInode serializes the record back into the inode table.
func (img *Image) PutInode(node *Inode) error {
	writer := bytewriter.New(img.inodeSlice(node.Ino))
	return binary.Write(writer, binary.LittleEndian, node)
}

// touch refreshes the access time and optionally the modification time, then
// stores the record.
func (img *Image) touch(node *Inode, modified bool) error {
	now := int32(time.Now().Unix())
	node.Atime = now
	if modified {
		node.Mtime = now
	}
	return img.PutInode(node)
}

// createInode allocates an inode plus its first data block and writes the
// fully initialized record. A nil parent creates the root: a directory whose
// ".." entry points at itself. For any other directory the first block is
// initialized as an empty entry table pointing back at `parent`, and in all
// non-root cases an entry for the new inode is added to the parent.
func (img *Image) createInode(
	parent *Inode,
	name string,
	mode int32,
	uid int32,
	gid int32,
) (Inode, error) {
	ino, err := img.allocInode()
	if err != nil {
		return Inode{}, err
	}

	dno, err := img.allocBlock()
	if err != nil {
		img.freeInode(ino)
		return Inode{}, err
	}

	now := int32(time.Now().Unix())
	node := Inode{
		Ino:      ino,
		Mode:     mode,
		Size:     0,
		Uid:      uid,
		Gid:      gid,
		Atime:    now,
		Ctime:    now,
		Mtime:    now,
		Nlink:    1,
		Dnum:     1,
		Indirect: NoBlock,
	}
	node.Dptrs[0] = dno
	for i := 1; i < NumDirectBlocks; i++ {
		node.Dptrs[i] = NoBlock
	}

	if parent == nil {
		img.dirInit(&node, node.Ino)
		err = img.PutInode(&node)
		return node, err
	}

	if node.IsDir() {
		img.dirInit(&node, parent.Ino)
	}

	err = img.dirAdd(parent, node.Ino, name)
	if err != nil {
		img.freeBlock(dno)
		img.freeInode(ino)
		return Inode{}, err
	}

	err = img.PutInode(&node)
	return node, err
}

// deleteInode releases every block the inode holds, then the inode itself.
// Direct pointers and indirect entries are dense prefixes, so the walk stops
// at the first sentinel.
func (img *Image) deleteInode(node *Inode) {
	for _, dno := range node.Dptrs {
		if dno < 0 {
			break
		}
		img.freeBlock(dno)
	}

	if node.Indirect >= 0 {
		for i := 0; i < IndirectCapacity; i++ {
			dno := img.indirectEntry(node, int32(i))
			if dno < 0 {
				break
			}
			img.freeBlock(dno)
		}
		img.freeBlock(node.Indirect)
	}

	img.freeInode(node.Ino)
}
