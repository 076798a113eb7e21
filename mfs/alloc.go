package mfs

import (
	"syscall"

	"github.com/dargueta/mapfs"
)

// allocInode marks the first free inode as allocated and returns its index.
func (img *Image) allocInode() (int32, error) {
	imap := img.imap()
	for ino := int32(0); ino < img.sb.InodeCount; ino++ {
		if !imap.Get(int(ino)) {
			imap.Set(int(ino), true)
			return ino, nil
		}
	}
	return NoBlock, mapfs.NewDriverErrorWithMessage(
		syscall.ENOSPC, "all inodes are in use")
}

// allocBlock marks the first free data block as allocated and returns its
// index.
func (img *Image) allocBlock() (int32, error) {
	dmap := img.dmap()
	for dno := int32(0); dno < img.sb.BlockCount; dno++ {
		if !dmap.Get(int(dno)) {
			dmap.Set(int(dno), true)
			return dno, nil
		}
	}
	return NoBlock, mapfs.NewDriverErrorWithMessage(
		syscall.ENOSPC, "all data blocks are in use")
}

func (img *Image) freeInode(ino int32) {
	img.imap().Set(int(ino), false)
}

func (img *Image) freeBlock(dno int32) {
	img.dmap().Set(int(dno), false)
}
