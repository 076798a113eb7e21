package mfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"
)

// ImageSize is the exact size of a disk image, in bytes. Images are never
// grown or shrunk past this.
const ImageSize = 1024 * 1024

// BlockSize is the size of a single data block, in bytes.
const BlockSize = 4096

// NumDirectBlocks is the number of direct block pointers in an inode.
const NumDirectBlocks = 3

// IndirectCapacity is the number of block indices a single indirect block can
// hold (4-byte signed integers).
const IndirectCapacity = BlockSize / 4

// MaxFileSize is the theoretical maximum file size given the addressing
// scheme. The image size caps it well below this in practice.
const MaxFileSize = (NumDirectBlocks + IndirectCapacity) * BlockSize

// SuperblockSize is the serialized size of the superblock at offset 0.
const SuperblockSize = 48

// InodeSize is the serialized size of one inode record.
const InodeSize = 64

// DirentSize is the serialized size of one directory entry.
const DirentSize = 64

// DirentNameSize is the size of the name field in a directory entry,
// including the NUL terminator.
const DirentNameSize = 48

// MaxNameLen is the longest usable entry name, in bytes.
const MaxNameLen = DirentNameSize - 1

// DirentsPerBlock is the number of entries in a directory's entry table. A
// directory uses exactly one block for its table, so this is also the hard
// limit on entries per directory.
const DirentsPerBlock = BlockSize / DirentSize

// Magic identifies a formatted image ("MFS0").
const Magic = 0x4D465330

// NoBlock is the on-disk sentinel for "no such block" / "free slot".
const NoBlock = int32(-1)

// Superblock is the header at offset 0 of the image. All region locations are
// byte offsets from the start of the image, which keeps the image
// position-independent across remounts.
type Superblock struct {
	ImapOffset       int64
	DmapOffset       int64
	InodeTableOffset int64
	DataOffset       int64
	InodeCount       int32
	BlockCount       int32
	RootIno          int32
	Magic            int32
}

// bitmapSizeBytes returns the number of bytes a bitmap with `count` bits
// occupies on disk: ceil(count / 8) rounded up to the nearest 4 bytes.
func bitmapSizeBytes(count int32) int64 {
	bytes := (int64(count) + 7) / 8
	return (bytes + 3) &^ 3
}

// maxObjectCount gives the shared inode and data-block count for an image of
// the given size. The formula weights every region by 4 and reserves two
// spare units per object, which leaves a little slack after the data region;
// it is reproduced as-is because it determines the layout of every existing
// image.
func maxObjectCount(imageSize int64) int32 {
	return int32((imageSize*4 - SuperblockSize*4) /
		(InodeSize*4 + BlockSize*4 + 2))
}

// NewSuperblock computes the region layout for a fresh image of the given
// size. Regions are laid out back to back: superblock, inode bitmap, data
// bitmap, inode table, data blocks.
func NewSuperblock(imageSize int64) Superblock {
	count := maxObjectCount(imageSize)
	bmSize := bitmapSizeBytes(count)

	imapOffset := int64(SuperblockSize)
	dmapOffset := imapOffset + bmSize
	inodeTableOffset := dmapOffset + bmSize
	dataOffset := inodeTableOffset + int64(count)*InodeSize

	return Superblock{
		ImapOffset:       imapOffset,
		DmapOffset:       dmapOffset,
		InodeTableOffset: inodeTableOffset,
		DataOffset:       dataOffset,
		InodeCount:       count,
		BlockCount:       count,
		RootIno:          NoBlock,
		Magic:            Magic,
	}
}

// BitmapSize returns the on-disk size of each allocation bitmap, in bytes.
func (sb *Superblock) BitmapSize() int64 {
	return bitmapSizeBytes(sb.InodeCount)
}

// Validate sanity-checks a superblock read from an existing image.
func (sb *Superblock) Validate(imageSize int64) error {
	if sb.Magic != Magic {
		return fmt.Errorf(
			"bad magic number: expected %#08x, got %#08x", Magic, sb.Magic)
	}
	if sb.InodeCount <= 0 || sb.BlockCount <= 0 {
		return fmt.Errorf(
			"impossible object counts: %d inodes, %d blocks",
			sb.InodeCount,
			sb.BlockCount)
	}
	if sb.RootIno < 0 || sb.RootIno >= sb.InodeCount {
		return fmt.Errorf(
			"root inode %d not in range [0, %d)", sb.RootIno, sb.InodeCount)
	}

	end := sb.DataOffset + int64(sb.BlockCount)*BlockSize
	if end > imageSize {
		return fmt.Errorf(
			"data region ends at %d, past the end of the %d-byte image",
			end,
			imageSize)
	}
	return nil
}

// LoadSuperblock deserializes the superblock from the head of an image.
func LoadSuperblock(data []byte) (Superblock, error) {
	var sb Superblock
	if len(data) < SuperblockSize {
		return sb, fmt.Errorf(
			"image too small for a superblock: %d bytes", len(data))
	}

	reader := bytes.NewReader(data[:SuperblockSize])
	err := binary.Read(reader, binary.LittleEndian, &sb)
	return sb, err
}

// StoreSuperblock serializes the superblock into the head of an image.
func StoreSuperblock(data []byte, sb Superblock) error {
	writer := bytewriter.New(data[:SuperblockSize])
	return binary.Write(writer, binary.LittleEndian, &sb)
}
