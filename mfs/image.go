package mfs

import (
	"fmt"
	"os"

	bitmap "github.com/boljen/go-bitmap"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/bytesextra"
	"golang.org/x/sys/unix"
)

// Image is a single disk image, either a shared file mapping or a plain
// in-memory buffer. All structure access goes through the byte offsets
// recorded in the superblock; nothing may cache raw addresses across a
// remount.
type Image struct {
	data   []byte
	mapped bool
	sb     Superblock
}

// OpenImage maps the backing file at `path` read/write and binds the region
// offsets recorded in its superblock. If the file does not exist it is
// created, extended to [ImageSize], and formatted with an empty root
// directory. A pre-existing file shorter than [ImageSize] is extended before
// mapping; a longer one is rejected.
func OpenImage(path string) (*Image, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return createImage(path)
	}
	if err != nil {
		return nil, err
	}
	return remountImage(path)
}

func createImage(path string) (*Image, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	data, err := extendAndMap(file)
	closeErr := file.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	err = Format(bytesextra.NewReadWriteSeeker(data))
	if err != nil {
		unix.Munmap(data)
		return nil, err
	}

	return bindImage(data, true)
}

func remountImage(path string) (*Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > ImageSize {
		return nil, fmt.Errorf(
			"%s: image is %d bytes, expected at most %d",
			path,
			info.Size(),
			ImageSize)
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	data, err := extendAndMap(file)
	closeErr := file.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	return bindImage(data, true)
}

// extendAndMap brings the file up to exactly [ImageSize] bytes and maps it
// shared read/write. The descriptor is not needed once the mapping exists.
func extendAndMap(file *os.File) ([]byte, error) {
	err := file.Truncate(ImageSize)
	if err != nil {
		return nil, err
	}

	return unix.Mmap(
		int(file.Fd()),
		0,
		ImageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
}

// ImageFromBuffer binds an image over a formatted in-memory buffer. The
// buffer is used directly, not copied.
func ImageFromBuffer(data []byte) (*Image, error) {
	return bindImage(data, false)
}

// bindImage recovers the region layout from the superblock stored in `data`.
func bindImage(data []byte, mapped bool) (*Image, error) {
	sb, err := LoadSuperblock(data)
	if err != nil {
		if mapped {
			unix.Munmap(data)
		}
		return nil, err
	}

	err = sb.Validate(int64(len(data)))
	if err != nil {
		if mapped {
			unix.Munmap(data)
		}
		return nil, err
	}

	return &Image{data: data, mapped: mapped, sb: sb}, nil
}

// Superblock returns a copy of the mounted superblock.
func (img *Image) Superblock() Superblock {
	return img.sb
}

// RootIno returns the inode index of the root directory.
func (img *Image) RootIno() int32 {
	return img.sb.RootIno
}

// Sync flushes dirty pages of the mapping back to the backing file. It is a
// no-op for buffer-backed images.
func (img *Image) Sync() error {
	if !img.mapped {
		return nil
	}
	return unix.Msync(img.data, unix.MS_SYNC)
}

// Unmount flushes and releases the mapping. The image must not be used
// afterwards. All failures are reported together.
func (img *Image) Unmount() error {
	if !img.mapped {
		img.data = nil
		return nil
	}

	var result *multierror.Error
	if err := unix.Msync(img.data, unix.MS_SYNC); err != nil {
		result = multierror.Append(result, err)
	}
	if err := unix.Munmap(img.data); err != nil {
		result = multierror.Append(result, err)
	}

	img.data = nil
	img.mapped = false
	return result.ErrorOrNil()
}

////////////////////////////////////////////////////////////////////////////////
// Region access
//
// Every accessor derives its slice from the superblock offsets on each call.

// imap is the inode allocation bitmap, one bit per inode, LSB first.
func (img *Image) imap() bitmap.Bitmap {
	size := img.sb.BitmapSize()
	return bitmap.Bitmap(img.data[img.sb.ImapOffset : img.sb.ImapOffset+size])
}

// dmap is the data-block allocation bitmap, one bit per block, LSB first.
func (img *Image) dmap() bitmap.Bitmap {
	size := img.sb.BitmapSize()
	return bitmap.Bitmap(img.data[img.sb.DmapOffset : img.sb.DmapOffset+size])
}

// inodeSlice returns the raw bytes of inode record `ino`.
func (img *Image) inodeSlice(ino int32) []byte {
	if ino < 0 || ino >= img.sb.InodeCount {
		panic(fmt.Sprintf(
			"inode index %d not in range [0, %d)", ino, img.sb.InodeCount))
	}
	offset := img.sb.InodeTableOffset + int64(ino)*InodeSize
	return img.data[offset : offset+InodeSize]
}

// blockSlice returns the raw bytes of data block `dno`.
func (img *Image) blockSlice(dno int32) []byte {
	if dno < 0 || dno >= img.sb.BlockCount {
		panic(fmt.Sprintf(
			"block index %d not in range [0, %d)", dno, img.sb.BlockCount))
	}
	offset := img.sb.DataOffset + int64(dno)*BlockSize
	return img.data[offset : offset+BlockSize]
}
