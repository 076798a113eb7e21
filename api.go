package mapfs

import (
	"math"
	"time"
)

// FileStat is a platform-independent form of [syscall.Stat_t] describing a
// single object inside a disk image.
type FileStat struct {
	InodeNumber  uint64
	Nlinks       uint64
	ModeFlags    uint32
	Uid          uint32
	Gid          uint32
	Size         int64
	BlockSize    int64
	NumBlocks    int64
	CreatedAt    time.Time
	LastAccessed time.Time
	LastModified time.Time
}

func (stat *FileStat) IsDir() bool {
	return stat.ModeFlags&S_IFMT == S_IFDIR
}

func (stat *FileStat) IsFile() bool {
	return stat.ModeFlags&S_IFMT == S_IFREG
}

func (stat *FileStat) IsSymlink() bool {
	return stat.ModeFlags&S_IFMT == S_IFLNK
}

// FSStat is a platform-independent form of [syscall.Statfs_t].
type FSStat struct {
	// BlockSize is the size of a logical block on the file system, in bytes.
	BlockSize int64
	// TotalBlocks is the total number of data blocks on the disk image.
	TotalBlocks uint64
	// BlocksFree is the number of unallocated data blocks on the image.
	BlocksFree uint64
	// BlocksAvailable is the number of blocks available for use by user data.
	// This should always be less than or equal to BlocksFree.
	BlocksAvailable uint64
	// Files is the total number of inodes on the file system.
	Files uint64
	// FilesFree is the number of unallocated inodes.
	FilesFree uint64
	// MaxNameLength is the longest possible name for a directory entry, in
	// bytes. Set to [math.MaxInt64] if there is no limit.
	MaxNameLength int64
}

// DirEntry is a single directory listing, as returned by ReadDir.
type DirEntry struct {
	Name string
	Stat FileStat
}

// UndefinedTimestamp is a timestamp that should be used as an invalid value,
// like `nil` for pointers.
var UndefinedTimestamp = time.UnixMicro(math.MaxInt64)
