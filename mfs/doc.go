// Package mfs implements the mapfs on-disk format: a fixed-size 1 MiB disk
// image holding a superblock, inode and data-block allocation bitmaps, a
// fixed inode table, and an array of 4 KiB data blocks. The image is
// memory-mapped and all navigation happens through byte offsets recorded in
// the superblock, so an image can be unmounted and remounted at a different
// address (or copied to another machine) without rewriting anything.
//
// Files address their data through three direct block pointers plus one
// single-indirect block. Directories keep a fixed 64-entry table in their
// first data block. The value -1 marks free directory slots and unassigned
// block pointers.
package mfs
