package mfs

import (
	"io"
	"os"

	"github.com/dargueta/mapfs"
)

// Format writes a fresh, empty image to `stream`: superblock, zeroed
// bitmaps, inode table, and a root directory whose ".." points at itself.
// The stream receives exactly [ImageSize] bytes starting at offset 0.
func Format(stream io.ReadWriteSeeker) error {
	buf := make([]byte, ImageSize)

	sb := NewSuperblock(ImageSize)
	err := StoreSuperblock(buf, sb)
	if err != nil {
		return err
	}

	img := &Image{data: buf, sb: sb}

	root, err := img.createInode(
		nil, "", mapfs.DirectoryMode, int32(os.Getuid()), int32(os.Getgid()))
	if err != nil {
		return err
	}

	img.sb.RootIno = root.Ino
	err = StoreSuperblock(buf, img.sb)
	if err != nil {
		return err
	}

	_, err = stream.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}
	_, err = stream.Write(buf)
	return err
}

// FormatFile creates (or overwrites) a backing file and formats it.
func FormatFile(path string) error {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	err = Format(file)
	closeErr := file.Close()
	if err != nil {
		return err
	}
	return closeErr
}
