package mfs

import (
	"bytes"
	"encoding/binary"
	"syscall"

	"github.com/dargueta/mapfs"
	"github.com/noxer/bytewriter"
)

// RawDirent is one slot of a directory's entry table. A free slot has
// Ino == [NoBlock]. The name is NUL-terminated inside its fixed field.
type RawDirent struct {
	Name     [DirentNameSize]byte
	Ino      int32
	Reserved [12]byte
}

// ParentName is the one entry every directory stores at slot 0. "." is not
// stored; readdir synthesizes it.
const ParentName = ".."

func direntName(raw *RawDirent) string {
	end := bytes.IndexByte(raw.Name[:], 0)
	if end < 0 {
		end = len(raw.Name)
	}
	return string(raw.Name[:end])
}

// dirent deserializes entry `slot` of the directory's entry table.
func (img *Image) dirent(dir *Inode, slot int) RawDirent {
	var raw RawDirent
	block := img.blockSlice(dir.Dptrs[0])
	reader := bytes.NewReader(block[slot*DirentSize : (slot+1)*DirentSize])
	binary.Read(reader, binary.LittleEndian, &raw)
	return raw
}

// putDirent serializes an entry into slot `slot`.
func (img *Image) putDirent(dir *Inode, slot int, raw *RawDirent) {
	block := img.blockSlice(dir.Dptrs[0])
	writer := bytewriter.New(block[slot*DirentSize : (slot+1)*DirentSize])
	binary.Write(writer, binary.LittleEndian, raw)
}

// dirInit writes a fresh entry table into the directory's first block: ".."
// pointing at `parentIno` in slot 0, every other slot free.
func (img *Image) dirInit(dir *Inode, parentIno int32) {
	var parent RawDirent
	copy(parent.Name[:], ParentName)
	parent.Ino = parentIno
	img.putDirent(dir, 0, &parent)

	free := RawDirent{Ino: NoBlock}
	for slot := 1; slot < DirentsPerBlock; slot++ {
		img.putDirent(dir, slot, &free)
	}
}

// dirLookup scans the entry table for `name` and returns the inode index it
// maps to, or [NoBlock] if the name is not present.
func (img *Image) dirLookup(dir *Inode, name string) int32 {
	for slot := 0; slot < DirentsPerBlock; slot++ {
		raw := img.dirent(dir, slot)
		if raw.Ino != NoBlock && direntName(&raw) == name {
			return raw.Ino
		}
	}
	return NoBlock
}

// dirAdd places a new entry in the first free slot. A full table is an error:
// directories cannot grow past their single-block entry table.
func (img *Image) dirAdd(dir *Inode, ino int32, name string) error {
	for slot := 0; slot < DirentsPerBlock; slot++ {
		raw := img.dirent(dir, slot)
		if raw.Ino != NoBlock {
			continue
		}

		raw = RawDirent{Ino: ino}
		copy(raw.Name[:], name)
		img.putDirent(dir, slot, &raw)
		return nil
	}

	return mapfs.NewDriverErrorWithMessage(
		syscall.ENOSPC, "directory entry table is full")
}

// dirRemove frees the first entry whose inode index equals `ino`.
func (img *Image) dirRemove(dir *Inode, ino int32) {
	for slot := 0; slot < DirentsPerBlock; slot++ {
		raw := img.dirent(dir, slot)
		if raw.Ino == ino {
			raw.Ino = NoBlock
			img.putDirent(dir, slot, &raw)
			return
		}
	}
}

// dirIsEmpty reports whether the directory holds nothing besides its ".."
// entry. The directory's stored size never tracks the entry table, so
// emptiness has to come from a scan.
func (img *Image) dirIsEmpty(dir *Inode) bool {
	for slot := 1; slot < DirentsPerBlock; slot++ {
		if img.dirent(dir, slot).Ino != NoBlock {
			return false
		}
	}
	return true
}

// dirSlots returns every occupied slot of the entry table, ".." included, in
// table order.
func (img *Image) dirSlots(dir *Inode) []RawDirent {
	var entries []RawDirent
	for slot := 0; slot < DirentsPerBlock; slot++ {
		raw := img.dirent(dir, slot)
		if raw.Ino != NoBlock {
			entries = append(entries, raw)
		}
	}
	return entries
}
