package mfs

import (
	"encoding/binary"
	"syscall"

	"github.com/dargueta/mapfs"
)

// indirectEntry reads slot `i` of the inode's indirect block.
func (img *Image) indirectEntry(node *Inode, i int32) int32 {
	block := img.blockSlice(node.Indirect)
	return int32(binary.LittleEndian.Uint32(block[i*4 : i*4+4]))
}

// setIndirectEntry writes slot `i` of the inode's indirect block.
func (img *Image) setIndirectEntry(node *Inode, i int32, dno int32) {
	block := img.blockSlice(node.Indirect)
	binary.LittleEndian.PutUint32(block[i*4:i*4+4], uint32(dno))
}

// initIndirectBlock allocates a block and fills every slot with the free
// sentinel, returning its index.
func (img *Image) initIndirectBlock() (int32, error) {
	dno, err := img.allocBlock()
	if err != nil {
		return NoBlock, err
	}

	block := img.blockSlice(dno)
	for i := 0; i < IndirectCapacity; i++ {
		binary.LittleEndian.PutUint32(block[i*4:i*4+4], uint32(NoBlock))
	}
	return dno, nil
}

// blockForIndex maps logical block `n` of a file to a data-block index.
// Blocks 0 through NumDirectBlocks-1 live in the direct pointers; everything
// past that goes through the single indirect block. With `alloc` set, any
// missing block (and the indirect block itself, when first needed) is
// allocated on the spot and recorded in the inode. Without it, an unassigned
// position returns [NoBlock].
func (img *Image) blockForIndex(node *Inode, n int32, alloc bool) (int32, error) {
	if n >= NumDirectBlocks+IndirectCapacity {
		return NoBlock, mapfs.NewDriverErrorWithMessage(
			syscall.EFBIG, "logical block past single-indirect range")
	}

	if n < NumDirectBlocks {
		dno := node.Dptrs[n]
		if dno < 0 && alloc {
			var err error
			dno, err = img.allocBlock()
			if err != nil {
				return NoBlock, err
			}
			node.Dptrs[n] = dno
			node.Dnum++
		}
		return dno, nil
	}

	if node.Indirect < 0 {
		if !alloc {
			return NoBlock, nil
		}
		indirect, err := img.initIndirectBlock()
		if err != nil {
			return NoBlock, err
		}
		node.Indirect = indirect
	}

	dno := img.indirectEntry(node, n-NumDirectBlocks)
	if dno < 0 && alloc {
		var err error
		dno, err = img.allocBlock()
		if err != nil {
			return NoBlock, err
		}
		img.setIndirectEntry(node, n-NumDirectBlocks, dno)
		node.Dnum++
	}
	return dno, nil
}

// readData copies file contents starting at `offset` into `buf`, clamped to
// the current end of file. Returns the number of bytes copied.
func (img *Image) readData(node *Inode, buf []byte, offset int64) int {
	if offset >= int64(node.Size) {
		return 0
	}

	remaining := int64(node.Size) - offset
	if remaining > int64(len(buf)) {
		remaining = int64(len(buf))
	}

	copied := 0
	blockIdx := int32(offset / BlockSize)
	blockOff := int(offset % BlockSize)

	for int64(copied) < remaining {
		dno, _ := img.blockForIndex(node, blockIdx, false)
		if dno < 0 {
			break
		}

		chunk := BlockSize - blockOff
		if int64(chunk) > remaining-int64(copied) {
			chunk = int(remaining - int64(copied))
		}

		block := img.blockSlice(dno)
		copy(buf[copied:copied+chunk], block[blockOff:blockOff+chunk])

		copied += chunk
		blockIdx++
		blockOff = 0
	}

	return copied
}

// writeData copies `buf` into the file starting at `offset`, allocating data
// blocks (and the indirect block) on demand. Returns how many bytes made it
// in; a short count comes with an error, typically ENOSPC. The caller is
// responsible for updating the inode's size and storing the record.
func (img *Image) writeData(node *Inode, buf []byte, offset int64) (int, error) {
	written := 0
	blockIdx := int32(offset / BlockSize)
	blockOff := int(offset % BlockSize)

	for written < len(buf) {
		dno, err := img.blockForIndex(node, blockIdx, true)
		if err != nil {
			return written, err
		}

		chunk := BlockSize - blockOff
		if chunk > len(buf)-written {
			chunk = len(buf) - written
		}

		block := img.blockSlice(dno)
		copy(block[blockOff:blockOff+chunk], buf[written:written+chunk])

		written += chunk
		blockIdx++
		blockOff = 0
	}

	return written, nil
}

// truncate resizes the file, freeing blocks past the new end on shrink and
// zero-filling through the write path on grow. The first block is always
// retained, even at size zero. On shrink the block straddling the new
// boundary is kept and its tail zeroed, so retained bytes survive. The
// caller stores the record.
func (img *Image) truncate(node *Inode, newSize int64) error {
	oldSize := int64(node.Size)
	if newSize == oldSize {
		return nil
	}

	if newSize > oldSize {
		zeros := make([]byte, newSize-oldSize)
		_, err := img.writeData(node, zeros, oldSize)
		if err != nil {
			return err
		}
		node.Size = int32(newSize)
		return nil
	}

	// Shrink. Blocks [keep, ...) are released; `keep` never drops below one
	// because a live inode always owns its first block.
	keep := int32((newSize + BlockSize - 1) / BlockSize)
	if keep < 1 {
		keep = 1
	}

	for i := keep; i < NumDirectBlocks; i++ {
		if node.Dptrs[i] < 0 {
			break
		}
		img.freeBlock(node.Dptrs[i])
		node.Dptrs[i] = NoBlock
		node.Dnum--
	}

	if node.Indirect >= 0 {
		start := keep - NumDirectBlocks
		if start < 0 {
			start = 0
		}
		for i := start; i < IndirectCapacity; i++ {
			dno := img.indirectEntry(node, i)
			if dno < 0 {
				break
			}
			img.freeBlock(dno)
			img.setIndirectEntry(node, i, NoBlock)
			node.Dnum--
		}
		if keep <= NumDirectBlocks {
			img.freeBlock(node.Indirect)
			node.Indirect = NoBlock
		}
	}

	// Zero the tail of the straddling block so a later grow reads back
	// zeros, not stale bytes.
	tailStart := int(newSize % BlockSize)
	if tailStart != 0 || newSize == 0 {
		dno, _ := img.blockForIndex(node, int32(newSize/BlockSize), false)
		if dno >= 0 {
			block := img.blockSlice(dno)
			for i := tailStart; i < BlockSize; i++ {
				block[i] = 0
			}
		}
	}

	node.Size = int32(newSize)
	return nil
}
