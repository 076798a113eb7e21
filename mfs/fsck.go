package mfs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Check runs a full consistency scan of the image and reports every
// violation it finds, not just the first. A nil return means the image obeys
// all structural invariants:
//
//   - an inode bitmap bit is set iff the inode is reachable from the root;
//   - a data bitmap bit is set iff exactly one live inode references the
//     block (as a direct block, an indirect entry, or the indirect block);
//   - direct pointers and indirect entries form dense prefixes;
//   - an inode's block count matches the data blocks it actually holds;
//   - every directory stores ".." at slot 0 pointing at a live directory;
//   - entry names are NUL-terminated and within the length limit.
func (drv *Driver) Check() error {
	drv.mutex.Lock()
	defer drv.mutex.Unlock()
	return drv.img.Check()
}

// Check is the image-level consistency scan behind [Driver.Check].
func (img *Image) Check() error {
	var result *multierror.Error

	sb := img.sb
	if sb.RootIno < 0 || sb.RootIno >= sb.InodeCount {
		// Nothing else is checkable without a root.
		return fmt.Errorf(
			"root inode %d not in range [0, %d)", sb.RootIno, sb.InodeCount)
	}

	reachable := make(map[int32]bool)
	blockOwners := make(map[int32]int32)

	img.checkTree(sb.RootIno, sb.RootIno, reachable, &result)

	for ino := range reachable {
		node, err := img.Inode(ino)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		img.checkInodeBlocks(&node, blockOwners, &result)
	}

	// Bitmap coherence: allocated iff reachable, allocated iff referenced.
	imap := img.imap()
	for ino := int32(0); ino < sb.InodeCount; ino++ {
		allocated := imap.Get(int(ino))
		if allocated && !reachable[ino] {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d is allocated but not reachable from the root", ino))
		}
		if !allocated && reachable[ino] {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d is reachable but marked free in the bitmap", ino))
		}
	}

	dmap := img.dmap()
	for dno := int32(0); dno < sb.BlockCount; dno++ {
		_, referenced := blockOwners[dno]
		allocated := dmap.Get(int(dno))
		if allocated && !referenced {
			result = multierror.Append(result, fmt.Errorf(
				"block %d is allocated but no live inode references it", dno))
		}
		if !allocated && referenced {
			result = multierror.Append(result, fmt.Errorf(
				"block %d is referenced by inode %d but marked free",
				dno,
				blockOwners[dno]))
		}
	}

	return result.ErrorOrNil()
}

// checkTree walks the directory tree from `ino`, marking every inode it can
// reach and validating directory structure along the way.
func (img *Image) checkTree(
	ino int32,
	parentIno int32,
	reachable map[int32]bool,
	result **multierror.Error,
) {
	if reachable[ino] {
		return
	}
	reachable[ino] = true

	node, err := img.Inode(ino)
	if err != nil {
		*result = multierror.Append(*result, err)
		return
	}

	if node.Ino != ino {
		*result = multierror.Append(*result, fmt.Errorf(
			"inode %d records its own index as %d", ino, node.Ino))
	}
	if node.Nlink < 1 {
		*result = multierror.Append(*result, fmt.Errorf(
			"live inode %d has link count %d", ino, node.Nlink))
	}
	if node.Dptrs[0] < 0 || node.Dptrs[0] >= img.sb.BlockCount {
		*result = multierror.Append(*result, fmt.Errorf(
			"inode %d has invalid first block %d", ino, node.Dptrs[0]))
		return
	}

	if !node.IsDir() {
		return
	}

	for slot, raw := range img.dirSlots(&node) {
		name := direntName(&raw)
		if raw.Ino < 0 || raw.Ino >= img.sb.InodeCount {
			*result = multierror.Append(*result, fmt.Errorf(
				"directory %d entry %q maps to invalid inode %d",
				ino,
				name,
				raw.Ino))
			continue
		}

		if slot == 0 {
			if name != ParentName {
				*result = multierror.Append(*result, fmt.Errorf(
					"directory %d slot 0 holds %q, expected %q",
					ino,
					name,
					ParentName))
			}
			if raw.Ino != parentIno {
				*result = multierror.Append(*result, fmt.Errorf(
					"directory %d parent entry points at %d, expected %d",
					ino,
					raw.Ino,
					parentIno))
			}
			continue
		}

		if name == "" || len(name) > MaxNameLen {
			*result = multierror.Append(*result, fmt.Errorf(
				"directory %d has entry with invalid name %q", ino, name))
		}

		img.checkTree(raw.Ino, ino, reachable, result)
	}
}

// checkInodeBlocks validates block addressing for one inode: dense prefixes,
// index ranges, exclusive ownership, and the stored block count.
func (img *Image) checkInodeBlocks(
	node *Inode,
	blockOwners map[int32]int32,
	result **multierror.Error,
) {
	claim := func(dno int32) {
		owner, taken := blockOwners[dno]
		if taken && owner != node.Ino {
			*result = multierror.Append(*result, fmt.Errorf(
				"block %d is referenced by both inode %d and inode %d",
				dno,
				owner,
				node.Ino))
			return
		}
		blockOwners[dno] = node.Ino
	}

	dataBlocks := int32(0)
	sawFree := false
	for i, dno := range node.Dptrs {
		if dno < 0 {
			sawFree = true
			continue
		}
		if sawFree {
			*result = multierror.Append(*result, fmt.Errorf(
				"inode %d direct pointer %d is set after a free slot",
				node.Ino,
				i))
		}
		if dno >= img.sb.BlockCount {
			*result = multierror.Append(*result, fmt.Errorf(
				"inode %d direct pointer %d holds invalid block %d",
				node.Ino,
				i,
				dno))
			continue
		}
		claim(dno)
		dataBlocks++
	}

	if node.Indirect >= 0 {
		if node.Indirect >= img.sb.BlockCount {
			*result = multierror.Append(*result, fmt.Errorf(
				"inode %d has invalid indirect block %d",
				node.Ino,
				node.Indirect))
			return
		}
		claim(node.Indirect)

		sawFree = false
		for i := int32(0); i < IndirectCapacity; i++ {
			dno := img.indirectEntry(node, i)
			if dno < 0 {
				sawFree = true
				continue
			}
			if sawFree {
				*result = multierror.Append(*result, fmt.Errorf(
					"inode %d indirect entry %d is set after a free slot",
					node.Ino,
					i))
			}
			if dno >= img.sb.BlockCount {
				*result = multierror.Append(*result, fmt.Errorf(
					"inode %d indirect entry %d holds invalid block %d",
					node.Ino,
					i,
					dno))
				continue
			}
			claim(dno)
			dataBlocks++
		}

		if img.indirectEntry(node, 0) < 0 {
			// An indirect block with no entries should have been released.
			*result = multierror.Append(*result, fmt.Errorf(
				"inode %d holds indirect block %d with no entries",
				node.Ino,
				node.Indirect))
		}
	}

	if node.Dnum != dataBlocks {
		*result = multierror.Append(*result, fmt.Errorf(
			"inode %d records %d data blocks but holds %d",
			node.Ino,
			node.Dnum,
			dataBlocks))
	}
}
