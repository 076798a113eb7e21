package mfs

import (
	"strings"
	"syscall"

	"github.com/dargueta/mapfs"
)

// Basename returns the final component of a slash-delimited path.
func Basename(path string) string {
	parts := splitPath(path)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// ParentPath returns the portion of `path` up to and including the final
// slash, i.e. the path of the directory holding the final component.
func ParentPath(path string) string {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return "/"
	}
	return trimmed[:idx+1]
}

// splitPath breaks a path into its components, dropping empty ones so that
// leading, trailing, and doubled slashes are all tolerated.
func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// Resolve walks an absolute path component by component from the root and
// returns the inode index of the final component. Symbolic links are not
// followed; like regular files, they terminate the walk. A missing component,
// or a non-directory anywhere except the final position, resolves to ENOENT.
func (img *Image) Resolve(path string) (int32, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return img.sb.RootIno, nil
	}

	dir, err := img.Inode(img.sb.RootIno)
	if err != nil {
		return NoBlock, err
	}

	for i, part := range parts {
		ino := img.dirLookup(&dir, part)
		if ino < 0 {
			return NoBlock, mapfs.NewDriverErrorWithMessage(
				syscall.ENOENT, path)
		}

		node, err := img.Inode(ino)
		if err != nil {
			return NoBlock, err
		}

		if i == len(parts)-1 {
			return ino, nil
		}

		if !node.IsDir() {
			return NoBlock, mapfs.NewDriverErrorWithMessage(
				syscall.ENOENT, path)
		}
		dir = node
	}

	return NoBlock, mapfs.NewDriverErrorWithMessage(syscall.ENOENT, path)
}
