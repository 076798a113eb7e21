// Package profiles holds the catalog of supported image geometries. Each
// profile pins every constant that shapes an image's layout, so tools can
// refuse to format or mount an image whose geometry they don't understand.
package profiles

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Profile describes one image geometry.
type Profile struct {
	Name string `csv:"name"`
	Slug string `csv:"slug"`

	// ImageSize is the exact size of the backing file, in bytes. Images are
	// never resized past this.
	ImageSize int64 `csv:"image_size"`

	BlockSize      int64 `csv:"block_size"`
	InodeSize      int64 `csv:"inode_size"`
	SuperblockSize int64 `csv:"superblock_size"`

	// DirectPointers is the number of direct block pointers per inode. Every
	// profile also has exactly one single-indirect pointer.
	DirectPointers uint `csv:"direct_pointers"`

	Notes string `csv:"notes"`
}

// ObjectCount gives the shared inode and data-block count for the profile.
// Every region is weighted by 4 with two spare units per object, which
// guarantees all regions fit with a little slack after the data region.
func (p *Profile) ObjectCount() int64 {
	return (p.ImageSize*4 - p.SuperblockSize*4) /
		(p.InodeSize*4 + p.BlockSize*4 + 2)
}

//go:embed image-profiles.csv
var imageProfilesRawCSV string
var imageProfiles = map[string]Profile{}

// Get returns the profile registered under `slug`.
func Get(slug string) (Profile, error) {
	profile, ok := imageProfiles[slug]
	if ok {
		return profile, nil
	}

	err := fmt.Errorf("no image profile exists with slug %q", slug)
	return Profile{}, err
}

// Default returns the standard 1 MiB profile.
func Default() Profile {
	profile, err := Get("mfs-1m")
	if err != nil {
		panic(err)
	}
	return profile
}

func init() {
	reader := strings.NewReader(imageProfilesRawCSV)
	err := gocsv.UnmarshalToCallback(
		reader,
		func(row Profile) error {
			_, exists := imageProfiles[row.Slug]
			if exists {
				return fmt.Errorf(
					"duplicate definition for profile %q found on row %d",
					row.Slug,
					len(imageProfiles)+1,
				)
			}
			imageProfiles[row.Slug] = row
			return nil
		},
	)
	if err != nil && err != io.EOF {
		panic(err)
	}
}
