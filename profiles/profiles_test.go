package profiles_test

import (
	"testing"

	"github.com/dargueta/mapfs/mfs"
	"github.com/dargueta/mapfs/profiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownSlug(t *testing.T) {
	_, err := profiles.Get("betamax")
	assert.Error(t, err)
}

// The default profile must agree with the engine's compiled-in geometry;
// they describe the same on-disk format.
func TestDefaultProfileMatchesEngine(t *testing.T) {
	profile := profiles.Default()

	assert.EqualValues(t, mfs.ImageSize, profile.ImageSize)
	assert.EqualValues(t, mfs.BlockSize, profile.BlockSize)
	assert.EqualValues(t, mfs.InodeSize, profile.InodeSize)
	assert.EqualValues(t, mfs.SuperblockSize, profile.SuperblockSize)
	assert.EqualValues(t, mfs.NumDirectBlocks, profile.DirectPointers)

	sb := mfs.NewSuperblock(profile.ImageSize)
	require.EqualValues(t, profile.ObjectCount(), sb.InodeCount)
	require.EqualValues(t, profile.ObjectCount(), sb.BlockCount)
}
