package omestack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawStack(planes int) dimensions {
	return dimensions{SizeX: 16, SizeY: 16, SizeZ: planes, SizeC: 1, SizeT: 1, ImageCount: planes}
}

func TestApplyInterleaving(t *testing.T) {
	raw := rawStack(168)

	d, err := applyInterleaving(raw, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, d.SizeC)
	assert.Equal(t, 84, d.SizeZ)
	assert.Equal(t, 1, d.SizeT)
	assert.Equal(t, 168, d.ImageCount)

	d, err = applyInterleaving(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, d.SizeC)
	assert.Equal(t, 56, d.SizeZ)
}

func TestApplyInterleavingRejectsNonDivisor(t *testing.T) {
	_, err := applyInterleaving(rawStack(168), 5)
	require.Error(t, err)
	var inv *InvalidArgumentError
	assert.ErrorAs(t, err, &inv)
	assert.Contains(t, err.Error(), "5")
	assert.Contains(t, err.Error(), "168")
}

func TestApplyInterleavingRestoresRaw(t *testing.T) {
	raw := rawStack(168)
	for _, n := range []int{1, 0, -3} {
		d, err := applyInterleaving(raw, n)
		require.NoError(t, err)
		assert.Equal(t, raw, d)
	}
}

func TestInterleavedIndexIsBijective(t *testing.T) {
	d, err := applyInterleaving(rawStack(168), 4)
	require.NoError(t, err)

	seen := make(map[int]bool, d.ImageCount)
	for z := 0; z < d.SizeZ; z++ {
		for c := 0; c < d.SizeC; c++ {
			idx := d.interleavedIndex(z, c)
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, d.ImageCount)
			require.False(t, seen[idx], "plane %d mapped twice", idx)
			seen[idx] = true
		}
	}
	assert.Len(t, seen, d.ImageCount)
}

func TestCheckCoords(t *testing.T) {
	d, err := applyInterleaving(rawStack(168), 2)
	require.NoError(t, err)

	assert.NoError(t, d.checkCoords(0, 0, 0))
	assert.NoError(t, d.checkCoords(83, 1, 0))
	for _, bad := range [][3]int{{84, 0, 0}, {-1, 0, 0}, {0, 2, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}} {
		err := d.checkCoords(bad[0], bad[1], bad[2])
		require.Error(t, err, "%v", bad)
		var inv *InvalidArgumentError
		assert.ErrorAs(t, err, &inv)
	}
}
