package omestack

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omestack/omestack/format"
)

const (
	testWidth  = 8
	testHeight = 6
)

// writeTestStack creates a plain TIFF z-stack where every sample of plane p
// holds the value p, so tests can tell planes apart after reinterpretation.
func writeTestStack(t *testing.T, path string, planes int) {
	t.Helper()
	store := format.NewStore(testWidth, testHeight, planes, 1, 1, format.Uint16)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	wr, err := format.NewWriter(f, store)
	require.NoError(t, err)
	for p := 0; p < planes; p++ {
		data := make([]byte, testWidth*testHeight*2)
		for i := 0; i < testWidth*testHeight; i++ {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(p))
		}
		buf := &format.VariantBuffer{Type: format.Uint16, Order: binary.LittleEndian, Data: data}
		require.NoError(t, wr.SaveBytes(p, buf))
	}
	require.NoError(t, wr.Close())
}

func openTestStack(t *testing.T, planes int) *Image {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stack.tif")
	writeTestStack(t, path, planes)
	img, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return img
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.tif"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestOpenRawStack(t *testing.T) {
	img := openTestStack(t, 168)
	assert.False(t, img.IsOME())
	assert.Equal(t, testWidth, img.SizeX())
	assert.Equal(t, testHeight, img.SizeY())
	assert.Equal(t, 168, img.SizeZ())
	assert.Equal(t, 1, img.SizeC())
	assert.Equal(t, 1, img.SizeT())
	assert.Equal(t, 168, img.ImageCount())
	assert.Equal(t, format.Uint16, img.PixelType())
	assert.Equal(t, 0, img.InterleavedChannelCount())
}

func TestInterleaveReinterpretation(t *testing.T) {
	img := openTestStack(t, 168)
	require.NoError(t, img.SetInterleavedChannelCount(2))

	assert.Equal(t, 2, img.SizeC())
	assert.Equal(t, 84, img.SizeZ())
	assert.Equal(t, 1, img.SizeT())
	assert.Equal(t, 168, img.ImageCount(), "plane count never changes")
	assert.Equal(t, 2, img.InterleavedChannelCount())

	idx, err := img.PlaneIndex(5, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, idx)

	// restoring the raw interpretation is always possible
	require.NoError(t, img.SetInterleavedChannelCount(1))
	assert.Equal(t, 168, img.SizeZ())
	assert.Equal(t, 1, img.SizeC())
	assert.Equal(t, 0, img.InterleavedChannelCount())
}

func TestInterleaveRejectsNonDivisor(t *testing.T) {
	img := openTestStack(t, 168)
	err := img.SetInterleavedChannelCount(5)
	require.Error(t, err)
	var inv *InvalidArgumentError
	assert.ErrorAs(t, err, &inv)

	// a failed reinterpretation leaves the model untouched
	assert.Equal(t, 168, img.SizeZ())
	assert.Equal(t, 1, img.SizeC())
}

func TestInterleaveRejectsOME(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "stack.tif")
	writeTestStack(t, raw, 4)
	img, err := Open(raw)
	require.NoError(t, err)
	require.NoError(t, img.SetInterleavedChannelCount(2))

	ome := filepath.Join(dir, "stack.ome.tif")
	require.NoError(t, SaveWithMetadata(img, ImageMetadata{}, ome))
	require.NoError(t, img.Close())

	out, err := Open(ome)
	require.NoError(t, err)
	defer out.Close()
	require.True(t, out.IsOME())
	assert.ErrorIs(t, out.SetInterleavedChannelCount(2), ErrUnsupportedOperation)
}

func TestReadPlaneInterleaved(t *testing.T) {
	img := openTestStack(t, 12)
	require.NoError(t, img.SetInterleavedChannelCount(3))

	// slice 2, channel 1 sits at physical plane 2*3+1
	buf, err := img.ReadPlane(2, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), buf.Uint16s()[0])

	_, err = img.ReadPlane(4, 0, 0)
	require.Error(t, err, "z beyond reinterpreted depth")
	_, err = img.ReadPlane(0, 3, 0)
	require.Error(t, err)
	_, err = img.ReadPlane(0, 0, 1)
	require.Error(t, err)

	_, err = img.ReadPlaneByIndex(12)
	require.Error(t, err)
	var inv *InvalidArgumentError
	assert.ErrorAs(t, err, &inv)
}
