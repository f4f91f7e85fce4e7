package format

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uint16Plane(w, h, seed int) []byte {
	data := make([]byte, w*h*2)
	for i := 0; i < w*h; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(seed*100+i))
	}
	return data
}

func writeStack(t *testing.T, path string, sizeZ int, options ...WriterOption) {
	t.Helper()
	store := NewStore(4, 3, sizeZ, 1, 1, Uint16)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	wr, err := NewWriter(f, store, options...)
	require.NoError(t, err)
	require.Equal(t, sizeZ, wr.PlaneCount())
	for p := 0; p < sizeZ; p++ {
		buf := &VariantBuffer{Type: Uint16, Order: binary.LittleEndian, Data: uint16Plane(4, 3, p)}
		require.NoError(t, wr.SaveBytes(p, buf))
	}
	require.NoError(t, wr.Close())
}

func TestWriterRoundTrip(t *testing.T) {
	for _, codec := range []string{"AdobeDeflate", "Deflate", "None"} {
		path := filepath.Join(t.TempDir(), "stack.ome.tif")
		writeStack(t, path, 3, Compression(codec))

		r, err := OpenFile(path)
		require.NoError(t, err, codec)
		assert.True(t, r.IsOME())
		require.NotNil(t, r.Metadata())
		assert.Equal(t, 4, r.SizeX())
		assert.Equal(t, 3, r.SizeY())
		assert.Equal(t, 3, r.SizeZ())
		assert.Equal(t, 1, r.EffectiveSizeC())
		assert.Equal(t, 1, r.SizeT())
		assert.Equal(t, Uint16, r.PixelType())

		for p := 0; p < 3; p++ {
			buf, err := r.ReadPlane(p)
			require.NoError(t, err)
			assert.Equal(t, uint16Plane(4, 3, p), buf.Data, "%s plane %d", codec, p)
		}
		require.NoError(t, r.Close())
	}
}

func TestWriterRawReopen(t *testing.T) {
	// without the .ome extension the same file reads back as a plain
	// z-stack, one slice per directory
	path := filepath.Join(t.TempDir(), "stack.tif")
	writeStack(t, path, 5)

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()
	assert.False(t, r.IsOME())
	assert.Nil(t, r.Metadata())
	assert.Equal(t, 5, r.SizeZ())
	assert.Equal(t, 1, r.EffectiveSizeC())
	assert.Equal(t, 5, r.ImageCount())
}

func TestWriterRejectsDisorder(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stack.tif"))
	require.NoError(t, err)
	defer f.Close()

	wr, err := NewWriter(f, NewStore(4, 3, 2, 1, 1, Uint16))
	require.NoError(t, err)
	buf := &VariantBuffer{Type: Uint16, Order: binary.LittleEndian, Data: uint16Plane(4, 3, 0)}
	assert.Error(t, wr.SaveBytes(1, buf))

	short := &VariantBuffer{Type: Uint16, Order: binary.LittleEndian, Data: make([]byte, 10)}
	assert.Error(t, wr.SaveBytes(0, short))

	wrongType := &VariantBuffer{Type: Uint8, Order: binary.LittleEndian, Data: make([]byte, 12)}
	assert.Error(t, wr.SaveBytes(0, wrongType))
}

func TestWriterCloseRequiresAllPlanes(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stack.tif"))
	require.NoError(t, err)
	defer f.Close()

	wr, err := NewWriter(f, NewStore(4, 3, 3, 1, 1, Uint16))
	require.NoError(t, err)
	buf := &VariantBuffer{Type: Uint16, Order: binary.LittleEndian, Data: uint16Plane(4, 3, 0)}
	require.NoError(t, wr.SaveBytes(0, buf))
	assert.Error(t, wr.Close())
}

func TestWriterSwapsForeignOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.tif")
	store := NewStore(2, 1, 1, 1, 1, Uint16)
	f, err := os.Create(path)
	require.NoError(t, err)

	wr, err := NewWriter(f, store)
	require.NoError(t, err)
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], 0x1234)
	binary.BigEndian.PutUint16(data[2:], 0xbeef)
	require.NoError(t, wr.SaveBytes(0, &VariantBuffer{Type: Uint16, Order: binary.BigEndian, Data: data}))
	require.NoError(t, wr.Close())
	require.NoError(t, f.Close())

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()
	buf, err := r.ReadPlane(0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x1234, 0xbeef}, buf.Uint16s())
}
