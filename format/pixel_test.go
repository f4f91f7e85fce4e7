package format

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelTypeFor(t *testing.T) {
	cases := []struct {
		bits, format uint16
		want         PixelType
	}{
		{1, 0, Bit},
		{8, sampleFormatUInt, Uint8},
		{8, sampleFormatInt, Int8},
		{16, 0, Uint16},
		{16, sampleFormatInt, Int16},
		{32, sampleFormatUInt, Uint32},
		{32, sampleFormatInt, Int32},
		{32, sampleFormatIEEEFP, Float},
		{64, sampleFormatIEEEFP, Double},
		{64, sampleFormatComplexIEEEFP, Complex64},
		{128, sampleFormatComplexIEEEFP, Complex128},
	}
	for _, c := range cases {
		pt, err := pixelTypeFor(c.bits, c.format)
		require.NoError(t, err, "%d bits format %d", c.bits, c.format)
		assert.Equal(t, c.want, pt)
	}
	_, err := pixelTypeFor(24, sampleFormatUInt)
	assert.Error(t, err)
}

func TestPixelTypeNamesRoundTrip(t *testing.T) {
	for pt := Uint8; pt <= Complex128; pt++ {
		back, err := ParsePixelType(pt.String())
		require.NoError(t, err)
		assert.Equal(t, pt, back)
	}
	_, err := ParsePixelType("uint128")
	assert.Error(t, err)
}

func TestVariantBufferDecodesByteOrder(t *testing.T) {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], 1000)
	binary.BigEndian.PutUint16(data[2:], 65000)
	buf := &VariantBuffer{Type: Uint16, Order: binary.BigEndian, Data: data}
	assert.Equal(t, []uint16{1000, 65000}, buf.Uint16s())
	assert.Equal(t, 2, buf.Pixels())

	buf.Order = binary.LittleEndian
	assert.NotEqual(t, []uint16{1000, 65000}, buf.Uint16s())
}

func TestBitPackingRoundTrip(t *testing.T) {
	// 10 pixels per row forces row padding to byte boundaries
	unpacked := make([]byte, 10*3)
	for i := range unpacked {
		if i%3 == 0 {
			unpacked[i] = 1
		}
	}
	packed := packBits(unpacked, 10, 3)
	assert.Len(t, packed, 2*3)
	assert.Equal(t, unpacked, unpackBits(packed, 10, 3))
}
