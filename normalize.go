package omestack

import (
	"encoding/binary"

	"gonum.org/v1/gonum/floats"

	"github.com/omestack/omestack/format"
)

// A DisplayPlane is one plane converted to unsigned grayscale for display.
// Pix is row-major, Width*Height samples of BytesPerChannel bytes each,
// 16-bit samples little-endian.
type DisplayPlane struct {
	Width, Height   int
	BytesPerChannel int
	Pix             []byte
}

// Pix16 decodes a 16-bit plane's samples. It is nil for 8-bit planes.
func (p *DisplayPlane) Pix16() []uint16 {
	if p.BytesPerChannel != 2 {
		return nil
	}
	out := make([]uint16, len(p.Pix)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(p.Pix[i*2:])
	}
	return out
}

// Normalize converts a decoded plane into an unsigned grayscale display
// plane. The sample width follows the input: 8-bit and bilevel sources stay
// one byte per channel, everything else becomes two.
//
// uint8 copies byte for byte; int8 shifts into the unsigned range so
// ordering is preserved, as do int16 and uint16 on the 16-bit side. Bilevel
// planes map to 0 and 255. Wider integer types and floating point are
// rescaled per plane, stretching the plane's own [min, max] onto [0, 65535];
// a constant plane comes out all zeros. Complex planes have no scalar
// display representation and return ErrUnsupportedDisplay.
func Normalize(buf *format.VariantBuffer, width, height int) (*DisplayPlane, error) {
	n := width * height
	if buf.Pixels() < n {
		return nil, invalidArgumentf("plane has %d samples, display needs %d", buf.Pixels(), n)
	}
	out := &DisplayPlane{Width: width, Height: height}
	alloc := func(bytesPerChannel int) {
		out.BytesPerChannel = bytesPerChannel
		out.Pix = make([]byte, n*bytesPerChannel)
	}
	put16 := func(i int, v uint16) {
		binary.LittleEndian.PutUint16(out.Pix[i*2:], v)
	}

	switch buf.Type {
	case format.Uint8:
		alloc(1)
		copy(out.Pix, buf.Uint8s()[:n])
	case format.Int8:
		alloc(1)
		for i, v := range buf.Int8s()[:n] {
			out.Pix[i] = uint8(int(v) + 128)
		}
	case format.Bit:
		alloc(1)
		for i, v := range buf.Uint8s()[:n] {
			if v != 0 {
				out.Pix[i] = 255
			}
		}
	case format.Uint16:
		alloc(2)
		for i, v := range buf.Uint16s()[:n] {
			put16(i, v)
		}
	case format.Int16:
		alloc(2)
		for i, v := range buf.Int16s()[:n] {
			put16(i, uint16(int(v)+32768))
		}
	case format.Uint32:
		src := buf.Uint32s()[:n]
		vals := make([]float64, n)
		for i, v := range src {
			vals[i] = float64(v)
		}
		alloc(2)
		rescale(out.Pix, vals)
	case format.Int32:
		src := buf.Int32s()[:n]
		vals := make([]float64, n)
		for i, v := range src {
			vals[i] = float64(v)
		}
		alloc(2)
		rescale(out.Pix, vals)
	case format.Float:
		src := buf.Float32s()[:n]
		vals := make([]float64, n)
		for i, v := range src {
			vals[i] = float64(v)
		}
		alloc(2)
		rescale(out.Pix, vals)
	case format.Double:
		alloc(2)
		rescale(out.Pix, buf.Float64s()[:n])
	default:
		return nil, ErrUnsupportedDisplay
	}
	return out, nil
}

// rescale stretches vals' own range onto the full 16-bit range, writing
// little-endian samples into dst. A constant plane has no contrast to
// stretch and maps to zero.
func rescale(dst []byte, vals []float64) {
	min, max := floats.Min(vals), floats.Max(vals)
	if max <= min {
		return
	}
	scale := 65535 / (max - min)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16((v-min)*scale))
	}
}
