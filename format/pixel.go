package format

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PixelType identifies the native sample encoding of a plane. The set is
// closed: it mirrors the pixel types OME-XML can declare.
type PixelType int

const (
	Uint8 PixelType = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Float
	Double
	Bit
	Complex64
	Complex128
)

// String returns the OME-XML form of the pixel type.
func (pt PixelType) String() string {
	switch pt {
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Uint32:
		return "uint32"
	case Int32:
		return "int32"
	case Float:
		return "float"
	case Double:
		return "double"
	case Bit:
		return "bit"
	case Complex64:
		return "complex"
	case Complex128:
		return "double-complex"
	}
	return fmt.Sprintf("PixelType(%d)", int(pt))
}

// ParsePixelType converts an OME-XML pixel type name back into a tag.
func ParsePixelType(s string) (PixelType, error) {
	for pt := Uint8; pt <= Complex128; pt++ {
		if pt.String() == s {
			return pt, nil
		}
	}
	return Uint8, fmt.Errorf("unknown pixel type %q", s)
}

// BytesPerPixel returns the storage size of one sample. Bit planes are
// unpacked to one byte per pixel when decoded.
func (pt PixelType) BytesPerPixel() int {
	switch pt {
	case Uint8, Int8, Bit:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float:
		return 4
	case Double, Complex64:
		return 8
	case Complex128:
		return 16
	}
	return 1
}

// sampleFormat returns the TIFF SampleFormat value for the pixel type.
func (pt PixelType) sampleFormat() uint16 {
	switch pt {
	case Int8, Int16, Int32:
		return sampleFormatInt
	case Float, Double:
		return sampleFormatIEEEFP
	case Complex64, Complex128:
		return sampleFormatComplexIEEEFP
	default:
		return sampleFormatUInt
	}
}

// bitsPerSample returns the TIFF BitsPerSample value for the pixel type.
func (pt PixelType) bitsPerSample() uint16 {
	if pt == Bit {
		return 1
	}
	return uint16(pt.BytesPerPixel() * 8)
}

// pixelTypeFor derives the pixel type from the TIFF BitsPerSample and
// SampleFormat fields of an IFD.
func pixelTypeFor(bits, format uint16) (PixelType, error) {
	switch format {
	case 0, sampleFormatUInt, sampleFormatVoid:
		switch bits {
		case 1:
			return Bit, nil
		case 8:
			return Uint8, nil
		case 16:
			return Uint16, nil
		case 32:
			return Uint32, nil
		}
	case sampleFormatInt:
		switch bits {
		case 8:
			return Int8, nil
		case 16:
			return Int16, nil
		case 32:
			return Int32, nil
		}
	case sampleFormatIEEEFP:
		switch bits {
		case 32:
			return Float, nil
		case 64:
			return Double, nil
		}
	case sampleFormatComplexIEEEFP:
		switch bits {
		case 64:
			return Complex64, nil
		case 128:
			return Complex128, nil
		}
	}
	return Uint8, fmt.Errorf("unsupported sample encoding: %d bits, format %d", bits, format)
}

// A VariantBuffer holds one decoded plane tagged by its native pixel type.
// Samples are stored back to back in the byte order of the source file; Bit
// planes are already unpacked to one byte per pixel.
type VariantBuffer struct {
	Type  PixelType
	Order binary.ByteOrder
	Data  []byte
}

// Pixels returns the number of samples in the buffer.
func (b *VariantBuffer) Pixels() int {
	return len(b.Data) / b.Type.BytesPerPixel()
}

// Uint8s returns the samples of a Uint8 or Bit buffer.
func (b *VariantBuffer) Uint8s() []uint8 {
	return b.Data
}

// Int8s decodes the samples of an Int8 buffer.
func (b *VariantBuffer) Int8s() []int8 {
	out := make([]int8, len(b.Data))
	for i, v := range b.Data {
		out[i] = int8(v)
	}
	return out
}

// Uint16s decodes the samples of a Uint16 buffer.
func (b *VariantBuffer) Uint16s() []uint16 {
	out := make([]uint16, len(b.Data)/2)
	for i := range out {
		out[i] = b.Order.Uint16(b.Data[i*2:])
	}
	return out
}

// Int16s decodes the samples of an Int16 buffer.
func (b *VariantBuffer) Int16s() []int16 {
	out := make([]int16, len(b.Data)/2)
	for i := range out {
		out[i] = int16(b.Order.Uint16(b.Data[i*2:]))
	}
	return out
}

// Uint32s decodes the samples of a Uint32 buffer.
func (b *VariantBuffer) Uint32s() []uint32 {
	out := make([]uint32, len(b.Data)/4)
	for i := range out {
		out[i] = b.Order.Uint32(b.Data[i*4:])
	}
	return out
}

// Int32s decodes the samples of an Int32 buffer.
func (b *VariantBuffer) Int32s() []int32 {
	out := make([]int32, len(b.Data)/4)
	for i := range out {
		out[i] = int32(b.Order.Uint32(b.Data[i*4:]))
	}
	return out
}

// Float32s decodes the samples of a Float buffer.
func (b *VariantBuffer) Float32s() []float32 {
	out := make([]float32, len(b.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(b.Order.Uint32(b.Data[i*4:]))
	}
	return out
}

// Float64s decodes the samples of a Double buffer.
func (b *VariantBuffer) Float64s() []float64 {
	out := make([]float64, len(b.Data)/8)
	for i := range out {
		out[i] = math.Float64frombits(b.Order.Uint64(b.Data[i*8:]))
	}
	return out
}
