package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const writerSoftware = "omestack"

// A Writer streams planes into a new OME-TIFF. The container is always
// BigTIFF so files beyond 4 GiB stay representable; pixel storage is
// contiguous (one strip per plane) and compressed with the configured
// deflate-family codec.
//
// Planes are appended sequentially with SaveBytes; Close emits the IFD chain,
// embeds the OME-XML metadata block in the first directory and patches the
// header. Nothing about the output is valid until Close returns nil.
type Writer struct {
	w     io.WriteSeeker
	enc   binary.ByteOrder
	store *Store

	codec  uint16
	zlevel int

	width, height int
	pixelType     PixelType
	samples       uint16
	planeCount    int

	planes []writtenPlane
	off    uint64
	closed bool
}

type writtenPlane struct {
	offset, size uint64
}

// WriterOption configures a Writer.
type WriterOption func(*Writer) error

// Compression selects the output codec by TIFF name ("AdobeDeflate",
// "Deflate" or "None").
func Compression(name string) WriterOption {
	return func(w *Writer) error {
		codec, err := CompressionName(name)
		if err != nil {
			return err
		}
		w.codec = codec
		return nil
	}
}

// CompressionLevel sets the zlib level for deflate-family codecs.
func CompressionLevel(level int) WriterOption {
	return func(w *Writer) error {
		if level < zlib.HuffmanOnly || level > zlib.BestCompression {
			return fmt.Errorf("compression level %d out of range", level)
		}
		w.zlevel = level
		return nil
	}
}

// NewWriter starts an OME-TIFF at the beginning of w. The store describes the
// output layout (series 0) and is serialized verbatim on Close.
func NewWriter(w io.WriteSeeker, store *Store, options ...WriterOption) (*Writer, error) {
	x, y, z, c, t, err := store.PixelsSize(0)
	if err != nil {
		return nil, fmt.Errorf("output layout: %w", err)
	}
	pt, err := store.PixelsType(0)
	if err != nil {
		return nil, fmt.Errorf("output layout: %w", err)
	}
	spp := store.ChannelSamplesPerPixel(0, 0)
	if spp < 1 {
		spp = 1
	}
	effC := c / spp
	if effC < 1 {
		effC = 1
	}
	wr := &Writer{
		w:          w,
		enc:        binary.LittleEndian,
		store:      store,
		codec:      compressionAdobeDeflate,
		zlevel:     zlib.DefaultCompression,
		width:      x,
		height:     y,
		pixelType:  pt,
		samples:    uint16(spp),
		planeCount: z * t * effC,
	}
	for _, o := range options {
		if err := o(wr); err != nil {
			return nil, err
		}
	}
	if err := wr.writeHeader(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return wr, nil
}

// PlaneCount returns the number of planes the layout expects.
func (wr *Writer) PlaneCount() int { return wr.planeCount }

// writeHeader emits the BigTIFF magic with a zero first-IFD offset; the real
// offset is patched in Close once the plane data size is known.
func (wr *Writer) writeHeader() error {
	buf := [16]byte{}
	copy(buf[0:], "II")
	wr.enc.PutUint16(buf[2:], 43)
	wr.enc.PutUint16(buf[4:], 8)
	wr.enc.PutUint16(buf[6:], 0)
	wr.enc.PutUint64(buf[8:], 0)
	if _, err := wr.w.Write(buf[:]); err != nil {
		return err
	}
	wr.off = 16
	return nil
}

// SaveBytes appends plane data. Planes must arrive in output order, starting
// at 0. Buffers in a foreign byte order are swapped to the file's.
func (wr *Writer) SaveBytes(plane int, buf *VariantBuffer) error {
	if wr.closed {
		return fmt.Errorf("writer is closed")
	}
	if plane != len(wr.planes) {
		return fmt.Errorf("plane %d written out of order, expected %d", plane, len(wr.planes))
	}
	if plane >= wr.planeCount {
		return fmt.Errorf("plane %d exceeds declared count %d", plane, wr.planeCount)
	}
	if buf.Type != wr.pixelType {
		return fmt.Errorf("plane %d has pixel type %s, output is %s", plane, buf.Type, wr.pixelType)
	}
	expected := wr.width * wr.height * int(wr.samples) * wr.pixelType.BytesPerPixel()
	if len(buf.Data) != expected {
		return fmt.Errorf("plane %d has %d bytes, want %d", plane, len(buf.Data), expected)
	}

	data := buf.Data
	if wr.pixelType == Bit {
		data = packBits(data, wr.width*int(wr.samples), wr.height)
	} else if buf.Order != wr.enc {
		// complex samples swap per component, not per sample
		width := wr.pixelType.BytesPerPixel()
		switch wr.pixelType {
		case Complex64:
			width = 4
		case Complex128:
			width = 8
		}
		data = swapOrder(data, width)
	}

	encoded, err := wr.encodeStrip(data)
	if err != nil {
		return fmt.Errorf("compress plane %d: %w", plane, err)
	}
	if _, err := wr.w.Write(encoded); err != nil {
		return fmt.Errorf("write plane %d: %w", plane, err)
	}
	wr.planes = append(wr.planes, writtenPlane{offset: wr.off, size: uint64(len(encoded))})
	wr.off += uint64(len(encoded))
	return nil
}

func (wr *Writer) encodeStrip(data []byte) ([]byte, error) {
	if wr.codec == compressionNone {
		return data, nil
	}
	out := &bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(out, wr.zlevel)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Close writes the IFD chain and finalizes the header. It fails when fewer
// planes were written than the metadata declares, so a truncated write can
// never masquerade as a complete file.
func (wr *Writer) Close() error {
	if wr.closed {
		return nil
	}
	wr.closed = true
	if len(wr.planes) != wr.planeCount {
		return fmt.Errorf("wrote %d planes, layout declares %d", len(wr.planes), wr.planeCount)
	}
	description, err := MarshalOMEXML(wr.store.Doc())
	if err != nil {
		return err
	}

	firstIFD := wr.off
	for i := range wr.planes {
		next := i < len(wr.planes)-1
		if err := wr.writeIFD(i, description, next); err != nil {
			return fmt.Errorf("write ifd %d: %w", i, err)
		}
	}

	// patch first IFD offset in the header
	if _, err := wr.w.Seek(8, io.SeekStart); err != nil {
		return fmt.Errorf("patch header: %w", err)
	}
	if err := binary.Write(wr.w, wr.enc, firstIFD); err != nil {
		return fmt.Errorf("patch header: %w", err)
	}
	if _, err := wr.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("patch header: %w", err)
	}
	return nil
}

// ifdLayout lists each entry of a plane IFD in ascending tag order, together
// with its overflow footprint.
func (wr *Writer) ifdSize(plane int, description string) (ntags uint64, total uint64) {
	sizes := []uint64{
		20, // 256 ImageWidth
		20, // 257 ImageLength
		arrayFieldSize([]uint16{wr.pixelType.bitsPerSample()}),
		20, // 259 Compression
		20, // 262 PhotometricInterpretation
		arrayFieldSize([]uint64{0}), // 273 StripOffsets
		20,                          // 277 SamplesPerPixel
		20,                          // 278 RowsPerStrip
		arrayFieldSize([]uint64{0}), // 279 StripByteCounts
		20,                          // 284 PlanarConfiguration
		arrayFieldSize(writerSoftware),
		arrayFieldSize([]uint16{wr.pixelType.sampleFormat()}),
	}
	if plane == 0 {
		sizes = append(sizes, arrayFieldSize(description))
	}
	total = 16 // 8 entry count + 8 next offset
	for _, s := range sizes {
		total += s
	}
	return uint64(len(sizes)), total
}

func (wr *Writer) writeIFD(plane int, description string, hasNext bool) error {
	ntags, size := wr.ifdSize(plane, description)
	overflow := &tagData{Offset: wr.off + 8 + 20*ntags + 8}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, wr.enc, ntags); err != nil {
		return err
	}
	w := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	w(wr.writeField(buf, 256, uint32(wr.width)))
	w(wr.writeField(buf, 257, uint32(wr.height)))
	w(wr.writeArray(buf, 258, []uint16{wr.pixelType.bitsPerSample()}, overflow))
	w(wr.writeField(buf, 259, wr.codec))
	w(wr.writeField(buf, 262, uint16(1))) // min-is-black
	if plane == 0 {
		w(wr.writeArray(buf, 270, description, overflow))
	}
	w(wr.writeArray(buf, 273, []uint64{wr.planes[plane].offset}, overflow))
	w(wr.writeField(buf, 277, wr.samples))
	w(wr.writeField(buf, 278, uint32(wr.height)))
	w(wr.writeArray(buf, 279, []uint64{wr.planes[plane].size}, overflow))
	w(wr.writeField(buf, 284, uint16(1))) // contiguous
	w(wr.writeArray(buf, 305, writerSoftware, overflow))
	w(wr.writeArray(buf, 339, []uint16{wr.pixelType.sampleFormat()}, overflow))

	nextOff := uint64(0)
	if hasNext {
		nextOff = wr.off + size
	}
	if err := binary.Write(buf, wr.enc, nextOff); err != nil {
		return err
	}
	if _, err := buf.Write(overflow.Bytes()); err != nil {
		return err
	}
	if uint64(buf.Len()) != size {
		return fmt.Errorf("ifd size mismatch: %d != %d", buf.Len(), size)
	}
	if _, err := wr.w.Write(buf.Bytes()); err != nil {
		return err
	}
	wr.off += size
	return nil
}

// swapOrder flips the endianness of fixed-width samples.
func swapOrder(data []byte, width int) []byte {
	if width <= 1 {
		return data
	}
	out := make([]byte, len(data))
	for i := 0; i+width <= len(data); i += width {
		for j := 0; j < width; j++ {
			out[i+j] = data[i+width-1-j]
		}
	}
	return out
}

// packBits is the inverse of the reader's bilevel unpacking: one byte per
// pixel back into MSB-first rows padded to byte boundaries.
func packBits(data []byte, rowPixels, rows int) []byte {
	rowBytes := (rowPixels + 7) / 8
	out := make([]byte, rowBytes*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < rowPixels; x++ {
			if data[y*rowPixels+x] != 0 {
				out[y*rowBytes+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return out
}
