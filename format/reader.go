package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/tiff"
	"github.com/klauspost/compress/zlib"
	tifflzw "golang.org/x/image/tiff/lzw"
)

type ifd struct {
	ImageWidth                uint64   `tiff:"field,tag=256"`
	ImageLength               uint64   `tiff:"field,tag=257"`
	BitsPerSample             []uint16 `tiff:"field,tag=258"`
	Compression               uint16   `tiff:"field,tag=259"`
	PhotometricInterpretation uint16   `tiff:"field,tag=262"`
	ImageDescription          string   `tiff:"field,tag=270"`
	StripOffsets              []uint64 `tiff:"field,tag=273"`
	SamplesPerPixel           uint16   `tiff:"field,tag=277"`
	RowsPerStrip              uint64   `tiff:"field,tag=278"`
	StripByteCounts           []uint64 `tiff:"field,tag=279"`
	PlanarConfiguration       uint16   `tiff:"field,tag=284"`
	Predictor                 uint16   `tiff:"field,tag=317"`
	SampleFormat              []uint16 `tiff:"field,tag=339"`

	r tiff.BReader
}

func (f *ifd) bits() uint16 {
	if len(f.BitsPerSample) == 0 {
		return 1 // bilevel default
	}
	return f.BitsPerSample[0]
}

func (f *ifd) samples() int {
	if f.SamplesPerPixel == 0 {
		return 1
	}
	return int(f.SamplesPerPixel)
}

func (f *ifd) sampleFormat() uint16 {
	if len(f.SampleFormat) == 0 {
		return sampleFormatUInt
	}
	return f.SampleFormat[0]
}

func loadIFD(r tiff.BReader, tifd tiff.IFD) (*ifd, error) {
	f := &ifd{r: r}
	if err := tiff.UnmarshalIFD(tifd, f); err != nil {
		return nil, err
	}
	if tifd.HasField(324) || tifd.HasField(325) {
		return nil, fmt.Errorf("tiled tiff layout is not supported")
	}
	if len(f.StripOffsets) == 0 || len(f.StripOffsets) != len(f.StripByteCounts) {
		return nil, fmt.Errorf("inconsistent strip offset/count fields")
	}
	return f, nil
}

// seriesDims is one series' dimensional layout at resolution 0.
type seriesDims struct {
	sizeX, sizeY   int
	sizeZ, sizeT   int
	effC, rgb      int
	imageCount     int
	pixelType      PixelType
	dimensionOrder string
	firstIFD       int
}

// A Reader decodes planes and metadata from a parsed TIFF stack. It keeps a
// mutable series/resolution cursor shared by all dimension and plane
// operations; callers that change the cursor temporarily are responsible for
// restoring it.
type Reader struct {
	src      io.Closer
	order    binary.ByteOrder
	ifds     []*ifd
	series   []seriesDims
	store    *Store
	ome      bool
	path     string
	fileSize int64

	curSeries, curResolution int
}

func newReader(tif tiff.TIFF, path string) (*Reader, error) {
	r := &Reader{path: path, ome: IsOMEPath(path)}
	switch tif.Order() {
	case "II":
		r.order = binary.LittleEndian
	case "MM":
		r.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("unknown byte order %q", tif.Order())
	}
	tifds := tif.IFDs()
	if len(tifds) == 0 {
		return nil, fmt.Errorf("no image directories")
	}
	r.ifds = make([]*ifd, len(tifds))
	var err error
	for i := range tifds {
		if r.ifds[i], err = loadIFD(tif.R(), tifds[i]); err != nil {
			return nil, fmt.Errorf("ifd %d: %w", i, err)
		}
	}
	if r.ome {
		// A malformed or absent OME block falls back to the placeholder
		// path: plain per-IFD dimensions and a nil store.
		if doc, perr := ParseOMEXML(r.ifds[0].ImageDescription); perr == nil {
			r.store = NewStoreFromXML(doc)
		}
	}
	if r.store != nil {
		if err := r.buildOMESeries(); err != nil {
			return nil, err
		}
	} else {
		r.buildRawSeries()
	}
	return r, nil
}

func (r *Reader) buildRawSeries() {
	first := r.ifds[0]
	pt, err := pixelTypeFor(first.bits(), first.sampleFormat())
	if err != nil {
		pt = Uint8
	}
	r.series = []seriesDims{{
		sizeX:          int(first.ImageWidth),
		sizeY:          int(first.ImageLength),
		sizeZ:          len(r.ifds),
		sizeT:          1,
		effC:           1,
		rgb:            first.samples(),
		imageCount:     len(r.ifds),
		pixelType:      pt,
		dimensionOrder: "XYZCT",
		firstIFD:       0,
	}}
}

func (r *Reader) buildOMESeries() error {
	n := r.store.ImageCount()
	r.series = make([]seriesDims, n)
	offset := 0
	for i := 0; i < n; i++ {
		x, y, z, c, t, err := r.store.PixelsSize(i)
		if err != nil {
			return fmt.Errorf("series %d: %w", i, err)
		}
		pt, err := r.store.PixelsType(i)
		if err != nil {
			return fmt.Errorf("series %d: %w", i, err)
		}
		order, err := r.store.DimensionOrder(i)
		if err != nil {
			order = "XYZCT"
		}
		spp := r.store.ChannelSamplesPerPixel(i, 0)
		if spp < 1 {
			spp = 1
		}
		effC := c / spp
		if effC < 1 {
			effC = 1
		}
		count := z * t * effC
		if offset+count > len(r.ifds) {
			return fmt.Errorf("series %d declares %d planes but only %d directories remain",
				i, count, len(r.ifds)-offset)
		}
		r.series[i] = seriesDims{
			sizeX: x, sizeY: y, sizeZ: z, sizeT: t,
			effC: effC, rgb: spp,
			imageCount:     count,
			pixelType:      pt,
			dimensionOrder: order,
			firstIFD:       offset,
		}
		offset += count
	}
	return nil
}

// Close releases the underlying source if the reader owns one.
func (r *Reader) Close() error {
	if r.src != nil {
		err := r.src.Close()
		r.src = nil
		return err
	}
	return nil
}

// IsOME reports whether the source was detected as a native OME-TIFF.
func (r *Reader) IsOME() bool { return r.ome }

// Metadata returns the parsed OME-XML store, or nil when the file carries
// none (raw TIFF, or an unparseable description block).
func (r *Reader) Metadata() *Store { return r.store }

// Path returns the filename this reader was opened from.
func (r *Reader) Path() string { return r.path }

// FileSize returns the size of the backing file, or 0 for in-memory sources.
func (r *Reader) FileSize() int64 { return r.fileSize }

// SeriesCount returns the number of series in the file.
func (r *Reader) SeriesCount() int { return len(r.series) }

// Series returns the current series cursor.
func (r *Reader) Series() int { return r.curSeries }

// SetSeries moves the series cursor.
func (r *Reader) SetSeries(s int) error {
	if s < 0 || s >= len(r.series) {
		return fmt.Errorf("series %d out of range [0,%d)", s, len(r.series))
	}
	r.curSeries = s
	return nil
}

// Resolution returns the current resolution cursor.
func (r *Reader) Resolution() int { return r.curResolution }

// ResolutionCount returns the number of resolution levels of the current
// series. Sub-resolution pyramids are not decoded, so this is always 1.
func (r *Reader) ResolutionCount() int { return 1 }

// SetResolution moves the resolution cursor.
func (r *Reader) SetResolution(level int) error {
	if level < 0 || level >= r.ResolutionCount() {
		return fmt.Errorf("resolution %d out of range [0,%d)", level, r.ResolutionCount())
	}
	r.curResolution = level
	return nil
}

func (r *Reader) cur() *seriesDims { return &r.series[r.curSeries] }

// SizeX returns the plane width at the current cursor.
func (r *Reader) SizeX() int { return r.cur().sizeX }

// SizeY returns the plane height at the current cursor.
func (r *Reader) SizeY() int { return r.cur().sizeY }

// SizeZ returns the focal depth at the current cursor.
func (r *Reader) SizeZ() int { return r.cur().sizeZ }

// SizeT returns the timepoint count at the current cursor.
func (r *Reader) SizeT() int { return r.cur().sizeT }

// EffectiveSizeC returns the channel count after per-plane sample packing has
// been accounted for.
func (r *Reader) EffectiveSizeC() int { return r.cur().effC }

// RGBChannelCount returns the samples per plane (1 grayscale, 3 RGB).
func (r *Reader) RGBChannelCount() int { return r.cur().rgb }

// ImageCount returns the number of physical planes in the current series.
func (r *Reader) ImageCount() int { return r.cur().imageCount }

// PixelType returns the sample encoding of the current series.
func (r *Reader) PixelType() PixelType { return r.cur().pixelType }

// Index converts (z, c, t) coordinates into a plane number within the current
// series, honoring the declared dimension order.
func (r *Reader) Index(z, c, t int) int {
	d := r.cur()
	switch d.dimensionOrder {
	case "XYZTC":
		return z + d.sizeZ*(t+d.sizeT*c)
	case "XYCZT":
		return c + d.effC*(z+d.sizeZ*t)
	case "XYCTZ":
		return c + d.effC*(t+d.sizeT*z)
	case "XYTCZ":
		return t + d.sizeT*(c+d.effC*z)
	case "XYTZC":
		return t + d.sizeT*(z+d.sizeZ*c)
	default: // XYZCT
		return z + d.sizeZ*(c+d.effC*t)
	}
}

// ReadPlane decodes one plane of the current series into a tagged buffer.
func (r *Reader) ReadPlane(plane int) (*VariantBuffer, error) {
	d := r.cur()
	if plane < 0 || plane >= d.imageCount {
		return nil, fmt.Errorf("plane %d out of range [0,%d)", plane, d.imageCount)
	}
	f := r.ifds[d.firstIFD+plane]
	return r.decodePlane(f)
}

func (r *Reader) decodePlane(f *ifd) (*VariantBuffer, error) {
	pt, err := pixelTypeFor(f.bits(), f.sampleFormat())
	if err != nil {
		return nil, err
	}
	if f.Predictor > 1 {
		return nil, fmt.Errorf("predictor %d is not supported", f.Predictor)
	}
	width, height := int(f.ImageWidth), int(f.ImageLength)
	samples := f.samples()

	raw := &bytes.Buffer{}
	for s := range f.StripOffsets {
		strip := make([]byte, f.StripByteCounts[s])
		if _, err := f.r.ReadAt(strip, int64(f.StripOffsets[s])); err != nil {
			return nil, fmt.Errorf("read strip %d at %d: %w", s, f.StripOffsets[s], err)
		}
		expanded, err := decompressStrip(strip, f.Compression)
		if err != nil {
			return nil, fmt.Errorf("strip %d: %w", s, err)
		}
		raw.Write(expanded)
	}

	var data []byte
	if pt == Bit {
		data = unpackBits(raw.Bytes(), width*samples, height)
	} else {
		data = raw.Bytes()
	}
	expected := width * height * samples * pt.BytesPerPixel()
	if len(data) < expected {
		return nil, fmt.Errorf("plane truncated: have %d bytes, want %d", len(data), expected)
	}
	return &VariantBuffer{Type: pt, Order: r.order, Data: data[:expected]}, nil
}

func decompressStrip(data []byte, compression uint16) ([]byte, error) {
	switch compression {
	case 0, compressionNone:
		return data, nil
	case compressionAdobeDeflate, compressionDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return out, nil
	case compressionLZW:
		zr := tifflzw.NewReader(bytes.NewReader(data), tifflzw.MSB, 8)
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("lzw: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("compression scheme %d is not supported", compression)
}

// unpackBits expands a packed bilevel plane to one byte per pixel, MSB first,
// with rows padded to byte boundaries as TIFF requires.
func unpackBits(packed []byte, rowPixels, rows int) []byte {
	rowBytes := (rowPixels + 7) / 8
	out := make([]byte, rowPixels*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < rowPixels; x++ {
			idx := y*rowBytes + x/8
			if idx >= len(packed) {
				return out
			}
			if packed[idx]&(0x80>>uint(x%8)) != 0 {
				out[y*rowPixels+x] = 1
			}
		}
	}
	return out
}
