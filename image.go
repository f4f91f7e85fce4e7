// Package omestack reads multidimensional microscopy stacks from TIFF and
// OME-TIFF files, lets raw stacks be reinterpreted as channel-interleaved
// acquisitions, converts planes to a displayable form, and rewrites stacks
// as metadata-complete OME-TIFF output.
package omestack

import (
	"fmt"
	"os"

	"github.com/omestack/omestack/format"
)

// An Image is an open microscopy stack. It wraps the format-level reader with
// a dimension model that can diverge from the file's own layout once an
// interleaved-channel interpretation has been applied.
//
// An Image is not safe for concurrent use.
type Image struct {
	r *format.Reader

	raw dimensions // series layout as the file declares it
	eff dimensions // layout after reinterpretation
	// interleaved channel count currently applied, 0 when the raw
	// interpretation is in effect
	interleaved int
}

// Open reads the header and metadata of the stack at path.
func Open(path string) (*Image, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, &DecodeError{Op: path, Err: err}
	}
	r, err := format.OpenFile(path)
	if err != nil {
		return nil, &DecodeError{Op: path, Err: err}
	}
	img := &Image{r: r}
	img.snapshotDims()
	return img, nil
}

func (img *Image) snapshotDims() {
	img.raw = dimensions{
		SizeX:      img.r.SizeX(),
		SizeY:      img.r.SizeY(),
		SizeZ:      img.r.SizeZ(),
		SizeC:      img.r.EffectiveSizeC(),
		SizeT:      img.r.SizeT(),
		ImageCount: img.r.ImageCount(),
	}
	img.eff = img.raw
	img.interleaved = 0
}

// Close releases the underlying file.
func (img *Image) Close() error {
	return img.r.Close()
}

// Path returns the filename the image was opened from.
func (img *Image) Path() string { return img.r.Path() }

// FileSize returns the size of the backing file in bytes.
func (img *Image) FileSize() int64 { return img.r.FileSize() }

// IsOME reports whether the file is a native OME-TIFF.
func (img *Image) IsOME() bool { return img.r.IsOME() }

// SeriesCount returns the number of series in the file.
func (img *Image) SeriesCount() int { return img.r.SeriesCount() }

// Series returns the active series.
func (img *Image) Series() int { return img.r.Series() }

// SetSeries switches the active series. Any interleaved-channel
// interpretation is discarded; dimensions revert to the new series' own
// layout.
func (img *Image) SetSeries(s int) error {
	if err := img.r.SetSeries(s); err != nil {
		return invalidArgumentf("%v", err)
	}
	img.snapshotDims()
	return nil
}

// SizeX returns the plane width in pixels.
func (img *Image) SizeX() int { return img.eff.SizeX }

// SizeY returns the plane height in pixels.
func (img *Image) SizeY() int { return img.eff.SizeY }

// SizeZ returns the focal slice count under the current interpretation.
func (img *Image) SizeZ() int { return img.eff.SizeZ }

// SizeC returns the channel count under the current interpretation.
func (img *Image) SizeC() int { return img.eff.SizeC }

// SizeT returns the timepoint count under the current interpretation.
func (img *Image) SizeT() int { return img.eff.SizeT }

// ImageCount returns the number of physical planes in the active series.
// Reinterpretation never changes it.
func (img *Image) ImageCount() int { return img.eff.ImageCount }

// PixelType returns the sample encoding of the active series.
func (img *Image) PixelType() format.PixelType { return img.r.PixelType() }

// InterleavedChannelCount returns the channel count applied by
// SetInterleavedChannelCount, or 0 when the raw interpretation is in effect.
func (img *Image) InterleavedChannelCount() int { return img.interleaved }

// SetInterleavedChannelCount reinterprets the stack's plane sequence as n
// interleaved channels. The file is untouched; only this handle's dimension
// model changes. Counts of 1 or less restore the raw interpretation.
//
// Native OME-TIFF files refuse reinterpretation, since their declared
// dimension order is authoritative. Stacks with more than one timepoint also
// refuse it: the plane sequence already encodes a time axis, and folding
// channels into it would silently scramble acquisition order.
func (img *Image) SetInterleavedChannelCount(n int) error {
	if n > 1 {
		if img.IsOME() {
			return fmt.Errorf("%w: %s declares its own dimension layout",
				ErrUnsupportedOperation, img.Path())
		}
		if img.raw.SizeT > 1 {
			return fmt.Errorf("%w: stack has %d timepoints",
				ErrUnsupportedOperation, img.raw.SizeT)
		}
	}
	eff, err := applyInterleaving(img.raw, n)
	if err != nil {
		return err
	}
	img.eff = eff
	if n <= 1 {
		img.interleaved = 0
	} else {
		img.interleaved = n
	}
	return nil
}

// PlaneIndex maps (z, c, t) coordinates to a physical plane number under the
// current interpretation.
func (img *Image) PlaneIndex(z, c, t int) (int, error) {
	if err := img.eff.checkCoords(z, c, t); err != nil {
		return 0, err
	}
	if img.interleaved > 0 {
		return img.eff.interleavedIndex(z, c), nil
	}
	return img.r.Index(z, c, t), nil
}

// ReadPlane decodes the plane at (z, c, t) under the current interpretation.
func (img *Image) ReadPlane(z, c, t int) (*format.VariantBuffer, error) {
	idx, err := img.PlaneIndex(z, c, t)
	if err != nil {
		return nil, err
	}
	return img.ReadPlaneByIndex(idx)
}

// ReadPlaneByIndex decodes a plane by its physical number.
func (img *Image) ReadPlaneByIndex(plane int) (*format.VariantBuffer, error) {
	if plane < 0 || plane >= img.eff.ImageCount {
		return nil, invalidArgumentf("plane %d out of range [0,%d)", plane, img.eff.ImageCount)
	}
	buf, err := img.r.ReadPlane(plane)
	if err != nil {
		return nil, &DecodeError{Op: fmt.Sprintf("plane %d", plane), Err: err}
	}
	return buf, nil
}

// metadata returns the file's OME-XML store, nil for raw TIFF input.
func (img *Image) metadata() *format.Store { return img.r.Metadata() }
