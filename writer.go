package omestack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/omestack/omestack/format"
)

// ProgressFunc is called after each plane is written, with the number of
// planes done and the total. Returning false cancels the save.
type ProgressFunc func(done, total int) bool

type saveConfig struct {
	progress ProgressFunc
	writer   []format.WriterOption
}

// SaveOption configures SaveWithMetadata.
type SaveOption func(*saveConfig)

// WithProgress registers a per-plane progress callback.
func WithProgress(fn ProgressFunc) SaveOption {
	return func(c *saveConfig) { c.progress = fn }
}

// WithCompression selects the output codec by TIFF name.
func WithCompression(name string) SaveOption {
	return func(c *saveConfig) { c.writer = append(c.writer, format.Compression(name)) }
}

// WithCompressionLevel sets the deflate level.
func WithCompressionLevel(level int) SaveOption {
	return func(c *saveConfig) { c.writer = append(c.writer, format.CompressionLevel(level)) }
}

// SaveWithMetadata rewrites the image's current interpretation as a new
// OME-TIFF at path: the dimension model becomes the declared layout, pixel
// data is copied plane by plane, and meta is embedded as OME-XML.
//
// The file is written next to path under a temporary name and moved into
// place only after a successful close, so a failed or cancelled save never
// leaves a half-written file at path. Cancellation through the progress
// callback returns ErrCancelled; every other failure surfaces as an
// EncodeError or DecodeError.
func SaveWithMetadata(img *Image, meta ImageMetadata, path string, options ...SaveOption) error {
	cfg := saveConfig{}
	for _, o := range options {
		o(&cfg)
	}

	store, err := buildOutputStore(img, meta, path)
	if err != nil {
		return &EncodeError{Op: "metadata", Err: err}
	}

	tmp := filepath.Join(filepath.Dir(path),
		fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := os.Create(tmp)
	if err != nil {
		return &EncodeError{Op: "create output", Err: err}
	}
	err = writePlanes(img, store, f, &cfg)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &EncodeError{Op: "close output", Err: cerr}
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &EncodeError{Op: "replace output", Err: err}
	}
	return nil
}

func writePlanes(img *Image, store *format.Store, f *os.File, cfg *saveConfig) error {
	wr, err := format.NewWriter(f, store, cfg.writer...)
	if err != nil {
		return &EncodeError{Op: "open writer", Err: err}
	}
	total := wr.PlaneCount()
	done := 0
	// z varies fastest in the output, matching the XYZCT order the
	// metadata declares
	for t := 0; t < img.SizeT(); t++ {
		for c := 0; c < img.SizeC(); c++ {
			for z := 0; z < img.SizeZ(); z++ {
				buf, err := img.ReadPlane(z, c, t)
				if err != nil {
					return err
				}
				if err := wr.SaveBytes(done, buf); err != nil {
					return &EncodeError{Op: "write plane", Err: err}
				}
				done++
				if cfg.progress != nil && !cfg.progress(done, total) {
					return fmt.Errorf("%w after %d of %d planes", ErrCancelled, done, total)
				}
			}
		}
	}
	if err := wr.Close(); err != nil {
		return &EncodeError{Op: "finalize", Err: err}
	}
	return nil
}

// buildOutputStore assembles the output metadata document. A native OME
// source keeps its own document as the base, with meta's editable fields
// overlaid; anything else gets a synthesized single-series document. Either
// way the declared layout is the image's current interpretation: XYZCT, one
// sample per channel.
func buildOutputStore(img *Image, meta ImageMetadata, path string) (*format.Store, error) {
	if n := len(meta.Channels); n != 0 && n != img.SizeC() {
		return nil, fmt.Errorf("metadata declares %d channels, image has %d", n, img.SizeC())
	}

	var store *format.Store
	if img.IsOME() && img.metadata() != nil {
		clone, err := img.metadata().Clone()
		if err != nil {
			return nil, err
		}
		store = clone
		// the copied planes get a fresh IFD layout
		doc := store.Doc()
		doc.Images[0].Pixels.TiffData = nil
		doc.Images[0].Pixels.DimensionOrder = "XYZCT"
		doc.Images[0].Pixels.SizeZ = img.SizeZ()
		doc.Images[0].Pixels.SizeC = img.SizeC()
		doc.Images[0].Pixels.SizeT = img.SizeT()
	} else {
		store = format.NewStore(img.SizeX(), img.SizeY(), img.SizeZ(), img.SizeC(), img.SizeT(), img.PixelType())
	}

	name := meta.Name
	if name == "" {
		name = baseName(path)
	}
	if err := store.SetImageName(name, 0); err != nil {
		return nil, err
	}
	if err := overlayMetadata(store, meta); err != nil {
		return nil, err
	}
	return store, nil
}

// overlayMetadata writes meta's editable subset into series 0 of the store.
// Physical sizes are stored in micrometers, the unit microscopy files
// conventionally declare; channel lengths stay in nanometers.
func overlayMetadata(store *format.Store, meta ImageMetadata) error {
	um := func(nm *float64) (format.Length, bool) {
		if nm == nil || *nm <= 0 {
			return format.Length{}, false
		}
		return format.Length{Value: *nm / 1000.0, Unit: format.UnitMicrometer}, true
	}
	nm := func(v *float64) (format.Length, bool) {
		if v == nil {
			return format.Length{}, false
		}
		return format.Length{Value: *v, Unit: format.UnitNanometer}, true
	}

	if l, ok := um(meta.PhysicalSizeXNm); ok {
		if err := store.SetPixelsPhysicalSizeX(l, 0); err != nil {
			return err
		}
	}
	if l, ok := um(meta.PhysicalSizeYNm); ok {
		if err := store.SetPixelsPhysicalSizeY(l, 0); err != nil {
			return err
		}
	}
	if l, ok := um(meta.PhysicalSizeZNm); ok {
		if err := store.SetPixelsPhysicalSizeZ(l, 0); err != nil {
			return err
		}
	}

	doc := store.Doc()
	if meta.NumericalAperture != nil || meta.LensImmersion != "" {
		// edits land on the objective the image's ObjectiveSettings ID
		// names, first match wins; without a match a default objective
		// is the target
		inst, obj, matched := objectiveTarget(doc)
		if !matched && (len(doc.Instruments) == 0 || len(doc.Instruments[0].Objectives) == 0) {
			doc.Instruments = []format.Instrument{{
				ID:         "Instrument:0",
				Objectives: []format.Objective{{ID: "Objective:0"}},
			}}
		}
		if meta.NumericalAperture != nil {
			if err := store.SetObjectiveLensNA(*meta.NumericalAperture, inst, obj); err != nil {
				return err
			}
		}
		if meta.LensImmersion != "" {
			if err := store.SetObjectiveImmersion(meta.LensImmersion, inst, obj); err != nil {
				return err
			}
		}
	}
	if meta.EmbeddingMedium != "" || meta.ImmersionRefractiveIndex != nil {
		if doc.Images[0].ObjectiveSettings == nil {
			id := "Objective:0"
			if len(doc.Instruments) > 0 && len(doc.Instruments[0].Objectives) > 0 {
				id = doc.Instruments[0].Objectives[0].ID
			}
			doc.Images[0].ObjectiveSettings = &format.ObjectiveSettings{ID: id}
		}
		if meta.EmbeddingMedium != "" {
			if err := store.SetObjectiveSettingsMedium(meta.EmbeddingMedium, 0); err != nil {
				return err
			}
		}
		if meta.ImmersionRefractiveIndex != nil {
			if err := store.SetObjectiveSettingsRefractiveIndex(*meta.ImmersionRefractiveIndex, 0); err != nil {
				return err
			}
		}
	}

	// per-channel writes are individually skipped when the document has no
	// matching channel, so a short channel list never aborts the save
	for c, ch := range meta.Channels {
		if c >= store.ChannelCount(0) {
			break
		}
		if ch.Name != "" {
			if err := store.SetChannelName(ch.Name, 0, c); err != nil {
				return err
			}
		}
		if ch.AcquisitionMode != "" {
			if err := store.SetChannelAcquisitionMode(ch.AcquisitionMode, 0, c); err != nil {
				return err
			}
		}
		if l, ok := nm(ch.ExcitationWavelengthNm); ok {
			if err := store.SetChannelExcitationWavelength(l, 0, c); err != nil {
				return err
			}
		}
		if l, ok := nm(ch.EmissionWavelengthNm); ok {
			if err := store.SetChannelEmissionWavelength(l, 0, c); err != nil {
				return err
			}
		}
		if l, ok := nm(ch.PinholeSizeNm); ok {
			if err := store.SetChannelPinholeSize(l, 0, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// objectiveTarget resolves the objective referenced by series 0's
// ObjectiveSettings ID against the instrument list, first match wins.
func objectiveTarget(doc *format.OME) (inst, obj int, matched bool) {
	settings := doc.Images[0].ObjectiveSettings
	if settings == nil || settings.ID == "" {
		return 0, 0, false
	}
	for i := range doc.Instruments {
		for j := range doc.Instruments[i].Objectives {
			if doc.Instruments[i].Objectives[j].ID == settings.ID {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// IsCancelled reports whether err is a cancellation, so callers can skip
// error reporting for user-initiated stops.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
