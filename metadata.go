package omestack

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/omestack/omestack/format"
)

// Acquisition mode names used with special handling. Values follow the
// OME-XML AcquisitionMode enumeration.
const (
	AcquisitionConfocal    = "LaserScanningConfocalMicroscopy"
	AcquisitionMultiPhoton = "MultiPhotonMicroscopy"
)

// ChannelMetadata is the per-channel subset of acquisition metadata this
// package reads and writes. Nil pointer fields were absent from the source.
type ChannelMetadata struct {
	Name                   string
	AcquisitionMode        string
	ExcitationWavelengthNm *float64
	EmissionWavelengthNm   *float64
	PinholeSizeNm          *float64
	// PhotonCount is the number of photons per excitation event: 2 for
	// multiphoton acquisition, otherwise 1.
	PhotonCount int
}

// ImageMetadata describes one stack: the fixed facts of the open file plus
// the user-editable acquisition subset. All lengths are in nanometers
// regardless of the unit the file declared.
type ImageMetadata struct {
	// descriptive, derived from the open file, never read back on save
	Name          string
	SizeX, SizeY  int
	SizeZ         int
	SizeC         int
	SizeT         int
	PixelType     string
	DataSizeBytes int64

	PhysicalSizeXNm          *float64
	PhysicalSizeYNm          *float64
	PhysicalSizeZNm          *float64
	NumericalAperture        *float64
	LensImmersion            string
	EmbeddingMedium          string
	ImmersionRefractiveIndex *float64
	Channels                 []ChannelMetadata
}

// Apply overlays edit onto a copy of the receiver: fields edit carries win,
// fields it leaves empty keep the receiver's value. A non-empty channel list
// replaces the receiver's list wholesale. Descriptive fields always come
// from the receiver; they describe the file, not the edit.
func (m ImageMetadata) Apply(edit ImageMetadata) ImageMetadata {
	out := m
	if edit.PhysicalSizeXNm != nil {
		out.PhysicalSizeXNm = edit.PhysicalSizeXNm
	}
	if edit.PhysicalSizeYNm != nil {
		out.PhysicalSizeYNm = edit.PhysicalSizeYNm
	}
	if edit.PhysicalSizeZNm != nil {
		out.PhysicalSizeZNm = edit.PhysicalSizeZNm
	}
	if edit.NumericalAperture != nil {
		out.NumericalAperture = edit.NumericalAperture
	}
	if edit.LensImmersion != "" {
		out.LensImmersion = edit.LensImmersion
	}
	if edit.EmbeddingMedium != "" {
		out.EmbeddingMedium = edit.EmbeddingMedium
	}
	if edit.ImmersionRefractiveIndex != nil {
		out.ImmersionRefractiveIndex = edit.ImmersionRefractiveIndex
	}
	if len(edit.Channels) > 0 {
		out.Channels = edit.Channels
	}
	return out
}

func baseName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimSuffix(name, ".ome")
}

func (img *Image) describe(meta *ImageMetadata) {
	meta.SizeX, meta.SizeY = img.SizeX(), img.SizeY()
	meta.SizeZ, meta.SizeC, meta.SizeT = img.SizeZ(), img.SizeC(), img.SizeT()
	meta.PixelType = img.PixelType().String()
	meta.DataSizeBytes = int64(meta.SizeX) * int64(meta.SizeY) *
		int64(meta.SizeZ) * int64(meta.SizeC) * int64(meta.SizeT) *
		int64(img.PixelType().BytesPerPixel())
}

// ExtractMetadata pulls the supported metadata subset out of an open image.
// Extraction is fault tolerant per field: anything missing or malformed is
// skipped and reported as a warning, never as an error, so a sparse file
// still yields whatever it does carry.
//
// A stack with no usable OME-XML block gets a synthesized record instead:
// dimensions and pixel type from the current interpretation, the filename as
// the image name, and generically named confocal channels.
func ExtractMetadata(img *Image) (ImageMetadata, []string) {
	var meta ImageMetadata
	var warnings []string
	img.describe(&meta)

	store := img.metadata()
	if store == nil {
		meta.Name = baseName(img.Path())
		for c := 0; c < meta.SizeC; c++ {
			meta.Channels = append(meta.Channels, ChannelMetadata{
				Name:            fmt.Sprintf("Channel %d", c+1),
				AcquisitionMode: AcquisitionConfocal,
				PhotonCount:     1,
			})
		}
		return meta, warnings
	}

	series := img.Series()
	warn := func(what string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", what, err))
	}
	length := func(what string, get func(int) (format.Length, error)) *float64 {
		l, err := get(series)
		if err != nil {
			warn(what, err)
			return nil
		}
		nm := l.Nanometers()
		return &nm
	}

	if name, err := store.ImageName(series); err != nil {
		warn("image name", err)
		meta.Name = baseName(img.Path())
	} else {
		meta.Name = name
	}

	meta.PhysicalSizeXNm = length("physical size X", store.PixelsPhysicalSizeX)
	meta.PhysicalSizeYNm = length("physical size Y", store.PixelsPhysicalSizeY)
	meta.PhysicalSizeZNm = length("physical size Z", store.PixelsPhysicalSizeZ)

	// the image's ObjectiveSettings ID picks the objective out of the
	// instrument list; first match wins
	resolveObjective := func() (inst, obj int, matched bool) {
		id, err := store.ObjectiveSettingsID(series)
		if err != nil {
			warn("objective settings", err)
			return 0, 0, false
		}
		for i := 0; i < store.InstrumentCount(); i++ {
			for j := 0; j < store.ObjectiveCount(i); j++ {
				if oid, err := store.ObjectiveID(i, j); err == nil && oid == id {
					return i, j, true
				}
			}
		}
		warnings = append(warnings, fmt.Sprintf("no objective matches settings ID %q", id))
		return 0, 0, false
	}
	inst, obj, matched := resolveObjective()
	if matched || (store.InstrumentCount() > 0 && store.ObjectiveCount(0) > 0) {
		if na, err := store.ObjectiveLensNA(inst, obj); err != nil {
			warn("numerical aperture", err)
		} else {
			meta.NumericalAperture = &na
		}
		if imm, err := store.ObjectiveImmersion(inst, obj); err != nil {
			warn("lens immersion", err)
		} else {
			meta.LensImmersion = imm
		}
	} else {
		warnings = append(warnings, "no objective declared")
	}

	if medium, err := store.ObjectiveSettingsMedium(series); err != nil {
		warn("embedding medium", err)
	} else {
		meta.EmbeddingMedium = medium
	}
	if ri, err := store.ObjectiveSettingsRefractiveIndex(series); err != nil {
		warn("immersion refractive index", err)
	} else {
		meta.ImmersionRefractiveIndex = &ri
	}

	nchan := store.ChannelCount(series)
	for c := 0; c < nchan; c++ {
		ch := ChannelMetadata{PhotonCount: 1}
		chWarn := func(what string, err error) {
			warn(fmt.Sprintf("channel %d %s", c, what), err)
		}
		if name, err := store.ChannelName(series, c); err != nil {
			chWarn("name", err)
			ch.Name = fmt.Sprintf("Channel %d", c+1)
		} else {
			ch.Name = name
		}
		if mode, err := store.ChannelAcquisitionMode(series, c); err != nil {
			chWarn("acquisition mode", err)
			ch.AcquisitionMode = AcquisitionConfocal
		} else {
			ch.AcquisitionMode = mode
			if mode == AcquisitionMultiPhoton {
				ch.PhotonCount = 2
			}
		}
		chLength := func(what string, get func(int, int) (format.Length, error)) *float64 {
			l, err := get(series, c)
			if err != nil {
				chWarn(what, err)
				return nil
			}
			nm := l.Nanometers()
			return &nm
		}
		ch.ExcitationWavelengthNm = chLength("excitation wavelength", store.ChannelExcitationWavelength)
		ch.EmissionWavelengthNm = chLength("emission wavelength", store.ChannelEmissionWavelength)
		ch.PinholeSizeNm = chLength("pinhole size", store.ChannelPinholeSize)
		meta.Channels = append(meta.Channels, ch)
	}
	return meta, warnings
}
