package omestack

import (
	"encoding/json"
	"fmt"
	"os"
)

// The JSON sidecar mirrors ImageMetadata with stable field names, so
// metadata can be captured once and replayed onto other stacks.
type jsonChannel struct {
	Name            string   `json:"name,omitempty"`
	AcquisitionMode string   `json:"acquisitionMode,omitempty"`
	ExWavelengthNm  *float64 `json:"exWavelengthNm,omitempty"`
	EmWavelengthNm  *float64 `json:"emWavelengthNm,omitempty"`
	PinholeSizeNm   *float64 `json:"pinholeSizeNm,omitempty"`
	PhotonCount     int      `json:"photonCount,omitempty"`
}

type jsonMetadata struct {
	PhysSizeXNm       *float64      `json:"physSizeXNm,omitempty"`
	PhysSizeYNm       *float64      `json:"physSizeYNm,omitempty"`
	PhysSizeZNm       *float64      `json:"physSizeZNm,omitempty"`
	NumericalAperture *float64      `json:"numericalAperture,omitempty"`
	LensImmersion     string        `json:"lensImmersion,omitempty"`
	EmbeddingMedium   string        `json:"embeddingMedium,omitempty"`
	ImmersionRI       *float64      `json:"immersionRI,omitempty"`
	Channels          []jsonChannel `json:"channels,omitempty"`
}

// SaveMetadataJSON writes the metadata subset as a JSON sidecar file.
func SaveMetadataJSON(meta ImageMetadata, path string) error {
	out := jsonMetadata{
		PhysSizeXNm:       meta.PhysicalSizeXNm,
		PhysSizeYNm:       meta.PhysicalSizeYNm,
		PhysSizeZNm:       meta.PhysicalSizeZNm,
		NumericalAperture: meta.NumericalAperture,
		LensImmersion:     meta.LensImmersion,
		EmbeddingMedium:   meta.EmbeddingMedium,
		ImmersionRI:       meta.ImmersionRefractiveIndex,
	}
	for _, ch := range meta.Channels {
		out.Channels = append(out.Channels, jsonChannel{
			Name:            ch.Name,
			AcquisitionMode: ch.AcquisitionMode,
			ExWavelengthNm:  ch.ExcitationWavelengthNm,
			EmWavelengthNm:  ch.EmissionWavelengthNm,
			PinholeSizeNm:   ch.PinholeSizeNm,
			PhotonCount:     ch.PhotonCount,
		})
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}

// LoadMetadataJSON reads a JSON sidecar back into an ImageMetadata.
func LoadMetadataJSON(path string) (ImageMetadata, error) {
	var meta ImageMetadata
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return meta, err
	}
	var in jsonMetadata
	if err := json.Unmarshal(raw, &in); err != nil {
		return meta, fmt.Errorf("parse %s: %w", path, err)
	}
	meta = ImageMetadata{
		PhysicalSizeXNm:          in.PhysSizeXNm,
		PhysicalSizeYNm:          in.PhysSizeYNm,
		PhysicalSizeZNm:          in.PhysSizeZNm,
		NumericalAperture:        in.NumericalAperture,
		LensImmersion:            in.LensImmersion,
		EmbeddingMedium:          in.EmbeddingMedium,
		ImmersionRefractiveIndex: in.ImmersionRI,
	}
	for _, ch := range in.Channels {
		pc := ch.PhotonCount
		if pc == 0 {
			pc = 1
		}
		meta.Channels = append(meta.Channels, ChannelMetadata{
			Name:                   ch.Name,
			AcquisitionMode:        ch.AcquisitionMode,
			ExcitationWavelengthNm: ch.ExWavelengthNm,
			EmissionWavelengthNm:   ch.EmWavelengthNm,
			PinholeSizeNm:          ch.PinholeSizeNm,
			PhotonCount:            pc,
		})
	}
	return meta, nil
}
