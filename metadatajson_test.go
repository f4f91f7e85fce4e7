package omestack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, SaveMetadataJSON(sampleMetadata(), path))

	meta, err := LoadMetadataJSON(path)
	require.NoError(t, err)
	assert.Equal(t, sampleMetadata(), meta)
}

func TestMetadataJSONFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, SaveMetadataJSON(sampleMetadata(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{
		"physSizeXNm", "physSizeZNm", "numericalAperture", "lensImmersion",
		"embeddingMedium", "immersionRI", "channels", "exWavelengthNm",
		"pinholeSizeNm", "photonCount",
	} {
		assert.Contains(t, string(raw), `"`+key+`"`)
	}
}

func TestMetadataJSONOmitsAbsentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, SaveMetadataJSON(ImageMetadata{LensImmersion: "Water"}, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "lensImmersion")
	assert.NotContains(t, string(raw), "physSizeXNm")
	assert.NotContains(t, string(raw), "channels")
}

func TestMetadataJSONDefaultsPhotonCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"channels":[{"name":"DAPI"}]}`), 0o644))

	meta, err := LoadMetadataJSON(path)
	require.NoError(t, err)
	require.Len(t, meta.Channels, 1)
	assert.Equal(t, 1, meta.Channels[0].PhotonCount)
}

func TestMetadataJSONMissingFile(t *testing.T) {
	_, err := LoadMetadataJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestMetadataJSONRejectsJunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err := LoadMetadataJSON(path)
	assert.Error(t, err)
}
