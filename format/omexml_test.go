package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOMEXML = `<?xml version="1.0" encoding="UTF-8"?>
<OME xmlns="http://www.openmicroscopy.org/Schemas/OME/2016-06">
  <Instrument ID="Instrument:0">
    <Objective ID="Objective:0" LensNA="1.4" Immersion="Oil"/>
  </Instrument>
  <Image ID="Image:0" Name="sample">
    <ObjectiveSettings ID="Objective:0" Medium="Glycerol" RefractiveIndex="1.473"/>
    <Pixels ID="Pixels:0" DimensionOrder="XYZCT" Type="uint16"
        SizeX="64" SizeY="48" SizeZ="4" SizeC="2" SizeT="1"
        PhysicalSizeX="0.65" PhysicalSizeXUnit="µm"
        PhysicalSizeZ="2" PhysicalSizeZUnit="µm">
      <Channel ID="Channel:0:0" Name="DAPI" SamplesPerPixel="1"
          AcquisitionMode="LaserScanningConfocalMicroscopy"
          ExcitationWavelength="405" ExcitationWavelengthUnit="nm"
          EmissionWavelength="461" EmissionWavelengthUnit="nm"
          PinholeSize="1.2" PinholeSizeUnit="µm"/>
      <Channel ID="Channel:0:1" Name="GFP" SamplesPerPixel="1"
          AcquisitionMode="MultiPhotonMicroscopy"/>
    </Pixels>
  </Image>
</OME>`

func TestParseOMEXML(t *testing.T) {
	doc, err := ParseOMEXML(sampleOMEXML)
	require.NoError(t, err)
	s := NewStoreFromXML(doc)

	x, y, z, c, tt, err := s.PixelsSize(0)
	require.NoError(t, err)
	assert.Equal(t, []int{64, 48, 4, 2, 1}, []int{x, y, z, c, tt})

	pt, err := s.PixelsType(0)
	require.NoError(t, err)
	assert.Equal(t, Uint16, pt)

	name, err := s.ImageName(0)
	require.NoError(t, err)
	assert.Equal(t, "sample", name)

	na, err := s.ObjectiveLensNA(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.4, na)

	imm, err := s.ObjectiveImmersion(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Oil", imm)

	medium, err := s.ObjectiveSettingsMedium(0)
	require.NoError(t, err)
	assert.Equal(t, "Glycerol", medium)

	ri, err := s.ObjectiveSettingsRefractiveIndex(0)
	require.NoError(t, err)
	assert.Equal(t, 1.473, ri)

	require.Equal(t, 2, s.ChannelCount(0))
	ex, err := s.ChannelExcitationWavelength(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 405.0, ex.Nanometers())

	_, err = s.ChannelExcitationWavelength(0, 1)
	assert.Error(t, err, "absent attribute must be reported, not defaulted")
}

func TestParseOMEXMLRejectsJunk(t *testing.T) {
	_, err := ParseOMEXML("")
	assert.Error(t, err)
	_, err = ParseOMEXML("slide scanned at 40x")
	assert.Error(t, err)
	_, err = ParseOMEXML(`<OME xmlns="http://www.openmicroscopy.org/Schemas/OME/2016-06"></OME>`)
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	doc, err := ParseOMEXML(sampleOMEXML)
	require.NoError(t, err)
	out, err := MarshalOMEXML(doc)
	require.NoError(t, err)

	doc2, err := ParseOMEXML(out)
	require.NoError(t, err)
	s := NewStoreFromXML(doc2)
	px, err := s.PixelsPhysicalSizeX(0)
	require.NoError(t, err)
	assert.Equal(t, 650.0, px.Nanometers())
	pz, err := s.PixelsPhysicalSizeZ(0)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, pz.Nanometers())
}

func TestLengthNanometers(t *testing.T) {
	cases := []struct {
		l    Length
		want float64
	}{
		{Length{650, UnitNanometer}, 650},
		{Length{0.65, UnitMicrometer}, 650},
		{Length{0.65, "um"}, 650},
		{Length{0.65, UnitMillimeter}, 650000},
		{Length{0.65, UnitMeter}, 6.5e8},
		{Length{650, ""}, 650},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, c.l.Nanometers(), 1e-9, "%v %s", c.l.Value, c.l.Unit)
	}
}

func TestStoreCloneIsIndependent(t *testing.T) {
	doc, err := ParseOMEXML(sampleOMEXML)
	require.NoError(t, err)
	s := NewStoreFromXML(doc)

	clone, err := s.Clone()
	require.NoError(t, err)
	require.NoError(t, clone.SetImageName("copy", 0))
	require.NoError(t, clone.SetChannelName("mCherry", 0, 0))

	name, err := s.ImageName(0)
	require.NoError(t, err)
	assert.Equal(t, "sample", name)
	ch, err := s.ChannelName(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "DAPI", ch)
}
