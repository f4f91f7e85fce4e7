package format

import (
	"encoding/xml"
	"fmt"
)

// A Store is a queryable and writable OME-XML metadata document. Every getter
// reports a missing element or attribute as an error so callers can treat
// individual fields as optional without losing the rest of the document.
type Store struct {
	doc *OME
}

// NewStoreFromXML wraps a parsed document.
func NewStoreFromXML(doc *OME) *Store {
	return &Store{doc: doc}
}

// NewStore synthesizes a minimal single-series store: XYZCT dimension order,
// one sample per channel, non-interleaved. This is the layout used when a raw
// TIFF is rewritten as an OME-TIFF.
func NewStore(sizeX, sizeY, sizeZ, sizeC, sizeT int, pt PixelType) *Store {
	interleaved := false
	channels := make([]Channel, sizeC)
	for c := range channels {
		spp := 1
		channels[c] = Channel{
			ID:              fmt.Sprintf("Channel:0:%d", c),
			SamplesPerPixel: &spp,
		}
	}
	doc := &OME{
		Xmlns: omeNamespace,
		Images: []ImageMeta{{
			ID: "Image:0",
			Pixels: Pixels{
				ID:             "Pixels:0",
				DimensionOrder: "XYZCT",
				Type:           pt.String(),
				SizeX:          sizeX,
				SizeY:          sizeY,
				SizeZ:          sizeZ,
				SizeC:          sizeC,
				SizeT:          sizeT,
				Interleaved:    &interleaved,
				Channels:       channels,
			},
		}},
	}
	return &Store{doc: doc}
}

// Doc exposes the underlying document, e.g. for serialization by the writer.
func (s *Store) Doc() *OME {
	return s.doc
}

// Clone deep-copies the store through an XML round trip, so later edits do
// not leak into the source document.
func (s *Store) Clone() (*Store, error) {
	raw, err := xml.Marshal(s.doc)
	if err != nil {
		return nil, fmt.Errorf("clone metadata: %w", err)
	}
	var doc OME
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("clone metadata: %w", err)
	}
	return &Store{doc: &doc}, nil
}

// ImageCount returns the number of series in the document.
func (s *Store) ImageCount() int {
	return len(s.doc.Images)
}

func (s *Store) image(i int) (*ImageMeta, error) {
	if i < 0 || i >= len(s.doc.Images) {
		return nil, fmt.Errorf("no Image element at index %d", i)
	}
	return &s.doc.Images[i], nil
}

func (s *Store) channel(i, c int) (*Channel, error) {
	img, err := s.image(i)
	if err != nil {
		return nil, err
	}
	if c < 0 || c >= len(img.Pixels.Channels) {
		return nil, fmt.Errorf("image %d has no Channel at index %d", i, c)
	}
	return &img.Pixels.Channels[c], nil
}

// ImageName returns the Name attribute of a series.
func (s *Store) ImageName(i int) (string, error) {
	img, err := s.image(i)
	if err != nil {
		return "", err
	}
	if img.Name == "" {
		return "", fmt.Errorf("image %d has no name", i)
	}
	return img.Name, nil
}

// SetImageName sets the Name attribute of a series.
func (s *Store) SetImageName(name string, i int) error {
	img, err := s.image(i)
	if err != nil {
		return err
	}
	img.Name = name
	return nil
}

// PixelsSize returns the SizeX..SizeT attributes of a series.
func (s *Store) PixelsSize(i int) (x, y, z, c, t int, err error) {
	img, err := s.image(i)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	p := img.Pixels
	return p.SizeX, p.SizeY, p.SizeZ, p.SizeC, p.SizeT, nil
}

// PixelsType returns the pixel type of a series.
func (s *Store) PixelsType(i int) (PixelType, error) {
	img, err := s.image(i)
	if err != nil {
		return Uint8, err
	}
	return ParsePixelType(img.Pixels.Type)
}

// DimensionOrder returns the plane ordering of a series.
func (s *Store) DimensionOrder(i int) (string, error) {
	img, err := s.image(i)
	if err != nil {
		return "", err
	}
	if img.Pixels.DimensionOrder == "" {
		return "", fmt.Errorf("image %d has no dimension order", i)
	}
	return img.Pixels.DimensionOrder, nil
}

func lengthAttr(v *float64, unit, what string) (Length, error) {
	if v == nil {
		return Length{}, fmt.Errorf("%s not present", what)
	}
	if unit == "" {
		unit = UnitMicrometer // OME default for lengths
	}
	return Length{Value: *v, Unit: unit}, nil
}

// PixelsPhysicalSizeX returns the physical X voxel size of a series.
func (s *Store) PixelsPhysicalSizeX(i int) (Length, error) {
	img, err := s.image(i)
	if err != nil {
		return Length{}, err
	}
	return lengthAttr(img.Pixels.PhysicalSizeX, img.Pixels.PhysicalSizeXUnit, "PhysicalSizeX")
}

// PixelsPhysicalSizeY returns the physical Y voxel size of a series.
func (s *Store) PixelsPhysicalSizeY(i int) (Length, error) {
	img, err := s.image(i)
	if err != nil {
		return Length{}, err
	}
	return lengthAttr(img.Pixels.PhysicalSizeY, img.Pixels.PhysicalSizeYUnit, "PhysicalSizeY")
}

// PixelsPhysicalSizeZ returns the physical Z voxel size of a series.
func (s *Store) PixelsPhysicalSizeZ(i int) (Length, error) {
	img, err := s.image(i)
	if err != nil {
		return Length{}, err
	}
	return lengthAttr(img.Pixels.PhysicalSizeZ, img.Pixels.PhysicalSizeZUnit, "PhysicalSizeZ")
}

// SetPixelsPhysicalSizeX stores the physical X voxel size of a series.
func (s *Store) SetPixelsPhysicalSizeX(l Length, i int) error {
	img, err := s.image(i)
	if err != nil {
		return err
	}
	v := l.Value
	img.Pixels.PhysicalSizeX, img.Pixels.PhysicalSizeXUnit = &v, l.Unit
	return nil
}

// SetPixelsPhysicalSizeY stores the physical Y voxel size of a series.
func (s *Store) SetPixelsPhysicalSizeY(l Length, i int) error {
	img, err := s.image(i)
	if err != nil {
		return err
	}
	v := l.Value
	img.Pixels.PhysicalSizeY, img.Pixels.PhysicalSizeYUnit = &v, l.Unit
	return nil
}

// SetPixelsPhysicalSizeZ stores the physical Z voxel size of a series.
func (s *Store) SetPixelsPhysicalSizeZ(l Length, i int) error {
	img, err := s.image(i)
	if err != nil {
		return err
	}
	v := l.Value
	img.Pixels.PhysicalSizeZ, img.Pixels.PhysicalSizeZUnit = &v, l.Unit
	return nil
}

// ObjectiveSettingsID returns the objective reference of a series.
func (s *Store) ObjectiveSettingsID(i int) (string, error) {
	img, err := s.image(i)
	if err != nil {
		return "", err
	}
	if img.ObjectiveSettings == nil || img.ObjectiveSettings.ID == "" {
		return "", fmt.Errorf("image %d has no objective settings", i)
	}
	return img.ObjectiveSettings.ID, nil
}

// ObjectiveSettingsRefractiveIndex returns the immersion refractive index.
func (s *Store) ObjectiveSettingsRefractiveIndex(i int) (float64, error) {
	img, err := s.image(i)
	if err != nil {
		return 0, err
	}
	if img.ObjectiveSettings == nil || img.ObjectiveSettings.RefractiveIndex == nil {
		return 0, fmt.Errorf("image %d has no refractive index", i)
	}
	return *img.ObjectiveSettings.RefractiveIndex, nil
}

// SetObjectiveSettingsRefractiveIndex stores the immersion refractive index.
func (s *Store) SetObjectiveSettingsRefractiveIndex(ri float64, i int) error {
	img, err := s.image(i)
	if err != nil {
		return err
	}
	if img.ObjectiveSettings == nil {
		return fmt.Errorf("image %d has no objective settings", i)
	}
	img.ObjectiveSettings.RefractiveIndex = &ri
	return nil
}

// ObjectiveSettingsMedium returns the embedding medium of a series.
func (s *Store) ObjectiveSettingsMedium(i int) (string, error) {
	img, err := s.image(i)
	if err != nil {
		return "", err
	}
	if img.ObjectiveSettings == nil || img.ObjectiveSettings.Medium == "" {
		return "", fmt.Errorf("image %d has no embedding medium", i)
	}
	return img.ObjectiveSettings.Medium, nil
}

// SetObjectiveSettingsMedium stores the embedding medium of a series.
func (s *Store) SetObjectiveSettingsMedium(medium string, i int) error {
	img, err := s.image(i)
	if err != nil {
		return err
	}
	if img.ObjectiveSettings == nil {
		return fmt.Errorf("image %d has no objective settings", i)
	}
	img.ObjectiveSettings.Medium = medium
	return nil
}

// InstrumentCount returns the number of Instrument elements.
func (s *Store) InstrumentCount() int {
	return len(s.doc.Instruments)
}

// ObjectiveCount returns the number of objectives of an instrument.
func (s *Store) ObjectiveCount(inst int) int {
	if inst < 0 || inst >= len(s.doc.Instruments) {
		return 0
	}
	return len(s.doc.Instruments[inst].Objectives)
}

func (s *Store) objective(inst, obj int) (*Objective, error) {
	if inst < 0 || inst >= len(s.doc.Instruments) {
		return nil, fmt.Errorf("no Instrument at index %d", inst)
	}
	objs := s.doc.Instruments[inst].Objectives
	if obj < 0 || obj >= len(objs) {
		return nil, fmt.Errorf("instrument %d has no Objective at index %d", inst, obj)
	}
	return &objs[obj], nil
}

// ObjectiveID returns the ID of an objective.
func (s *Store) ObjectiveID(inst, obj int) (string, error) {
	o, err := s.objective(inst, obj)
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

// ObjectiveLensNA returns the numerical aperture of an objective.
func (s *Store) ObjectiveLensNA(inst, obj int) (float64, error) {
	o, err := s.objective(inst, obj)
	if err != nil {
		return 0, err
	}
	if o.LensNA == nil {
		return 0, fmt.Errorf("objective %d/%d has no lens NA", inst, obj)
	}
	return *o.LensNA, nil
}

// SetObjectiveLensNA stores the numerical aperture of an objective.
func (s *Store) SetObjectiveLensNA(na float64, inst, obj int) error {
	o, err := s.objective(inst, obj)
	if err != nil {
		return err
	}
	o.LensNA = &na
	return nil
}

// ObjectiveImmersion returns the immersion type of an objective.
func (s *Store) ObjectiveImmersion(inst, obj int) (string, error) {
	o, err := s.objective(inst, obj)
	if err != nil {
		return "", err
	}
	if o.Immersion == "" {
		return "", fmt.Errorf("objective %d/%d has no immersion", inst, obj)
	}
	return o.Immersion, nil
}

// SetObjectiveImmersion stores the immersion type of an objective.
func (s *Store) SetObjectiveImmersion(imm string, inst, obj int) error {
	o, err := s.objective(inst, obj)
	if err != nil {
		return err
	}
	o.Immersion = imm
	return nil
}

// ChannelCount returns the number of channels of a series.
func (s *Store) ChannelCount(i int) int {
	img, err := s.image(i)
	if err != nil {
		return 0
	}
	return len(img.Pixels.Channels)
}

// ChannelSamplesPerPixel returns the per-channel sample packing (1 for
// grayscale channels, 3 for RGB).
func (s *Store) ChannelSamplesPerPixel(i, c int) int {
	ch, err := s.channel(i, c)
	if err != nil || ch.SamplesPerPixel == nil {
		return 1
	}
	return *ch.SamplesPerPixel
}

// ChannelName returns the name of a channel.
func (s *Store) ChannelName(i, c int) (string, error) {
	ch, err := s.channel(i, c)
	if err != nil {
		return "", err
	}
	if ch.Name == "" {
		return "", fmt.Errorf("channel %d/%d has no name", i, c)
	}
	return ch.Name, nil
}

// SetChannelName stores the name of a channel.
func (s *Store) SetChannelName(name string, i, c int) error {
	ch, err := s.channel(i, c)
	if err != nil {
		return err
	}
	ch.Name = name
	return nil
}

// ChannelAcquisitionMode returns the acquisition mode of a channel.
func (s *Store) ChannelAcquisitionMode(i, c int) (string, error) {
	ch, err := s.channel(i, c)
	if err != nil {
		return "", err
	}
	if ch.AcquisitionMode == "" {
		return "", fmt.Errorf("channel %d/%d has no acquisition mode", i, c)
	}
	return ch.AcquisitionMode, nil
}

// SetChannelAcquisitionMode stores the acquisition mode of a channel.
func (s *Store) SetChannelAcquisitionMode(mode string, i, c int) error {
	ch, err := s.channel(i, c)
	if err != nil {
		return err
	}
	ch.AcquisitionMode = mode
	return nil
}

// ChannelExcitationWavelength returns the excitation wavelength of a channel.
func (s *Store) ChannelExcitationWavelength(i, c int) (Length, error) {
	ch, err := s.channel(i, c)
	if err != nil {
		return Length{}, err
	}
	return lengthAttr(ch.ExcitationWavelength, ch.ExcitationWavelengthUnit, "ExcitationWavelength")
}

// SetChannelExcitationWavelength stores the excitation wavelength of a channel.
func (s *Store) SetChannelExcitationWavelength(l Length, i, c int) error {
	ch, err := s.channel(i, c)
	if err != nil {
		return err
	}
	v := l.Value
	ch.ExcitationWavelength, ch.ExcitationWavelengthUnit = &v, l.Unit
	return nil
}

// ChannelEmissionWavelength returns the emission wavelength of a channel.
func (s *Store) ChannelEmissionWavelength(i, c int) (Length, error) {
	ch, err := s.channel(i, c)
	if err != nil {
		return Length{}, err
	}
	return lengthAttr(ch.EmissionWavelength, ch.EmissionWavelengthUnit, "EmissionWavelength")
}

// SetChannelEmissionWavelength stores the emission wavelength of a channel.
func (s *Store) SetChannelEmissionWavelength(l Length, i, c int) error {
	ch, err := s.channel(i, c)
	if err != nil {
		return err
	}
	v := l.Value
	ch.EmissionWavelength, ch.EmissionWavelengthUnit = &v, l.Unit
	return nil
}

// ChannelPinholeSize returns the pinhole size of a channel.
func (s *Store) ChannelPinholeSize(i, c int) (Length, error) {
	ch, err := s.channel(i, c)
	if err != nil {
		return Length{}, err
	}
	return lengthAttr(ch.PinholeSize, ch.PinholeSizeUnit, "PinholeSize")
}

// SetChannelPinholeSize stores the pinhole size of a channel.
func (s *Store) SetChannelPinholeSize(l Length, i, c int) error {
	ch, err := s.channel(i, c)
	if err != nil {
		return err
	}
	v := l.Value
	ch.PinholeSize, ch.PinholeSizeUnit = &v, l.Unit
	return nil
}
