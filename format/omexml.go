package format

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// OME-XML namespace written into synthesized documents.
const omeNamespace = "http://www.openmicroscopy.org/Schemas/OME/2016-06"

// Length unit names used by OME-XML for the fields this package touches.
const (
	UnitNanometer  = "nm"
	UnitMicrometer = "µm"
	UnitMillimeter = "mm"
	UnitMeter      = "m"
)

// A Length is a physical length with an explicit unit, as stored in OME-XML
// attributes such as PhysicalSizeX or ExcitationWavelength.
type Length struct {
	Value float64
	Unit  string
}

// Nanometers converts the length to nanometers. Unknown units are treated as
// nanometers, matching how unitless legacy files are read.
func (l Length) Nanometers() float64 {
	switch l.Unit {
	case UnitMicrometer, "um":
		return l.Value * 1000.0
	case UnitMillimeter:
		return l.Value * 1e6
	case UnitMeter:
		return l.Value * 1e9
	default:
		return l.Value
	}
}

// OME is the document root of an OME-XML metadata block. Only the subtree
// relevant to single-series microscopy stacks is modelled; unknown elements
// are dropped on re-serialization.
type OME struct {
	XMLName     xml.Name     `xml:"OME"`
	Xmlns       string       `xml:"xmlns,attr,omitempty"`
	Creator     string       `xml:"Creator,attr,omitempty"`
	UUID        string       `xml:"UUID,attr,omitempty"`
	Instruments []Instrument `xml:"Instrument"`
	Images      []ImageMeta  `xml:"Image"`
}

// Instrument groups the optical hardware descriptions of a file.
type Instrument struct {
	ID         string      `xml:"ID,attr"`
	Objectives []Objective `xml:"Objective"`
}

// Objective describes one objective lens of an instrument.
type Objective struct {
	ID        string   `xml:"ID,attr"`
	Model     string   `xml:"Model,attr,omitempty"`
	LensNA    *float64 `xml:"LensNA,attr"`
	Immersion string   `xml:"Immersion,attr,omitempty"`
}

// ObjectiveSettings links an image to an objective and records the
// acquisition-time optical parameters.
type ObjectiveSettings struct {
	ID              string   `xml:"ID,attr"`
	Medium          string   `xml:"Medium,attr,omitempty"`
	RefractiveIndex *float64 `xml:"RefractiveIndex,attr"`
}

// ImageMeta is one Image element: a single series of the file.
type ImageMeta struct {
	ID                string             `xml:"ID,attr"`
	Name              string             `xml:"Name,attr,omitempty"`
	AcquisitionDate   string             `xml:"AcquisitionDate,omitempty"`
	Description       string             `xml:"Description,omitempty"`
	ObjectiveSettings *ObjectiveSettings `xml:"ObjectiveSettings"`
	Pixels            Pixels             `xml:"Pixels"`
}

// Pixels carries the dimensional layout of a series.
type Pixels struct {
	ID                string     `xml:"ID,attr"`
	DimensionOrder    string     `xml:"DimensionOrder,attr"`
	Type              string     `xml:"Type,attr"`
	SizeX             int        `xml:"SizeX,attr"`
	SizeY             int        `xml:"SizeY,attr"`
	SizeZ             int        `xml:"SizeZ,attr"`
	SizeC             int        `xml:"SizeC,attr"`
	SizeT             int        `xml:"SizeT,attr"`
	Interleaved       *bool      `xml:"Interleaved,attr"`
	PhysicalSizeX     *float64   `xml:"PhysicalSizeX,attr"`
	PhysicalSizeXUnit string     `xml:"PhysicalSizeXUnit,attr,omitempty"`
	PhysicalSizeY     *float64   `xml:"PhysicalSizeY,attr"`
	PhysicalSizeYUnit string     `xml:"PhysicalSizeYUnit,attr,omitempty"`
	PhysicalSizeZ     *float64   `xml:"PhysicalSizeZ,attr"`
	PhysicalSizeZUnit string     `xml:"PhysicalSizeZUnit,attr,omitempty"`
	Channels          []Channel  `xml:"Channel"`
	TiffData          []TiffData `xml:"TiffData"`
}

// Channel describes one logical channel of a series.
type Channel struct {
	ID                       string   `xml:"ID,attr"`
	Name                     string   `xml:"Name,attr,omitempty"`
	SamplesPerPixel          *int     `xml:"SamplesPerPixel,attr"`
	AcquisitionMode          string   `xml:"AcquisitionMode,attr,omitempty"`
	ExcitationWavelength     *float64 `xml:"ExcitationWavelength,attr"`
	ExcitationWavelengthUnit string   `xml:"ExcitationWavelengthUnit,attr,omitempty"`
	EmissionWavelength       *float64 `xml:"EmissionWavelength,attr"`
	EmissionWavelengthUnit   string   `xml:"EmissionWavelengthUnit,attr,omitempty"`
	PinholeSize              *float64 `xml:"PinholeSize,attr"`
	PinholeSizeUnit          string   `xml:"PinholeSizeUnit,attr,omitempty"`
}

// TiffData maps a run of planes onto IFDs of the containing TIFF.
type TiffData struct {
	IFD        *int `xml:"IFD,attr"`
	FirstZ     *int `xml:"FirstZ,attr"`
	FirstC     *int `xml:"FirstC,attr"`
	FirstT     *int `xml:"FirstT,attr"`
	PlaneCount *int `xml:"PlaneCount,attr"`
}

// ParseOMEXML parses the OME-XML document found in a TIFF ImageDescription.
func ParseOMEXML(s string) (*OME, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty metadata block")
	}
	var doc OME
	if err := xml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, fmt.Errorf("parse ome-xml: %w", err)
	}
	if len(doc.Images) == 0 {
		return nil, fmt.Errorf("ome-xml has no Image element")
	}
	return &doc, nil
}

// MarshalOMEXML serializes the document, including the XML declaration
// expected at the start of an OME-TIFF ImageDescription.
func MarshalOMEXML(doc *OME) (string, error) {
	if doc.Xmlns == "" {
		doc.Xmlns = omeNamespace
	}
	raw, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal ome-xml: %w", err)
	}
	return xml.Header + string(raw), nil
}
