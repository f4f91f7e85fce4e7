// Package format wraps TIFF container access for multidimensional microscopy
// stacks. It parses classic and BigTIFF files, decodes individual image
// planes into tagged pixel buffers, exposes the embedded OME-XML metadata as
// a queryable store, and writes OME-TIFF output.
//
// The package deliberately knows nothing about channel-interleaving policy or
// display conversion; those decisions live in the root package.
package format

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
)

// TIFF compression codecs understood by this package.
const (
	compressionNone         = 1
	compressionLZW          = 5
	compressionAdobeDeflate = 8
	compressionDeflate      = 32946
)

// TIFF SampleFormat values.
const (
	sampleFormatUInt          = 1
	sampleFormatInt           = 2
	sampleFormatIEEEFP        = 3
	sampleFormatVoid          = 4
	sampleFormatComplexInt    = 5
	sampleFormatComplexIEEEFP = 6
)

// CompressionName maps the named codecs accepted by the writer to TIFF
// compression tags. "AdobeDeflate" is preferred over the legacy "Deflate"
// tag; both are the same zlib stream.
func CompressionName(name string) (uint16, error) {
	switch name {
	case "AdobeDeflate":
		return compressionAdobeDeflate, nil
	case "Deflate":
		return compressionDeflate, nil
	case "None":
		return compressionNone, nil
	}
	return 0, fmt.Errorf("unknown compression codec %q", name)
}

// IsOMEPath reports whether a filename names a native OME-TIFF. Detection is
// by extension only: `.ome.tiff` or `.ome.tif`, case-insensitive.
func IsOMEPath(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".ome.tiff") || strings.HasSuffix(p, ".ome.tif")
}

// OpenFile opens a TIFF or OME-TIFF stack from disk. The returned reader owns
// the file handle.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := OpenReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.src = f
	r.fileSize = st.Size()
	return r, nil
}

// OpenReader parses a stack from an already-open source. The path is used
// only for format detection and diagnostics.
func OpenReader(src tiff.ReadAtReadSeeker, path string) (*Reader, error) {
	tif, err := tiff.Parse(src, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("parse tiff: %w", err)
	}
	return newReader(tif, path)
}
