// Package imagemeta reads and rewrites the EXIF metadata carried alongside
// pixel data: parsing for display, in-place tag patching for the HEIC
// normalization heuristic, and moving raw blobs between container formats
// (HEIF item <-> JPEG APP1 segment).
package imagemeta

import (
	"bytes"
	"fmt"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// DateTimeLayout is the EXIF timestamp pattern (YYYY:MM:DD HH:MM:SS).
const DateTimeLayout = "2006:01:02 15:04:05"

// OrientationNone is the EXIF orientation value meaning "no transform".
const OrientationNone = 1

// EXIF holds one parsed metadata block. Raw is the TIFF-ordered blob without
// the "Exif\x00\x00" prefix; Tags is the flattened display table.
type EXIF struct {
	Raw         []byte
	Tags        map[string]string
	DateTime    string
	Orientation int
}

type tagCollector struct {
	tags map[string]string
}

func (c tagCollector) Walk(name goexif.FieldName, tag *tiff.Tag) error {
	c.tags[string(name)] = strings.Trim(tag.String(), `"`)
	return nil
}

// Parse decodes a raw TIFF-ordered EXIF blob into a display table plus the
// fields the pipeline cares about (orientation, timestamp).
func Parse(raw []byte) (*EXIF, error) {
	x, err := goexif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode exif block: %w", err)
	}

	meta := &EXIF{
		Raw:  raw,
		Tags: make(map[string]string),
	}
	if err := x.Walk(tagCollector{tags: meta.Tags}); err != nil {
		return nil, fmt.Errorf("walk exif tags: %w", err)
	}

	if tag, err := x.Get(goexif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			meta.Orientation = v
		}
	}
	if tag, err := x.Get(goexif.DateTime); err == nil {
		if s, err := tag.StringVal(); err == nil {
			meta.DateTime = s
		}
	}
	return meta, nil
}

// XResolutionDPI returns the horizontal resolution in dots per inch, or 0 when
// the blob carries none. A centimeter ResolutionUnit is converted.
func (e *EXIF) XResolutionDPI() float64 {
	x, err := goexif.Decode(bytes.NewReader(e.Raw))
	if err != nil {
		return 0
	}
	tag, err := x.Get(goexif.XResolution)
	if err != nil {
		return 0
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0
	}
	dpi := float64(num) / float64(den)

	if unitTag, err := x.Get(goexif.ResolutionUnit); err == nil {
		if unit, err := unitTag.Int(0); err == nil && unit == 3 {
			dpi *= 2.54
		}
	}
	return dpi
}
