// Package decoder turns raw upload bytes into an in-memory working image.
// Standard raster formats go through the registered stdlib decoders; HEIC and
// HEIF go through a dedicated codec path that also normalizes embedded EXIF
// and re-encodes to an intermediate in-memory JPEG.
package decoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/pixeldesk/pixeldesk/internal/domain"
	"github.com/pixeldesk/pixeldesk/internal/imagemeta"
)

// Decoded is the working image for one render cycle plus everything the
// presentation layer derives from it. Treated as immutable once built; the
// pipeline clones before transforming.
type Decoded struct {
	Image       image.Image
	Mode        string
	Format      string
	DPI         float64
	Orientation int
	EXIF        *imagemeta.EXIF
	Warnings    []string
}

func (d *Decoded) Width() int  { return d.Image.Bounds().Dx() }
func (d *Decoded) Height() int { return d.Image.Bounds().Dy() }

// Decode produces a working image from an upload payload. ext is the declared
// (already validated) file extension and selects the HEIC codec path. A
// returned error means no image; EXIF-level problems degrade to Warnings.
func Decode(ctx context.Context, data []byte, ext string) (*Decoded, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if domain.IsHEIC(ext) {
		return decodeHEIC(data)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", ext, err)
	}

	d := &Decoded{
		Image:  img,
		Mode:   colorMode(img),
		Format: format,
	}
	d.attachExif(data)
	d.DPI = imagemeta.DPI(data, d.EXIF)
	return d, nil
}

// attachExif pulls the EXIF block out of a JPEG payload when one exists.
// Parse failures are non-fatal: the image proceeds without metadata.
func (d *Decoded) attachExif(data []byte) {
	raw, ok := imagemeta.ExifFromJPEG(data)
	if !ok {
		return
	}
	meta, err := imagemeta.Parse(raw)
	if err != nil {
		d.Warnings = append(d.Warnings, fmt.Sprintf("error parsing EXIF metadata: %v", err))
		return
	}
	d.EXIF = meta
	d.Orientation = meta.Orientation
}

func colorMode(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	case *image.YCbCr:
		return "RGB"
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return "RGBA"
	default:
		return "RGB"
	}
}
