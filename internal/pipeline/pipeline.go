// Package pipeline applies the fixed-order adjustment chain to a decoded
// working image. Steps run in a set sequence regardless of how the request
// orders its fields, and steps left at their identity values are skipped
// entirely so an untouched image passes through bit-identical.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/pixeldesk/pixeldesk/internal/decoder"
	"github.com/pixeldesk/pixeldesk/internal/domain"
)

// Result is the transformed image plus the display metadata that changes
// alongside it.
type Result struct {
	Image  image.Image
	Mode   string
	Width  int
	Height int
}

// state threads the working image and its color mode through the step chain.
// Orientation rides along so the transpose step can consume it.
type state struct {
	img         image.Image
	mode        string
	orientation int
}

type step struct {
	name    string
	enabled func(p domain.AdjustmentParams) bool
	apply   func(s *state, p domain.AdjustmentParams)
}

// steps is the canonical ordering. Geometry first, then tonal adjustments,
// then filters, with the orientation fix-up last.
var steps = []step{
	{"rotate", func(p domain.AdjustmentParams) bool { return p.RotateDegrees != 0 }, applyRotate},
	{"scale", func(p domain.AdjustmentParams) bool { return p.ScalePercent != 100 }, applyScale},
	{"brightness", func(p domain.AdjustmentParams) bool { return p.Brightness != 1.0 }, applyBrightness},
	{"contrast", func(p domain.AdjustmentParams) bool { return p.Contrast != 1.0 }, applyContrast},
	{"sharpness", func(p domain.AdjustmentParams) bool { return p.Sharpness != 1.0 }, applySharpness},
	{"saturation", func(p domain.AdjustmentParams) bool { return p.Saturation != 1.0 }, applySaturation},
	{"blur", func(p domain.AdjustmentParams) bool { return p.Blur }, applyBlur},
	{"edge_detect", func(p domain.AdjustmentParams) bool { return p.EdgeDetect }, applyEdgeDetect},
	{"invert", func(p domain.AdjustmentParams) bool { return p.Invert }, applyInvert},
	{"grayscale", func(p domain.AdjustmentParams) bool { return p.Grayscale }, applyGrayscale},
	{"posterize", func(p domain.AdjustmentParams) bool { return p.Posterize }, applyPosterize},
	{"solarize", func(p domain.AdjustmentParams) bool { return p.Solarize }, applySolarize},
	{"exif_transpose", func(p domain.AdjustmentParams) bool { return p.ExifTranspose }, applyExifTranspose},
}

// Apply runs the adjustment chain over a decoded image. The input is never
// mutated; when every step is at identity the original raster is returned
// as-is.
func Apply(ctx context.Context, d *decoder.Decoded, p domain.AdjustmentParams) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("validate adjustments: %w", err)
	}

	s := &state{
		img:         d.Image,
		mode:        d.Mode,
		orientation: d.Orientation,
	}

	for _, st := range steps {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		if !st.enabled(p) {
			continue
		}
		st.apply(s, p)
	}

	return Result{
		Image:  s.img,
		Mode:   s.mode,
		Width:  s.img.Bounds().Dx(),
		Height: s.img.Bounds().Dy(),
	}, nil
}

// applyRotate turns counter-clockwise and grows the canvas to hold the full
// rotated frame. Corners fill transparent when the mode carries alpha,
// opaque black otherwise.
func applyRotate(s *state, p domain.AdjustmentParams) {
	fill := color.NRGBA{0, 0, 0, 255}
	if s.mode == "RGBA" {
		fill = color.NRGBA{0, 0, 0, 0}
	}
	s.img = imaging.Rotate(s.img, float64(p.RotateDegrees), fill)
}

func applyScale(s *state, p domain.AdjustmentParams) {
	b := s.img.Bounds()
	w := scaleDim(b.Dx(), p.ScalePercent)
	h := scaleDim(b.Dy(), p.ScalePercent)
	s.img = imaging.Resize(s.img, w, h, imaging.Lanczos)
}

func scaleDim(dim, percent int) int {
	scaled := int(math.Round(float64(dim) * float64(percent) / 100))
	if scaled < 1 {
		return 1
	}
	return scaled
}

// applyExifTranspose undoes camera orientation so the pixels match how the
// photo was shot. Values follow the TIFF orientation table; 1 and anything
// unrecognized are no-ops.
func applyExifTranspose(s *state, _ domain.AdjustmentParams) {
	switch s.orientation {
	case 2:
		s.img = imaging.FlipH(s.img)
	case 3:
		s.img = imaging.Rotate180(s.img)
	case 4:
		s.img = imaging.FlipV(s.img)
	case 5:
		s.img = imaging.Transpose(s.img)
	case 6:
		s.img = imaging.Rotate270(s.img)
	case 7:
		s.img = imaging.Transverse(s.img)
	case 8:
		s.img = imaging.Rotate90(s.img)
	}
	s.orientation = 1
}
