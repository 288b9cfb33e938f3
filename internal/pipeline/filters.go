package pipeline

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/pixeldesk/pixeldesk/internal/domain"
)

// edgeKernel is a Laplacian-style high-pass whose weights sum to zero, so
// flat regions go black and boundaries light up.
var edgeKernel = [9]float64{
	-1, -1, -1,
	-1, 8, -1,
	-1, -1, -1,
}

func applyBlur(s *state, p domain.AdjustmentParams) {
	s.img = imaging.Blur(s.img, p.BlurRadius)
}

func applyEdgeDetect(s *state, _ domain.AdjustmentParams) {
	s.img = imaging.Convolve3x3(s.img, edgeKernel, nil)
}

// applyInvert forces 3-channel RGB before negation, whatever the current
// mode. Inverting a transparency channel turns clear corners solid, and a
// single-channel or paletted source comes out of the negation as full RGB.
func applyInvert(s *state, _ domain.AdjustmentParams) {
	if s.mode != "RGB" {
		s.img = imaging.AdjustFunc(s.img, func(c color.NRGBA) color.NRGBA {
			c.A = 255
			return c
		})
		s.mode = "RGB"
	}
	s.img = imaging.Invert(s.img)
}

// applyGrayscale collapses to a single luminance channel and flips the
// reported color mode to L.
func applyGrayscale(s *state, _ domain.AdjustmentParams) {
	src := imaging.Clone(s.img)
	bounds := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			gray.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: clampByte(luminance(c.R, c.G, c.B))})
		}
	}
	s.img = gray
	s.mode = "L"
}

// applyPosterize keeps only the top bits of each channel.
func applyPosterize(s *state, p domain.AdjustmentParams) {
	mask := uint8(0xff << (8 - p.PosterizeBits))
	s.img = imaging.AdjustFunc(s.img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: c.R & mask, G: c.G & mask, B: c.B & mask, A: c.A}
	})
}

// applySolarize negates every channel value at or above the threshold.
func applySolarize(s *state, p domain.AdjustmentParams) {
	threshold := uint8(p.SolarizeThreshold)
	flip := func(v uint8) uint8 {
		if v >= threshold {
			return 255 - v
		}
		return v
	}
	s.img = imaging.AdjustFunc(s.img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: flip(c.R), G: flip(c.G), B: flip(c.B), A: c.A}
	})
}
