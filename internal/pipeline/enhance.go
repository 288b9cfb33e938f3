package pipeline

import (
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/pixeldesk/pixeldesk/internal/domain"
)

// The tonal enhancers share one shape: build a degenerate image for the
// adjustment, then interpolate between it and the original. A factor of 1.0
// is the identity, 0.0 is the full degenerate, and factors above 1.0
// extrapolate past the original with clamping.

// smoothKernel is a mild 3x3 low-pass used as the sharpness degenerate.
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

func luminance(r, g, b uint8) float64 {
	return (299*float64(r) + 587*float64(g) + 114*float64(b)) / 1000
}

func clampByte(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}

func lerpByte(degenerate, original uint8, factor float64) uint8 {
	return clampByte(float64(degenerate) + (float64(original)-float64(degenerate))*factor)
}

// applyBrightness interpolates toward a black degenerate. Alpha is carried
// through untouched.
func applyBrightness(s *state, p domain.AdjustmentParams) {
	f := p.Brightness
	s.img = imaging.AdjustFunc(s.img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: lerpByte(0, c.R, f),
			G: lerpByte(0, c.G, f),
			B: lerpByte(0, c.B, f),
			A: c.A,
		}
	})
}

// applyContrast interpolates toward a flat gray at the image's mean
// luminance, so the overall exposure holds while the spread changes.
func applyContrast(s *state, p domain.AdjustmentParams) {
	src := imaging.Clone(s.img)
	bounds := src.Bounds()
	total := 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			total += luminance(c.R, c.G, c.B)
		}
	}
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return
	}
	mean := uint8(total/float64(pixels) + 0.5)

	f := p.Contrast
	s.img = imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: lerpByte(mean, c.R, f),
			G: lerpByte(mean, c.G, f),
			B: lerpByte(mean, c.B, f),
			A: c.A,
		}
	})
}

// applySaturation interpolates toward each pixel's own gray value.
func applySaturation(s *state, p domain.AdjustmentParams) {
	f := p.Saturation
	s.img = imaging.AdjustFunc(s.img, func(c color.NRGBA) color.NRGBA {
		gray := clampByte(luminance(c.R, c.G, c.B))
		return color.NRGBA{
			R: lerpByte(gray, c.R, f),
			G: lerpByte(gray, c.G, f),
			B: lerpByte(gray, c.B, f),
			A: c.A,
		}
	})
}

// applySharpness interpolates between a smoothed copy and the original, so
// factors above 1.0 sharpen and factors below soften.
func applySharpness(s *state, p domain.AdjustmentParams) {
	original := imaging.Clone(s.img)
	smooth := imaging.Convolve3x3(original, smoothKernel, &imaging.ConvolveOptions{Normalize: true})

	f := p.Sharpness
	out := imaging.Clone(smooth)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		out.Pix[i] = lerpByte(smooth.Pix[i], original.Pix[i], f)
		out.Pix[i+1] = lerpByte(smooth.Pix[i+1], original.Pix[i+1], f)
		out.Pix[i+2] = lerpByte(smooth.Pix[i+2], original.Pix[i+2], f)
		out.Pix[i+3] = original.Pix[i+3]
	}
	s.img = out
}
