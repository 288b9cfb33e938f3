package pipeline

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/pixeldesk/pixeldesk/internal/decoder"
	"github.com/pixeldesk/pixeldesk/internal/domain"
)

func decodedFixture(t *testing.T, w, h int) *decoder.Decoded {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(40 + (x*13)%200),
				G: uint8(60 + (y*17)%180),
				B: uint8((x + y) % 255),
				A: 255,
			})
		}
	}
	return &decoder.Decoded{Image: img, Mode: "RGB", Format: "png"}
}

func flatFixture(w, h int, c color.NRGBA) *decoder.Decoded {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return &decoder.Decoded{Image: img, Mode: "RGB", Format: "png"}
}

func mustApply(t *testing.T, d *decoder.Decoded, p domain.AdjustmentParams) Result {
	t.Helper()
	res, err := Apply(context.Background(), d, p)
	if err != nil {
		t.Fatalf("apply pipeline: %v", err)
	}
	return res
}

func TestApplyIdentityPassesThrough(t *testing.T) {
	d := decodedFixture(t, 16, 12)
	res := mustApply(t, d, domain.DefaultParams())

	if res.Image != d.Image {
		t.Fatal("expected the untouched raster back when every step is at identity")
	}
	if res.Mode != "RGB" || res.Width != 16 || res.Height != 12 {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
}

func TestApplyRejectsInvalidParams(t *testing.T) {
	p := domain.DefaultParams()
	p.Brightness = -1
	if _, err := Apply(context.Background(), decodedFixture(t, 4, 4), p); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRotateQuarterTurnsSwapDimensions(t *testing.T) {
	for _, deg := range []int{90, 270} {
		p := domain.DefaultParams()
		p.RotateDegrees = deg
		res := mustApply(t, decodedFixture(t, 20, 10), p)
		if res.Width != 10 || res.Height != 20 {
			t.Fatalf("rotate %d: got %dx%d, want 10x20", deg, res.Width, res.Height)
		}
	}

	p := domain.DefaultParams()
	p.RotateDegrees = 180
	res := mustApply(t, decodedFixture(t, 20, 10), p)
	if res.Width != 20 || res.Height != 10 {
		t.Fatalf("rotate 180: got %dx%d, want 20x10", res.Width, res.Height)
	}
}

func TestRotateDiagonalGrowsCanvas(t *testing.T) {
	p := domain.DefaultParams()
	p.RotateDegrees = 45
	res := mustApply(t, decodedFixture(t, 20, 10), p)
	if res.Width <= 20 || res.Height <= 10 {
		t.Fatalf("expected expanded canvas, got %dx%d", res.Width, res.Height)
	}
}

func TestScaleRoundsDimensions(t *testing.T) {
	cases := []struct {
		w, h, percent  int
		wantW, wantH   int
	}{
		{10, 10, 33, 3, 3},
		{9, 9, 50, 5, 5},
		{20, 10, 200, 40, 20},
		{3, 3, 1, 1, 1},
	}
	for _, tc := range cases {
		p := domain.DefaultParams()
		p.ScalePercent = tc.percent
		res := mustApply(t, decodedFixture(t, tc.w, tc.h), p)
		if res.Width != tc.wantW || res.Height != tc.wantH {
			t.Errorf("scale %d%% of %dx%d: got %dx%d, want %dx%d",
				tc.percent, tc.w, tc.h, res.Width, res.Height, tc.wantW, tc.wantH)
		}
	}
}

func TestBrightnessZeroYieldsBlack(t *testing.T) {
	p := domain.DefaultParams()
	p.Brightness = 0
	res := mustApply(t, flatFixture(6, 6, color.NRGBA{200, 120, 40, 255}), p)

	got := color.NRGBAModel.Convert(res.Image.At(3, 3)).(color.NRGBA)
	if got.R != 0 || got.G != 0 || got.B != 0 {
		t.Fatalf("expected black, got %v", got)
	}
	if got.A != 255 {
		t.Fatalf("alpha must survive brightness, got %d", got.A)
	}
}

func TestContrastZeroYieldsMeanGray(t *testing.T) {
	// Half the image at 100, half at 200. Mean luminance is 150 for every
	// channel since the fixture is achromatic.
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		img.SetNRGBA(x, 0, color.NRGBA{100, 100, 100, 255})
		img.SetNRGBA(x, 1, color.NRGBA{200, 200, 200, 255})
	}
	d := &decoder.Decoded{Image: img, Mode: "RGB", Format: "png"}

	p := domain.DefaultParams()
	p.Contrast = 0
	res := mustApply(t, d, p)

	for _, pt := range []image.Point{{0, 0}, {3, 1}} {
		got := color.NRGBAModel.Convert(res.Image.At(pt.X, pt.Y)).(color.NRGBA)
		if got.R != 150 || got.G != 150 || got.B != 150 {
			t.Fatalf("pixel %v: expected uniform gray 150, got %v", pt, got)
		}
	}
}

func TestSaturationZeroEqualsGrayValue(t *testing.T) {
	p := domain.DefaultParams()
	p.Saturation = 0
	res := mustApply(t, flatFixture(4, 4, color.NRGBA{250, 10, 10, 255}), p)

	// L = (299*250 + 587*10 + 114*10) / 1000 = 81.76 -> 82.
	got := color.NRGBAModel.Convert(res.Image.At(1, 1)).(color.NRGBA)
	if got.R != 82 || got.G != 82 || got.B != 82 {
		t.Fatalf("expected gray 82, got %v", got)
	}
}

func TestInvertTwiceRestores(t *testing.T) {
	src := flatFixture(5, 5, color.NRGBA{10, 200, 77, 255})

	p := domain.DefaultParams()
	p.Invert = true
	once := mustApply(t, src, p)
	twice := mustApply(t, &decoder.Decoded{Image: once.Image, Mode: once.Mode}, p)

	got := color.NRGBAModel.Convert(twice.Image.At(2, 2)).(color.NRGBA)
	if got.R != 10 || got.G != 200 || got.B != 77 {
		t.Fatalf("expected original color back, got %v", got)
	}
}

func TestInvertFlattensAlpha(t *testing.T) {
	d := flatFixture(4, 4, color.NRGBA{0, 0, 0, 0})
	d.Mode = "RGBA"

	p := domain.DefaultParams()
	p.Invert = true
	res := mustApply(t, d, p)

	if res.Mode != "RGB" {
		t.Fatalf("expected mode RGB after invert, got %q", res.Mode)
	}
	got := color.NRGBAModel.Convert(res.Image.At(0, 0)).(color.NRGBA)
	if got.R != 255 || got.A != 255 {
		t.Fatalf("expected opaque white from inverted black, got %v", got)
	}
}

func TestInvertGraySourceReportsRGB(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range gray.Pix {
		gray.Pix[i] = 100
	}
	d := &decoder.Decoded{Image: gray, Mode: "L", Format: "png"}

	p := domain.DefaultParams()
	p.Invert = true
	res := mustApply(t, d, p)

	if res.Mode != "RGB" {
		t.Fatalf("invert must report 3-channel RGB for a gray source, got %q", res.Mode)
	}
	got := color.NRGBAModel.Convert(res.Image.At(2, 2)).(color.NRGBA)
	if got.R != 155 || got.G != 155 || got.B != 155 || got.A != 255 {
		t.Fatalf("expected inverted gray (155,155,155,255), got %v", got)
	}
}

func TestGrayscaleReportsSingleChannel(t *testing.T) {
	p := domain.DefaultParams()
	p.Grayscale = true
	res := mustApply(t, decodedFixture(t, 10, 8), p)

	if res.Mode != "L" {
		t.Fatalf("expected mode L, got %q", res.Mode)
	}
	if _, ok := res.Image.(*image.Gray); !ok {
		t.Fatalf("expected *image.Gray, got %T", res.Image)
	}
	if res.Width != 10 || res.Height != 8 {
		t.Fatalf("grayscale must not resize, got %dx%d", res.Width, res.Height)
	}
}

func TestPosterizeKeepsHighBits(t *testing.T) {
	p := domain.DefaultParams()
	p.Posterize = true
	p.PosterizeBits = 1
	res := mustApply(t, flatFixture(3, 3, color.NRGBA{200, 100, 50, 255}), p)

	got := color.NRGBAModel.Convert(res.Image.At(1, 1)).(color.NRGBA)
	if got.R != 128 || got.G != 0 || got.B != 0 {
		t.Fatalf("expected (128,0,0), got %v", got)
	}
}

func TestSolarizeFlipsAboveThreshold(t *testing.T) {
	p := domain.DefaultParams()
	p.Solarize = true
	p.SolarizeThreshold = 128
	res := mustApply(t, flatFixture(3, 3, color.NRGBA{200, 100, 128, 255}), p)

	got := color.NRGBAModel.Convert(res.Image.At(1, 1)).(color.NRGBA)
	if got.R != 55 || got.G != 100 || got.B != 127 {
		t.Fatalf("expected (55,100,127), got %v", got)
	}
}

func TestEdgeDetectFlatRegionGoesBlack(t *testing.T) {
	p := domain.DefaultParams()
	p.EdgeDetect = true
	res := mustApply(t, flatFixture(8, 8, color.NRGBA{120, 120, 120, 255}), p)

	got := color.NRGBAModel.Convert(res.Image.At(4, 4)).(color.NRGBA)
	if got.R != 0 || got.G != 0 || got.B != 0 {
		t.Fatalf("expected black interior, got %v", got)
	}
}

func TestBlurKeepsDimensions(t *testing.T) {
	p := domain.DefaultParams()
	p.Blur = true
	p.BlurRadius = 3
	d := decodedFixture(t, 12, 9)
	res := mustApply(t, d, p)

	if res.Width != 12 || res.Height != 9 {
		t.Fatalf("blur must not resize, got %dx%d", res.Width, res.Height)
	}
	if res.Image == d.Image {
		t.Fatal("expected blur to produce a new raster")
	}
}

func TestExifTransposeRightTop(t *testing.T) {
	d := decodedFixture(t, 30, 10)
	d.Orientation = 6

	res := mustApply(t, d, domain.DefaultParams())
	if res.Width != 10 || res.Height != 30 {
		t.Fatalf("orientation 6 must swap dimensions, got %dx%d", res.Width, res.Height)
	}
}

func TestExifTransposeDisabled(t *testing.T) {
	d := decodedFixture(t, 30, 10)
	d.Orientation = 6

	p := domain.DefaultParams()
	p.ExifTranspose = false
	res := mustApply(t, d, p)
	if res.Width != 30 || res.Height != 10 {
		t.Fatalf("disabled transpose must keep dimensions, got %dx%d", res.Width, res.Height)
	}
}
