//go:build govips && cgo

package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/pixeldesk/pixeldesk/internal/domain"
)

type govipsEncoder struct{}

// Encode round-trips through a lossless PNG buffer into libvips and exports
// from there, so the vips codecs control the final bytes for every format.
func (govipsEncoder) Encode(ctx context.Context, img image.Image, format domain.OutputFormat) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("stage raster for vips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load raster into vips: %w", err)
	}
	defer ref.Close()

	switch format {
	case domain.FormatPNG:
		data, _, err := ref.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = defaultQuality
		data, _, err := ref.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatWEBP:
		params := vips.NewWebpExportParams()
		params.Quality = defaultQuality
		data, _, err := ref.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
