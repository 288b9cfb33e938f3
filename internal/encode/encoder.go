// Package encode serializes a finished raster to one of the supported output
// formats. The default build uses pure-Go codecs; building with the govips
// tag swaps in libvips for faster, higher-quality exports.
package encode

import (
	"context"
	"image"

	"github.com/pixeldesk/pixeldesk/internal/domain"
)

const defaultQuality = 80

type Encoder interface {
	Encode(ctx context.Context, img image.Image, format domain.OutputFormat) ([]byte, error)
}

func New() (Encoder, error) {
	return newEncoder()
}
