package store

import (
	"context"

	"github.com/pixeldesk/pixeldesk/internal/domain"
)

// ImageStore holds uploaded source images keyed by their content id.
type ImageStore interface {
	Put(ctx context.Context, img domain.SourceImage) error
	Get(ctx context.Context, id string) (domain.SourceImage, bool, error)
}
