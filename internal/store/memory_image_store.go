package store

import (
	"context"
	"errors"
	"sync"

	"github.com/pixeldesk/pixeldesk/internal/domain"
)

var ErrImageNotFound = errors.New("image not found")

type MemoryImageStore struct {
	mu     sync.RWMutex
	images map[string]domain.SourceImage
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{
		images: make(map[string]domain.SourceImage),
	}
}

func (s *MemoryImageStore) Put(ctx context.Context, img domain.SourceImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.ID] = img
	return nil
}

func (s *MemoryImageStore) Get(ctx context.Context, id string) (domain.SourceImage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	return img, ok, nil
}
