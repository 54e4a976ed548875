// Package blob stores uploaded images and serves them back by id.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const (
	MaxDimension  = 800
	JpegQuality   = 75
	MaxUploadSize = 10 << 20
	// MaxPixels bounds the decoded size of an upload, about 40 megapixels.
	MaxPixels     = 40_000_000
)

var (
	ErrNotFound      = errors.New("blob not found")
	ErrImageTooLarge = errors.New("image dimensions too large")
)

type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

// URL is the durable address the API serves blob id from.
func URL(baseURL, id string) string {
	return strings.TrimSuffix(baseURL, "/") + "/api/blobs/" + id
}

// Compress scales an image so its longer side is at most 800 pixels and
// re-encodes it as a quality 75 JPEG. Images over MaxPixels are rejected
// from their header, before any pixel is decoded.
func Compress(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy())

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func scaledSize(w, h int) (int, int) {
	if w <= MaxDimension && h <= MaxDimension {
		return w, h
	}

	if w >= h {
		return MaxDimension, max(1, h*MaxDimension/w)
	}
	return max(1, w*MaxDimension/h), MaxDimension
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, _ string, data []byte) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = bytes.Clone(data)

	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(data), nil
}
