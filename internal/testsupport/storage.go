package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/LibraryOfCongress/concordia-sub000/internal/domain"
	"github.com/LibraryOfCongress/concordia-sub000/internal/service/s3"
)

// MemImageStorage — s3.Storage в памяти
type MemImageStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemImageStorage() *MemImageStorage {
	return &MemImageStorage{objects: make(map[string][]byte)}
}

func (s *MemImageStorage) UploadBytes(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemImageStorage) GetObject(ctx context.Context, key string) (s3.S3Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &memObject{
		ReadCloser:    io.NopCloser(bytes.NewReader(data)),
		contentLength: int64(len(data)),
	}, nil
}

func (s *MemImageStorage) PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.example/%s?signed=1", key), nil
}

type memObject struct {
	io.ReadCloser
	contentLength int64
}

func (o *memObject) ContentLength() int64 { return o.contentLength }
func (o *memObject) ContentType() string  { return "image/jpeg" }
