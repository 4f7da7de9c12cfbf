package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/common"
)

type object struct {
	data        []byte
	contentType string
}

// Storage keeps uploaded objects in memory and serves memory:// URLs.
type Storage struct {
	bucket string
	mu     sync.Mutex
	objs   map[string]object
}

func NewStorage(bucket string) *Storage {
	return &Storage{bucket: bucket, objs: map[string]object{}}
}

func (s *Storage) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	s.mu.Lock()
	s.objs[key] = object{data: buf.Bytes(), contentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *Storage) PublicURL(key string) (string, bool) {
	return "memory://" + s.bucket + "/" + key, true
}

func (s *Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	_, ok := s.objs[key]
	s.mu.Unlock()
	if !ok {
		return "", common.ErrNotFound
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", s.bucket, key, int64(ttl.Seconds())), nil
}

// Object returns the stored bytes and content type.
func (s *Storage) Object(key string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objs[key]
	return o.data, o.contentType, ok
}
