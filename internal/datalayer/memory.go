package datalayer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStorage keeps blobs in memory.
type MemoryStorage struct {
	mu    sync.Mutex
	blobs map[string]memoryBlob
	now   func() time.Time
}

type memoryBlob struct {
	data     []byte
	modified time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		blobs: make(map[string]memoryBlob),
		now:   time.Now,
	}
}

// SetClock overrides the modification time given to new blobs.
func (s *MemoryStorage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStorage) Put(_ context.Context, key string, data io.Reader, _ PutOptions) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = memoryBlob{data: b, modified: s.now()}
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	return append([]byte(nil), b.data...), nil
}

func (s *MemoryStorage) List(_ context.Context, prefix string) ([]BlobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var infos []BlobInfo
	for key, b := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, BlobInfo{Key: key, Size: int64(len(b.data)), LastModified: b.modified})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *MemoryStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

var _ BlobStorage = (*MemoryStorage)(nil)
