package memory

import (
	"context"
	"sync"

	"pdfrag/internal/vectorindex"
	"pdfrag/internal/vectorstore"
)

// Storage keeps encoded indexes in memory. Indexes go through the same
// encoding as the persistent stores, so a loaded index never aliases a saved one.
type Storage struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage() *Storage { return &Storage{entries: make(map[string][]byte)} }

func (s *Storage) Load(_ context.Context, key string) (*vectorindex.Index, error) {
	s.mu.RLock()
	data, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, vectorstore.ErrNotFound
	}
	return vectorindex.Decode(data)
}

func (s *Storage) Save(_ context.Context, key string, idx *vectorindex.Index) error {
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = data
	return nil
}

// Put stores raw bytes under key. It lets tests plant corrupt entries.
func (s *Storage) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append([]byte(nil), data...)
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Keys returns the number of stored entries.
func (s *Storage) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Storage) Close() error { return nil }
