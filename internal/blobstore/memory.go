package blobstore

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in memory. Used by tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) Write(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path.Clean(name)] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Read(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

// List treats a directory as existing when at least one blob lives below it.
func (s *MemoryStore) List(dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := path.Clean(dir) + "/"
	found := false
	var names []string
	for key := range s.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		found = true
		rest := strings.TrimPrefix(key, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, path.Clean(name))
	return nil
}
