package testkit

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"qcgallery/internal/errors"
)

// MemoryObjectStore is an in-memory ObjectStore that counts Open calls and
// tracks readers left unclosed.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	fail    error
	gate    chan struct{}

	opens   atomic.Int64
	readers atomic.Int64
	closes  atomic.Int64
}

// NewMemoryObjectStore creates a store holding objects
func NewMemoryObjectStore(objects map[string][]byte) *MemoryObjectStore {
	s := &MemoryObjectStore{objects: make(map[string][]byte, len(objects))}
	for k, v := range objects {
		s.objects[k] = v
	}
	return s
}

// Put stores data under path
func (s *MemoryObjectStore) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
}

// FailWith makes every Open return err until cleared with nil
func (s *MemoryObjectStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Hold makes every Open block until the returned release func is called or
// the Open context ends.
func (s *MemoryObjectStore) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (s *MemoryObjectStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s.opens.Add(1)
	s.mu.RLock()
	gate := s.gate
	s.mu.RUnlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	data, ok := s.objects[path]
	if !ok {
		return nil, errors.NotFound("object " + path)
	}
	s.readers.Add(1)
	return &countingReader{Reader: bytes.NewReader(data), closes: &s.closes}, nil
}

// Opens reports how many times Open was called
func (s *MemoryObjectStore) Opens() int { return int(s.opens.Load()) }

// Unclosed reports readers handed out but not yet closed
func (s *MemoryObjectStore) Unclosed() int {
	return int(s.readers.Load() - s.closes.Load())
}

type countingReader struct {
	io.Reader
	closes *atomic.Int64
	once   sync.Once
}

func (r *countingReader) Close() error {
	r.once.Do(func() { r.closes.Add(1) })
	return nil
}
