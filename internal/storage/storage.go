// Package storage reads scanned uploads from the object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rpattn/wastelog/internal/domain"
)

// ErrObjectNotFound is returned when the bucket or key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectFetcher downloads the spreadsheet behind a summary log.
type ObjectFetcher interface {
	Fetch(ctx context.Context, location domain.FileLocation) ([]byte, error)
}

// Memory is an ObjectFetcher over an in-process map, keyed by bucket/key.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ ObjectFetcher = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Put stores data at bucket/key.
func (m *Memory) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey(bucket, key)] = append([]byte(nil), data...)
}

func (m *Memory) Fetch(_ context.Context, location domain.FileLocation) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[objectKey(location.Bucket, location.Key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, location.Bucket, location.Key)
	}
	return append([]byte(nil), data...), nil
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}
