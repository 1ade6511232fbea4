package memory

import (
	"context"
	"sync"
)

// BlobStore keeps snapshot objects in a map. URIs use the mem:// scheme.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewBlobStore constructs an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// PutObject stores the bytes under path and returns a mem:// URI.
func (b *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	b.objects[path] = buf
	return "mem://" + path, nil
}

// GetObject returns a stored object, for tests.
func (b *BlobStore) GetObject(path string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[path]
	return data, ok
}
