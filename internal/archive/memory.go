package archive

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryArchive is an in-memory Archive used in tests.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Archive = (*MemoryArchive)(nil)

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

func (a *MemoryArchive) Put(ctx context.Context, slug, id string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[objectKey(slug, id)] = append([]byte(nil), body...)
	return nil
}

func (a *MemoryArchive) Get(ctx context.Context, slug, id string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.objects[objectKey(slug, id)]
	if !ok {
		return nil, fmt.Errorf("object %s not archived", objectKey(slug, id))
	}
	return append([]byte(nil), b...), nil
}

func (a *MemoryArchive) Remove(ctx context.Context, slug, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, objectKey(slug, id))
	return nil
}

func (a *MemoryArchive) RemoveAll(ctx context.Context, slug string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.objects {
		if strings.HasPrefix(k, slug+"/") {
			delete(a.objects, k)
		}
	}
	return nil
}

// Len reports the number of archived objects; test helper.
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.objects)
}
