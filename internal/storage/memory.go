package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Bucket for development and tests.
type Memory struct {
	name string
	now  func() time.Time

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data  []byte
	attrs ObjectAttrs
}

// NewMemory creates an empty in-memory bucket.
func NewMemory(name string) *Memory {
	if name == "" {
		name = "memory"
	}
	return &Memory{
		name:    name,
		now:     time.Now,
		objects: make(map[string]memoryObject),
	}
}

// SetClock replaces the clock used to stamp uploads.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Touch overrides the last-modified time of a stored object.
func (m *Memory) Touch(key string, updated time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return false
	}
	obj.attrs.Updated = updated
	m.objects[key] = obj
	return true
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		data: buf,
		attrs: ObjectAttrs{
			Key:         key,
			ContentType: contentType,
			Size:        int64(len(buf)),
			Updated:     m.now().UTC(),
		},
	}
	return nil
}

func (m *Memory) Attrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	attrs := obj.attrs
	return &attrs, nil
}

func (m *Memory) Download(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}
