package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"researchblog/internal/models"
)

var _ Storage = (*Memory)(nil)

// Memory keeps objects in process. Used with STORAGE_PROVIDER=memory.
type Memory struct {
	mu        sync.Mutex
	objects   map[string][]byte
	publicURL string
}

func NewMemory(publicURL string) *Memory {
	return &Memory{objects: make(map[string][]byte), publicURL: publicURL}
}

func (m *Memory) Upload(_ context.Context, file File, folder string) (models.Attachment, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, file.Body)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to read upload: %w", err)
	}
	key := objectKey(folder, file)

	m.mu.Lock()
	m.objects[key] = buf.Bytes()
	m.mu.Unlock()

	return attachment(m.publicURL, key, file, n), nil
}

func (m *Memory) Delete(_ context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, externalID)
	return nil
}

// Has reports whether an object is stored under key.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
