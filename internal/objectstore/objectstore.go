// Package objectstore defines the narrow interface the upload_object
// tool (spec.md §4.10) stores media through. Grounded on the teacher's
// collaborator-interface style (small interface + in-memory fake for
// tests, real backing store wired at the composition root) used
// throughout internal/sessions and internal/credit; no pack repo
// carries a concrete object-store SDK import this spec can justify
// pulling in, so the production binding is left to the caller of New.
package objectstore

import (
	"context"
	"fmt"
	"sync"
)

// Client stores an opaque blob and returns a stable reference to it.
type Client interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
}

// MemoryClient is an in-process Client backing tests and single-node
// deployments without a real bucket.
type MemoryClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

func NewMemoryClient(baseURL string) *MemoryClient {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryClient{objects: make(map[string][]byte), baseURL: baseURL}
}

func (c *MemoryClient) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[key] = data
	return fmt.Sprintf("%s/%s", c.baseURL, key), nil
}

// Get is a test helper, not part of Client, for asserting on what was
// stored.
func (c *MemoryClient) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.objects[key]
	return v, ok
}
