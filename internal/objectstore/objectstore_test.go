package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientPutAndGet(t *testing.T) {
	c := NewMemoryClient("https://media.example.com")
	url, err := c.Put(context.Background(), "u1/file.png", []byte("hello"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/u1/file.png", url)

	data, ok := c.Get("u1/file.png")
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
}

func TestMemoryClientDefaultBaseURL(t *testing.T) {
	c := NewMemoryClient("")
	url, err := c.Put(context.Background(), "k", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "memory://objects/k", url)
}
