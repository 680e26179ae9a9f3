// Package storage defines the key-value layer that holds serialized day buckets.
package storage

import (
	"context"
	"strings"
)

// Provider stores opaque blobs under string keys. Keys use "/" to separate
// namespace segments, e.g. "local/notes/2025-11-19".
type Provider interface {
	// Get returns the blob stored under key, or apperr.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the blob stored under key.
	Set(ctx context.Context, key string, blob []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key that starts with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Namespace returns a Provider that transparently prefixes every key with
// the given segments.
func Namespace(p Provider, segments ...string) Provider {
	prefix := strings.Join(segments, "/")
	if prefix == "" {
		return p
	}
	if ns, ok := p.(*namespaced); ok {
		return &namespaced{inner: ns.inner, prefix: ns.prefix + prefix + "/"}
	}
	return &namespaced{inner: p, prefix: prefix + "/"}
}

type namespaced struct {
	inner  Provider
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, blob []byte) error {
	return n.inner.Set(ctx, n.prefix+key, blob)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.inner.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.prefix))
	}
	return out, nil
}
