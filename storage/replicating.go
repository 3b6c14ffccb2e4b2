package storage

import (
	"context"
	"fmt"

	"rainlang.xyz/rainmeta/metahash"
)

// NamedCAS associates a CAS with a stable backend name.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes to all configured backends.
//
// Reads fall back in order. Writes go to all backends and require every
// returned hash to match the hash of the bytes (otherwise ErrHashMismatch).
//
// Use PutAll when you need the per-backend result.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = (*ReplicatingCAS)(nil)

// PutAll writes the same bytes to all backends.
//
// It returns the hash of data and a map of backend name -> returned hash.
func (r ReplicatingCAS) PutAll(ctx context.Context, data []byte) (metahash.Hash, map[string]metahash.Hash, error) {
	if len(data) == 0 {
		return metahash.Zero, nil, fmt.Errorf("storage: refusing to store empty content")
	}
	want := metahash.Sum(data)
	if len(r.Backends) == 0 {
		return metahash.Zero, nil, fmt.Errorf("storage: ReplicatingCAS has no backends")
	}

	out := make(map[string]metahash.Hash, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS == nil {
			return metahash.Zero, nil, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
		got, err := b.CAS.Put(ctx, data)
		if err != nil {
			return metahash.Zero, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if got != want {
			return metahash.Zero, out, ErrHashMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(ctx context.Context, data []byte) (metahash.Hash, error) {
	h, _, err := r.PutAll(ctx, data)
	return h, err
}

func (r ReplicatingCAS) Get(ctx context.Context, h metahash.Hash) ([]byte, error) {
	for _, b := range r.Backends {
		if b.CAS == nil {
			continue
		}
		out, err := b.CAS.Get(ctx, h)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(ctx context.Context, h metahash.Hash) bool {
	for _, b := range r.Backends {
		if b.CAS != nil && b.CAS.Has(ctx, h) {
			return true
		}
	}
	return false
}
