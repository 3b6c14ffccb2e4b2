package storage

import (
	"context"
	"errors"

	"rainlang.xyz/rainmeta/metahash"
)

// MultiCAS provides deterministic, ordered fallback across multiple CAS adapters.
//
// Hydration order is the slice order in Adapters; callers MUST supply a fixed order.
//
// Put is defined to write only to the first adapter.
type MultiCAS struct {
	Adapters []CAS
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(ctx context.Context, data []byte) (metahash.Hash, error) {
	if len(m.Adapters) == 0 {
		return metahash.Zero, errors.New("storage: MultiCAS has no adapters")
	}
	return m.Adapters[0].Put(ctx, data)
}

func (m MultiCAS) Get(ctx context.Context, h metahash.Hash) ([]byte, error) {
	for _, cas := range m.Adapters {
		b, err := cas.Get(ctx, h)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiCAS) Has(ctx context.Context, h metahash.Hash) bool {
	for _, cas := range m.Adapters {
		if cas.Has(ctx, h) {
			return true
		}
	}
	return false
}
