package metastore

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"rainlang.xyz/rainmeta/metahash"
)

// Dump is a serialisable snapshot of a Store. Byte values render as 0x hex;
// a NotFound cache entry renders as "0x".
type Dump struct {
	Subgraphs      []string                        `json:"subgraphs"`
	Cache          map[metahash.Hash]hexutil.Bytes `json:"cache"`
	AuthoringCache map[metahash.Hash]hexutil.Bytes `json:"authoringCache"`
	DotrainCache   map[string]metahash.Hash        `json:"dotrainCache"`
}

// Export returns a deep copy of the store's state.
func (s *Store) Export() Dump {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := Dump{
		Subgraphs:      append([]string(nil), s.subgraphs...),
		Cache:          make(map[metahash.Hash]hexutil.Bytes, len(s.cache)),
		AuthoringCache: make(map[metahash.Hash]hexutil.Bytes, len(s.authoringCache)),
		DotrainCache:   make(map[string]metahash.Hash, len(s.dotrainCache)),
	}
	for h, b := range s.cache {
		d.Cache[h] = bytes.Clone(b)
	}
	for h, b := range s.authoringCache {
		d.AuthoringCache[h] = bytes.Clone(b)
	}
	for uri, h := range s.dotrainCache {
		d.DotrainCache[uri] = h
	}
	return d
}

// Merge folds d into the store. Subgraphs are unioned. Cache entries fill
// keys that are absent or NotFound, and only with bytes that hash to their
// key. Authoring and dotrain entries fill absent keys only. A differing value
// for a key that is already set is logged and dropped.
func (s *Store) Merge(ctx context.Context, d Dump) {
	var added [][]byte

	s.mu.Lock()
	s.addSubgraphsLocked(d.Subgraphs)
	for h, b := range d.Cache {
		if len(b) == 0 {
			if _, ok := s.cache[h]; !ok {
				s.cache[h] = nil
			}
			continue
		}
		if !h.Verify(b) {
			s.log.Debug("merge: dropping cache entry with wrong hash", zap.Stringer("hash", h))
			continue
		}
		if s.putLocked(h, bytes.Clone(b)) {
			added = append(added, b)
			for _, e := range decompose(b) {
				if s.applyLocked(e) && !e.authoring {
					added = append(added, e.data)
				}
			}
		}
	}
	for h, b := range d.AuthoringCache {
		if len(b) == 0 || !h.Verify(b) {
			s.log.Debug("merge: dropping authoring entry with wrong hash", zap.Stringer("hash", h))
			continue
		}
		s.putAuthoringLocked(h, bytes.Clone(b))
	}
	for uri, h := range d.DotrainCache {
		old, ok := s.dotrainCache[uri]
		switch {
		case !ok:
			s.dotrainCache[uri] = h
		case old != h:
			s.log.Warn("merge: dotrain uri already mapped", zap.String("uri", uri), zap.Stringer("have", old), zap.Stringer("offered", h))
		}
	}
	s.mu.Unlock()

	for _, b := range added {
		s.writeThrough(ctx, b)
	}
}

// UpdateFrom merges other's state into s.
func (s *Store) UpdateFrom(ctx context.Context, other *Store) {
	if other == nil || other == s {
		return
	}
	s.Merge(ctx, other.Export())
}
