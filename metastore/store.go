// Package metastore is a content-addressed cache of Rain meta.
//
// Every non-nil cache entry's key is the keccak-256 hash of its value. Entries
// come from callers, from a persistent storage.CAS backend, or from Rain
// subgraphs, and are never overwritten once set. A nil entry records a lookup
// that found nothing; it is replaced by the first verified value to arrive.
//
// Caching a RainMetaDocument also caches each of its envelopes under its own
// singleton hash, and the ABI-encoded table of any authoring-meta envelope
// under the table's hash.
package metastore

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"rainlang.xyz/rainmeta/meta"
	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/subgraph"
)

// Searcher resolves meta from subgraph endpoints. *subgraph.Client
// implements it.
type Searcher interface {
	Search(ctx context.Context, endpoints []string, hash metahash.Hash, checks ...subgraph.Check) ([]byte, error)
	SearchDeployerMeta(ctx context.Context, endpoints []string, bytecodeHash metahash.Hash, checks ...subgraph.Check) (subgraph.DeployerMeta, error)
}

var _ Searcher = (*subgraph.Client)(nil)

// KeyKind says what the key passed to GetAuthoringMeta hashes.
type KeyKind int

const (
	// AuthoringHash keys the ABI-encoded authoring table itself.
	AuthoringHash KeyKind = iota
	// DeployerBytecodeHash keys an expression deployer's bytecode meta.
	DeployerBytecodeHash
)

// Store holds the meta cache. It is safe for concurrent use; network and
// backend I/O run outside the lock and their results apply first-writer-wins.
type Store struct {
	mu             sync.RWMutex
	subgraphs      []string
	cache          map[metahash.Hash][]byte
	authoringCache map[metahash.Hash][]byte
	dotrainCache   map[string]metahash.Hash

	search  Searcher
	backend storage.CAS
	log     *zap.Logger
	timeout time.Duration
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		cache:          make(map[metahash.Hash][]byte),
		authoringCache: make(map[metahash.Hash][]byte),
		dotrainCache:   make(map[string]metahash.Hash),
		timeout:        subgraph.DefaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.search == nil {
		s.search = subgraph.NewClient(subgraph.WithTimeout(s.timeout), subgraph.WithLogger(s.log))
	}
	return s
}

// Subgraphs returns the endpoint set in insertion order.
func (s *Store) Subgraphs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.subgraphs...)
}

func (s *Store) addSubgraphsLocked(urls []string) {
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		dup := false
		for _, have := range s.subgraphs {
			if have == u {
				dup = true
				break
			}
		}
		if !dup {
			s.subgraphs = append(s.subgraphs, u)
		}
	}
}

// GetMeta returns the cached bytes for hash, or nil when the hash is unknown
// or was not found.
func (s *Store) GetMeta(hash metahash.Hash) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.cache[hash])
}

// Update caches meta under hash.
//
// With data, the bytes are cached only if they hash to hash; otherwise hash is
// recorded as NotFound. Without data, the backend and then the subgraphs are
// consulted and the first verified result is cached. Update reports whether
// hash has a value afterwards.
func (s *Store) Update(ctx context.Context, hash metahash.Hash, data []byte) bool {
	if data != nil {
		if !hash.Verify(data) {
			s.log.Debug("update: content does not match hash", zap.Stringer("hash", hash))
			s.markNotFound(hash)
			return false
		}
		s.store(ctx, hash, data)
		return true
	}

	if s.has(hash) {
		return true
	}
	b, err := s.fetch(ctx, hash)
	if err != nil {
		s.log.Debug("update: lookup failed", zap.Stringer("hash", hash), zap.Error(err))
		s.markNotFound(hash)
		return s.has(hash)
	}
	s.store(ctx, hash, b)
	return true
}

// isMeta rejects subgraph answers that do not parse as meta.
func isMeta(b []byte) error {
	_, err := meta.SplitDocument(b)
	return err
}

// hasAuthoring rejects deployer meta without an authoring table.
func hasAuthoring(b []byte) error {
	if _, ok := findAuthoring(b); !ok {
		return errNoAuthoring
	}
	return nil
}

// fetch resolves hash from the backend, then the subgraphs. Subgraph results
// must hash to hash and parse as meta; each endpoint's answer is checked on
// its own so a bad answer cannot shadow a good one.
func (s *Store) fetch(ctx context.Context, hash metahash.Hash) ([]byte, error) {
	if s.backend != nil {
		b, err := s.backend.Get(ctx, hash)
		if err == nil {
			return b, nil
		}
		if !storage.IsNotFound(err) {
			s.log.Debug("backend get failed", zap.Stringer("hash", hash), zap.Error(err))
		}
	}

	b, err := s.search.Search(ctx, s.Subgraphs(), hash, isMeta)
	if err != nil {
		return nil, err
	}
	if err := storage.Verify(hash, b); err != nil {
		return nil, err
	}
	if err := isMeta(b); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) has(hash metahash.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[hash] != nil
}

func (s *Store) markNotFound(hash metahash.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[hash]; !ok {
		s.cache[hash] = nil
	}
}

// store caches verified data and everything it decomposes into, then writes
// the new entries through to the backend.
func (s *Store) store(ctx context.Context, hash metahash.Hash, data []byte) {
	derived := decompose(data)
	var added [][]byte

	s.mu.Lock()
	if s.putLocked(hash, bytes.Clone(data)) {
		added = append(added, data)
	}
	for _, e := range derived {
		if s.applyLocked(e) && !e.authoring {
			added = append(added, e.data)
		}
	}
	s.mu.Unlock()

	for _, b := range added {
		s.writeThrough(ctx, b)
	}
}

// putLocked sets cache[hash] unless it already holds a value. It reports
// whether the entry was written.
func (s *Store) putLocked(hash metahash.Hash, data []byte) bool {
	if have := s.cache[hash]; have != nil {
		if !bytes.Equal(have, data) {
			s.log.Warn("hash collision: keeping existing cache entry", zap.Stringer("hash", hash))
		}
		return false
	}
	s.cache[hash] = data
	return true
}

func (s *Store) putAuthoringLocked(hash metahash.Hash, data []byte) bool {
	if have, ok := s.authoringCache[hash]; ok {
		if !bytes.Equal(have, data) {
			s.log.Warn("hash collision: keeping existing authoring entry", zap.Stringer("hash", hash))
		}
		return false
	}
	s.authoringCache[hash] = data
	return true
}

func (s *Store) applyLocked(e entry) bool {
	if e.authoring {
		return s.putAuthoringLocked(e.hash, e.data)
	}
	return s.putLocked(e.hash, e.data)
}

func (s *Store) writeThrough(ctx context.Context, data []byte) {
	if s.backend == nil {
		return
	}
	if _, err := s.backend.Put(ctx, data); err != nil {
		s.log.Debug("backend put failed", zap.Stringer("hash", metahash.Sum(data)), zap.Error(err))
	}
}

// AddSubgraphs adds endpoints. With retry, every hash recorded as NotFound is
// looked up again against the updated endpoint set before it returns.
func (s *Store) AddSubgraphs(ctx context.Context, urls []string, retry bool) {
	s.mu.Lock()
	s.addSubgraphsLocked(urls)
	var missing []metahash.Hash
	if retry {
		for h, b := range s.cache {
			if b == nil {
				missing = append(missing, h)
			}
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range missing {
		wg.Add(1)
		go func(h metahash.Hash) {
			defer wg.Done()
			s.Update(ctx, h, nil)
		}(h)
	}
	wg.Wait()
}

// GetAuthoringMeta returns an ABI-encoded authoring table.
//
// For AuthoringHash the key is the table's own hash and only the cache is
// consulted. For DeployerBytecodeHash the deployer's constructor meta is
// fetched from the subgraphs, cached and decomposed, and its authoring table
// returned. Every failure yields nil.
func (s *Store) GetAuthoringMeta(ctx context.Context, key metahash.Hash, kind KeyKind) []byte {
	switch kind {
	case AuthoringHash:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return bytes.Clone(s.authoringCache[key])
	case DeployerBytecodeHash:
	default:
		return nil
	}

	dm, err := s.search.SearchDeployerMeta(ctx, s.Subgraphs(), key, hasAuthoring)
	if err != nil {
		s.log.Debug("deployer meta lookup failed", zap.Stringer("bytecodeHash", key), zap.Error(err))
		return nil
	}
	if err := storage.Verify(dm.Hash, dm.RawBytes); err != nil {
		s.log.Debug("deployer meta does not match its hash", zap.Stringer("hash", dm.Hash))
		return nil
	}
	ae, ok := findAuthoring(dm.RawBytes)
	if !ok {
		s.log.Debug("deployer meta has no authoring meta", zap.Stringer("hash", dm.Hash))
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	s.store(ctx, dm.Hash, dm.RawBytes)

	s.mu.Lock()
	s.putAuthoringLocked(ae.hash, ae.data)
	out := bytes.Clone(s.authoringCache[ae.hash])
	s.mu.Unlock()
	return out
}
