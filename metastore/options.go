package metastore

import (
	"time"

	"go.uber.org/zap"

	"rainlang.xyz/rainmeta/storage"
)

// Option configures a Store.
type Option func(*Store)

// WithSubgraphs seeds the subgraph endpoint set.
func WithSubgraphs(urls ...string) Option {
	return func(s *Store) { s.addSubgraphsLocked(urls) }
}

// WithSearcher replaces the default subgraph client.
func WithSearcher(sr Searcher) Option {
	return func(s *Store) { s.search = sr }
}

// WithBackend sets a persistent CAS. Lookups consult it before the network
// and every verified entry is written through to it.
func WithBackend(cas storage.CAS) Option {
	return func(s *Store) { s.backend = cas }
}

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithTimeout sets the per-endpoint timeout of the default subgraph client.
// It has no effect together with WithSearcher.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}
