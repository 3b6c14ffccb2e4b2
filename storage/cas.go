// Package storage defines the persistent content-addressable store that backs
// the in-memory meta cache, and combinators over several backends.
package storage

import (
	"context"

	"rainlang.xyz/rainmeta/metaerr"
	"rainlang.xyz/rainmeta/metahash"
)

// CAS is a minimal content-addressable storage interface keyed by meta hash.
//
// Contract:
// - Put MUST be idempotent and MUST return the keccak-256 hash of the bytes written.
// - Stored objects MUST be immutable.
// - Get MUST return ErrNotFound when the hash is absent.
// - Get MUST only return bytes whose hash is the requested hash.
type CAS interface {
	Put(ctx context.Context, data []byte) (metahash.Hash, error)
	Get(ctx context.Context, h metahash.Hash) ([]byte, error)
	Has(ctx context.Context, h metahash.Hash) bool
}

// Verify fails unless data hashes to h. The error has Kind HashMismatch
// and wraps ErrHashMismatch.
func Verify(h metahash.Hash, data []byte) error {
	if !h.Verify(data) {
		return metaerr.Wrap(metaerr.KindHashMismatch, "CAS-VERIFY", "data does not hash to "+h.String(), ErrHashMismatch)
	}
	return nil
}
