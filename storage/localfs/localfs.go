// Package localfs stores meta on the local filesystem, one immutable file per
// hash.
package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
)

// CAS is a local filesystem-backed content-addressable store.
//
// Objects are stored immutably under the CIDv1 rendering of their meta hash,
// fanned out by the last two characters of the CID.
// This implementation is offline and deterministic: it never uses the network
// and never depends on wall-clock time.
type CAS struct {
	root string
}

var _ storage.CAS = (*CAS)(nil)

// New constructs a filesystem CAS rooted at root. The directory will be created if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root}, nil
}

func (c *CAS) Put(ctx context.Context, data []byte) (metahash.Hash, error) {
	if len(data) == 0 {
		return metahash.Zero, errors.New("localfs: refusing to store empty content")
	}
	if err := ctx.Err(); err != nil {
		return metahash.Zero, err
	}
	h := metahash.Sum(data)

	path, err := c.pathFor(h)
	if err != nil {
		return metahash.Zero, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return metahash.Zero, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := c.Get(ctx, h)
			if rerr != nil {
				// An existing but unreadable or corrupted file is an immutability violation.
				return metahash.Zero, storage.ErrImmutable
			}
			if string(existing) != string(data) {
				return metahash.Zero, storage.ErrImmutable
			}
			return h, nil
		}
		return metahash.Zero, err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return metahash.Zero, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return metahash.Zero, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return metahash.Zero, err
	}
	return h, nil
}

func (c *CAS) Get(ctx context.Context, h metahash.Hash) ([]byte, error) {
	if !h.Defined() {
		return nil, storage.ErrInvalidHash
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFor(h)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if err := storage.Verify(h, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *CAS) Has(_ context.Context, h metahash.Hash) bool {
	if !h.Defined() {
		return false
	}
	path, err := c.pathFor(h)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (c *CAS) pathFor(h metahash.Hash) (string, error) {
	id, err := h.CID()
	if err != nil {
		return "", err
	}
	s := id.String()
	return filepath.Join(c.root, s[len(s)-2:], s), nil
}
