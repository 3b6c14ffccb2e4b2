// Package ipfs stores meta as raw IPFS blocks through the local Kubo CLI.
//
// Blocks are written as CIDv1 raw with a keccak-256 multihash, so the block
// CID carries exactly the meta hash. The package shells out to the "ipfs"
// binary and needs no running daemon. Returned bytes are always verified
// against the requested hash; reachability is not validity.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
)

// CAS is a content-addressable store backed by the Kubo "ipfs" CLI.
type CAS struct {
	bin string
	env []string
}

type Options struct {
	// Bin is the path to the ipfs binary. If empty, "ipfs" is used.
	Bin string
	// Env optionally overrides the command environment (e.g. to set IPFS_PATH).
	// If nil, the process environment is used.
	Env []string
}

func New(opts Options) *CAS {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &CAS{bin: bin, env: opts.Env}
}

func (c *CAS) Put(ctx context.Context, data []byte) (metahash.Hash, error) {
	if len(data) == 0 {
		return metahash.Zero, fmt.Errorf("ipfs: empty data")
	}
	h := metahash.Sum(data)
	want, err := h.CID()
	if err != nil {
		return metahash.Zero, err
	}

	out, err := c.run(ctx, data,
		"block", "put",
		"--quiet",
		"--cid-codec=raw",
		"--mhtype=keccak-256",
		"--mhlen=32",
		"--cid-version=1",
		"/dev/stdin",
	)
	if err != nil {
		return metahash.Zero, err
	}

	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return metahash.Zero, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(want) {
		return metahash.Zero, storage.ErrHashMismatch
	}
	return h, nil
}

func (c *CAS) Get(ctx context.Context, h metahash.Hash) ([]byte, error) {
	id, err := c.cid(h)
	if err != nil {
		return nil, err
	}
	out, err := c.run(ctx, nil, "block", "get", id.String())
	if err != nil {
		if isLikelyNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if err := storage.Verify(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CAS) Has(ctx context.Context, h metahash.Hash) bool {
	id, err := c.cid(h)
	if err != nil {
		return false
	}
	_, err = c.run(ctx, nil, "block", "stat", id.String())
	return err == nil
}

func (c *CAS) cid(h metahash.Hash) (cid.Cid, error) {
	if !h.Defined() {
		return cid.Undef, storage.ErrInvalidHash
	}
	return h.CID()
}

func (c *CAS) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	if c.env != nil {
		cmd.Env = c.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		s := strings.TrimSpace(string(ee.Stderr))
		if s == "" {
			return nil, fmt.Errorf("ipfs: %v", err)
		}
		return nil, fmt.Errorf("ipfs: %s", s)
	}
	return nil, err
}

func isLikelyNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found")
}
