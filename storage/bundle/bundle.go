// Package bundle moves meta between stores as a single deterministic TAR
// archive, optionally gzip-compressed.
//
// Layout:
//
//	meta/<0x hash>   raw meta bytes
//	index.json       optional, non-authoritative listing and labels
package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

const entryPrefix = "meta/"

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels is optional, non-authoritative metadata mapping names to hashes.
	Labels map[string]metahash.Hash
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
	// Gzip compresses the archive.
	Gzip bool
}

// Export writes the meta stored under hashes to w.
//
// The output is deterministic: entries are sorted by hash and TAR headers are
// normalized. Every exported object is verified against its hash.
func Export(ctx context.Context, w io.Writer, cas storage.CAS, hashes []metahash.Hash, opts ExportOptions) (err error) {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}

	uniq := make(map[metahash.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		if !h.Defined() {
			return storage.ErrInvalidHash
		}
		uniq[h] = struct{}{}
	}
	sorted := make([]metahash.Hash, 0, len(uniq))
	for h := range uniq {
		sorted = append(sorted, h)
	}
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })

	if opts.Gzip {
		zw, zerr := gzip.NewWriterLevel(w, gzip.BestCompression)
		if zerr != nil {
			return zerr
		}
		defer func() {
			if cerr := zw.Close(); err == nil {
				err = cerr
			}
		}()
		w = zw
	}
	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	blocks := make([]indexBlock, 0, len(sorted))
	for _, h := range sorted {
		b, err := cas.Get(ctx, h)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", h, err)
		}
		if err := storage.Verify(h, b); err != nil {
			return err
		}
		if err := writeFile(tw, entryPrefix+h.String(), b); err != nil {
			return err
		}
		blocks = append(blocks, indexBlock{Hash: h, Size: len(b)})
	}

	if !opts.IncludeIndex {
		return nil
	}
	idx := indexJSON{Version: FormatVersion, Hash: "keccak-256", Blocks: blocks}
	names := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v := opts.Labels[k]
		if k == "" {
			return fmt.Errorf("bundle: empty label key")
		}
		if !v.Defined() {
			return storage.ErrInvalidHash
		}
		idx.Labels = append(idx.Labels, indexLabel{Name: k, Hash: v})
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeFile(tw, "index.json", append(b, '\n'))
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips unknown entries instead of failing.
	IgnoreUnknown bool
}

// Import reads a bundle, plain or gzip-compressed, and stores every object
// in cas. It returns the imported hashes in archive order.
func Import(ctx context.Context, r io.Reader, cas storage.CAS) ([]metahash.Hash, error) {
	return ImportWithOptions(ctx, r, cas, ImportOptions{})
}

// ImportWithOptions is Import with options. Each object must hash to the
// hash in its entry name.
func ImportWithOptions(ctx context.Context, r io.Reader, cas storage.CAS, opts ImportOptions) ([]metahash.Hash, error) {
	if cas == nil {
		return nil, fmt.Errorf("bundle: nil CAS")
	}

	br := bufio.NewReader(r)
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("bundle: %w", err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	tr := tar.NewReader(r)
	seen := map[metahash.Hash]struct{}{}
	var out []metahash.Hash
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		name := cleanTarPath(hdr.Name)
		if name == "" {
			return out, fmt.Errorf("bundle: invalid entry path: %q", hdr.Name)
		}
		if hdr.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", hdr.Typeflag, name)
		}
		if name == "index.json" {
			continue
		}
		if !strings.HasPrefix(name, entryPrefix) {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		h, err := metahash.Parse(strings.TrimPrefix(name, entryPrefix))
		if err != nil || !h.Defined() {
			return out, storage.ErrInvalidHash
		}
		if _, dup := seen[h]; dup {
			return out, fmt.Errorf("bundle: duplicate entry: %s", h)
		}
		seen[h] = struct{}{}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return out, err
		}
		if err := storage.Verify(h, payload); err != nil {
			return out, err
		}
		got, err := cas.Put(ctx, payload)
		if err != nil {
			return out, err
		}
		if got != h {
			return out, storage.ErrHashMismatch
		}
		out = append(out, h)
	}
}

type indexJSON struct {
	Version int          `json:"version"`
	Hash    string       `json:"hash"`
	Blocks  []indexBlock `json:"blocks"`
	Labels  []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	Hash metahash.Hash `json:"hash"`
	Size int           `json:"size"`
}

type indexLabel struct {
	Name string        `json:"name"`
	Hash metahash.Hash `json:"hash"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
