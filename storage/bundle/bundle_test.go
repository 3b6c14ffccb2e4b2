package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/bundle"
	"rainlang.xyz/rainmeta/storage/localfs"
)

func TestBundle_ExportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	cas := &storage.Memory{}
	h1, _ := cas.Put(ctx, []byte("hello"))
	h2, _ := cas.Put(ctx, []byte("world"))

	for _, gz := range []bool{false, true} {
		opts := bundle.ExportOptions{IncludeIndex: true, Gzip: gz, Labels: map[string]metahash.Hash{"greeting": h1}}
		var a, b bytes.Buffer
		if err := bundle.Export(ctx, &a, cas, []metahash.Hash{h2, h1, h2}, opts); err != nil {
			t.Fatal(err)
		}
		if err := bundle.Export(ctx, &b, cas, []metahash.Hash{h1, h2}, opts); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a.Bytes(), b.Bytes()) {
			t.Fatalf("expected deterministic bundle bytes (gzip=%v)", gz)
		}
	}
}

func TestBundle_ImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := &storage.Memory{}
	h, err := src.Put(ctx, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	for _, gz := range []bool{false, true} {
		var buf bytes.Buffer
		if err := bundle.Export(ctx, &buf, src, []metahash.Hash{h}, bundle.ExportOptions{IncludeIndex: true, Gzip: gz}); err != nil {
			t.Fatal(err)
		}
		dst, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		got, err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst)
		if err != nil {
			t.Fatalf("Import (gzip=%v): %v", gz, err)
		}
		if len(got) != 1 || got[0] != h {
			t.Fatalf("imported %v", got)
		}
		b, err := dst.Get(ctx, h)
		if err != nil || string(b) != "payload" {
			t.Fatalf("Get = %q, %v", b, err)
		}
	}
}

func TestBundle_ExportMissing(t *testing.T) {
	err := bundle.Export(context.Background(), &bytes.Buffer{}, &storage.Memory{}, []metahash.Hash{metahash.Sum([]byte("x"))}, bundle.ExportOptions{})
	if !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBundle_ImportRejects(t *testing.T) {
	ctx := context.Background()
	other := metahash.Sum([]byte("other"))

	cases := map[string]struct {
		data []byte
		want error
	}{
		"mismatch": {makeTar(t, "meta/"+other.String(), []byte("good")), storage.ErrHashMismatch},
		"badname":  {makeTar(t, "meta/not-a-hash", []byte("good")), storage.ErrInvalidHash},
	}
	for name, c := range cases {
		if _, err := bundle.Import(ctx, bytes.NewReader(c.data), &storage.Memory{}); !errors.Is(err, c.want) {
			t.Fatalf("%s: expected %v, got %v", name, c.want, err)
		}
	}

	unknown := makeTar(t, "notes.txt", []byte("hi"))
	if _, err := bundle.Import(ctx, bytes.NewReader(unknown), &storage.Memory{}); err == nil {
		t.Fatalf("unknown entries must fail closed")
	}
	if _, err := bundle.ImportWithOptions(ctx, bytes.NewReader(unknown), &storage.Memory{}, bundle.ImportOptions{IgnoreUnknown: true}); err != nil {
		t.Fatalf("IgnoreUnknown: %v", err)
	}
	if _, err := bundle.Import(ctx, bytes.NewReader(makeTar(t, "../meta/x", nil)), &storage.Memory{}); err == nil {
		t.Fatalf("path traversal must be rejected")
	}
}

func makeTar(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	h := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Unix(0, 0).UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(h); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
