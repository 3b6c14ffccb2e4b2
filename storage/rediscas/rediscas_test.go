package rediscas

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casregistry"
	"rainlang.xyz/rainmeta/storage/testkit"
)

func setupTestRedis(t *testing.T) (*CAS, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	cas, err := New("redis://"+s.Addr(), "")
	if err != nil {
		t.Fatalf("failed to create redis cas: %v", err)
	}
	t.Cleanup(func() { _ = cas.Close() })
	return cas, s
}

func TestRedis_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		cas, _ := setupTestRedis(t)
		return cas
	})
}

func TestRedis_KeyLayout(t *testing.T) {
	cas, s := setupTestRedis(t)
	data := []byte("meta bytes")
	h, err := cas.Put(context.Background(), data)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(DefaultPrefix + h.String())
	if err != nil {
		t.Fatalf("key missing: %v", err)
	}
	if got != string(data) {
		t.Fatalf("unexpected stored value %q", got)
	}
	if s.TTL(DefaultPrefix+h.String()) != 0 {
		t.Fatalf("keys must not expire")
	}
}

func TestRedis_TamperDetection(t *testing.T) {
	ctx := context.Background()
	cas, s := setupTestRedis(t)
	data := []byte("original")
	h := metahash.Sum(data)
	if err := s.Set(DefaultPrefix+h.String(), "tampered"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := cas.Get(ctx, h); !errors.Is(err, storage.ErrHashMismatch) {
		t.Fatalf("Get: got %v want ErrHashMismatch", err)
	}
	if _, err := cas.Put(ctx, data); !errors.Is(err, storage.ErrImmutable) {
		t.Fatalf("Put: got %v want ErrImmutable", err)
	}
}

func TestRedis_Registered(t *testing.T) {
	s := miniredis.RunT(t)
	cas, closeFn, err := casregistry.OpenWithConfig("redis", casregistry.UsageDaemon, map[string]string{
		"redis-url":    "redis://" + s.Addr(),
		"redis-prefix": "test:",
	})
	if err != nil {
		t.Fatalf("OpenWithConfig failed: %v", err)
	}
	defer closeFn()
	h, err := cas.Put(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !s.Exists("test:" + h.String()) {
		t.Fatalf("expected prefixed key")
	}
}
