package casconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casregistry"
	_ "rainlang.xyz/rainmeta/storage/localfs"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoadFile_YAMLAndJSON(t *testing.T) {
	y := writeFile(t, "cas.yaml", `
write_policy: all
backends:
  - name: memory
    id: hot
  - name: localfs
    config:
      localfs-dir: /tmp/rainmeta
`)
	cfg, err := LoadFile(y)
	if err != nil {
		t.Fatalf("LoadFile(yaml): %v", err)
	}
	if cfg.WritePolicy != "all" || len(cfg.Backends) != 2 || cfg.Backends[0].ID != "hot" || cfg.Backends[1].Config["localfs-dir"] != "/tmp/rainmeta" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	j := writeFile(t, "cas.json", `{"backends":[{"name":"memory"}]}`)
	if _, err := LoadFile(j); err != nil {
		t.Fatalf("LoadFile(json): %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]Config{
		"empty":     {},
		"no name":   {Backends: []BackendConfig{{}}},
		"duplicate": {Backends: []BackendConfig{{Name: "memory"}, {Name: "memory"}}},
		"policy":    {WritePolicy: "some", Backends: []BackendConfig{{Name: "memory"}}},
	}
	for name, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestOpen_WritePolicies(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	base := Config{Backends: []BackendConfig{
		{Name: "memory"},
		{Name: "localfs", Config: map[string]string{"localfs-dir": dir}},
	}}

	cas, closeFn, err := base.Open(casregistry.UsageCLI, "")
	if err != nil {
		t.Fatalf("Open(first): %v", err)
	}
	defer closeFn()
	if _, ok := cas.(storage.MultiCAS); !ok {
		t.Fatalf("expected MultiCAS, got %T", cas)
	}

	all := base
	all.WritePolicy = "all"
	cas, closeAll, err := all.Open(casregistry.UsageCLI, "localfs")
	if err != nil {
		t.Fatalf("Open(all): %v", err)
	}
	defer closeAll()
	rep, ok := cas.(storage.ReplicatingCAS)
	if !ok || rep.Backends[0].Name != "localfs" {
		t.Fatalf("expected ReplicatingCAS led by localfs, got %#v", cas)
	}
	h, err := cas.Put(ctx, []byte("both"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !rep.Backends[1].CAS.Has(ctx, h) {
		t.Fatalf("write_policy all must write to every backend")
	}

	if _, _, err := base.Open(casregistry.UsageCLI, "missing"); err == nil {
		t.Fatalf("expected error for unknown preferred backend")
	}
}
