package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "rainmeta.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoad(t *testing.T) {
	p := write(t, `
subgraphs:
  - https://sg.example/a
chains: [mumbai]
timeout: 2s
log:
  level: debug
cas:
  write_policy: first
  backends:
    - name: memory
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 2*time.Second || cfg.CAS == nil || cfg.CAS.Backends[0].Name != "memory" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if lvl, _ := cfg.Log.ZapLevel(); lvl != zapcore.DebugLevel {
		t.Fatalf("level = %v", lvl)
	}
	eps := cfg.Endpoints()
	if len(eps) != 3 || eps[0] != "https://sg.example/a" {
		t.Fatalf("Endpoints = %v", eps)
	}
}

func TestLoad_EnvAndDefault(t *testing.T) {
	t.Setenv(EnvPath, "")
	cfg, err := Load("")
	if err != nil || cfg.Timeout != Default().Timeout {
		t.Fatalf("Load default = %+v, %v", cfg, err)
	}

	p := write(t, "timeout: 9s\n")
	t.Setenv(EnvPath, p)
	cfg, err = Load("")
	if err != nil || cfg.Timeout != 9*time.Second {
		t.Fatalf("Load via env = %+v, %v", cfg, err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"scheme":  "subgraphs: [ftp://sg.example]\n",
		"nohost":  "subgraphs: [\"https://\"]\n",
		"chain":   "chains: [solana]\n",
		"timeout": "timeout: -1s\n",
		"level":   "log: {level: loud}\n",
		"cas":     "cas: {backends: []}\n",
	}
	for name, body := range cases {
		if _, err := Load(write(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
