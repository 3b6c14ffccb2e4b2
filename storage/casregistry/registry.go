// Package casregistry lets CAS backends register themselves at build time so
// binaries can select one by name from flags or a config file.
package casregistry

import (
	"flag"
	"fmt"
	"sort"
	"sync"

	"rainlang.xyz/rainmeta/storage"
)

// Flag is a backend option. Its Name doubles as the config key and the CLI
// flag name.
type Flag struct {
	Name    string
	Default string
	Usage   string
}

// Backend is a build-time plugin that can open a storage.CAS implementation.
//
// Backends typically register themselves in init():
//
//	casregistry.MustRegister(casregistry.Backend{ ... })
//
// The binary must import the backend package for registration to occur.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// Flags lists the options Open understands.
	Flags []Flag

	// Open constructs the CAS from option values keyed by flag name. Missing
	// keys take the flag default. It returns an optional close function.
	Open func(cfg map[string]string) (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("casregistry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// FlagValues holds the flag values registered by RegisterFlags, keyed by
// backend name and then flag name.
type FlagValues map[string]map[string]*string

// RegisterFlags registers flags for all backends matching usage.
//
// This enables single-pass flag parsing (Go's flag package rejects unknown flags).
// Flag names shared by several backends are registered once.
func RegisterFlags(fs *flag.FlagSet, usage Usage) FlagValues {
	out := FlagValues{}
	shared := map[string]*string{}
	for _, b := range List(usage) {
		vals := make(map[string]*string, len(b.Flags))
		for _, f := range b.Flags {
			p, ok := shared[f.Name]
			if !ok {
				p = fs.String(f.Name, f.Default, f.Usage)
				shared[f.Name] = p
			}
			vals[f.Name] = p
		}
		out[b.Name] = vals
	}
	return out
}

// Config returns the parsed flag values for backend name.
func (v FlagValues) Config(name string) map[string]string {
	cfg := map[string]string{}
	for k, p := range v[name] {
		if p != nil {
			cfg[k] = *p
		}
	}
	return cfg
}

// Open opens the named backend using parsed flag values.
func Open(name string, usage Usage, values FlagValues) (storage.CAS, func() error, error) {
	return OpenWithConfig(name, usage, values.Config(name))
}

// OpenWithConfig opens the named backend if it exists and matches usage.
func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("backend %q not supported in this binary", name)
	}
	full := make(map[string]string, len(b.Flags))
	for _, f := range b.Flags {
		full[f.Name] = f.Default
	}
	for k, v := range cfg {
		known := false
		for _, f := range b.Flags {
			if f.Name == k {
				known = true
				break
			}
		}
		if !known {
			return nil, nil, fmt.Errorf("backend %q: unknown option %q", name, k)
		}
		full[k] = v
	}
	return b.Open(full)
}
