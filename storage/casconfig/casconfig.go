// Package casconfig opens CAS backends from a JSON or YAML description.
//
// A config names one or more casregistry backends and a write policy:
//
//	write_policy: all
//	backends:
//	  - name: sqlite
//	    id: local
//	    config: {sqlite-path: /var/lib/rainmeta/meta.db}
//	  - name: redis
//	    config: {redis-url: "redis://127.0.0.1:6379/0"}
//
// Backends are only available when their package is linked in, usually with a
// blank import.
package casconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casregistry"
)

// WritePolicy selects how a multi-backend config handles writes.
type WritePolicy string

const (
	// WriteFirst writes to the first backend only; reads fall back in order.
	WriteFirst WritePolicy = "first"
	// WriteAll writes to every backend and requires they agree on the hash.
	WriteAll WritePolicy = "all"
)

type Config struct {
	// WritePolicy defaults to WriteFirst.
	WritePolicy WritePolicy     `json:"write_policy,omitempty" yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends" yaml:"backends"`
}

type BackendConfig struct {
	// Name is the casregistry backend name.
	Name string `json:"name" yaml:"name"`
	// ID distinguishes two backends of the same kind. Defaults to Name.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// Config holds backend options keyed by the backend's flag names.
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// Key returns ID, or Name when ID is empty.
func (b BackendConfig) Key() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// LoadFile reads and validates a config file. Files ending in .yaml or .yml
// are parsed as YAML, anything else as JSON.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("casconfig: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if seen[b.Key()] {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.Key())
		}
		seen[b.Key()] = true
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every configured backend and combines them per WritePolicy.
// A single backend is returned as is.
//
// A non-empty preferred names a backend (by Name or ID) that is moved to the
// front, which makes it the write target under WriteFirst. The returned
// close func closes every opened backend.
func (c Config) Open(usage casregistry.Usage, preferred string) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	ordered := slices.Clone(c.Backends)
	if preferred != "" {
		i := slices.IndexFunc(ordered, func(b BackendConfig) bool {
			return b.Name == preferred || b.ID == preferred
		})
		if i < 0 {
			return nil, nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
		}
		p := ordered[i]
		ordered = slices.Insert(slices.Delete(ordered, i, i+1), 0, p)
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	named := make([]storage.NamedCAS, 0, len(ordered))
	for _, b := range ordered {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("casconfig: backend %q: %w", b.Key(), err)
		}
		named = append(named, storage.NamedCAS{Name: b.Key(), CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if c.WritePolicy == WriteAll {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	adapters := make([]storage.CAS, len(named))
	for i, n := range named {
		adapters[i] = n.CAS
	}
	return storage.MultiCAS{Adapters: adapters}, closeAll, nil
}
