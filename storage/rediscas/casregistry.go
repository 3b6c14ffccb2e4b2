package rediscas

import (
	"fmt"

	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "redis",
		Description: "Redis CAS (shared, network)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Flags: []casregistry.Flag{
			{Name: "redis-url", Usage: "Redis URL, e.g. redis://127.0.0.1:6379/0 (for --backend=redis)"},
			{Name: "redis-prefix", Default: DefaultPrefix, Usage: "Redis key prefix (for --backend=redis)"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			url := cfg["redis-url"]
			if url == "" {
				return nil, nil, fmt.Errorf("missing --redis-url")
			}
			cas, err := New(url, cfg["redis-prefix"])
			if err != nil {
				return nil, nil, err
			}
			return cas, cas.Close, nil
		},
	})
}
