package sqlitecas

import (
	"fmt"

	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "sqlite",
		Description: "SQLite CAS (single database file)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Flags: []casregistry.Flag{
			{Name: "sqlite-path", Usage: "SQLite database file (for --backend=sqlite)"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			path := cfg["sqlite-path"]
			if path == "" {
				return nil, nil, fmt.Errorf("missing --sqlite-path")
			}
			cas, err := Open(path)
			if err != nil {
				return nil, nil, err
			}
			return cas, cas.Close, nil
		},
	})
}
