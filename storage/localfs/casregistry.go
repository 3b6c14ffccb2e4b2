package localfs

import (
	"fmt"

	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem CAS (directory)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Flags: []casregistry.Flag{
			{Name: "localfs-dir", Usage: "LocalFS CAS directory (for --backend=localfs)"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			dir := cfg["localfs-dir"]
			if dir == "" {
				return nil, nil, fmt.Errorf("missing --localfs-dir")
			}
			cas, err := New(dir)
			return cas, nil, err
		},
	})
}
