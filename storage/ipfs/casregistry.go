package ipfs

import (
	"os"

	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Local Kubo repo via the ipfs CLI (offline)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		Flags: []casregistry.Flag{
			{Name: "ipfs-bin", Default: "ipfs", Usage: "Path to the ipfs binary (for --backend=ipfs)"},
			{Name: "ipfs-path", Usage: "IPFS_PATH for the ipfs binary (for --backend=ipfs)"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			opts := Options{Bin: cfg["ipfs-bin"]}
			if p := cfg["ipfs-path"]; p != "" {
				opts.Env = append(os.Environ(), "IPFS_PATH="+p)
			}
			return New(opts), nil, nil
		},
	})
}
