package casregistry

import "rainlang.xyz/rainmeta/storage"

func init() {
	MustRegister(Backend{
		Name:        "memory",
		Description: "process-local CAS; contents are lost on exit",
		Usage:       UsageCLI | UsageDaemon,
		Open: func(map[string]string) (storage.CAS, func() error, error) {
			return &storage.Memory{}, nil, nil
		},
	})
}
