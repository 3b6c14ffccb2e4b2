package grpccas

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "gRPC CAS client (talks to a rainmeta-casd daemon)",
		Usage:       casregistry.UsageCLI,
		Flags: []casregistry.Flag{
			{Name: "grpc-target", Usage: "gRPC target host:port (for --backend=grpc)"},
			{Name: "grpc-dial-timeout", Default: "5s", Usage: "Dial timeout (for --backend=grpc)"},
			{Name: "grpc-timeout", Default: "0s", Usage: "Per-RPC timeout (for --backend=grpc)"},
			{Name: "grpc-max-msg-bytes", Default: "0", Usage: "Max gRPC message size in bytes (send+recv); 0 uses grpc defaults"},
		},
		Open: func(cfg map[string]string) (storage.CAS, func() error, error) {
			target := strings.TrimSpace(cfg["grpc-target"])
			if target == "" {
				return nil, nil, fmt.Errorf("missing --grpc-target")
			}
			dialTimeout, err := time.ParseDuration(cfg["grpc-dial-timeout"])
			if err != nil {
				return nil, nil, fmt.Errorf("--grpc-dial-timeout: %w", err)
			}
			rpcTimeout, err := time.ParseDuration(cfg["grpc-timeout"])
			if err != nil {
				return nil, nil, fmt.Errorf("--grpc-timeout: %w", err)
			}
			maxMsg, err := strconv.Atoi(cfg["grpc-max-msg-bytes"])
			if err != nil {
				return nil, nil, fmt.Errorf("--grpc-max-msg-bytes: %w", err)
			}
			client, err := Dial(target, DialOptions{Timeout: dialTimeout, MaxMsgBytes: maxMsg})
			if err != nil {
				return nil, nil, err
			}
			client.Timeout = rpcTimeout
			return client, client.Close, nil
		},
	})
}
