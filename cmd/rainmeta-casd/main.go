package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/casconfig"
	"rainlang.xyz/rainmeta/storage/casregistry"
	"rainlang.xyz/rainmeta/storage/grpccas"

	_ "rainlang.xyz/rainmeta/storage/ipfs"
	_ "rainlang.xyz/rainmeta/storage/localfs"
	_ "rainlang.xyz/rainmeta/storage/rediscas"
	_ "rainlang.xyz/rainmeta/storage/sqlitecas"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("rainmeta-casd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "CAS backend name")
	cfgPath := fs.String("cas-config", "", "CAS config file (JSON or YAML); overrides --backend")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	verbose := fs.Bool("verbose", false, "Development logging")
	values := casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	cas, closeFn, err := openCAS(*cfgPath, *backend, values)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas, Log: log})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		s.GracefulStop()
	}()

	log.Info("listening", zap.String("addr", lis.Addr().String()), zap.String("backend", *backend), zap.String("casConfig", *cfgPath))
	if err := s.Serve(lis); err != nil {
		log.Error("serve failed", zap.Error(err))
		return 1
	}
	return 0
}

func openCAS(cfgPath, backend string, values casregistry.FlagValues) (storage.CAS, func() error, error) {
	if cfgPath == "" {
		return casregistry.Open(backend, casregistry.UsageDaemon, values)
	}
	cfg, err := casconfig.LoadFile(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg.Open(casregistry.UsageDaemon, "")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
