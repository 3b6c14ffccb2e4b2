package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"rainlang.xyz/rainmeta/authoring"
	"rainlang.xyz/rainmeta/config"
	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/metastore"
	"rainlang.xyz/rainmeta/storage/casregistry"
	"rainlang.xyz/rainmeta/subgraph"
)

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var hashStr, deployerStr, cfgPath string
	var subgraphs, chains multiFlag
	var verbose bool
	var timeout time.Duration
	fs.StringVar(&hashStr, "hash", "", "Meta hash to look up")
	fs.StringVar(&deployerStr, "deployer", "", "Deployer bytecode meta hash whose authoring meta to look up")
	fs.StringVar(&cfgPath, "config", "", "Config file (default $"+config.EnvPath+")")
	fs.Var(&subgraphs, "subgraph", "Subgraph endpoint (repeatable)")
	fs.Var(&chains, "chain", "Use the known subgraphs of a chain (repeatable)")
	fs.BoolVar(&verbose, "verbose", false, "Log lookups to stderr")
	fs.DurationVar(&timeout, "timeout", 0, "Per-endpoint timeout (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (hashStr == "") == (deployerStr == "") || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: rainmeta get (--hash <0x...> | --deployer <0x...>) [--subgraph <url> ...] [--chain <name> ...] [--config <file>]")
		return 2
	}
	key, err := metahash.Parse(hashStr + deployerStr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	cfg.Subgraphs = append(cfg.Subgraphs, subgraphs...)
	cfg.Chains = append(cfg.Chains, chains...)
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	endpoints := cfg.Endpoints()
	if len(endpoints) == 0 {
		fmt.Fprintln(errOut, "no subgraphs configured (use --subgraph, --chain or a config file)")
		return 2
	}

	log, err := newLogger(verbose, cfg)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	opts := []metastore.Option{
		metastore.WithSubgraphs(endpoints...),
		metastore.WithLogger(log),
		metastore.WithSearcher(subgraph.NewClient(subgraph.WithTimeout(cfg.Timeout), subgraph.WithLogger(log))),
	}
	if cfg.CAS != nil {
		cas, closeFn, err := cfg.CAS.Open(casregistry.UsageCLI, "")
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		defer closeFn()
		opts = append(opts, metastore.WithBackend(cas))
	}
	store := metastore.New(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if hashStr != "" {
		if !store.Update(ctx, key, nil) {
			fmt.Fprintf(errOut, "not found: %s\n", key)
			return 1
		}
		log.Debug("meta resolved", zap.Stringer("hash", key))
		_, _ = fmt.Fprintln(out, metahash.EncodeHex(store.GetMeta(key)))
		return 0
	}

	table := store.GetAuthoringMeta(ctx, key, metastore.DeployerBytecodeHash)
	if table == nil {
		fmt.Fprintf(errOut, "no authoring meta for deployer %s\n", key)
		return 1
	}
	entries, err := authoring.Decode(table)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
