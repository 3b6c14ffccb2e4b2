package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"rainlang.xyz/rainmeta/meta"
	"rainlang.xyz/rainmeta/metaerr"
	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/subgraph"
)

func cmdOpMeta(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("opmeta", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var hashStr, address, source string
	var subgraphs, chains multiFlag
	var verify, raw bool
	var timeout time.Duration
	fs.StringVar(&hashStr, "hash", "", "Deployer meta hash whose op meta to look up")
	fs.StringVar(&address, "address", "", "Deployer address whose op meta to look up")
	fs.StringVar(&source, "source", "", "Chain name, chain id or subgraph URL for --address (default "+subgraph.DefaultChain+")")
	fs.Var(&subgraphs, "subgraph", "Subgraph endpoint for --hash (repeatable)")
	fs.Var(&chains, "chain", "Use the known subgraphs of a chain for --hash (repeatable)")
	fs.BoolVar(&verify, "verify", false, "Only accept op meta that publishes as --hash")
	fs.BoolVar(&raw, "raw", false, "Print the deflated op meta as hex instead of JSON")
	fs.DurationVar(&timeout, "timeout", subgraph.DefaultTimeout, "Per-endpoint timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (hashStr == "") == (address == "") || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: rainmeta opmeta (--hash <0x...> | --address <0x...> [--source <chain|url>]) [--subgraph <url> ...] [--chain <name> ...] [--verify] [--raw]")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	c := subgraph.NewClient(subgraph.WithTimeout(timeout))

	var opMeta []byte
	if hashStr != "" {
		h, err := metahash.Parse(hashStr)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		endpoints := append([]string(nil), subgraphs...)
		for _, chain := range chains {
			urls, ok := subgraph.KnownSubgraphs(chain)
			if !ok {
				fmt.Fprintf(errOut, "unknown chain %q\n", chain)
				return 2
			}
			endpoints = append(endpoints, urls...)
		}
		if len(endpoints) == 0 {
			endpoints = subgraph.AllKnownSubgraphs()
		}
		var checks []subgraph.Check
		if verify {
			checks = append(checks, func(b []byte) error {
				if !meta.CheckOpMetaHash(b, h) {
					return metaerr.Newf(metaerr.KindHashMismatch, "CLI-OPMETA", "op meta does not publish as %s", h)
				}
				return nil
			})
		}
		opMeta, err = c.SearchOpMeta(ctx, endpoints, h, checks...)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	} else {
		var err error
		opMeta, err = c.OpMetaByDeployer(ctx, address, source)
		if metaerr.IsKind(err, metaerr.KindInvalidInput) {
			fmt.Fprintln(errOut, err)
			return 2
		}
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	}

	if raw {
		_, _ = fmt.Fprintln(out, metahash.EncodeHex(opMeta))
		return 0
	}
	text, err := meta.Inflate(opMeta)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, text, "", "  "); err != nil {
		fmt.Fprintln(errOut, fmt.Errorf("op meta is not JSON: %w", err))
		return 1
	}
	pretty.WriteByte('\n')
	_, _ = out.Write(pretty.Bytes())
	return 0
}
