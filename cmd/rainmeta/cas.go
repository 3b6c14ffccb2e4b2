package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"rainlang.xyz/rainmeta/meta"
	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
	"rainlang.xyz/rainmeta/storage/bundle"
	"rainlang.xyz/rainmeta/storage/casregistry"

	_ "rainlang.xyz/rainmeta/storage/grpccas"
	_ "rainlang.xyz/rainmeta/storage/ipfs"
	_ "rainlang.xyz/rainmeta/storage/localfs"
	_ "rainlang.xyz/rainmeta/storage/rediscas"
	_ "rainlang.xyz/rainmeta/storage/sqlitecas"
)

type casFlags struct {
	backend      string
	listBackends bool
	values       casregistry.FlagValues
}

func (c *casFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "CAS backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	c.values = casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *casFlags) open() (storage.CAS, func() error, error) {
	return casregistry.Open(c.backend, casregistry.UsageCLI, c.values)
}

func printBackends(w io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func cmdCAS(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: rainmeta cas <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get, export, import")
		return 2
	}
	switch args[0] {
	case "put":
		return cmdCASPut(args[1:], out, errOut)
	case "get":
		return cmdCASGet(args[1:], out, errOut)
	case "export":
		return cmdCASExport(args[1:], out, errOut)
	case "import":
		return cmdCASImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown cas subcommand: %s\n", args[0])
		return 2
	}
}

func cmdCASPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cas put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common casFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rainmeta cas put [backend flags] <meta-file>")
		return 2
	}
	b, err := readMeta(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if _, err := meta.SplitDocument(b); err != nil {
		fmt.Fprintf(errOut, "%s is not rain meta: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}

	cas, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	h, err := cas.Put(context.Background(), b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, h)
	return 0
}

func cmdCASGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cas get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common casFlags
	common.add(fs)
	var hashStr, outPath string
	fs.StringVar(&hashStr, "hash", "", "Meta hash to fetch")
	fs.StringVar(&outPath, "out", "", "Write raw bytes to this file instead of hex to stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if hashStr == "" || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: rainmeta cas get [backend flags] --hash <0x...> [--out <file>]")
		return 2
	}
	h, err := metahash.Parse(hashStr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	cas, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	b, err := cas.Get(context.Background(), h)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, b, 0o644); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintln(out, metahash.EncodeHex(b))
	return 0
}

func cmdCASExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cas export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common casFlags
	common.add(fs)
	var hashes multiFlag
	var outPath string
	var gz, noIndex bool
	fs.Var(&hashes, "hash", "Meta hash to include (repeatable)")
	fs.StringVar(&outPath, "out", "", "Bundle output file")
	fs.BoolVar(&gz, "gzip", false, "Gzip-compress the bundle")
	fs.BoolVar(&noIndex, "no-index", false, "Omit index.json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if len(hashes) == 0 || outPath == "" || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: rainmeta cas export [backend flags] --hash <0x...> [--hash ...] --out <file> [--gzip]")
		return 2
	}
	hs := make([]metahash.Hash, 0, len(hashes))
	for _, s := range hashes {
		h, err := metahash.Parse(s)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		hs = append(hs, h)
	}

	cas, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	err = bundle.Export(context.Background(), f, cas, hs, bundle.ExportOptions{IncludeIndex: !noIndex, Gzip: gz})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(outPath)
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdCASImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cas import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common casFlags
	common.add(fs)
	var ignoreUnknown bool
	fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "Skip unknown bundle entries")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rainmeta cas import [backend flags] <bundle-file>")
		return 2
	}

	cas, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer f.Close()
	hs, err := bundle.ImportWithOptions(context.Background(), f, cas, bundle.ImportOptions{IgnoreUnknown: ignoreUnknown})
	for _, h := range hs {
		_, _ = fmt.Fprintln(out, h)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
