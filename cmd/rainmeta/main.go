package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"rainlang.xyz/rainmeta/config"
	"rainlang.xyz/rainmeta/metahash"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "encode":
		return cmdEncode(args[1:], out, errOut)
	case "assemble":
		return cmdAssemble(args[1:], out, errOut)
	case "decode":
		return cmdDecode(args[1:], out, errOut)
	case "hash":
		return cmdHash(args[1:], out, errOut)
	case "validate-opmeta":
		return cmdValidateOpMeta(args[1:], out, errOut)
	case "authoring":
		return cmdAuthoring(args[1:], out, errOut)
	case "dotrain-hash":
		return cmdDotrainHash(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "opmeta":
		return cmdOpMeta(args[1:], out, errOut)
	case "cas":
		return cmdCAS(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "rainmeta: Rain meta encoding, validation and lookup")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rainmeta encode --magic <name|number> [--content-type <type>] [--deflate] [--lang en] <payload-file>")
	fmt.Fprintln(w, "  rainmeta assemble <meta-file> [<meta-file> ...]")
	fmt.Fprintln(w, "  rainmeta decode [--diagnose] <meta-file>")
	fmt.Fprintln(w, "  rainmeta hash <meta-file>")
	fmt.Fprintln(w, "  rainmeta validate-opmeta <opmeta.json>")
	fmt.Fprintln(w, "  rainmeta authoring decode <meta-file>")
	fmt.Fprintln(w, "  rainmeta authoring encode <entries.json>")
	fmt.Fprintln(w, "  rainmeta dotrain-hash <file.rain>")
	fmt.Fprintln(w, "  rainmeta get --hash <0x...> [--subgraph <url> ...] [--chain <name>] [--config <file>] [--verbose]")
	fmt.Fprintln(w, "  rainmeta get --deployer <0x...> [...]")
	fmt.Fprintln(w, "  rainmeta opmeta --hash <0x...> [--subgraph <url> ...] [--chain <name> ...] [--verify] [--raw]")
	fmt.Fprintln(w, "  rainmeta opmeta --address <0x...> [--source <chain|url>] [--raw]")
	fmt.Fprintln(w, "  rainmeta cas put --backend <name> [backend flags] <meta-file>")
	fmt.Fprintln(w, "  rainmeta cas get --backend <name> [backend flags] --hash <0x...>")
	fmt.Fprintln(w, "  rainmeta cas export --backend <name> [backend flags] --hash <0x...> --out <file> [--gzip]")
	fmt.Fprintln(w, "  rainmeta cas import --backend <name> [backend flags] <bundle-file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - meta files may hold raw bytes or 0x-prefixed hex")
	fmt.Fprintln(w, "  - meta output is 0x-prefixed lower-case hex with a trailing newline")
	fmt.Fprintf(w, "  - --config defaults to $%s\n", config.EnvPath)
}

// readMeta reads a file holding either raw meta bytes or 0x-prefixed hex.
func readMeta(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	text := bytes.TrimSpace(b)
	if bytes.HasPrefix(text, []byte("0x")) || bytes.HasPrefix(text, []byte("0X")) {
		raw, err := metahash.DecodeHex(strings.ToLower(string(text)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		return raw, nil
	}
	return b, nil
}

// newLogger returns a development logger when verbose, otherwise one built
// from the config's log section.
func newLogger(verbose bool, cfg config.Config) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return cfg.Log.NewLogger()
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
