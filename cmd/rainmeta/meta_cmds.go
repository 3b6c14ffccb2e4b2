package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"rainlang.xyz/rainmeta/authoring"
	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/meta"
	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/metastore"
	"rainlang.xyz/rainmeta/opmeta"
)

// parseMagic accepts a registry name (case-insensitive) or a number.
func parseMagic(s string) (magic.Number, error) {
	for _, n := range magic.All() {
		if strings.EqualFold(n.Name(), s) {
			return n, nil
		}
	}
	return magic.ParseString(s)
}

func cmdEncode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var magicStr, contentType, lang string
	var deflate bool
	fs.StringVar(&magicStr, "magic", "", "Magic number name or value")
	fs.StringVar(&contentType, "content-type", string(meta.ContentTypeOctetStream), "Payload content type")
	fs.StringVar(&lang, "lang", "", "Payload content language (en)")
	fs.BoolVar(&deflate, "deflate", false, "Deflate the payload")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if magicStr == "" || fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rainmeta encode --magic <name|number> [--content-type <type>] [--deflate] [--lang en] <payload-file>")
		return 2
	}
	n, err := parseMagic(magicStr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	payload, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	env := meta.Envelope{
		Payload:         payload,
		MagicNumber:     n,
		ContentType:     meta.ContentType(contentType),
		ContentLanguage: meta.ContentLanguage(lang),
	}
	if deflate {
		if env.Payload, err = meta.Deflate(payload); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		env.ContentEncoding = meta.EncodingDeflate
	}
	b, err := meta.Encode(env)
	if err != nil {
		fmt.Fprintf(errOut, "invalid envelope: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, metahash.EncodeHex(b))
	return 0
}

func cmdAssemble(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("assemble", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: rainmeta assemble <meta-file> [<meta-file> ...]")
		return 2
	}
	var envs []meta.Envelope
	for _, p := range fs.Args() {
		b, err := readMeta(p)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		items, err := meta.SplitDocument(b)
		if err != nil {
			fmt.Fprintf(errOut, "%s: %v\n", filepath.Base(p), err)
			return 1
		}
		envs = append(envs, items...)
	}
	doc, err := meta.Assemble(envs)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, metahash.EncodeHex(doc))
	return 0
}

// isText reports whether a payload reads better as text than hex.
func isText(e meta.Envelope, p meta.Payload) bool {
	if p.IsText() {
		return true
	}
	if !utf8.Valid(p.Bytes()) {
		return false
	}
	return e.ContentType == meta.ContentTypeTextPlain || e.MagicNumber == magic.DotrainV1 || e.MagicNumber == magic.RainlangV1
}

type decodedEnvelope struct {
	Hash            string `json:"hash"`
	MagicNumber     string `json:"magicNumber"`
	Name            string `json:"name"`
	ContentType     string `json:"contentType"`
	ContentEncoding string `json:"contentEncoding,omitempty"`
	ContentLanguage string `json:"contentLanguage,omitempty"`
	Payload         string `json:"payload"`
}

func cmdDecode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var diagnose bool
	fs.BoolVar(&diagnose, "diagnose", false, "Print CBOR diagnostic notation for each item")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rainmeta decode [--diagnose] <meta-file>")
		return 2
	}
	b, err := readMeta(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	envs, err := meta.SplitDocument(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid meta: %v\n", err)
		return 1
	}

	items := make([]decodedEnvelope, 0, len(envs))
	for _, e := range envs {
		enc, err := meta.Encode(e)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		if diagnose {
			d, err := meta.Diagnose(enc)
			if err != nil {
				fmt.Fprintln(errOut, err)
				return 1
			}
			_, _ = fmt.Fprintln(out, d)
			continue
		}
		p, err := meta.DecodePayload(e, false)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		payload := metahash.EncodeHex(p.Bytes())
		if isText(e, p) {
			payload = p.Text()
		}
		items = append(items, decodedEnvelope{
			Hash:            metahash.Sum(enc).String(),
			MagicNumber:     e.MagicNumber.String(),
			Name:            e.MagicNumber.Name(),
			ContentType:     string(e.ContentType),
			ContentEncoding: string(e.ContentEncoding),
			ContentLanguage: string(e.ContentLanguage),
			Payload:         payload,
		})
	}
	if diagnose {
		return 0
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rainmeta hash <meta-file>")
		return 2
	}
	b, err := readMeta(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	envs, err := meta.SplitDocument(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid meta: %v\n", err)
		return 1
	}
	if len(envs) > 1 && !meta.IsDocument(b) {
		fmt.Fprintln(errOut, "a sequence of envelopes must be assembled into a document before hashing")
		return 1
	}
	_, _ = fmt.Fprintln(out, metahash.Sum(b))
	return 0
}

func cmdValidateOpMeta(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("validate-opmeta", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rainmeta validate-opmeta <opmeta.json>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	ops, err := opmeta.ParseJSON(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid: %v\n", err)
		return 1
	}
	if errs := opmeta.ValidateAll(ops); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(errOut, "invalid: %v\n", err)
		}
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdAuthoring(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: rainmeta authoring <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: decode, encode")
		return 2
	}
	switch args[0] {
	case "decode":
		fs := flag.NewFlagSet("authoring decode", flag.ContinueOnError)
		fs.SetOutput(errOut)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: rainmeta authoring decode <meta-file>")
			return 2
		}
		b, err := readMeta(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		entries, err := decodeAuthoring(b)
		if err != nil {
			fmt.Fprintf(errOut, "invalid authoring meta: %v\n", err)
			return 1
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		return 0
	case "encode":
		fs := flag.NewFlagSet("authoring encode", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var raw bool
		fs.BoolVar(&raw, "raw", false, "Print the ABI-encoded table instead of an envelope")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: rainmeta authoring encode [--raw] <entries.json>")
			return 2
		}
		b, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
			return 1
		}
		var entries []authoring.Entry
		if err := json.Unmarshal(b, &entries); err != nil {
			fmt.Fprintf(errOut, "parse entries: %v\n", err)
			return 1
		}
		env, err := meta.NewAuthoringMeta(entries)
		if err != nil {
			fmt.Fprintf(errOut, "invalid authoring meta: %v\n", err)
			return 1
		}
		result := env.Payload
		if !raw {
			if result, err = meta.Encode(env); err != nil {
				fmt.Fprintln(errOut, err)
				return 1
			}
		}
		_, _ = fmt.Fprintln(out, metahash.EncodeHex(result))
		return 0
	default:
		fmt.Fprintf(errOut, "unknown authoring subcommand: %s\n", args[0])
		return 2
	}
}

// decodeAuthoring accepts meta carrying an authoring envelope or a bare
// ABI-encoded table.
func decodeAuthoring(b []byte) ([]authoring.Entry, error) {
	envs, err := meta.SplitDocument(b)
	if err != nil {
		return authoring.Decode(b)
	}
	for _, e := range envs {
		if e.MagicNumber == magic.AuthoringMetaV1 {
			return e.AuthoringMeta()
		}
	}
	return nil, fmt.Errorf("no %s envelope", magic.AuthoringMetaV1.Name())
}

func cmdDotrainHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("dotrain-hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: rainmeta dotrain-hash <file.rain>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	h, err := metastore.DotrainHash(string(b))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, h)
	return 0
}
