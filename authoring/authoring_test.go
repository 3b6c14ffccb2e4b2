package authoring

import (
	"bytes"
	"encoding/hex"
	"testing"

	"rainlang.xyz/rainmeta/metaerr"
)

// One entry {word: "add", operandParserOffset: 16, description: "Adds"}.
const addVector = "" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"0000000000000000000000000000000000000000000000000000000000000001" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"6164640000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000010" +
	"0000000000000000000000000000000000000000000000000000000000000060" +
	"0000000000000000000000000000000000000000000000000000000000000004" +
	"4164647300000000000000000000000000000000000000000000000000000000"

func TestEncodeDecodeVector(t *testing.T) {
	want, err := hex.DecodeString(addVector)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	got, err := Encode([]Entry{{Word: "add", OperandParserOffset: 16, Description: "Adds"}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode mismatch:\n got %x\nwant %x", got, want)
	}

	entries, err := Decode(want)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entries) != 1 || entries[0] != (Entry{Word: "add", OperandParserOffset: 16, Description: "Adds"}) {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestRoundTrip(t *testing.T) {
	in := []Entry{
		{Word: "stack", OperandParserOffset: 16, Description: "Copies a stack item"},
		{Word: "constant", OperandParserOffset: 16, Description: ""},
		{Word: "erc20-balance-of", OperandParserOffset: 0, Description: "ERC20 balance"},
		{Word: "abcdefghijklmnopqrstuvwxyz012345", Description: "exactly 32 bytes"},
	}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d entries, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("entry %d: got %+v want %+v", i, out[i], in[i])
		}
	}
}

func TestEncodeRejects(t *testing.T) {
	cases := map[string][]Entry{
		"empty":     nil,
		"uppercase": {{Word: "Add"}},
		"leading":   {{Word: "1add"}},
		"too long":  {{Word: "abcdefghijklmnopqrstuvwxyz0123456"}},
		"blank":     {{Word: ""}},
	}
	for name, entries := range cases {
		if _, err := Encode(entries); !metaerr.IsKind(err, metaerr.KindInvalidAuthoringMeta) {
			t.Fatalf("%s: expected InvalidAuthoringMeta, got %v", name, err)
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	vec, _ := hex.DecodeString(addVector)

	if _, err := Decode(vec[:40]); !metaerr.IsKind(err, metaerr.KindInvalidAuthoringMeta) {
		t.Fatalf("truncated: expected InvalidAuthoringMeta, got %v", err)
	}

	bad := append([]byte(nil), vec...)
	copy(bad[96:], "ADD")
	if _, err := Decode(bad); !metaerr.IsKind(err, metaerr.KindInvalidAuthoringMeta) {
		t.Fatalf("bad word: expected InvalidAuthoringMeta, got %v", err)
	}
}

func TestTable(t *testing.T) {
	tbl := NewTable([]Entry{
		{Word: "add", OperandParserOffset: 16},
		{Word: "sub"},
		{Word: "add", OperandParserOffset: 1},
	})
	e, i, ok := tbl.Lookup("add")
	if !ok || i != 0 || e.OperandParserOffset != 16 {
		t.Fatalf("Lookup(add) = %+v, %d, %v", e, i, ok)
	}
	if _, _, ok := tbl.Lookup("mul"); ok {
		t.Fatalf("Lookup(mul) should miss")
	}
	if tbl.Len() != 3 || tbl.Words()[1] != "sub" {
		t.Fatalf("unexpected table: %v", tbl.Words())
	}
}
