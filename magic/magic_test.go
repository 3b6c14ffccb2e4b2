package magic

import (
	"bytes"
	"testing"

	"rainlang.xyz/rainmeta/metaerr"
)

func TestKnownAndParse(t *testing.T) {
	for _, n := range All() {
		if !Known(uint64(n)) {
			t.Fatalf("%s not known", n)
		}
		if n.Name() == "" {
			t.Fatalf("%s has no name", n)
		}
	}
	_, err := Parse(0x1234)
	if !metaerr.IsKind(err, metaerr.KindUnknownMagicNumber) {
		t.Fatalf("expected UnknownMagicNumber, got %v", err)
	}
}

func TestParseString(t *testing.T) {
	// Subgraphs return magic numbers as decimal strings.
	n, err := ParseString("18429323134567717275")
	if err != nil {
		t.Fatalf("ParseString decimal: %v", err)
	}
	if n != ContractMetaV1 {
		t.Fatalf("got %s want %s", n, ContractMetaV1)
	}
	n, err = ParseString("0xffe9e3a02ca8e235")
	if err != nil || n != AuthoringMetaV1 {
		t.Fatalf("ParseString hex: %v %s", err, n)
	}
	if _, err := ParseString("nope"); !metaerr.IsKind(err, metaerr.KindInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
	if _, err := ParseString("1"); !metaerr.IsKind(err, metaerr.KindUnknownMagicNumber) {
		t.Fatalf("expected UnknownMagicNumber, got %v", err)
	}
}

func TestBytesAndString(t *testing.T) {
	want := []byte{0xff, 0x0a, 0x89, 0xc6, 0x74, 0xee, 0x78, 0x74}
	if !bytes.Equal(RainMetaDocumentV1.Bytes(), want) {
		t.Fatalf("Bytes: %x", RainMetaDocumentV1.Bytes())
	}
	if RainMetaDocumentV1.String() != "0xff0a89c674ee7874" {
		t.Fatalf("String: %s", RainMetaDocumentV1.String())
	}
	if !RainMetaDocumentV1.IsDocument() || DotrainV1.IsDocument() {
		t.Fatalf("IsDocument mismatch")
	}
}
