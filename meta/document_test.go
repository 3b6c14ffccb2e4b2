package meta

import (
	"bytes"
	"strings"
	"testing"

	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/metaerr"
	"rainlang.xyz/rainmeta/metahash"
)

func sampleEnvelopes() []Envelope {
	return []Envelope{
		scenarioEnvelope(),
		{Payload: []byte("_: add(1 2);"), MagicNumber: magic.RainlangV1, ContentType: ContentTypeTextPlain},
		{Payload: []byte{0x01, 0x02}, MagicNumber: magic.ExpressionDeployerV2BytecodeV1, ContentType: ContentTypeOctetStream},
	}
}

func TestAssemble(t *testing.T) {
	envs := sampleEnvelopes()
	doc, err := Assemble(envs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !IsDocument(doc) {
		t.Fatalf("missing document prefix")
	}
	if !bytes.Equal(doc[:8], []byte{0xff, 0x0a, 0x89, 0xc6, 0x74, 0xee, 0x78, 0x74}) {
		t.Fatalf("unexpected prefix %x", doc[:8])
	}
	out, err := SplitDocument(doc)
	if err != nil {
		t.Fatalf("SplitDocument: %v", err)
	}
	if len(out) != len(envs) {
		t.Fatalf("expected %d envelopes, got %d", len(envs), len(out))
	}
	for i := range envs {
		if !out[i].Equal(envs[i]) {
			t.Fatalf("envelope %d mismatch", i)
		}
	}

	hexDoc := strings.ToUpper(metahash.EncodeHex(doc)[2:])
	out, err = SplitDocumentHex(hexDoc)
	if err != nil {
		t.Fatalf("SplitDocumentHex: %v", err)
	}
	if len(out) != len(envs) {
		t.Fatalf("hex split: expected %d envelopes, got %d", len(envs), len(out))
	}
}

func TestAssemble_Rejects(t *testing.T) {
	if _, err := Assemble(nil); !metaerr.IsKind(err, metaerr.KindEmptyInput) {
		t.Fatalf("expected EmptyInput, got %v", err)
	}
	nested := append(sampleEnvelopes(), Envelope{Payload: []byte{1}, MagicNumber: magic.RainMetaDocumentV1, ContentType: ContentTypeOctetStream})
	if _, err := Assemble(nested); !metaerr.IsKind(err, metaerr.KindNestedDocument) {
		t.Fatalf("expected NestedDocument, got %v", err)
	}
}

func TestHash_SequenceLaw(t *testing.T) {
	envs := sampleEnvelopes()

	if _, err := Hash(envs, false); !metaerr.IsKind(err, metaerr.KindSequenceMustBeDocument) {
		t.Fatalf("expected SequenceMustBeDocument, got %v", err)
	}
	if _, err := Hash(nil, false); !metaerr.IsKind(err, metaerr.KindEmptyInput) {
		t.Fatalf("expected EmptyInput, got %v", err)
	}

	docHash, err := Hash(envs, true)
	if err != nil {
		t.Fatalf("Hash(document): %v", err)
	}
	doc, _ := Assemble(envs)
	if docHash != metahash.Sum(doc) {
		t.Fatalf("document hash does not cover the assembled bytes")
	}
	for i, e := range envs {
		h, err := Hash([]Envelope{e}, false)
		if err != nil {
			t.Fatalf("Hash(envs[%d]): %v", i, err)
		}
		if h == docHash {
			t.Fatalf("document hash equals member %d hash", i)
		}
		enc, _ := Encode(e)
		if h != metahash.Sum(enc) {
			t.Fatalf("singleton hash does not cover the encoding")
		}
	}

	// A singleton hashed as a document differs from the bare singleton.
	single := envs[:1]
	a, _ := Hash(single, false)
	b, _ := Hash(single, true)
	if a == b {
		t.Fatalf("document and singleton hashes should differ")
	}
}

func TestSplitDocument_WithoutPrefix(t *testing.T) {
	b, err := EncodeAll(sampleEnvelopes())
	if err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}
	out, err := SplitDocument(b)
	if err != nil {
		t.Fatalf("SplitDocument: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(out))
	}
}
