package meta

import (
	"encoding/json"
	"testing"

	"rainlang.xyz/rainmeta/authoring"
	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/metaerr"
	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/opmeta"
)

func TestOpMetaGetter(t *testing.T) {
	var ops []map[string]any
	if err := json.Unmarshal([]byte(opsJSON), &ops); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	e, err := NewDeflatedJSON(magic.OpsMetaV1, ops)
	if err != nil {
		t.Fatalf("NewDeflatedJSON: %v", err)
	}
	got, err := e.OpMeta()
	if err != nil {
		t.Fatalf("OpMeta: %v", err)
	}
	if len(got) != 1 || got[0].Name != "add" {
		t.Fatalf("unexpected ops: %+v", got)
	}

	if _, err := e.ContractMeta(); !metaerr.IsKind(err, metaerr.KindInvalidInput) {
		t.Fatalf("expected InvalidInput for wrong magic, got %v", err)
	}
}

func TestContractMetaGetter(t *testing.T) {
	cm := ContractMeta{
		Name:    "Order Book",
		AbiName: "OrderBook",
		Alias:   "order-book",
		Methods: []Method{{
			Name:    "add order",
			AbiName: "addOrder",
			Expressions: []Expression{{
				Name:    "calculate-io",
				AbiName: "evaluable",
				Path:    "[0].evaluableConfig",
				ContextColumns: []ContextColumn{{
					Name:        "base",
					Alias:       "base",
					ColumnIndex: 0,
					Cells:       []ContextCell{{Name: "sender", Alias: "sender", CellIndex: 0}},
				}},
			}},
		}},
	}
	e, err := NewDeflatedJSON(magic.ContractMetaV1, cm)
	if err != nil {
		t.Fatalf("NewDeflatedJSON: %v", err)
	}
	got, err := e.ContractMeta()
	if err != nil {
		t.Fatalf("ContractMeta: %v", err)
	}
	if got.Alias != "order-book" || got.Methods[0].Expressions[0].ContextColumns[0].Cells[0].Alias != "sender" {
		t.Fatalf("unexpected contract meta: %+v", got)
	}

	bad := cm
	bad.Methods = []Method{{Name: "m", Expressions: []Expression{{Name: "x", ContextColumns: []ContextColumn{{Name: "c", Alias: "c", ColumnIndex: 256}}}}}}
	e, _ = NewDeflatedJSON(magic.ContractMetaV1, bad)
	if _, err := e.ContractMeta(); !metaerr.IsKind(err, metaerr.KindCorruptMeta) {
		t.Fatalf("expected CorruptMeta, got %v", err)
	}
}

func TestAbiMetaGetter(t *testing.T) {
	abiJSON := []byte(`[{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}]`)
	e := Envelope{Payload: abiJSON, MagicNumber: magic.SolidityABIV2, ContentType: ContentTypeJSON}
	m, err := e.AbiMeta()
	if err != nil {
		t.Fatalf("AbiMeta: %v", err)
	}
	iface, err := m.Interface()
	if err != nil {
		t.Fatalf("Interface: %v", err)
	}
	if _, ok := iface.Methods["transfer"]; !ok {
		t.Fatalf("transfer method missing from parsed abi")
	}

	e.Payload = []byte(`[{"name":"x"}]`)
	if _, err := e.AbiMeta(); !metaerr.IsKind(err, metaerr.KindCorruptMeta) {
		t.Fatalf("expected CorruptMeta for entry without type, got %v", err)
	}
}

func TestAuthoringMetaGetter(t *testing.T) {
	entries := []authoring.Entry{{Word: "add", OperandParserOffset: 16, Description: "Adds"}}
	e, err := NewAuthoringMeta(entries)
	if err != nil {
		t.Fatalf("NewAuthoringMeta: %v", err)
	}
	got, err := e.AuthoringMeta()
	if err != nil {
		t.Fatalf("AuthoringMeta: %v", err)
	}
	if len(got) != 1 || got[0] != entries[0] {
		t.Fatalf("unexpected entries: %+v", got)
	}

	e.ContentType = ContentTypeJSON
	if _, err := e.AuthoringMeta(); err == nil {
		t.Fatalf("expected error for JSON-typed authoring meta")
	}
}

func TestOpMetaHash(t *testing.T) {
	deflated, err := Deflate([]byte(opsJSON))
	if err != nil {
		t.Fatalf("Deflate: %v", err)
	}
	h, err := OpMetaHash(deflated)
	if err != nil {
		t.Fatalf("OpMetaHash: %v", err)
	}
	doc, err := Assemble([]Envelope{{
		Payload:         deflated,
		MagicNumber:     magic.OpsMetaV1,
		ContentType:     ContentTypeJSON,
		ContentEncoding: EncodingDeflate,
	}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if h != metahash.Sum(doc) {
		t.Fatalf("OpMetaHash = %s, want %s", h, metahash.Sum(doc))
	}
	if !CheckOpMetaHash(deflated, h) {
		t.Fatalf("CheckOpMetaHash rejected its own hash")
	}
	if CheckOpMetaHash(append(append([]byte(nil), deflated...), 0), h) {
		t.Fatalf("CheckOpMetaHash accepted altered bytes")
	}
	if ch, err := ContractMetaHash(deflated); err != nil || ch == h {
		t.Fatalf("contract meta hash must differ from op meta hash: %s, %v", ch, err)
	}

	var ops []opmeta.OpMeta
	if err := json.Unmarshal([]byte(opsJSON), &ops); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	h1, err := OpMetaHashOf(ops)
	if err != nil {
		t.Fatalf("OpMetaHashOf: %v", err)
	}
	if h2, _ := OpMetaHashOf(ops); h1 != h2 || !h1.Defined() {
		t.Fatalf("OpMetaHashOf not stable: %s %s", h1, h2)
	}
}
