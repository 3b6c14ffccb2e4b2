package meta

import (
	"encoding/json"

	"rainlang.xyz/rainmeta/authoring"
	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/metaerr"
	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/opmeta"
)

// NewDeflatedJSON marshals v as JSON and wraps it, zlib-deflated, in an
// envelope tagged with n.
func NewDeflatedJSON(n magic.Number, v any) (Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, metaerr.Wrap(metaerr.KindInvalidInput, "META-TYPED-001", "marshal payload", err)
	}
	deflated, err := Deflate(raw)
	if err != nil {
		return Envelope{}, metaerr.Wrap(metaerr.KindInvalidInput, "META-TYPED-001", "deflate payload", err)
	}
	e := Envelope{
		Payload:         deflated,
		MagicNumber:     n,
		ContentType:     ContentTypeJSON,
		ContentEncoding: EncodingDeflate,
		ContentLanguage: LanguageEnglish,
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// DeflatedJSONHash returns the document hash of a single envelope tagged n
// that carries deflated, an already-deflated JSON payload, with no language.
// Deployers publish op and contract meta hashes this way.
func DeflatedJSONHash(n magic.Number, deflated []byte) (metahash.Hash, error) {
	e := Envelope{
		Payload:         deflated,
		MagicNumber:     n,
		ContentType:     ContentTypeJSON,
		ContentEncoding: EncodingDeflate,
	}
	return Hash([]Envelope{e}, true)
}

// OpMetaHash returns the published hash of deflated op meta bytes.
func OpMetaHash(deflated []byte) (metahash.Hash, error) {
	return DeflatedJSONHash(magic.OpsMetaV1, deflated)
}

// ContractMetaHash returns the published hash of deflated contract meta bytes.
func ContractMetaHash(deflated []byte) (metahash.Hash, error) {
	return DeflatedJSONHash(magic.ContractMetaV1, deflated)
}

// CheckOpMetaHash reports whether deflated op meta bytes publish as h.
func CheckOpMetaHash(deflated []byte, h metahash.Hash) bool {
	got, err := OpMetaHash(deflated)
	return err == nil && got == h
}

// OpMetaHashOf deflates ops with NewDeflatedJSON and hashes the resulting
// single-envelope document.
func OpMetaHashOf(ops []opmeta.OpMeta) (metahash.Hash, error) {
	e, err := NewDeflatedJSON(magic.OpsMetaV1, ops)
	if err != nil {
		return metahash.Zero, err
	}
	return Hash([]Envelope{e}, true)
}

// NewAuthoringMeta ABI-encodes entries into an AuthoringMetaV1 envelope.
func NewAuthoringMeta(entries []authoring.Entry) (Envelope, error) {
	b, err := authoring.Encode(entries)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Payload: b, MagicNumber: magic.AuthoringMetaV1, ContentType: ContentTypeOctetStream}, nil
}

func (e Envelope) expect(n magic.Number) error {
	if e.MagicNumber != n {
		return metaerr.Newf(metaerr.KindInvalidInput, "META-TYPED-002", "envelope is %s, not %s", e.MagicNumber.Name(), n.Name())
	}
	return nil
}

func (e Envelope) jsonPayload(n magic.Number) ([]byte, error) {
	if err := e.expect(n); err != nil {
		return nil, err
	}
	p, err := DecodePayload(e, true)
	if err != nil {
		return nil, err
	}
	if !p.IsText() {
		return nil, metaerr.Newf(metaerr.KindCorruptMeta, "META-TYPED-003", "%s payload is not JSON", n.Name())
	}
	return p.Bytes(), nil
}

// OpMeta decodes and validates an OpsMetaV1 payload.
func (e Envelope) OpMeta() ([]opmeta.OpMeta, error) {
	b, err := e.jsonPayload(magic.OpsMetaV1)
	if err != nil {
		return nil, err
	}
	return opmeta.ValidateJSON(b)
}

// ContractMeta decodes and checks a ContractMetaV1 payload.
func (e Envelope) ContractMeta() (*ContractMeta, error) {
	b, err := e.jsonPayload(magic.ContractMetaV1)
	if err != nil {
		return nil, err
	}
	var m ContractMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, metaerr.Wrap(metaerr.KindCorruptMeta, "META-TYPED-004", "invalid contract meta", err)
	}
	if err := m.Check(); err != nil {
		return nil, metaerr.Wrap(metaerr.KindCorruptMeta, "META-TYPED-004", "invalid contract meta", err)
	}
	return &m, nil
}

// AbiMeta decodes and checks a SolidityABIV2 payload.
func (e Envelope) AbiMeta() (AbiMeta, error) {
	b, err := e.jsonPayload(magic.SolidityABIV2)
	if err != nil {
		return nil, err
	}
	var m AbiMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, metaerr.Wrap(metaerr.KindCorruptMeta, "META-TYPED-005", "invalid abi meta", err)
	}
	if err := m.Check(); err != nil {
		return nil, metaerr.Wrap(metaerr.KindCorruptMeta, "META-TYPED-005", "invalid abi meta", err)
	}
	return m, nil
}

// AuthoringMeta decodes an AuthoringMetaV1 payload.
func (e Envelope) AuthoringMeta() ([]authoring.Entry, error) {
	if err := e.expect(magic.AuthoringMetaV1); err != nil {
		return nil, err
	}
	p, err := DecodePayload(e, true)
	if err != nil {
		return nil, err
	}
	if p.IsText() {
		return nil, metaerr.New(metaerr.KindCorruptMeta, "META-TYPED-006", "authoring meta payload must be binary")
	}
	return authoring.Decode(p.Bytes())
}
