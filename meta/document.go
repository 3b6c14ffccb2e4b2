package meta

import (
	"bytes"
	"strings"

	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/metaerr"
	"rainlang.xyz/rainmeta/metahash"
)

// documentPrefix is the 8-byte big-endian document magic number.
var documentPrefix = magic.RainMetaDocumentV1.Bytes()

// Assemble builds a RainMetaDocument from envs.
func Assemble(envs []Envelope) ([]byte, error) {
	if len(envs) == 0 {
		return nil, metaerr.New(metaerr.KindEmptyInput, "META-DOC-001", "document requires at least one envelope")
	}
	for i, e := range envs {
		if e.MagicNumber.IsDocument() {
			return nil, metaerr.Newf(metaerr.KindNestedDocument, "META-DOC-002", "envelope[%d] carries the document magic number", i)
		}
	}
	body, err := EncodeAll(envs)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(documentPrefix)+len(body))
	out = append(out, documentPrefix...)
	return append(out, body...), nil
}

// Hash computes the meta hash of envs.
//
// With asDocument the hash covers the assembled document. Otherwise envs must
// hold exactly one envelope and the hash covers its encoding alone; a longer
// sequence must be wrapped in a document first.
func Hash(envs []Envelope, asDocument bool) (metahash.Hash, error) {
	if asDocument {
		doc, err := Assemble(envs)
		if err != nil {
			return metahash.Zero, err
		}
		return metahash.Sum(doc), nil
	}
	switch len(envs) {
	case 0:
		return metahash.Zero, metaerr.New(metaerr.KindEmptyInput, "META-DOC-001", "nothing to hash")
	case 1:
		b, err := Encode(envs[0])
		if err != nil {
			return metahash.Zero, err
		}
		return metahash.Sum(b), nil
	default:
		return metahash.Zero, metaerr.Newf(metaerr.KindSequenceMustBeDocument, "META-DOC-003",
			"a sequence of %d envelopes must be hashed as a document", len(envs))
	}
}

// IsDocument reports whether data starts with the document magic number.
func IsDocument(data []byte) bool {
	return bytes.HasPrefix(data, documentPrefix)
}

// SplitDocument strips the document magic prefix, if present, and decodes the
// envelopes that follow.
func SplitDocument(data []byte) ([]Envelope, error) {
	return Decode(bytes.TrimPrefix(data, documentPrefix))
}

// SplitDocumentHex is SplitDocument for hex input; a missing 0x prefix and
// upper-case digits are tolerated.
func SplitDocumentHex(s string) ([]Envelope, error) {
	b, err := metahash.DecodeHex(strings.ToLower(s))
	if err != nil {
		return nil, err
	}
	return SplitDocument(b)
}
