package meta

import (
	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/metaerr"
)

// ContentType is the declared type of an envelope payload.
type ContentType string

const (
	ContentTypeJSON        ContentType = "application/json"
	ContentTypeCBOR        ContentType = "application/cbor"
	ContentTypeOctetStream ContentType = "application/octet-stream"
	ContentTypeTextPlain   ContentType = "text/plain"
)

// Valid reports whether t is a declared content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeJSON, ContentTypeCBOR, ContentTypeOctetStream, ContentTypeTextPlain:
		return true
	}
	return false
}

// ContentEncoding is the optional payload encoding. The zero value means absent.
type ContentEncoding string

const (
	EncodingNone    ContentEncoding = ""
	EncodingDeflate ContentEncoding = "deflate"
)

// Valid reports whether e is absent or a declared encoding.
func (e ContentEncoding) Valid() bool {
	return e == EncodingNone || e == EncodingDeflate
}

// ContentLanguage is the optional payload language. The zero value means absent.
type ContentLanguage string

const (
	LanguageNone    ContentLanguage = ""
	LanguageEnglish ContentLanguage = "en"
)

// Valid reports whether l is absent or a declared language.
func (l ContentLanguage) Valid() bool {
	return l == LanguageNone || l == LanguageEnglish
}

// Envelope is a single metadata item.
type Envelope struct {
	Payload         []byte
	MagicNumber     magic.Number
	ContentType     ContentType
	ContentEncoding ContentEncoding
	ContentLanguage ContentLanguage
}

// Validate checks the envelope invariants. The returned error carries the
// specific Kind (UnknownMagicNumber, NestedDocument, UnknownContentType, ...).
func (e Envelope) Validate() error {
	if len(e.Payload) == 0 {
		return metaerr.New(metaerr.KindCorruptMeta, "META-ENV-001", "empty payload")
	}
	if _, err := magic.Parse(uint64(e.MagicNumber)); err != nil {
		return err
	}
	if e.MagicNumber.IsDocument() {
		return metaerr.New(metaerr.KindNestedDocument, "META-ENV-002", "envelope cannot carry the document magic number")
	}
	if !e.ContentType.Valid() {
		return metaerr.Newf(metaerr.KindUnknownContentType, "META-ENV-003", "unknown content-type %q", string(e.ContentType))
	}
	if !e.ContentEncoding.Valid() {
		return metaerr.Newf(metaerr.KindUnknownContentEncoding, "META-ENV-004", "unknown content-encoding %q", string(e.ContentEncoding))
	}
	if !e.ContentLanguage.Valid() {
		return metaerr.Newf(metaerr.KindUnknownContentLanguage, "META-ENV-005", "unknown content-language %q", string(e.ContentLanguage))
	}
	return nil
}

// Equal reports whether e and o describe the same envelope.
func (e Envelope) Equal(o Envelope) bool {
	return string(e.Payload) == string(o.Payload) &&
		e.MagicNumber == o.MagicNumber &&
		e.ContentType == o.ContentType &&
		e.ContentEncoding == o.ContentEncoding &&
		e.ContentLanguage == o.ContentLanguage
}
