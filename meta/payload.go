package meta

import (
	"bytes"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"rainlang.xyz/rainmeta/metaerr"
)

// Payload is the application-level value of an envelope: text for
// application/json, raw bytes otherwise.
type Payload struct {
	data []byte
	text bool
}

// Bytes returns the decoded payload bytes.
func (p Payload) Bytes() []byte { return p.data }

// Text returns the payload as a string.
func (p Payload) Text() string { return string(p.data) }

// IsText reports whether the payload was decoded as UTF-8 text.
func (p Payload) IsText() bool { return p.text }

// DecodePayload resolves the application-level value of e.
//
// When validate is true the envelope invariants are re-checked first; use it for
// data of untrusted provenance. Deflated payloads are inflated zlib-wrapped
// first and raw DEFLATE second; if both fail the error is InflateFailed
// carrying both causes.
func DecodePayload(e Envelope, validate bool) (Payload, error) {
	if validate {
		if err := e.Validate(); err != nil {
			return Payload{}, metaerr.Wrap(metaerr.KindCorruptMeta, "META-PAYLOAD-001", "invalid envelope", err)
		}
	}
	data := e.Payload
	if e.ContentEncoding == EncodingDeflate {
		var err error
		data, err = Inflate(data)
		if err != nil {
			return Payload{}, err
		}
	}
	if e.ContentType == ContentTypeJSON {
		if !utf8.Valid(data) {
			return Payload{}, metaerr.New(metaerr.KindCorruptMeta, "META-PAYLOAD-002", "json payload is not valid UTF-8")
		}
		return Payload{data: data, text: true}, nil
	}
	return Payload{data: data}, nil
}

// Inflate decompresses zlib-wrapped or raw DEFLATE data.
func Inflate(data []byte) ([]byte, error) {
	out, zerr := inflateZlib(data)
	if zerr == nil {
		return out, nil
	}
	out, rerr := inflateRaw(data)
	if rerr == nil {
		return out, nil
	}
	return nil, metaerr.Wrap(metaerr.KindInflateFailed, "META-PAYLOAD-003", "inflate failed for both zlib and raw deflate",
		errors.Join(zerr, rerr))
}

func inflateZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func inflateRaw(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

// Deflate compresses data zlib-wrapped, the form produced by Rain tooling.
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeflateRaw compresses data as a raw DEFLATE stream without zlib framing.
func DeflateRaw(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
