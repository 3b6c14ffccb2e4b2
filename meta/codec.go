package meta

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/metaerr"
)

const (
	keyPayload uint64 = iota
	keyMagicNumber
	keyContentType
	keyContentEncoding
	keyContentLanguage
)

// wireEnvelope is the canonical map form. Keys sort ascending under
// Core Deterministic Encoding, which fixes the byte layout the hash covers.
type wireEnvelope struct {
	Payload         []byte `cbor:"0,keyasint"`
	MagicNumber     uint64 `cbor:"1,keyasint"`
	ContentType     string `cbor:"2,keyasint"`
	ContentEncoding string `cbor:"3,keyasint,omitempty"`
	ContentLanguage string `cbor:"4,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("meta: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		IntDec:      cbor.IntDecConvertNone,
	}.DecMode()
	if err != nil {
		panic("meta: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a single envelope to its canonical CBOR map.
func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	b, err := encMode.Marshal(wireEnvelope{
		Payload:         e.Payload,
		MagicNumber:     uint64(e.MagicNumber),
		ContentType:     string(e.ContentType),
		ContentEncoding: string(e.ContentEncoding),
		ContentLanguage: string(e.ContentLanguage),
	})
	if err != nil {
		return nil, metaerr.Wrap(metaerr.KindCorruptMeta, "META-CODEC-001", "cbor encode failed", err)
	}
	return b, nil
}

// EncodeAll concatenates the canonical encodings of envs without a document prefix.
func EncodeAll(envs []Envelope) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range envs {
		b, err := Encode(e)
		if err != nil {
			return nil, fmt.Errorf("envelope[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// Decode parses one or more concatenated canonical envelope maps.
//
// Every map is validated; any failure is reported as CorruptMeta wrapping the
// specific cause. Maps that are not in canonical form are rejected because
// re-encoding them would not reproduce the bytes their hash covers.
func Decode(data []byte) ([]Envelope, error) {
	if len(data) == 0 {
		return nil, metaerr.New(metaerr.KindCorruptMeta, "META-CODEC-002", "empty meta bytes")
	}
	var out []Envelope
	rest := data
	for i := 0; len(rest) > 0; i++ {
		var m map[uint64]any
		next, err := decMode.UnmarshalFirst(rest, &m)
		if err != nil {
			return nil, metaerr.Wrap(metaerr.KindCorruptMeta, "META-CODEC-003", fmt.Sprintf("item %d: malformed cbor map", i), err)
		}
		raw := rest[:len(rest)-len(next)]
		rest = next

		e, err := envelopeFromMap(m)
		if err != nil {
			return nil, metaerr.Wrap(metaerr.KindCorruptMeta, "META-CODEC-004", fmt.Sprintf("item %d: invalid envelope", i), err)
		}
		canon, err := Encode(e)
		if err != nil {
			return nil, metaerr.Wrap(metaerr.KindCorruptMeta, "META-CODEC-004", fmt.Sprintf("item %d: invalid envelope", i), err)
		}
		if !bytes.Equal(canon, raw) {
			return nil, metaerr.Newf(metaerr.KindCorruptMeta, "META-CODEC-005", "item %d: non-canonical encoding", i)
		}
		out = append(out, e)
	}
	return out, nil
}

// envelopeFromMap is the typed parse step: it either yields a valid Envelope
// or an error, never a partially checked value.
func envelopeFromMap(m map[uint64]any) (Envelope, error) {
	var e Envelope
	for k := range m {
		if k > keyContentLanguage {
			return e, metaerr.Newf(metaerr.KindCorruptMeta, "META-CODEC-006", "unexpected map key %d", k)
		}
	}

	payload, ok := m[keyPayload].([]byte)
	if !ok {
		return e, metaerr.New(metaerr.KindCorruptMeta, "META-CODEC-007", "payload must be a byte string")
	}
	mn, ok := m[keyMagicNumber].(uint64)
	if !ok {
		return e, metaerr.New(metaerr.KindCorruptMeta, "META-CODEC-007", "magic number must be an unsigned integer")
	}
	ct, ok := m[keyContentType].(string)
	if !ok {
		return e, metaerr.New(metaerr.KindCorruptMeta, "META-CODEC-007", "content-type must be text")
	}
	e.Payload = payload
	e.MagicNumber = magic.Number(mn)
	e.ContentType = ContentType(ct)

	if v, present := m[keyContentEncoding]; present {
		s, ok := v.(string)
		if !ok || s == "" {
			return e, metaerr.New(metaerr.KindCorruptMeta, "META-CODEC-007", "content-encoding must be non-empty text")
		}
		e.ContentEncoding = ContentEncoding(s)
	}
	if v, present := m[keyContentLanguage]; present {
		s, ok := v.(string)
		if !ok || s == "" {
			return e, metaerr.New(metaerr.KindCorruptMeta, "META-CODEC-007", "content-language must be non-empty text")
		}
		e.ContentLanguage = ContentLanguage(s)
	}
	if err := e.Validate(); err != nil {
		return e, err
	}
	return e, nil
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) of data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
