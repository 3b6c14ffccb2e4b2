// Package meta implements the Rain meta envelope codec and document assembler.
//
// An Envelope is one unit of metadata serialized as a canonical CBOR map with
// fixed integer keys:
//
//	0: payload          (byte string)
//	1: magic number     (unsigned integer)
//	2: content-type     (text)
//	3: content-encoding (text, optional)
//	4: content-language (text, optional)
//
// A RainMetaDocument is the 8-byte document magic number followed by one or
// more encoded envelopes. Encoding uses Core Deterministic Encoding
// (RFC 8949 §4.2) so that the same envelope always produces the same bytes;
// meta hashes are computed over those bytes.
//
// For single envelopes:
//
//	b, err := meta.Encode(env)
//	envs, err := meta.Decode(b)
//
// For documents:
//
//	doc, err := meta.Assemble(envs)
//	h, err := meta.Hash(envs, true)
//	envs, err := meta.SplitDocument(doc)
package meta
