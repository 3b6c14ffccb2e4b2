package metastore

import (
	"errors"

	"rainlang.xyz/rainmeta/authoring"
	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/meta"
	"rainlang.xyz/rainmeta/metahash"
)

var errNoAuthoring = errors.New("metastore: deployer meta carries no authoring meta")

// entry is a derived cache item. Authoring entries hold the ABI-encoded
// authoring table keyed by its own hash.
type entry struct {
	hash      metahash.Hash
	data      []byte
	authoring bool
}

// decompose derives the entries implied by caching data. For a document that
// is one singleton entry per envelope; any authoring-meta envelope, in a
// document or alone, also yields an authoring entry. Data that does not parse
// as meta yields nothing.
func decompose(data []byte) []entry {
	envs, err := meta.SplitDocument(data)
	if err != nil {
		return nil
	}
	var out []entry
	document := meta.IsDocument(data)
	for _, e := range envs {
		if document {
			if b, err := meta.Encode(e); err == nil {
				out = append(out, entry{hash: metahash.Sum(b), data: b})
			}
		}
		if e.MagicNumber == magic.AuthoringMetaV1 {
			if ae, ok := authoringEntry(e); ok {
				out = append(out, ae)
			}
		}
	}
	return out
}

// authoringEntry returns the ABI-encoded table carried by e if it decodes as
// valid authoring meta.
func authoringEntry(e meta.Envelope) (entry, bool) {
	p, err := meta.DecodePayload(e, false)
	if err != nil || p.IsText() {
		return entry{}, false
	}
	b := p.Bytes()
	if _, err := authoring.Decode(b); err != nil {
		return entry{}, false
	}
	return entry{hash: metahash.Sum(b), data: b, authoring: true}, true
}

// findAuthoring returns the authoring-meta entry carried by data, if any.
func findAuthoring(data []byte) (entry, bool) {
	envs, err := meta.SplitDocument(data)
	if err != nil {
		return entry{}, false
	}
	for _, e := range envs {
		if e.MagicNumber == magic.AuthoringMetaV1 {
			return authoringEntry(e)
		}
	}
	return entry{}, false
}
