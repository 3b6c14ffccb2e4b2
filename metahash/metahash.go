// Package metahash computes and renders Rain meta content addresses.
//
// A MetaHash is the legacy Keccak-256 digest of canonical meta bytes. At the API
// surface it is always rendered lower-case with a 0x prefix. For CAS backends that
// key objects by CID, the same digest is wrapped as a CIDv1 (raw codec,
// keccak-256 multihash).
package metahash

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/sha3"

	"rainlang.xyz/rainmeta/metaerr"
)

// Size is the digest length in bytes.
const Size = 32

// Hash is a 32-byte keccak-256 digest.
type Hash [Size]byte

// Zero is the undefined hash.
var Zero Hash

// Sum returns the keccak-256 digest of data.
func Sum(data []byte) Hash {
	var h Hash
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	d.Sum(h[:0])
	return h
}

// Parse parses a 0x-prefixed, 64 hex character hash. Upper-case hex is accepted.
func Parse(s string) (Hash, error) {
	var h Hash
	if len(s) != 2+2*Size || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return h, metaerr.Newf(metaerr.KindInvalidInput, "META-HASH-001", "invalid meta hash %q", s)
	}
	if _, err := hex.Decode(h[:], []byte(s[2:])); err != nil {
		return Zero, metaerr.Wrap(metaerr.KindInvalidInput, "META-HASH-001", "invalid meta hash", err)
	}
	return h, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Hash {
	h, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return h
}

// String renders h lower-case with a 0x prefix.
func (h Hash) String() string { return hexutil.Encode(h[:]) }

// Defined reports whether h is not the zero hash.
func (h Hash) Defined() bool { return h != Zero }

// Verify reports whether data hashes to h.
func (h Hash) Verify(data []byte) bool { return Sum(data) == h }

// CID wraps h as a CIDv1 with the raw codec and a keccak-256 multihash.
func (h Hash) CID() (cid.Cid, error) {
	mh, err := multihash.Encode(h[:], multihash.KECCAK_256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// FromCID extracts the keccak-256 digest from a CID produced by Hash.CID.
func FromCID(id cid.Cid) (Hash, error) {
	var h Hash
	if !id.Defined() {
		return h, metaerr.New(metaerr.KindInvalidInput, "META-HASH-002", "undefined cid")
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return h, metaerr.Wrap(metaerr.KindInvalidInput, "META-HASH-002", "invalid multihash", err)
	}
	if dec.Code != multihash.KECCAK_256 || len(dec.Digest) != Size {
		return h, metaerr.Newf(metaerr.KindInvalidInput, "META-HASH-002", "cid %s is not a keccak-256 meta hash", id)
	}
	copy(h[:], dec.Digest)
	return h, nil
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// EncodeHex renders arbitrary bytes lower-case with a 0x prefix.
func EncodeHex(b []byte) string { return hexutil.Encode(b) }

// DecodeHex decodes hex with or without a 0x prefix, in any case.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, metaerr.Wrap(metaerr.KindInvalidInput, "META-HEX-001", "invalid hex", err)
	}
	return b, nil
}
