// Package magic holds the closed registry of Rain meta magic numbers.
//
// A magic number is an 8-byte tag identifying a document or envelope kind.
// Unknown values are rejected, never passed through.
package magic

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"rainlang.xyz/rainmeta/metaerr"
)

// Number is an 8-byte magic number.
type Number uint64

const (
	// RainMetaDocumentV1 prefixes every Rain meta document.
	RainMetaDocumentV1 Number = 0xff0a89c674ee7874
	// SolidityABIV2 tags a Solidity ABI JSON payload.
	SolidityABIV2 Number = 0xffe5ffb4a3ff2cde
	// OpsMetaV1 tags opcode metadata.
	OpsMetaV1 Number = 0xffe5282f43e495b4
	// ContractMetaV1 tags contract metadata.
	ContractMetaV1 Number = 0xffc21bbf86cc199b
	// AuthoringMetaV1 tags ABI-encoded native parser authoring metadata.
	AuthoringMetaV1 Number = 0xffe9e3a02ca8e235
	// DotrainV1 tags dotrain source text.
	DotrainV1 Number = 0xffdac2f2f37be894
	// RainlangV1 tags rainlang source text.
	RainlangV1 Number = 0xff1c198cec3b48a7
	// ExpressionDeployerV2BytecodeV1 tags deployer bytecode.
	ExpressionDeployerV2BytecodeV1 Number = 0xffdb988a8cd04d32
	// AddressList tags a list of addresses.
	AddressList Number = 0xffb2637608c09e38
)

var registry = []struct {
	n    Number
	name string
}{
	{RainMetaDocumentV1, "RainMetaDocumentV1"},
	{SolidityABIV2, "SolidityABIV2"},
	{OpsMetaV1, "OpsMetaV1"},
	{ContractMetaV1, "ContractMetaV1"},
	{AuthoringMetaV1, "AuthoringMetaV1"},
	{DotrainV1, "DotrainV1"},
	{RainlangV1, "RainlangV1"},
	{ExpressionDeployerV2BytecodeV1, "ExpressionDeployerV2BytecodeV1"},
	{AddressList, "AddressList"},
}

// All returns every known magic number in registry order.
func All() []Number {
	out := make([]Number, 0, len(registry))
	for _, r := range registry {
		out = append(out, r.n)
	}
	return out
}

// Known reports whether n is a member of the registry.
func Known(n uint64) bool {
	for _, r := range registry {
		if uint64(r.n) == n {
			return true
		}
	}
	return false
}

// Parse returns n as a Number, or an UnknownMagicNumber error.
func Parse(n uint64) (Number, error) {
	if !Known(n) {
		return 0, metaerr.Newf(metaerr.KindUnknownMagicNumber, "META-MAGIC-001", "unknown magic number 0x%016x", n)
	}
	return Number(n), nil
}

// ParseString parses a decimal (as returned by subgraphs) or 0x-prefixed hex
// magic number and checks registry membership.
func ParseString(s string) (Number, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, metaerr.Wrap(metaerr.KindInvalidInput, "META-MAGIC-002", fmt.Sprintf("malformed magic number %q", s), err)
	}
	return Parse(v)
}

// Name returns the registry name, or "" for unknown values.
func (n Number) Name() string {
	for _, r := range registry {
		if r.n == n {
			return r.name
		}
	}
	return ""
}

// String renders n as 0x-prefixed lower-case hex.
func (n Number) String() string {
	return fmt.Sprintf("0x%016x", uint64(n))
}

// Bytes returns the 8-byte big-endian form used as a document prefix.
func (n Number) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return b[:]
}

// IsDocument reports whether n is the document wrapper magic number.
func (n Number) IsDocument() bool { return n == RainMetaDocumentV1 }
