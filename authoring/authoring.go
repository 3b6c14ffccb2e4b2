// Package authoring transcodes authoring meta: the table of words an
// expression author may use, ABI-encoded as
//
//	(bytes32 word, uint8 operandParserOffset, string description)[]
//
// with each word NUL-padded to 32 bytes.
package authoring

import (
	"bytes"
	"regexp"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"rainlang.xyz/rainmeta/metaerr"
)

// WordSize is the fixed width of an encoded word.
const WordSize = 32

var wordPattern = regexp.MustCompile(`^[a-z][0-9a-z-]*$`)

// Entry is one authoring word.
type Entry struct {
	Word                string `json:"word"`
	Description         string `json:"description"`
	OperandParserOffset uint8  `json:"operandParserOffset"`
}

// wireEntry mirrors the ABI tuple; field names follow the ABI component names.
type wireEntry struct {
	Word                [WordSize]byte
	OperandParserOffset uint8
	Description         string
}

var arguments abi.Arguments

func init() {
	t, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "word", Type: "bytes32"},
		{Name: "operandParserOffset", Type: "uint8"},
		{Name: "description", Type: "string"},
	})
	if err != nil {
		panic("authoring: abi type: " + err.Error())
	}
	arguments = abi.Arguments{{Type: t}}
}

func invalid(ruleID, format string, args ...any) error {
	return metaerr.Newf(metaerr.KindInvalidAuthoringMeta, ruleID, format, args...)
}

// Decode parses ABI-encoded authoring meta.
func Decode(data []byte) ([]Entry, error) {
	vals, err := arguments.Unpack(data)
	if err != nil {
		return nil, metaerr.Wrap(metaerr.KindInvalidAuthoringMeta, "AUTH-001", "abi decode failed", err)
	}
	var wire []wireEntry
	if err := arguments.Copy(&wire, vals); err != nil {
		return nil, metaerr.Wrap(metaerr.KindInvalidAuthoringMeta, "AUTH-001", "abi decode failed", err)
	}
	entries := make([]Entry, len(wire))
	for i, w := range wire {
		entries[i] = Entry{
			Word:                string(bytes.TrimRight(w.Word[:], "\x00")),
			Description:         w.Description,
			OperandParserOffset: w.OperandParserOffset,
		}
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Encode validates entries and ABI-encodes them.
func Encode(entries []Entry) ([]byte, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}
	wire := make([]wireEntry, len(entries))
	for i, e := range entries {
		copy(wire[i].Word[:], e.Word)
		wire[i].OperandParserOffset = e.OperandParserOffset
		wire[i].Description = e.Description
	}
	out, err := arguments.Pack(wire)
	if err != nil {
		return nil, metaerr.Wrap(metaerr.KindInvalidAuthoringMeta, "AUTH-002", "abi encode failed", err)
	}
	return out, nil
}

// Validate checks that entries is non-empty and every word is well formed.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return invalid("AUTH-003", "authoring meta has no entries")
	}
	for i, e := range entries {
		if len(e.Word) > WordSize {
			return invalid("AUTH-004", "entry[%d] word %q exceeds %d bytes", i, e.Word, WordSize)
		}
		if !wordPattern.MatchString(e.Word) {
			return invalid("AUTH-005", "entry[%d] word %q does not match %s", i, e.Word, wordPattern)
		}
	}
	return nil
}

// Table indexes entries by word. Later duplicates do not replace earlier ones.
type Table struct {
	entries []Entry
	index   map[string]int
}

// NewTable builds a lookup table over entries.
func NewTable(entries []Entry) *Table {
	t := &Table{entries: entries, index: make(map[string]int, len(entries))}
	for i, e := range entries {
		if _, ok := t.index[e.Word]; !ok {
			t.index[e.Word] = i
		}
	}
	return t
}

// Lookup returns the entry for word and its position in the table.
func (t *Table) Lookup(word string) (Entry, int, bool) {
	i, ok := t.index[word]
	if !ok {
		return Entry{}, -1, false
	}
	return t.entries[i], i, true
}

// Words returns the words in table order.
func (t *Table) Words() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Word
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }
