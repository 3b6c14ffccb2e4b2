package meta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var aliasPattern = regexp.MustCompile(`^[a-z][0-9a-z-]*$`)

// ContractMeta describes a contract that receives expressions in at least one
// of its methods.
type ContractMeta struct {
	Name    string   `json:"name"`
	AbiName string   `json:"abiName"`
	Desc    string   `json:"desc"`
	Alias   string   `json:"alias"`
	Source  string   `json:"source"`
	Methods []Method `json:"methods"`
}

type Method struct {
	Name        string       `json:"name"`
	AbiName     string       `json:"abiName"`
	Desc        string       `json:"desc"`
	Inputs      []Input      `json:"inputs,omitempty"`
	Expressions []Expression `json:"expressions"`
}

type Input struct {
	Name    string `json:"name"`
	AbiName string `json:"abiName"`
	Desc    string `json:"desc"`
	Path    string `json:"path"`
}

type Expression struct {
	Name           string          `json:"name"`
	AbiName        string          `json:"abiName"`
	Desc           string          `json:"desc"`
	Path           string          `json:"path"`
	SignedContext  *bool           `json:"signedContext,omitempty"`
	CallerContext  *bool           `json:"callerContext,omitempty"`
	ContextColumns []ContextColumn `json:"contextColumns,omitempty"`
}

type ContextColumn struct {
	Name        string        `json:"name"`
	Desc        string        `json:"desc,omitempty"`
	Alias       string        `json:"alias"`
	ColumnIndex int           `json:"columnIndex"`
	Cells       []ContextCell `json:"cells,omitempty"`
}

type ContextCell struct {
	Name      string `json:"name"`
	Desc      string `json:"desc,omitempty"`
	Alias     string `json:"alias"`
	CellIndex int    `json:"cellIndex"`
}

// Check reports the first structural problem with m.
func (m *ContractMeta) Check() error {
	if m.Name == "" {
		return fmt.Errorf("contract name is empty")
	}
	if !aliasPattern.MatchString(m.Alias) {
		return fmt.Errorf("contract alias %q is invalid", m.Alias)
	}
	if len(m.Methods) == 0 {
		return fmt.Errorf("contract has no methods")
	}
	for _, mt := range m.Methods {
		if mt.Name == "" {
			return fmt.Errorf("method name is empty")
		}
		if mt.Inputs != nil && len(mt.Inputs) == 0 {
			return fmt.Errorf("method %s: inputs must be omitted or non-empty", mt.Name)
		}
		for _, in := range mt.Inputs {
			if in.Name == "" {
				return fmt.Errorf("method %s: input name is empty", mt.Name)
			}
		}
		if len(mt.Expressions) == 0 {
			return fmt.Errorf("method %s has no expressions", mt.Name)
		}
		for _, ex := range mt.Expressions {
			if err := ex.check(); err != nil {
				return fmt.Errorf("method %s: %w", mt.Name, err)
			}
		}
	}
	return nil
}

func (ex *Expression) check() error {
	if ex.Name == "" {
		return fmt.Errorf("expression name is empty")
	}
	if ex.ContextColumns != nil && len(ex.ContextColumns) == 0 {
		return fmt.Errorf("expression %s: context columns must be omitted or non-empty", ex.Name)
	}
	for _, c := range ex.ContextColumns {
		if c.Name == "" || !aliasPattern.MatchString(c.Alias) {
			return fmt.Errorf("expression %s: invalid context column %q", ex.Name, c.Alias)
		}
		if c.ColumnIndex < 0 || c.ColumnIndex > 255 {
			return fmt.Errorf("expression %s: column index %d out of range", ex.Name, c.ColumnIndex)
		}
		if c.Cells != nil && len(c.Cells) == 0 {
			return fmt.Errorf("expression %s: column %s cells must be omitted or non-empty", ex.Name, c.Alias)
		}
		for _, cell := range c.Cells {
			if cell.Name == "" || !aliasPattern.MatchString(cell.Alias) {
				return fmt.Errorf("expression %s: invalid context cell %q", ex.Name, cell.Alias)
			}
			if cell.CellIndex < 0 || cell.CellIndex > 255 {
				return fmt.Errorf("expression %s: cell index %d out of range", ex.Name, cell.CellIndex)
			}
		}
	}
	return nil
}

// AbiEntry is one item of a Solidity JSON ABI. Fields other than type and name
// are kept verbatim.
type AbiEntry struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`

	hasName bool
	rest    map[string]json.RawMessage
}

func (e *AbiEntry) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if raw, ok := m["type"]; ok {
		if err := json.Unmarshal(raw, &e.Type); err != nil {
			return fmt.Errorf("abi entry type: %w", err)
		}
	}
	if raw, ok := m["name"]; ok {
		e.hasName = true
		if err := json.Unmarshal(raw, &e.Name); err != nil {
			return fmt.Errorf("abi entry name: %w", err)
		}
	}
	delete(m, "type")
	delete(m, "name")
	e.rest = m
	return nil
}

func (e AbiEntry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.rest)+2)
	for k, v := range e.rest {
		m[k] = v
	}
	m["type"] = e.Type
	if e.Name != "" {
		m["name"] = e.Name
	}
	return json.Marshal(m)
}

// AbiMeta is a Solidity JSON ABI.
type AbiMeta []AbiEntry

// Check reports the first structural problem with m.
func (m AbiMeta) Check() error {
	if len(m) == 0 {
		return fmt.Errorf("abi is empty")
	}
	for i, e := range m {
		if e.Type == "" {
			return fmt.Errorf("abi entry %d has no type", i)
		}
		if e.hasName && e.Name == "" {
			return fmt.Errorf("abi entry %d has an invalid name", i)
		}
	}
	return nil
}

// Interface parses m into a go-ethereum ABI.
func (m AbiMeta) Interface() (abi.ABI, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return abi.ABI{}, err
	}
	return abi.JSON(bytes.NewReader(b))
}
