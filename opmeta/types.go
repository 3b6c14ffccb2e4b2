// Package opmeta models opcode metadata and validates operand bit layouts.
//
// An opcode's operand is a 16-bit word whose bits may be split into named
// arguments. The validator checks that argument ranges are well formed,
// ordered from high to low bits and non-overlapping, that inputs/outputs which
// are derived from operand bits are backed by a matching argument, that every
// computation expression evaluates, and that names and aliases are unique across
// the whole set.
package opmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BitRange is an inclusive [start, end] range of operand bit indices.
type BitRange [2]int

// Width returns the number of bits covered.
func (r BitRange) Width() int { return r[1] - r[0] + 1 }

// Parameter describes one input of an opcode.
type Parameter struct {
	Name   string `json:"name"`
	Desc   string `json:"desc,omitempty"`
	Spread bool   `json:"spread,omitempty"`
}

// ValidRange is either a single allowed value [n] or an inclusive range [lo, hi].
type ValidRange []int

// OperandArg is a named sub-field of the operand.
type OperandArg struct {
	Name        string       `json:"name"`
	Desc        string       `json:"desc,omitempty"`
	Bits        *BitRange    `json:"bits,omitempty"`
	Computation *string      `json:"computation,omitempty"`
	ValidRange  []ValidRange `json:"validRange,omitempty"`
}

// Operand is either the constant 0 (Args == nil) or a list of arguments.
type Operand struct {
	Args []OperandArg
}

// IsConstant reports whether the operand is the constant 0.
func (o Operand) IsConstant() bool { return o.Args == nil }

func (o Operand) MarshalJSON() ([]byte, error) {
	if o.Args == nil {
		return []byte("0"), nil
	}
	return json.Marshal(o.Args)
}

func (o *Operand) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var args []OperandArg
		if err := json.Unmarshal(b, &args); err != nil {
			return err
		}
		if len(args) == 0 {
			return fmt.Errorf("operand args must not be empty")
		}
		o.Args = args
		return nil
	}
	if string(b) != "0" {
		return fmt.Errorf("operand must be 0 or an array of args")
	}
	o.Args = nil
	return nil
}

// InputSpec describes opcode inputs, optionally derived from operand bits.
type InputSpec struct {
	Parameters  []Parameter `json:"parameters"`
	Bits        *BitRange   `json:"bits,omitempty"`
	Computation *string     `json:"computation,omitempty"`
}

// Inputs is either the constant 0 (Spec == nil) or an InputSpec.
type Inputs struct {
	Spec *InputSpec
}

func (in Inputs) MarshalJSON() ([]byte, error) {
	if in.Spec == nil {
		return []byte("0"), nil
	}
	return json.Marshal(in.Spec)
}

func (in *Inputs) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var spec InputSpec
		if err := json.Unmarshal(b, &spec); err != nil {
			return err
		}
		if spec.Parameters == nil {
			return fmt.Errorf("inputs must declare parameters")
		}
		in.Spec = &spec
		return nil
	}
	if string(b) != "0" {
		return fmt.Errorf("inputs must be 0 or an object")
	}
	in.Spec = nil
	return nil
}

// ComputedOutput derives the output count from operand bits.
type ComputedOutput struct {
	Bits        BitRange `json:"bits"`
	Computation *string  `json:"computation,omitempty"`
}

// Outputs is either a fixed count or a ComputedOutput.
type Outputs struct {
	Count    int
	Computed *ComputedOutput
}

func (out Outputs) MarshalJSON() ([]byte, error) {
	if out.Computed != nil {
		return json.Marshal(out.Computed)
	}
	return json.Marshal(out.Count)
}

func (out *Outputs) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var raw struct {
			Bits        *BitRange `json:"bits"`
			Computation *string   `json:"computation,omitempty"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		if raw.Bits == nil {
			return fmt.Errorf("computed outputs must declare bits")
		}
		out.Computed = &ComputedOutput{Bits: *raw.Bits, Computation: raw.Computation}
		out.Count = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("outputs must be a non-negative integer or an object")
	}
	if n < 0 {
		return fmt.Errorf("outputs must be a non-negative integer")
	}
	out.Count = n
	out.Computed = nil
	return nil
}

// OpMeta is the metadata of a single opcode.
type OpMeta struct {
	Name    string   `json:"name"`
	Desc    string   `json:"desc"`
	Operand Operand  `json:"operand"`
	Inputs  Inputs   `json:"inputs"`
	Outputs Outputs  `json:"outputs"`
	Aliases []string `json:"aliases,omitempty"`
}
