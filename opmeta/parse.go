package opmeta

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/jsonc"

	"rainlang.xyz/rainmeta/metaerr"
)

// ParseJSON decodes a single opcode record or an array of records. Comments and
// trailing commas are accepted.
func ParseJSON(data []byte) ([]OpMeta, error) {
	clean := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(clean) == 0 {
		return nil, metaerr.New(metaerr.KindValidator, RuleSchemaViolation, "empty opcode meta")
	}
	dec := func(v any) error {
		d := json.NewDecoder(bytes.NewReader(clean))
		d.DisallowUnknownFields()
		return d.Decode(v)
	}
	if clean[0] == '{' {
		var one OpMeta
		if err := dec(&one); err != nil {
			return nil, metaerr.Wrap(metaerr.KindValidator, RuleSchemaViolation, "malformed opcode meta", err)
		}
		return []OpMeta{one}, nil
	}
	var many []OpMeta
	if err := dec(&many); err != nil {
		return nil, metaerr.Wrap(metaerr.KindValidator, RuleSchemaViolation, "malformed opcode meta", err)
	}
	if len(many) == 0 {
		return nil, metaerr.New(metaerr.KindValidator, RuleSchemaViolation, "opcode meta array is empty")
	}
	return many, nil
}

// ValidateJSON parses data and validates the resulting records.
func ValidateJSON(data []byte) ([]OpMeta, error) {
	metas, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(metas); err != nil {
		return nil, err
	}
	return metas, nil
}

// ExtractBits returns the value of bits r within operand.
func ExtractBits(operand uint16, r BitRange) uint16 {
	width := r.Width()
	if width <= 0 {
		return 0
	}
	mask := uint32(1)<<uint(width) - 1
	return uint16((uint32(operand) >> uint(r[0])) & mask)
}

// InputCount resolves the number of inputs an opcode takes for the given
// operand. ok is false when inputs are declared but not derived from bits, in
// which case the caller supplies the count.
func (m *OpMeta) InputCount(operand uint16) (n int64, ok bool, err error) {
	spec := m.Inputs.Spec
	if spec == nil {
		return 0, true, nil
	}
	if spec.Bits == nil {
		return int64(len(spec.Parameters)), !hasSpread(spec.Parameters), nil
	}
	v := int64(ExtractBits(operand, *spec.Bits))
	if spec.Computation == nil {
		return v, true, nil
	}
	n, err = EvalExpr(*spec.Computation, bitsIdent, v)
	return n, err == nil, err
}

// OutputCount resolves the number of outputs an opcode produces for the given
// operand.
func (m *OpMeta) OutputCount(operand uint16) (int64, error) {
	c := m.Outputs.Computed
	if c == nil {
		return int64(m.Outputs.Count), nil
	}
	v := int64(ExtractBits(operand, c.Bits))
	if c.Computation == nil {
		return v, nil
	}
	return EvalExpr(*c.Computation, bitsIdent, v)
}

func hasSpread(ps []Parameter) bool {
	for _, p := range ps {
		if p.Spread {
			return true
		}
	}
	return false
}
