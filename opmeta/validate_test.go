package opmeta

import (
	"testing"

	"rainlang.xyz/rainmeta/metaerr"
)

func strp(s string) *string { return &s }

func bits(lo, hi int) *BitRange { return &BitRange{lo, hi} }

func mustRule(t *testing.T, err error, rule string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", rule)
	}
	if !metaerr.IsKind(err, metaerr.KindValidator) {
		t.Fatalf("expected validator error, got %v", err)
	}
	if got := metaerr.RuleID(err); got != rule {
		t.Fatalf("expected rule %s, got %s (%v)", rule, got, err)
	}
}

func TestValidate_BitOverlapAndOrder(t *testing.T) {
	overlap := []OpMeta{{
		Name: "op",
		Operand: Operand{Args: []OperandArg{
			{Name: "a", Bits: bits(4, 7)},
			{Name: "b", Bits: bits(6, 9)},
		}},
	}}
	mustRule(t, Validate(overlap), RuleOperandBitOverlap)

	ordered := []OpMeta{{
		Name: "op",
		Operand: Operand{Args: []OperandArg{
			{Name: "a", Bits: bits(8, 15)},
			{Name: "b", Bits: bits(0, 7)},
		}},
	}}
	if err := Validate(ordered); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ascending := []OpMeta{{
		Name: "op",
		Operand: Operand{Args: []OperandArg{
			{Name: "a", Bits: bits(0, 7)},
			{Name: "b", Bits: bits(8, 15)},
		}},
	}}
	mustRule(t, Validate(ascending), RuleBadOperandArgOrder)
}

func TestValidate_Rules(t *testing.T) {
	cases := []struct {
		name string
		op   OpMeta
		rule string
	}{
		{
			name: "inverted bits",
			op:   OpMeta{Name: "op", Operand: Operand{Args: []OperandArg{{Name: "a", Bits: bits(7, 4)}}}},
			rule: RuleInvalidBitRange,
		},
		{
			name: "bits out of range",
			op:   OpMeta{Name: "op", Operand: Operand{Args: []OperandArg{{Name: "a", Bits: bits(0, 16)}}}},
			rule: RuleSchemaViolation,
		},
		{
			name: "bad name",
			op:   OpMeta{Name: "Op"},
			rule: RuleSchemaViolation,
		},
		{
			name: "empty aliases",
			op:   OpMeta{Name: "op", Aliases: []string{}},
			rule: RuleSchemaViolation,
		},
		{
			name: "bad arg computation",
			op: OpMeta{Name: "op", Operand: Operand{Args: []OperandArg{
				{Name: "a", Bits: bits(0, 3), Computation: strp("arg +")},
			}}},
			rule: RuleBadComputationExpression,
		},
		{
			name: "computation with foreign identifier",
			op: OpMeta{Name: "op", Operand: Operand{Args: []OperandArg{
				{Name: "a", Bits: bits(0, 3), Computation: strp("bits + 1")},
			}}},
			rule: RuleBadComputationExpression,
		},
		{
			name: "double inputs",
			op: OpMeta{Name: "op", Operand: Operand{Args: []OperandArg{
				{Name: "inputs", Bits: bits(8, 15)},
				{Name: "inputs", Bits: bits(0, 7)},
			}}},
			rule: RuleDuplicateReservedOperandName,
		},
		{
			name: "inverted valid range",
			op: OpMeta{Name: "op", Operand: Operand{Args: []OperandArg{
				{Name: "a", Bits: bits(0, 3), ValidRange: []ValidRange{{5, 2}}},
			}}},
			rule: RuleInvalidValidRange,
		},
		{
			name: "inputs bits without operand arg",
			op:   OpMeta{Name: "op", Inputs: Inputs{Spec: &InputSpec{Parameters: []Parameter{}, Bits: bits(0, 3)}}},
			rule: RuleMissingOperandBacking,
		},
		{
			name: "inputs arg without bits",
			op: OpMeta{
				Name:    "op",
				Operand: Operand{Args: []OperandArg{{Name: "inputs", Bits: bits(0, 3)}}},
				Inputs:  Inputs{Spec: &InputSpec{Parameters: []Parameter{}}},
			},
			rule: RuleMissingOperandBacking,
		},
		{
			name: "missing inputs computation",
			op: OpMeta{
				Name:    "op",
				Operand: Operand{Args: []OperandArg{{Name: "inputs", Bits: bits(0, 3), Computation: strp("arg + 1")}}},
				Inputs:  Inputs{Spec: &InputSpec{Parameters: []Parameter{}, Bits: bits(0, 3)}},
			},
			rule: RuleMissingComputation,
		},
		{
			name: "unexpected inputs computation",
			op: OpMeta{
				Name:    "op",
				Operand: Operand{Args: []OperandArg{{Name: "inputs", Bits: bits(0, 3)}}},
				Inputs:  Inputs{Spec: &InputSpec{Parameters: []Parameter{}, Bits: bits(0, 3), Computation: strp("bits")}},
			},
			rule: RuleUnexpectedComputation,
		},
		{
			name: "numeric inputs with inputs arg",
			op: OpMeta{
				Name:    "op",
				Operand: Operand{Args: []OperandArg{{Name: "inputs", Bits: bits(0, 3)}}},
			},
			rule: RuleUnexpectedOperandArg,
		},
		{
			name: "computed outputs without operand",
			op:   OpMeta{Name: "op", Outputs: Outputs{Computed: &ComputedOutput{Bits: BitRange{0, 3}}}},
			rule: RuleCannotComputeOutputWithoutOperand,
		},
		{
			name: "computed outputs without outputs arg",
			op: OpMeta{
				Name:    "op",
				Operand: Operand{Args: []OperandArg{{Name: "a", Bits: bits(0, 3)}}},
				Outputs: Outputs{Computed: &ComputedOutput{Bits: BitRange{0, 3}}},
			},
			rule: RuleMissingOperandBacking,
		},
		{
			name: "numeric outputs with outputs arg",
			op: OpMeta{
				Name:    "op",
				Operand: Operand{Args: []OperandArg{{Name: "outputs", Bits: bits(0, 3)}}},
				Outputs: Outputs{Count: 1},
			},
			rule: RuleUnexpectedOperandArg,
		},
		{
			name: "bad outputs computation",
			op: OpMeta{
				Name:    "op",
				Operand: Operand{Args: []OperandArg{{Name: "outputs", Bits: bits(0, 3), Computation: strp("arg")}}},
				Outputs: Outputs{Computed: &ComputedOutput{Bits: BitRange{0, 3}, Computation: strp("bits / 0")}},
			},
			rule: RuleBadComputationExpression,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mustRule(t, Validate([]OpMeta{tc.op}), tc.rule)
		})
	}
}

func TestValidate_DerivedInputsAndOutputs(t *testing.T) {
	op := OpMeta{
		Name: "call",
		Operand: Operand{Args: []OperandArg{
			{Name: "outputs", Bits: bits(13, 15)},
			{Name: "inputs", Bits: bits(8, 12), Computation: strp("arg * 2")},
			{Name: "source-index", Bits: bits(0, 7)},
		}},
		Inputs:  Inputs{Spec: &InputSpec{Parameters: []Parameter{{Name: "input", Spread: true}}, Bits: bits(8, 12), Computation: strp("bits * 2")}},
		Outputs: Outputs{Computed: &ComputedOutput{Bits: BitRange{13, 15}}},
	}
	if err := Validate([]OpMeta{op}); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	operand := uint16(0b101_00011_00000001)
	in, ok, err := op.InputCount(operand)
	if err != nil || !ok || in != 6 {
		t.Fatalf("InputCount = %d, %v, %v", in, ok, err)
	}
	out, err := op.OutputCount(operand)
	if err != nil || out != 5 {
		t.Fatalf("OutputCount = %d, %v", out, err)
	}
}

func TestValidate_DuplicateNamesAnyOrder(t *testing.T) {
	a := OpMeta{Name: "add", Aliases: []string{"plus"}}
	b := OpMeta{Name: "plus"}
	c := OpMeta{Name: "sum", Aliases: []string{"plus"}}

	for _, set := range [][]OpMeta{{a, b}, {b, a}, {a, c}, {c, a}} {
		mustRule(t, Validate(set), RuleDuplicateNameOrAlias)
	}
	if err := Validate([]OpMeta{a, {Name: "sub", Aliases: []string{"minus"}}}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateAll_CollectsPerRecord(t *testing.T) {
	metas := []OpMeta{
		{Name: "Bad"},
		{Name: "ok"},
		{Name: "op", Operand: Operand{Args: []OperandArg{{Name: "a", Bits: bits(3, 1)}}}},
		{Name: "ok"},
	}
	errs := ValidateAll(metas)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	want := []string{RuleSchemaViolation, RuleInvalidBitRange, RuleDuplicateNameOrAlias}
	for i, err := range errs {
		if got := metaerr.RuleID(err); got != want[i] {
			t.Fatalf("errs[%d] rule = %s, want %s", i, got, want[i])
		}
	}
}

func TestParseJSON(t *testing.T) {
	src := []byte(`[
		// constant operand
		{"name": "add", "desc": "adds", "operand": 0,
		 "inputs": {"parameters": [{"name": "input", "spread": true}]}, "outputs": 1,
		 "aliases": ["plus"]},
		{"name": "read-memory", "desc": "reads", "operand": [
			{"name": "type", "bits": [15, 15]},
			{"name": "offset", "bits": [0, 14], "validRange": [[0, 255]]},
		], "inputs": 0, "outputs": 1},
	]`)
	metas, err := ValidateJSON(src)
	if err != nil {
		t.Fatalf("ValidateJSON: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 records, got %d", len(metas))
	}
	if !metas[0].Operand.IsConstant() || metas[0].Inputs.Spec == nil || metas[0].Outputs.Count != 1 {
		t.Fatalf("unexpected first record: %+v", metas[0])
	}
	if got := metas[1].Operand.Args[1].Bits; got == nil || *got != (BitRange{0, 14}) {
		t.Fatalf("unexpected offset bits: %v", got)
	}

	single, err := ParseJSON([]byte(`{"name":"x","desc":"","operand":0,"inputs":0,"outputs":{"bits":[0,1]}}`))
	if err != nil {
		t.Fatalf("ParseJSON single: %v", err)
	}
	mustRule(t, Validate(single), RuleCannotComputeOutputWithoutOperand)

	if _, err := ValidateJSON([]byte(`{"name":"x","desc":"","operand":0,"inputs":0,"outputs":1,"aliases":[]}`)); metaerr.RuleID(err) != RuleSchemaViolation {
		t.Fatalf("empty aliases array: expected SchemaViolation, got %v", err)
	}

	for _, bad := range []string{``, `[]`, `{"name":"x","operand":1}`, `{"name":"x","extra":true}`} {
		if _, err := ParseJSON([]byte(bad)); metaerr.RuleID(err) != RuleSchemaViolation {
			t.Fatalf("ParseJSON(%q): expected SchemaViolation, got %v", bad, err)
		}
	}
}

func TestExtractBits(t *testing.T) {
	if got := ExtractBits(0xABCD, BitRange{0, 15}); got != 0xABCD {
		t.Fatalf("full range = %#x", got)
	}
	if got := ExtractBits(0xABCD, BitRange{4, 7}); got != 0xC {
		t.Fatalf("nibble = %#x", got)
	}
	if got := ExtractBits(0x8000, BitRange{15, 15}); got != 1 {
		t.Fatalf("top bit = %d", got)
	}
}
