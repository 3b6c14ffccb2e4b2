package opmeta

import (
	"fmt"
	"regexp"
	"sort"

	"rainlang.xyz/rainmeta/metaerr"
)

// Rule IDs carried by validator errors. All validator errors have
// Kind metaerr.KindValidator.
const (
	RuleSchemaViolation                   = "SchemaViolation"
	RuleDuplicateReservedOperandName      = "DuplicateReservedOperandName"
	RuleBadComputationExpression          = "BadComputationExpression"
	RuleInvalidBitRange                   = "InvalidBitRange"
	RuleBadOperandArgOrder                = "BadOperandArgOrder"
	RuleOperandBitOverlap                 = "OperandBitOverlap"
	RuleInvalidValidRange                 = "InvalidValidRange"
	RuleMissingOperandBacking             = "MissingOperandBacking"
	RuleMissingComputation                = "MissingComputation"
	RuleUnexpectedComputation             = "UnexpectedComputation"
	RuleUnexpectedOperandArg              = "UnexpectedOperandArg"
	RuleCannotComputeOutputWithoutOperand = "CannotComputeOutputWithoutOperand"
	RuleDuplicateNameOrAlias              = "DuplicateNameOrAlias"
)

const (
	reservedInputs  = "inputs"
	reservedOutputs = "outputs"

	// Identifiers bound in computation expressions.
	argIdent  = "arg"
	bitsIdent = "bits"

	// sampleValue is substituted for the bound identifier when checking that a
	// computation evaluates.
	sampleValue = 30

	maxBit        = 15
	maxValidRange = 65535
)

var namePattern = regexp.MustCompile(`^[a-z][0-9a-z-]*$`)

func fail(rule string, op *OpMeta, format string, args ...any) error {
	name := "<unnamed>"
	if op != nil && op.Name != "" {
		name = op.Name
	}
	return metaerr.Newf(metaerr.KindValidator, rule, "invalid meta for %s: %s", name, fmt.Sprintf(format, args...))
}

// Validate checks every record in order and then name/alias uniqueness across
// the set, returning the first violation. It is pure: the same input always
// yields the same verdict.
func Validate(metas []OpMeta) error {
	for i := range metas {
		if err := validateOne(&metas[i]); err != nil {
			return err
		}
	}
	return checkNames(metas)
}

// ValidateAll returns every record-level violation (at most one per record,
// in record order) followed by any duplicate name/alias violation.
func ValidateAll(metas []OpMeta) []error {
	var out []error
	for i := range metas {
		if err := validateOne(&metas[i]); err != nil {
			out = append(out, err)
		}
	}
	if err := checkNames(metas); err != nil {
		out = append(out, err)
	}
	return out
}

func validateOne(op *OpMeta) error {
	if err := checkSchema(op); err != nil {
		return err
	}

	var inputsArg, outputsArg *OperandArg
	args := op.Operand.Args
	for j := range args {
		arg := &args[j]
		switch arg.Name {
		case reservedInputs:
			if inputsArg != nil {
				return fail(RuleDuplicateReservedOperandName, op, `double %q named operand args`, reservedInputs)
			}
			inputsArg = arg
		case reservedOutputs:
			if outputsArg != nil {
				return fail(RuleDuplicateReservedOperandName, op, `double %q named operand args`, reservedOutputs)
			}
			outputsArg = arg
		}

		if arg.Computation != nil {
			if _, err := EvalExpr(*arg.Computation, argIdent, sampleValue); err != nil {
				return fail(RuleBadComputationExpression, op, `bad "computation" equation for %s: %v`, arg.Name, err)
			}
		}
		bits := *arg.Bits
		if bits[0] > bits[1] {
			return fail(RuleInvalidBitRange, op, "start bit greater than end bit for %s", arg.Name)
		}
		for _, vr := range arg.ValidRange {
			if len(vr) == 2 && vr[0] > vr[1] {
				return fail(RuleInvalidValidRange, op, "valid range start greater than end for %s", arg.Name)
			}
		}
		for k := j + 1; k < len(args); k++ {
			later := *args[k].Bits
			if overlaps(bits, later) {
				return fail(RuleOperandBitOverlap, op, "operand args bits overlap (%s and %s)", arg.Name, args[k].Name)
			}
			if bits[0] <= later[1] {
				return fail(RuleBadOperandArgOrder, op, "bad operand args order, should be from high to low bits")
			}
		}
	}

	if err := checkInputs(op, inputsArg); err != nil {
		return err
	}
	return checkOutputs(op, !op.Operand.IsConstant(), outputsArg)
}

func checkInputs(op *OpMeta, inputsArg *OperandArg) error {
	spec := op.Inputs.Spec
	if spec == nil {
		if inputsArg != nil {
			return fail(RuleUnexpectedOperandArg, op, "unexpected input type, must be derived from bits")
		}
		return nil
	}
	if inputsArg == nil {
		if spec.Bits != nil || spec.Computation != nil {
			return fail(RuleMissingOperandBacking, op, `unexpected "bits" or "computation" fields for inputs`)
		}
		return nil
	}
	if spec.Bits == nil {
		return fail(RuleMissingOperandBacking, op, `must have specified "bits" field for inputs`)
	}
	if err := checkComputationAgreement(op, reservedInputs, inputsArg, spec.Computation); err != nil {
		return err
	}
	return checkDerived(op, reservedInputs, *spec.Bits, spec.Computation)
}

func checkOutputs(op *OpMeta, hasOperandArgs bool, outputsArg *OperandArg) error {
	computed := op.Outputs.Computed
	if computed == nil {
		if outputsArg != nil {
			return fail(RuleUnexpectedOperandArg, op, "unexpected output type, must be derived from bits")
		}
		return nil
	}
	if !hasOperandArgs {
		return fail(RuleCannotComputeOutputWithoutOperand, op, "cannot have computed output")
	}
	if outputsArg == nil {
		return fail(RuleMissingOperandBacking, op, `computed outputs require an %q operand arg`, reservedOutputs)
	}
	if err := checkComputationAgreement(op, reservedOutputs, outputsArg, computed.Computation); err != nil {
		return err
	}
	return checkDerived(op, reservedOutputs, computed.Bits, computed.Computation)
}

func checkComputationAgreement(op *OpMeta, field string, arg *OperandArg, computation *string) error {
	switch {
	case arg.Computation != nil && computation == nil:
		return fail(RuleMissingComputation, op, `must have specified "computation" field for %s`, field)
	case arg.Computation == nil && computation != nil:
		return fail(RuleUnexpectedComputation, op, `unexpected "computation" field for %s`, field)
	}
	return nil
}

func checkDerived(op *OpMeta, field string, bits BitRange, computation *string) error {
	if bits[0] > bits[1] {
		return fail(RuleInvalidBitRange, op, "start bit greater than end bit for %s", field)
	}
	if computation != nil {
		if _, err := EvalExpr(*computation, bitsIdent, sampleValue); err != nil {
			return fail(RuleBadComputationExpression, op, `bad "computation" equation for %s: %v`, field, err)
		}
	}
	return nil
}

func checkSchema(op *OpMeta) error {
	if !namePattern.MatchString(op.Name) {
		return fail(RuleSchemaViolation, op, "name %q does not match %s", op.Name, namePattern)
	}
	if op.Aliases != nil && len(op.Aliases) == 0 {
		return fail(RuleSchemaViolation, op, "aliases is present but empty")
	}
	for _, a := range op.Aliases {
		if !namePattern.MatchString(a) {
			return fail(RuleSchemaViolation, op, "alias %q does not match %s", a, namePattern)
		}
	}
	for _, arg := range op.Operand.Args {
		if !namePattern.MatchString(arg.Name) {
			return fail(RuleSchemaViolation, op, "operand arg name %q does not match %s", arg.Name, namePattern)
		}
		if arg.Bits == nil {
			return fail(RuleSchemaViolation, op, "operand arg %s is missing bits", arg.Name)
		}
		if err := checkBitBounds(op, arg.Name, *arg.Bits); err != nil {
			return err
		}
		for _, vr := range arg.ValidRange {
			if len(vr) != 1 && len(vr) != 2 {
				return fail(RuleSchemaViolation, op, "valid range for %s must have 1 or 2 items", arg.Name)
			}
			for _, v := range vr {
				if v < 0 || v > maxValidRange {
					return fail(RuleSchemaViolation, op, "valid range value %d for %s out of bounds", v, arg.Name)
				}
			}
		}
	}
	if spec := op.Inputs.Spec; spec != nil {
		for _, p := range spec.Parameters {
			if !namePattern.MatchString(p.Name) {
				return fail(RuleSchemaViolation, op, "input parameter name %q does not match %s", p.Name, namePattern)
			}
		}
		if spec.Bits != nil {
			if err := checkBitBounds(op, reservedInputs, *spec.Bits); err != nil {
				return err
			}
		}
	}
	if op.Outputs.Computed != nil {
		if err := checkBitBounds(op, reservedOutputs, op.Outputs.Computed.Bits); err != nil {
			return err
		}
	} else if op.Outputs.Count < 0 {
		return fail(RuleSchemaViolation, op, "outputs must be non-negative")
	}
	return nil
}

func checkBitBounds(op *OpMeta, field string, r BitRange) error {
	for _, b := range r {
		if b < 0 || b > maxBit {
			return fail(RuleSchemaViolation, op, "bit index %d for %s out of range 0..%d", b, field, maxBit)
		}
	}
	return nil
}

func overlaps(a, b BitRange) bool {
	return a[0] <= b[1] && b[0] <= a[1]
}

// checkNames reports the first name or alias (in sorted order) declared more
// than once across metas.
func checkNames(metas []OpMeta) error {
	counts := make(map[string]int)
	for _, op := range metas {
		counts[op.Name]++
		for _, a := range op.Aliases {
			counts[a]++
		}
	}
	var dups []string
	for name, n := range counts {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	sort.Strings(dups)
	return metaerr.Newf(metaerr.KindValidator, RuleDuplicateNameOrAlias, "invalid meta: duplicated names or aliases %q", dups[0])
}
