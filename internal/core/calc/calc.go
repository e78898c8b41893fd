// Package calc evaluates the arithmetic formulas behind velocity fields.
//
// A velocity field derives its value from other fields in the same section,
// e.g. pace = "Running Distance / (Running Time / 60)". The caller supplies
// a snapshot of raw field values for one day; calc substitutes them into the
// formula and computes a single number, or reports that the formula has no
// value today. Nothing in this package panics, logs or touches state outside
// its arguments.
package calc

import (
	"errors"
	"math"
	"strings"
)

// Internal failure modes. They are collapsed to a single "no value" result
// at the public boundary: the UI shows an empty cell either way, so callers
// never get to branch on why a formula produced nothing.
var (
	errEmptyExpression   = errors.New("empty expression")
	errMissingDependency = errors.New("referenced field has no value")
	errUnknownToken      = errors.New("unrecognized character in expression")
	errBadNumber         = errors.New("malformed number literal")
	errUnexpectedEnd     = errors.New("unexpected end of expression")
	errUnexpectedToken   = errors.New("unexpected token")
	errUnbalancedParens  = errors.New("unbalanced parentheses")
	errDivisionByZero    = errors.New("division by zero")
	errNotFinite         = errors.New("result is not finite")
)

// Evaluate computes expression against a snapshot of raw field values.
// Map keys are the field names a formula may reference; a nil value means
// the field has no data today. The boolean is false when the formula has no
// value: empty or malformed input, any referenced field missing or nil,
// division by zero, or a non-finite result. All of those are expected,
// displayable outcomes ("no value"), not errors.
func Evaluate(expression string, values map[string]*float64) (float64, bool) {
	result, err := evaluate(expression, values)
	if err != nil {
		return 0, false
	}
	return result, true
}

func evaluate(expression string, values map[string]*float64) (float64, error) {
	if strings.TrimSpace(expression) == "" {
		return 0, errEmptyExpression
	}

	tokens, err := tokenize(expression, newSymbolTable(values))
	if err != nil {
		return 0, err
	}

	p := &parser{tokens: tokens}
	result, err := p.parseExpression()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, errUnexpectedToken
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, errNotFinite
	}

	return result, nil
}

// Dependencies reports which of fieldNames appear anywhere in expression,
// preserving fieldNames order. This is plain substring containment, not a
// parse: a name embedded in an unrelated longer token still counts. The
// result is informational (the schema editor lists which raw fields feed a
// formula), so the imprecision is acceptable and intentionally kept.
func Dependencies(expression string, fieldNames []string) []string {
	if expression == "" {
		return nil
	}

	var deps []string
	for _, name := range fieldNames {
		if name != "" && strings.Contains(expression, name) {
			deps = append(deps, name)
		}
	}
	return deps
}
