// Package calc evaluates the arithmetic operations a calculation can hold.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Type is the operation kind of a calculation.
type Type string

const (
	Addition       Type = "addition"
	Subtraction    Type = "subtraction"
	Multiplication Type = "multiplication"
	Division       Type = "division"
)

// MinInputs is the smallest accepted number of operands for every type.
const MinInputs = 2

var (
	ErrUnknownType    = errors.New("unsupported calculation type")
	ErrTooFewInputs   = fmt.Errorf("at least %d inputs are required", MinInputs)
	ErrNonFinite      = errors.New("inputs must be finite numbers")
	ErrOverflow       = errors.New("result is out of the representable range")
	ErrDivisionByZero = errors.New("cannot divide by zero")
)

var aliases = map[string]Type{
	"addition":       Addition,
	"add":            Addition,
	"subtraction":    Subtraction,
	"sub":            Subtraction,
	"multiplication": Multiplication,
	"mul":            Multiplication,
	"division":       Division,
	"div":            Division,
}

// ParseType accepts the long names and the add/sub/mul/div shorthands,
// case-insensitively, and returns the canonical long form.
func ParseType(s string) (Type, error) {
	t, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Compute folds inputs left to right with the operation named by t.  The
// result is always finite: a fold that overflows to ±Inf (or NaN) returns
// ErrOverflow.
func Compute(t Type, inputs []float64) (float64, error) {
	canon, ok := aliases[string(t)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if len(inputs) < MinInputs {
		return 0, ErrTooFewInputs
	}
	for _, v := range inputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, ErrNonFinite
		}
	}

	acc := inputs[0]
	for i, v := range inputs[1:] {
		switch canon {
		case Addition:
			acc += v
		case Subtraction:
			acc -= v
		case Multiplication:
			acc *= v
		case Division:
			if v == 0 {
				return 0, fmt.Errorf("%w (input %d)", ErrDivisionByZero, i+2)
			}
			acc /= v
		}
	}
	if math.IsInf(acc, 0) || math.IsNaN(acc) {
		return 0, ErrOverflow
	}
	return acc, nil
}
