package engine

import (
	"math"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

func mismatch(op byte, a, b Value) error {
	return errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
		Detail("%s: operands %T and %T", il.OpcodeName(op), a, b).
		Build()
}

func (m *Machine) binary(op byte, a, b Value) (Value, error) {
	switch op {
	case il.OpCeq:
		return boolValue(equal(a, b)), nil
	case il.OpClt, il.OpCgt:
		c, err := compare(op, a, b)
		if err != nil {
			return nil, err
		}
		if op == il.OpClt {
			return boolValue(c < 0), nil
		}
		return boolValue(c > 0), nil
	}

	switch x := a.(type) {
	case int32:
		y, ok := b.(int32)
		if !ok {
			return nil, mismatch(op, a, b)
		}
		if (op == il.OpDiv || op == il.OpRem) && y == 0 {
			return nil, m.Raise(il.TypeDivideByZeroError, il.MsgDivideByZero)
		}
		return arith32(op, x, y), nil
	case int64:
		y, ok := b.(int64)
		if !ok {
			return nil, mismatch(op, a, b)
		}
		if (op == il.OpDiv || op == il.OpRem) && y == 0 {
			return nil, m.Raise(il.TypeDivideByZeroError, il.MsgDivideByZero)
		}
		return arith64(op, x, y), nil
	case float32:
		y, ok := b.(float32)
		if !ok {
			return nil, mismatch(op, a, b)
		}
		return float32(arithFloat(op, float64(x), float64(y))), nil
	case float64:
		y, ok := b.(float64)
		if !ok {
			return nil, mismatch(op, a, b)
		}
		return arithFloat(op, x, y), nil
	}
	return nil, mismatch(op, a, b)
}

func arith32(op byte, x, y int32) int32 {
	switch op {
	case il.OpAdd:
		return x + y
	case il.OpSub:
		return x - y
	case il.OpMul:
		return x * y
	case il.OpDiv:
		return x / y
	}
	return x % y
}

func arith64(op byte, x, y int64) int64 {
	switch op {
	case il.OpAdd:
		return x + y
	case il.OpSub:
		return x - y
	case il.OpMul:
		return x * y
	case il.OpDiv:
		return x / y
	}
	return x % y
}

func arithFloat(op byte, x, y float64) float64 {
	switch op {
	case il.OpAdd:
		return x + y
	case il.OpSub:
		return x - y
	case il.OpMul:
		return x * y
	case il.OpDiv:
		return x / y
	}
	return math.Mod(x, y)
}

func unary(op byte, a Value) (Value, error) {
	if op == il.OpNeg {
		switch x := a.(type) {
		case int32:
			return -x, nil
		case int64:
			return -x, nil
		case float32:
			return -x, nil
		case float64:
			return -x, nil
		}
		return nil, mismatch(op, a, nil)
	}

	var (
		i int64
		f float64
	)
	switch x := a.(type) {
	case int32:
		i, f = int64(x), float64(x)
	case int64:
		i, f = x, float64(x)
	case float32:
		i, f = int64(x), float64(x)
	case float64:
		i, f = int64(x), x
	default:
		return nil, mismatch(op, a, nil)
	}
	switch op {
	case il.OpConvI4:
		return int32(i), nil
	case il.OpConvI8:
		return i, nil
	}
	return f, nil
}

// compare orders two numeric values of the same kind.
func compare(op byte, a, b Value) (int, error) {
	var c int
	switch x := a.(type) {
	case int32:
		y, ok := b.(int32)
		if !ok {
			return 0, mismatch(op, a, b)
		}
		c = order(x < y, x > y)
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, mismatch(op, a, b)
		}
		c = order(x < y, x > y)
	case float32:
		y, ok := b.(float32)
		if !ok {
			return 0, mismatch(op, a, b)
		}
		c = order(x < y, x > y)
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, mismatch(op, a, b)
		}
		c = order(x < y, x > y)
	default:
		return 0, mismatch(op, a, b)
	}
	return c, nil
}

func order(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// equal compares primitives by value and references by identity.
// Strings compare by value.
func equal(a, b Value) bool {
	return a == b
}

func branchTaken(op byte, a, b Value) (bool, error) {
	switch op {
	case il.OpBeq:
		return equal(a, b), nil
	case il.OpBne:
		return !equal(a, b), nil
	}
	c, err := compare(op, a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case il.OpBlt:
		return c < 0, nil
	case il.OpBgt:
		return c > 0, nil
	case il.OpBle:
		return c <= 0, nil
	}
	return c >= 0, nil
}

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
