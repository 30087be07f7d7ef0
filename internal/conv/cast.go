package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is matched by every *OverflowError.
var ErrOverflow = errors.New("conv: integer overflow")

// OverflowError reports a value outside the range of the target type.
type OverflowError struct {
	Value  string
	Target string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("conv: %s does not fit in %s", e.Value, e.Target)
}

// Unwrap returns ErrOverflow.
func (e *OverflowError) Unwrap() error { return ErrOverflow }

func overflow[T int | int64 | uint64](v T, target string) error {
	return &OverflowError{Value: fmt.Sprint(v), Target: target}
}

// IntToUint32 narrows a length or count to uint32.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, overflow(v, "uint32")
	}
	return uint32(v), nil
}

// IntToInt32 narrows a position or slot index to int32.
func IntToInt32(v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, overflow(v, "int32")
	}
	return int32(v), nil
}

// Int64ToInt narrows a decoded int64 to int.
func Int64ToInt(v int64) (int, error) {
	if v < math.MinInt || v > math.MaxInt {
		return 0, overflow(v, "int")
	}
	return int(v), nil
}

// Uint64ToInt narrows a decoded uint64 to a non-negative int.
func Uint64ToInt(v uint64) (int, error) {
	if v > math.MaxInt {
		return 0, overflow(v, "int")
	}
	return int(v), nil
}
