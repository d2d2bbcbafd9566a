// Package safeconv converts between the unsigned offsets tree-sitter reports
// and the int and uint32 fields funcscan stores, without silent wraparound.
package safeconv

import (
	"errors"
	"fmt"
	"math"
)

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// ErrOutOfRange indicates a value that does not fit the target type.
var ErrOutOfRange = errors.New("value out of range")

// ClampUintToInt converts v to int, saturating at MaxInt.
func ClampUintToInt(v uint) int {
	if v > uint(MaxInt) {
		return MaxInt
	}

	return int(v)
}

// OneBased converts a zero-based tree-sitter row or column to the one-based
// numbering used in reports.
func OneBased(v uint) int {
	n := ClampUintToInt(v)
	if n == MaxInt {
		return MaxInt
	}

	return n + 1
}

// IntToUint32 converts v to uint32 or reports ErrOutOfRange.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOutOfRange, v)
	}

	return uint32(v), nil
}
