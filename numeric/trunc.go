package numeric

import (
	"math"

	"github.com/chewxy/math32"
)

// TruncF32ToI32S implements `i32.trunc_f32_s`: traps on NaN, ±∞, or a value
// outside the i32 range (spec.md §4.4).
func TruncF32ToI32S(v float32) (int32, bool) {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return 0, false
	}
	t := math32.Trunc(v)
	if t < -2147483648 || t >= 2147483648 {
		return 0, false
	}
	return int32(t), true
}

func TruncF32ToI32U(v float32) (uint32, bool) {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return 0, false
	}
	t := math32.Trunc(v)
	if t < 0 || t >= 4294967296 {
		return 0, false
	}
	return uint32(t), true
}

func TruncF32ToI64S(v float32) (int64, bool) {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return 0, false
	}
	t := math32.Trunc(v)
	if t < -9223372036854775808 || t >= 9223372036854775808 {
		return 0, false
	}
	return int64(t), true
}

func TruncF32ToI64U(v float32) (uint64, bool) {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return 0, false
	}
	t := math32.Trunc(v)
	if t < 0 || t >= 18446744073709551616 {
		return 0, false
	}
	return uint64(t), true
}

func TruncF64ToI32S(v float64) (int32, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < -2147483648 || t >= 2147483648 {
		return 0, false
	}
	return int32(t), true
}

func TruncF64ToI32U(v float64) (uint32, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < 0 || t >= 4294967296 {
		return 0, false
	}
	return uint32(t), true
}

func TruncF64ToI64S(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < -9223372036854775808 || t >= 9223372036854775808 {
		return 0, false
	}
	return int64(t), true
}

func TruncF64ToI64U(v float64) (uint64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < 0 || t >= 18446744073709551616 {
		return 0, false
	}
	return uint64(t), true
}

// Saturating conversions never trap (spec.md §4.4 "Saturating
// truncations"): NaN -> 0, out-of-range -> the destination bound.

func TruncSatF32ToI32S(v float32) int32 {
	if i, ok := TruncF32ToI32S(v); ok {
		return i
	}
	if math32.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return math.MinInt32
	}
	return math.MaxInt32
}

func TruncSatF32ToI32U(v float32) uint32 {
	if i, ok := TruncF32ToI32U(v); ok {
		return i
	}
	if math32.IsNaN(v) || v < 0 {
		return 0
	}
	return math.MaxUint32
}

func TruncSatF32ToI64S(v float32) int64 {
	if i, ok := TruncF32ToI64S(v); ok {
		return i
	}
	if math32.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}

func TruncSatF32ToI64U(v float32) uint64 {
	if i, ok := TruncF32ToI64U(v); ok {
		return i
	}
	if math32.IsNaN(v) || v < 0 {
		return 0
	}
	return math.MaxUint64
}

func TruncSatF64ToI32S(v float64) int32 {
	if i, ok := TruncF64ToI32S(v); ok {
		return i
	}
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return math.MinInt32
	}
	return math.MaxInt32
}

func TruncSatF64ToI32U(v float64) uint32 {
	if i, ok := TruncF64ToI32U(v); ok {
		return i
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.MaxUint32
}

func TruncSatF64ToI64S(v float64) int64 {
	if i, ok := TruncF64ToI64S(v); ok {
		return i
	}
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}

func TruncSatF64ToI64U(v float64) uint64 {
	if i, ok := TruncF64ToI64U(v); ok {
		return i
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.MaxUint64
}
