package numeric

import (
	"math"

	"github.com/chewxy/math32"
)

// MinF32 implements Wasm's NaN-propagating, sign-aware minimum: any NaN
// operand yields NaN, and -0 compares less than +0 (spec.md §4.4, §8).
func MinF32(a, b float32) float32 {
	if math32.IsNaN(a) || math32.IsNaN(b) {
		return canonicalNaN32()
	}
	if a == 0 && b == 0 {
		if math32.Signbit(a) {
			return a
		}
		return b
	}
	return math32.Min(a, b)
}

func MaxF32(a, b float32) float32 {
	if math32.IsNaN(a) || math32.IsNaN(b) {
		return canonicalNaN32()
	}
	if a == 0 && b == 0 {
		if math32.Signbit(a) {
			return b
		}
		return a
	}
	return math32.Max(a, b)
}

// NearestF32 rounds half-to-even, matching IEEE-754 roundTiesToEven
// (spec.md §8: nearest(2.5)=2, nearest(3.5)=4, nearest(-2.5)=-2).
func NearestF32(a float32) float32 {
	if math32.IsNaN(a) || math32.IsInf(a, 0) || a == 0 {
		return a
	}
	return math32.RoundToEven(a)
}

func AbsF32(a float32) float32           { return math32.Abs(a) }
func CeilF32(a float32) float32          { return math32.Ceil(a) }
func FloorF32(a float32) float32         { return math32.Floor(a) }
func TruncF32(a float32) float32         { return math32.Trunc(a) }
func SqrtF32(a float32) float32          { return math32.Sqrt(a) }
func CopysignF32(a, b float32) float32   { return math32.Copysign(a, b) }

// canonicalNaN32 is the canonical quiet NaN payload Wasm mandates results
// carry (spec.md §9 "Canonical NaN and subnormal handling").
func canonicalNaN32() float32 {
	return math32.Float32frombits(0x7fc00000)
}

func canonicalNaN64() float64 {
	return math.Float64frombits(0x7ff8000000000000)
}

func MinF64(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return canonicalNaN64()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a
		}
		return b
	}
	return math.Min(a, b)
}

func MaxF64(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return canonicalNaN64()
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return b
		}
		return a
	}
	return math.Max(a, b)
}

func NearestF64(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) || a == 0 {
		return a
	}
	return math.RoundToEven(a)
}

func AbsF64(a float64) float64         { return math.Abs(a) }
func CeilF64(a float64) float64        { return math.Ceil(a) }
func FloorF64(a float64) float64       { return math.Floor(a) }
func TruncF64(a float64) float64       { return math.Trunc(a) }
func SqrtF64(a float64) float64        { return math.Sqrt(a) }
func CopysignF64(a, b float64) float64 { return math.Copysign(a, b) }
