// Package numeric implements the bit-exact numeric semantics spec.md §4.4
// mandates: wrap-on-overflow integer arithmetic, IEEE-754 float ops with
// NaN-propagating min/max and round-half-to-even nearest, and the trapping
// and saturating truncation families. Grounded on
// vertexdlt-vertexvm/number/{conversion,limit}.go, generalized from
// panicking helpers into error-returning ones and extended with the f32
// transcendental ops the teacher's package never implemented.
package numeric

import "math/bits"

// DivS32 performs signed division with Wasm's trap rules: division by zero
// traps, and INT_MIN / -1 traps (the only case where two's-complement
// division overflows).
func DivS32(a, b int32) (int32, bool) {
	if b == 0 {
		return 0, false
	}
	if a == -1<<31 && b == -1 {
		return 0, false
	}
	return a / b, true
}

// RemS32 performs signed remainder. Unlike DivS32, INT_MIN % -1 does not
// trap and evaluates to 0 (spec.md §4.4, §8).
func RemS32(a, b int32) (int32, bool) {
	if b == 0 {
		return 0, false
	}
	if a == -1<<31 && b == -1 {
		return 0, true
	}
	return a % b, true
}

func DivU32(a, b uint32) (uint32, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

func RemU32(a, b uint32) (uint32, bool) {
	if b == 0 {
		return 0, false
	}
	return a % b, true
}

func DivS64(a, b int64) (int64, bool) {
	if b == 0 {
		return 0, false
	}
	if a == -1<<63 && b == -1 {
		return 0, false
	}
	return a / b, true
}

func RemS64(a, b int64) (int64, bool) {
	if b == 0 {
		return 0, false
	}
	if a == -1<<63 && b == -1 {
		return 0, true
	}
	return a % b, true
}

func DivU64(a, b uint64) (uint64, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

func RemU64(a, b uint64) (uint64, bool) {
	if b == 0 {
		return 0, false
	}
	return a % b, true
}

// Shl32 masks the shift count mod the bit width, per spec.md §4.4.
func Shl32(a, shift int32) int32 { return a << (uint32(shift) % 32) }
func ShrS32(a, shift int32) int32 { return a >> (uint32(shift) % 32) }
func ShrU32(a uint32, shift int32) uint32 { return a >> (uint32(shift) % 32) }

func Shl64(a, shift int64) int64 { return a << (uint64(shift) % 64) }
func ShrS64(a, shift int64) int64 { return a >> (uint64(shift) % 64) }
func ShrU64(a uint64, shift int64) uint64 { return a >> (uint64(shift) % 64) }

func Rotl32(a uint32, n int32) uint32 { return bits.RotateLeft32(a, int(n)) }
func Rotr32(a uint32, n int32) uint32 { return bits.RotateLeft32(a, -int(n)) }
func Rotl64(a uint64, n int64) uint64 { return bits.RotateLeft64(a, int(n)) }
func Rotr64(a uint64, n int64) uint64 { return bits.RotateLeft64(a, -int(n)) }

// Clz32/Ctz32/Popcnt32 follow the IEEE-style zero-input conventions spec.md
// §4.4 calls out explicitly: clz/ctz of zero equal the bit width.
func Clz32(a uint32) int32    { return int32(bits.LeadingZeros32(a)) }
func Ctz32(a uint32) int32    { return int32(bits.TrailingZeros32(a)) }
func Popcnt32(a uint32) int32 { return int32(bits.OnesCount32(a)) }

func Clz64(a uint64) int64    { return int64(bits.LeadingZeros64(a)) }
func Ctz64(a uint64) int64    { return int64(bits.TrailingZeros64(a)) }
func Popcnt64(a uint64) int64 { return int64(bits.OnesCount64(a)) }
