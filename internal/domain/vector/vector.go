// Package vector provides similarity helpers for embedding vectors.
package vector

import (
	"encoding/binary"
	"math"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Mismatched dimensions, empty vectors and zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return Clamp(dot/(math.Sqrt(na)*math.Sqrt(nb)), -1, 1)
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToBytes serializes a vector as little-endian float32.
func ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// FromBytes deserializes little-endian float32 data. Returns false on a length
// that is not a multiple of 4.
func FromBytes(b []byte) ([]float32, bool) {
	if len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, true
}
