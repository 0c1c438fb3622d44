package embedding

import "math"

// normEpsilon guards the division when a vector has (near-)zero magnitude.
const normEpsilon = 1e-8

// Normalize returns a unit-length copy of vec. Zero vectors come back as a
// copy of the input rather than NaNs.
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	norm := Magnitude(vec)
	if norm < normEpsilon {
		copy(out, vec)
		return out
	}
	inv := 1.0 / norm
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

// Magnitude returns the L2 norm of vec.
func Magnitude(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of a and b. Vectors of unequal length are
// compared over the shorter prefix; callers are expected to keep dimensions
// consistent.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
