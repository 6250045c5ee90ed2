package compat

import "math"

// cosine returns the cosine similarity of a and b, or 0 when either is zero.
func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// blend returns wa*a + wb*b.
func blend(a []float32, wa float64, b []float32, wb float64) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		v := wa * float64(a[i])
		if i < len(b) {
			v += wb * float64(b[i])
		}
		out[i] = float32(v)
	}
	return out
}

// mean averages equally sized vectors.
func mean(vs [][]float32) []float32 {
	if len(vs) == 0 {
		return nil
	}
	sum := make([]float64, len(vs[0]))
	for _, v := range vs {
		for i := range sum {
			if i < len(v) {
				sum[i] += float64(v[i])
			}
		}
	}
	out := make([]float32, len(sum))
	for i, s := range sum {
		out[i] = float32(s / float64(len(vs)))
	}
	return out
}
