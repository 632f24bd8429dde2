package vectorindex

// squaredL2 assumes equal lengths; callers validate dimensions first.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
