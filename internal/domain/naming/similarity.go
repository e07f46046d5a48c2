package naming

import "math"

// Dice returns the Sørensen-Dice coefficient over byte bigrams of a and b.
func Dice(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int, len(a)-1)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}

	matches := 0
	for i := 0; i < len(b)-1; i++ {
		key := b[i : i+2]
		if n := bigrams[key]; n > 0 {
			bigrams[key] = n - 1
			matches++
		}
	}
	return float64(2*matches) / float64(len(a)-1+len(b)-1)
}

// Similarity scores two series names on a 0..100 scale after normalization.
func Similarity(a, b string) int {
	na, nb := NormalizeSeriesName(a), NormalizeSeriesName(b)
	if na == "" || nb == "" {
		return 0
	}
	return int(math.Round(Dice(na, nb) * 100))
}
