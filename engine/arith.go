package engine

import "math"

// finite maps NaN and ±Inf to nil.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func div(num, den float64) (float64, error) {
	if den == 0 {
		return 0, ErrUndefinedArithmetic
	}
	q := num / den
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, ErrUndefinedArithmetic
	}
	return q, nil
}

func sqrt(v float64) (float64, error) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrUndefinedArithmetic
	}
	return math.Sqrt(v), nil
}

// shareCount rejects non-positive share counts.
func shareCount(v float64) (float64, error) {
	if v <= 0 {
		return 0, ErrUndefinedArithmetic
	}
	return v, nil
}

// all reports whether every pointer is non-nil.
func all(vals ...*float64) bool {
	for _, v := range vals {
		if v == nil {
			return false
		}
	}
	return true
}

// floorOne returns max(v, 1), or 1 when v is absent.
func floorOne(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 1
	}
	return math.Max(*v, 1)
}

func orDefault(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}
