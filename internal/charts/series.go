package charts

// Chart is the canonical chart-data shape: an ordered label axis plus one or
// more named series of exactly the same length. Missing combinations carry
// zero, never a gap, so client-side axes stay stable across filters.
type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one named numeric series aligned to the chart's label axis.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// Empty returns a well-formed zero-result chart. Valid queries that match
// nothing produce this, not an error.
func Empty() Chart {
	return Chart{Labels: []string{}, Datasets: []Dataset{}}
}

// zeroSeries builds an all-zero series for an axis of length n.
func zeroSeries(label string, n int) Dataset {
	return Dataset{Label: label, Data: make([]float64, n)}
}
