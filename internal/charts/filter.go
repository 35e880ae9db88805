// Package charts reshapes filtered incident records into the labels/datasets
// series consumed by the browser charting layer.
package charts

import (
	"strconv"
	"time"

	"github.com/sells-group/crime-observatory/internal/dataset"
)

// Filter is a set of independently-applicable predicates: an optional
// inclusive date range and per-column accepted-value sets. The zero Filter
// matches every record.
type Filter struct {
	From    time.Time
	To      time.Time
	Columns map[string][]string
}

// columnAccessors maps canonical column names onto incident fields. The names
// are the ones the source file documents, so client-side filter builders can
// pass them through untouched.
var columnAccessors = map[string]func(dataset.Incident) string{
	"AIS":                 func(in dataset.Incident) string { return in.AIS },
	"NATUREZA":            func(in dataset.Incident) string { return in.Category },
	"MUNICIPIO":           func(in dataset.Incident) string { return in.Municipality },
	"LOCAL":               func(in dataset.Incident) string { return in.Location },
	"DIA_SEMANA":          func(in dataset.Incident) string { return in.Weekday },
	"MEIO_EMPREGADO":      func(in dataset.Incident) string { return in.Method },
	"GENERO":              func(in dataset.Incident) string { return in.Gender },
	"GENERO_AGRUPADO":     func(in dataset.Incident) string { return in.GenderGroup },
	"ORIENTACAO_SEXUAL":   func(in dataset.Incident) string { return in.SexualOrientation },
	"IDADE_VITIMA":        func(in dataset.Incident) string { return in.AgeRaw },
	"ESCOLARIDADE_VITIMA": func(in dataset.Incident) string { return in.Education },
	"RACA_VITIMA":         func(in dataset.Incident) string { return in.Race },
	"ANO":                 func(in dataset.Incident) string { return strconv.Itoa(in.Year) },
}

// FilterableColumns lists the column names accepted in a filter specification.
func FilterableColumns() []string {
	out := make([]string, 0, len(columnAccessors))
	for name := range columnAccessors {
		out = append(out, name)
	}
	return out
}

// HasDateRange reports whether either bound is set, which makes the filter
// date-dependent: records without a parsed date then never match.
func (f Filter) HasDateRange() bool { return !f.From.IsZero() || !f.To.IsZero() }

// Match applies every predicate to one record.
func (f Filter) Match(in dataset.Incident) bool {
	if f.HasDateRange() {
		if !in.HasDate() {
			return false
		}
		if !f.From.IsZero() && in.Date.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && in.Date.After(f.To) {
			return false
		}
	}

	for col, accepted := range f.Columns {
		acc, ok := columnAccessors[col]
		if !ok {
			// Unknown columns are rejected at the API boundary; here they
			// simply never match so a bad spec cannot widen a result.
			return false
		}
		if !contains(accepted, acc(in)) {
			return false
		}
	}
	return true
}

// Apply returns the records matching f, leaving the input untouched.
func Apply(incidents []dataset.Incident, f Filter) []dataset.Incident {
	if !f.HasDateRange() && len(f.Columns) == 0 {
		return incidents
	}
	var out []dataset.Incident
	for _, in := range incidents {
		if f.Match(in) {
			out = append(out, in)
		}
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
