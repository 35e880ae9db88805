package charts

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sells-group/crime-observatory/internal/dataset"
	"github.com/sells-group/crime-observatory/internal/project"
	"github.com/sells-group/crime-observatory/internal/text"
)

// UnmappedLabel names the bucket for raw gender values outside the grouping
// map, on the endpoints configured to surface them.
const UnmappedLabel = "Não informado"

// ProjectedSuffix marks the label of a year whose total includes the
// missing-months estimate.
const ProjectedSuffix = " (projetado)"

// TotalLabel names the single series of unsegmented charts.
const TotalLabel = "Total"

// weekdayAxis is the declared weekday domain, in calendar order, as
// normalized keys. Source files spell these with varying accents.
var weekdayAxis = []string{
	"DOMINGO", "SEGUNDA-FEIRA", "TERCA-FEIRA", "QUARTA-FEIRA",
	"QUINTA-FEIRA", "SEXTA-FEIRA", "SABADO",
}

// EvolutionOptions configures the year-series chart.
type EvolutionOptions struct {
	ByGender        bool // one series per grouped gender instead of a single total
	IncludeUnmapped bool // surface unmapped gender as its own series
	Project         bool // complete the active year when it is still accumulating
	LookbackYears   int  // trailing window for the projection (0 = default)
}

// YearlyEvolution builds the incidents-per-year series over the filtered
// records. The axis spans every year between the first and last observation
// with zero-fill. When the state's most recent year is incomplete and
// projection is on, that year's totals are completed with the missing-months
// estimate and its label is suffixed.
func YearlyEvolution(st *dataset.State, f Filter, opts EvolutionOptions) Chart {
	filtered := Apply(st.Incidents, f)

	groupOf := func(in dataset.Incident) (string, bool) {
		if !opts.ByGender {
			return TotalLabel, true
		}
		switch in.GenderGroup {
		case dataset.GenderUnmapped:
			if opts.IncludeUnmapped {
				return UnmappedLabel, true
			}
			return "", false
		default:
			return in.GenderGroup, true
		}
	}

	totals := project.Totals{}
	minYear, maxYear := 0, 0
	for _, in := range filtered {
		if !in.HasDate() {
			continue
		}
		group, ok := groupOf(in)
		if !ok {
			continue
		}
		totals.Add(group, in.Year, in.Month, 1)
		if minYear == 0 || in.Year < minYear {
			minYear = in.Year
		}
		if in.Year > maxYear {
			maxYear = in.Year
		}
	}
	if minYear == 0 {
		return Empty()
	}

	projecting := opts.Project && maxYear == st.MaxYear && !st.YearComplete()
	var completed map[string]float64
	if projecting {
		completed = project.Complete(totals, maxYear, st.LastObservedMonth, opts.LookbackYears)
	}

	var labels []string
	for year := minYear; year <= maxYear; year++ {
		label := strconv.Itoa(year)
		if projecting && year == maxYear {
			label += ProjectedSuffix
		}
		labels = append(labels, label)
	}

	chart := Chart{Labels: labels}
	for _, group := range sortedGroups(totals, opts) {
		ds := zeroSeries(group, len(labels))
		for i, year := 0, minYear; year <= maxYear; i, year = i+1, year+1 {
			if projecting && year == maxYear {
				ds.Data[i] = completed[group]
				continue
			}
			for _, n := range totals[group][year] {
				ds.Data[i] += n
			}
		}
		chart.Datasets = append(chart.Datasets, ds)
	}
	return chart
}

func sortedGroups(totals project.Totals, opts EvolutionOptions) []string {
	if !opts.ByGender {
		return []string{TotalLabel}
	}
	// Fixed presentation order; only groups with data appear.
	order := []string{dataset.GenderMale, dataset.GenderFemale, UnmappedLabel}
	var out []string
	for _, g := range order {
		if _, ok := totals[g]; ok {
			out = append(out, g)
		}
	}
	return out
}

// AgeGenderComparison cross-tabulates victim age (10-year buckets over the
// full 0-110 domain) against grouped gender. Ages outside [0,110] or
// non-numeric are excluded.
func AgeGenderComparison(st *dataset.State, f Filter, includeUnmapped bool) Chart {
	labels := make([]string, 0, 12)
	for lo := 0; lo <= 110; lo += 10 {
		if lo == 110 {
			labels = append(labels, "110")
			continue
		}
		labels = append(labels, fmt.Sprintf("%d-%d", lo, lo+9))
	}

	groups := []string{dataset.GenderMale, dataset.GenderFemale}
	if includeUnmapped {
		groups = append(groups, UnmappedLabel)
	}
	series := make(map[string]Dataset, len(groups))
	for _, g := range groups {
		series[g] = zeroSeries(g, len(labels))
	}

	for _, in := range Apply(st.Incidents, f) {
		age, ok := in.Age()
		if !ok {
			continue
		}
		group := in.GenderGroup
		if group == dataset.GenderUnmapped {
			if !includeUnmapped {
				continue
			}
			group = UnmappedLabel
		}
		ds, ok := series[group]
		if !ok {
			continue
		}
		ds.Data[age/10]++
	}

	chart := Chart{Labels: labels}
	for _, g := range groups {
		chart.Datasets = append(chart.Datasets, series[g])
	}
	return chart
}

// AgeDensity counts victims per single year of age over the full declared
// 0-110 axis, zero-filled regardless of sparsity.
func AgeDensity(st *dataset.State, f Filter) Chart {
	labels := make([]string, 111)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	ds := zeroSeries("Vítimas", len(labels))

	for _, in := range Apply(st.Incidents, f) {
		if age, ok := in.Age(); ok {
			ds.Data[age]++
		}
	}
	return Chart{Labels: labels, Datasets: []Dataset{ds}}
}

// BreakdownOrder fixes the label axis order of a categorical breakdown. Order
// is a presentation decision per endpoint, stated explicitly at the call site.
type BreakdownOrder int

const (
	DescendingCount BreakdownOrder = iota
	AscendingCount
)

// CategoricalBreakdown counts filtered records per distinct value of a
// canonical column. Empty values are reported under UnmappedLabel so missing
// data stays visible rather than silently dropped.
func CategoricalBreakdown(st *dataset.State, f Filter, column string, order BreakdownOrder) (Chart, error) {
	acc, ok := columnAccessors[column]
	if !ok {
		return Chart{}, fmt.Errorf("unknown column %q", column)
	}

	counts := make(map[string]float64)
	for _, in := range Apply(st.Incidents, f) {
		v := acc(in)
		if v == "" {
			v = UnmappedLabel
		}
		counts[v]++
	}
	if len(counts) == 0 {
		return Empty(), nil
	}

	labels := make([]string, 0, len(counts))
	for v := range counts {
		labels = append(labels, v)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			if order == AscendingCount {
				return counts[labels[i]] < counts[labels[j]]
			}
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	ds := zeroSeries(TotalLabel, len(labels))
	for i, v := range labels {
		ds.Data[i] = counts[v]
	}
	return Chart{Labels: labels, Datasets: []Dataset{ds}}, nil
}

// HourWeekday builds the hour-of-day axis (0-23) with one series per weekday,
// both domains fully declared and zero-filled. Records with unknown hour or
// an unrecognized weekday label are excluded.
func HourWeekday(st *dataset.State, f Filter) Chart {
	labels := make([]string, 24)
	for h := range labels {
		labels[h] = fmt.Sprintf("%02dh", h)
	}

	series := make(map[string]Dataset, len(weekdayAxis))
	for _, wd := range weekdayAxis {
		series[wd] = zeroSeries(wd, len(labels))
	}

	for _, in := range Apply(st.Incidents, f) {
		if in.Hour < 0 {
			continue
		}
		wd := text.NormalizeKey(in.Weekday)
		ds, ok := series[wd]
		if !ok {
			continue
		}
		ds.Data[in.Hour]++
	}

	chart := Chart{Labels: labels}
	for _, wd := range weekdayAxis {
		chart.Datasets = append(chart.Datasets, series[wd])
	}
	return chart
}

// CategoryCorrelation pairs per-municipality counts of two crime categories
// as two aligned series, for the scatter/correlation view. Municipalities
// with activity in either category appear, sorted by name.
func CategoryCorrelation(st *dataset.State, f Filter, categoryA, categoryB string) Chart {
	countsA := make(map[string]float64)
	countsB := make(map[string]float64)
	names := make(map[string]string)

	for _, in := range Apply(st.Incidents, f) {
		if in.MunicipalityKey == "" {
			continue
		}
		switch in.Category {
		case categoryA:
			countsA[in.MunicipalityKey]++
		case categoryB:
			countsB[in.MunicipalityKey]++
		default:
			continue
		}
		names[in.MunicipalityKey] = in.Municipality
	}

	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return Empty()
	}
	sort.Slice(keys, func(i, j int) bool { return names[keys[i]] < names[keys[j]] })

	chart := Chart{
		Labels: make([]string, len(keys)),
		Datasets: []Dataset{
			zeroSeries(categoryA, len(keys)),
			zeroSeries(categoryB, len(keys)),
		},
	}
	for i, k := range keys {
		chart.Labels[i] = names[k]
		chart.Datasets[0].Data[i] = countsA[k]
		chart.Datasets[1].Data[i] = countsB[k]
	}
	return chart
}
