package charts

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crime-observatory/internal/dataset"
)

// ColumnType is the inferred semantic type of a raw column.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeDate        ColumnType = "date"
	TypeCategorical ColumnType = "categorical"
)

// Truncation guards for the generic chart: arbitrary user columns can carry
// thousands of distinct values, so the cross-tab is bounded up front.
const (
	maxUnsegmentedCategories = 20
	maxSegmentedCategories   = 15
	maxSegments              = 7
)

var genericDateLayouts = []string{
	"02/01/2006", "2006-01-02", "02/01/2006 15:04", "2006-01-02 15:04:05",
}

// InferColumnType classifies a column from its values. Numeric wins when
// every non-missing value parses as a number; otherwise date when every
// non-missing value parses as a date AND the parsed dates span more than one
// calendar day — a "date" column whose values all fall on the same day is
// almost always a time-of-day field mis-typed by the exporter, and is
// treated as categorical. Both hypotheses are checked against the full
// column: a number-parseable value is not date-parseable, so a mixed column
// falls through to categorical.
func InferColumnType(values []string) ColumnType {
	present := make([]string, 0, len(values))
	for _, raw := range values {
		if v := strings.TrimSpace(raw); v != "" {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return TypeCategorical
	}

	numeric := true
	for _, v := range present {
		if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err != nil {
			numeric = false
			break
		}
	}
	if numeric {
		return TypeNumeric
	}

	days := make(map[string]struct{}, 2)
	for _, v := range present {
		d, ok := parseAnyDate(v)
		if !ok {
			return TypeCategorical
		}
		if len(days) < 2 {
			days[d.Format("2006-01-02")] = struct{}{}
		}
	}
	if len(days) > 1 {
		return TypeDate
	}
	return TypeCategorical
}

func parseAnyDate(v string) (time.Time, bool) {
	for _, layout := range genericDateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// Table is a generic column-oriented view over raw rows, either an uploaded
// custom dataset or the base incident table.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Column returns the values of a named column.
func (t *Table) Column(name string) ([]string, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// IncidentTable exposes the base incident table through the generic resolver,
// so the same chart builder serves both the reference dataset and uploads.
func IncidentTable(st *dataset.State) *Table {
	cols := append([]string(nil), dataset.IncidentColumns...)
	t := &Table{Columns: cols, Rows: make([][]string, 0, len(st.Incidents))}
	for _, in := range st.Incidents {
		var date string
		if in.HasDate() {
			date = in.Date.Format("02/01/2006")
		}
		var hour string
		if in.Hour >= 0 {
			hour = strconv.Itoa(in.Hour) + ":00"
		}
		t.Rows = append(t.Rows, []string{
			in.AIS, in.Category, in.Municipality, in.Location, date, hour,
			in.Weekday, in.Method, in.Gender, in.SexualOrientation,
			in.AgeRaw, in.Education, in.Race,
		})
	}
	return t
}

// BuildGenericChart groups tbl rows by categoryCol, optionally segmented by
// segmentCol, after applying per-column equality filters. Unsegmented output
// is the top-20 categories by frequency; segmented output restricts to the
// top-15 categories crossed with the top-7 segments before tabulating.
func BuildGenericChart(tbl *Table, categoryCol, segmentCol string, filters map[string][]string) (Chart, error) {
	catIdx := columnIndex(tbl, categoryCol)
	if catIdx < 0 {
		return Chart{}, eris.Errorf("charts: unknown column %q", categoryCol)
	}
	segIdx := -1
	if segmentCol != "" {
		if segIdx = columnIndex(tbl, segmentCol); segIdx < 0 {
			return Chart{}, eris.Errorf("charts: unknown column %q", segmentCol)
		}
	}
	filterIdx := make(map[int][]string, len(filters))
	for col, accepted := range filters {
		idx := columnIndex(tbl, col)
		if idx < 0 {
			return Chart{}, eris.Errorf("charts: unknown filter column %q", col)
		}
		filterIdx[idx] = accepted
	}

	values, _ := tbl.Column(categoryCol)
	catType := InferColumnType(values)

	catTotals := make(map[string]float64)
	segTotals := make(map[string]float64)
	cross := make(map[string]map[string]float64)

	for _, row := range tbl.Rows {
		if !rowMatches(row, filterIdx) {
			continue
		}
		cat := cellValue(row, catIdx)
		if cat == "" {
			continue
		}
		catTotals[cat]++
		if segIdx < 0 {
			continue
		}
		seg := cellValue(row, segIdx)
		if seg == "" {
			continue
		}
		segTotals[seg]++
		if cross[cat] == nil {
			cross[cat] = make(map[string]float64)
		}
		cross[cat][seg]++
	}
	if len(catTotals) == 0 {
		return Empty(), nil
	}

	limit := maxUnsegmentedCategories
	if segIdx >= 0 {
		limit = maxSegmentedCategories
	}
	labels := topValues(catTotals, limit)
	orderLabels(labels, catType)

	if segIdx < 0 {
		ds := zeroSeries(TotalLabel, len(labels))
		for i, cat := range labels {
			ds.Data[i] = catTotals[cat]
		}
		return Chart{Labels: labels, Datasets: []Dataset{ds}}, nil
	}

	segments := topValues(segTotals, maxSegments)
	sort.Strings(segments)

	chart := Chart{Labels: labels}
	for _, seg := range segments {
		ds := zeroSeries(seg, len(labels))
		for i, cat := range labels {
			ds.Data[i] = cross[cat][seg]
		}
		chart.Datasets = append(chart.Datasets, ds)
	}
	return chart, nil
}

func columnIndex(tbl *Table, name string) int {
	for i, c := range tbl.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func cellValue(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowMatches(row []string, filters map[int][]string) bool {
	for idx, accepted := range filters {
		if !contains(accepted, cellValue(row, idx)) {
			return false
		}
	}
	return true
}

// topValues returns the limit highest-frequency values, most frequent first.
func topValues(counts map[string]float64, limit int) []string {
	out := make([]string, 0, len(counts))
	for v := range counts {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// orderLabels re-sorts the truncated label set for presentation: numeric and
// date axes read in natural order, categorical stays frequency-ordered.
func orderLabels(labels []string, catType ColumnType) {
	switch catType {
	case TypeNumeric:
		sort.Slice(labels, func(i, j int) bool {
			a, _ := strconv.ParseFloat(strings.ReplaceAll(labels[i], ",", "."), 64)
			b, _ := strconv.ParseFloat(strings.ReplaceAll(labels[j], ",", "."), 64)
			return a < b
		})
	case TypeDate:
		sort.Slice(labels, func(i, j int) bool {
			a, _ := parseAnyDate(labels[i])
			b, _ := parseAnyDate(labels[j])
			return a.Before(b)
		})
	default:
		// categorical keeps the frequency order from topValues
	}
}
