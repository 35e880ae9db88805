package charts

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// TrendSuffix marks labels produced by the linear extension.
const TrendSuffix = " (proj.)"

// ExtendTrend appends horizon future points to each series of a year-axis
// chart using a per-series least-squares line. Negative predictions clamp to
// zero. A final year carrying ProjectedSuffix is accepted and fitted at its
// completed total, so an incomplete active year does not drag the line down.
// This is a deterministic convenience fit, not validated against residuals;
// callers present the extension visually distinct via TrendSuffix.
func ExtendTrend(c Chart, horizon int) (Chart, error) {
	if horizon <= 0 || len(c.Labels) == 0 {
		return c, nil
	}

	years := make([]float64, len(c.Labels))
	for i, label := range c.Labels {
		y, err := strconv.Atoi(strings.TrimSuffix(label, ProjectedSuffix))
		if err != nil {
			return Chart{}, eris.Errorf("charts: trend extension needs a numeric year axis, got label %q", label)
		}
		years[i] = float64(y)
	}
	lastYear := int(years[len(years)-1])

	out := Chart{Labels: append([]string(nil), c.Labels...)}
	for i := 1; i <= horizon; i++ {
		out.Labels = append(out.Labels, strconv.Itoa(lastYear+i)+TrendSuffix)
	}

	for _, ds := range c.Datasets {
		slope, intercept := leastSquares(years, ds.Data)
		ext := Dataset{Label: ds.Label, Data: append([]float64(nil), ds.Data...)}
		for i := 1; i <= horizon; i++ {
			pred := slope*float64(lastYear+i) + intercept
			if pred < 0 {
				pred = 0
			}
			ext.Data = append(ext.Data, pred)
		}
		out.Datasets = append(out.Datasets, ext)
	}
	return out, nil
}

// leastSquares fits y = slope*x + intercept. A single point or a degenerate
// x spread yields a flat line through the mean.
func leastSquares(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var num, den float64
	for i := range xs {
		dx := xs[i] - meanX
		num += dx * (ys[i] - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, meanY
	}
	slope = num / den
	return slope, meanY - slope*meanX
}
