package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sells-group/crime-observatory/internal/charts"
	"github.com/sells-group/crime-observatory/internal/dashboard"
	"github.com/sells-group/crime-observatory/internal/dataset"
	"github.com/sells-group/crime-observatory/internal/geodata"
)

// homicideCategory is the NATUREZA value the homicide-focused charts pin
// their filter to, spelled as the source file publishes it.
const homicideCategory = "HOMICIDIO DOLOSO"

const filterDateLayout = "2006-01-02"

// Server holds the loaded reference state and the collaborators the handlers
// call into.
type Server struct {
	state        *dataset.State
	dashboards   *dashboard.Service
	lookback     int
	trendHorizon int
	validate     *validator.Validate

	// incidents is the base table rendered once for the generic resolver;
	// State is immutable after startup so this never goes stale.
	incidents *charts.Table
}

// NewServer wires the handler set.
func NewServer(st *dataset.State, dash *dashboard.Service, lookback, trendHorizon int) *Server {
	return &Server{
		state:        st,
		dashboards:   dash,
		lookback:     lookback,
		trendHorizon: trendHorizon,
		validate:     validator.New(),
		incidents:    charts.IncidentTable(st),
	}
}

// filterSpec is the JSON filter body shared by the chart and map endpoints.
type filterSpec struct {
	DateRange *dateRangeSpec      `json:"dateRange"`
	Columns   map[string][]string `json:"columns"`
}

type dateRangeSpec struct {
	From string `json:"from"`
	To   string `json:"to"`
}

var filterableColumns = func() map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range charts.FilterableColumns() {
		out[c] = struct{}{}
	}
	return out
}()

func (spec filterSpec) toFilter() (charts.Filter, error) {
	var f charts.Filter
	if spec.DateRange != nil {
		if spec.DateRange.From != "" {
			from, err := time.Parse(filterDateLayout, spec.DateRange.From)
			if err != nil {
				return f, badRequest("invalid dateRange.from %q, want YYYY-MM-DD", spec.DateRange.From)
			}
			f.From = from
		}
		if spec.DateRange.To != "" {
			to, err := time.Parse(filterDateLayout, spec.DateRange.To)
			if err != nil {
				return f, badRequest("invalid dateRange.to %q, want YYYY-MM-DD", spec.DateRange.To)
			}
			f.To = to
		}
		if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
			return f, badRequest("dateRange.to precedes dateRange.from")
		}
	}
	for col, values := range spec.Columns {
		if _, ok := filterableColumns[col]; !ok {
			return f, badRequest("unknown filter column %q", col)
		}
		if len(values) == 0 {
			continue
		}
		if f.Columns == nil {
			f.Columns = make(map[string][]string)
		}
		f.Columns[col] = values
	}
	return f, nil
}

// readFilter builds the request filter: the JSON body on POST, plus the
// legacy query aliases kept for the original dashboard frontend (`genero`
// maps onto the grouped-gender column, `crime` onto NATUREZA).
func (s *Server) readFilter(r *http.Request) (charts.Filter, error) {
	var spec filterSpec
	if r.Method == http.MethodPost && r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil && err != io.EOF {
			return charts.Filter{}, badRequest("invalid filter body: %v", err)
		}
	}
	f, err := spec.toFilter()
	if err != nil {
		return charts.Filter{}, err
	}
	if genero := r.URL.Query().Get("genero"); genero != "" {
		f = withColumn(f, "GENERO_AGRUPADO", genero)
	}
	if crime := r.URL.Query().Get("crime"); crime != "" {
		f = withColumn(f, "NATUREZA", crime)
	}
	return f, nil
}

// withColumn pins one column of a filter to a single value, replacing any
// client-supplied set for that column.
func withColumn(f charts.Filter, col, value string) charts.Filter {
	cols := make(map[string][]string, len(f.Columns)+1)
	for k, v := range f.Columns {
		cols[k] = v
	}
	cols[col] = []string{value}
	f.Columns = cols
	return f
}

// chartRegistry maps chart names, kept from the original dashboard, onto
// their builders. Every builder is a pure function of state and filter.
var chartRegistry = map[string]func(s *Server, r *http.Request, f charts.Filter) (charts.Chart, error){
	"grafico_evolucao_anual": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		return charts.YearlyEvolution(s.state, f, charts.EvolutionOptions{
			Project:       true,
			LookbackYears: s.lookback,
		}), nil
	},
	"grafico_evolucao_anual_homicidios": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		return charts.YearlyEvolution(s.state, withColumn(f, "NATUREZA", homicideCategory), charts.EvolutionOptions{
			ByGender:      true,
			Project:       true,
			LookbackYears: s.lookback,
		}), nil
	},
	"grafico_comparativo_idade_genero_homicidios": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		return charts.AgeGenderComparison(s.state, withColumn(f, "NATUREZA", homicideCategory), false), nil
	},
	"grafico_densidade_etaria_homicidios": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		return charts.AgeDensity(s.state, withColumn(f, "NATUREZA", homicideCategory)), nil
	},
	"grafico_proporcao_meio_empregado_homicidios": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		return charts.CategoricalBreakdown(s.state, withColumn(f, "NATUREZA", homicideCategory), "MEIO_EMPREGADO", charts.DescendingCount)
	},
	"grafico_distribuicao_raca": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		return charts.CategoricalBreakdown(s.state, f, "RACA_VITIMA", charts.DescendingCount)
	},
	"grafico_proporcao_genero_crime": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		return charts.CategoricalBreakdown(s.state, f, "GENERO_AGRUPADO", charts.DescendingCount)
	},
	"grafico_crimes_mulher_dia_hora": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		return charts.HourWeekday(s.state, withColumn(f, "GENERO_AGRUPADO", dataset.GenderFemale)), nil
	},
	"grafico_evolucao_anual_tendencia": func(s *Server, _ *http.Request, f charts.Filter) (charts.Chart, error) {
		// The fit sees the completed total for an incomplete active year, not
		// the partial count.
		base := charts.YearlyEvolution(s.state, f, charts.EvolutionOptions{
			Project:       true,
			LookbackYears: s.lookback,
		})
		if len(base.Labels) == 0 {
			return base, nil
		}
		return charts.ExtendTrend(base, s.trendHorizon)
	},
	"grafico_correlacao_crimes": func(s *Server, r *http.Request, f charts.Filter) (charts.Chart, error) {
		q := r.URL.Query()
		crime1, crime2 := q.Get("crime1"), q.Get("crime2")
		if crime1 == "" || crime2 == "" {
			return charts.Chart{}, badRequest("crime1 and crime2 query parameters are required")
		}
		return charts.CategoryCorrelation(s.state, f, crime1, crime2), nil
	},
}

func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "chartName")
	build, ok := chartRegistry[name]
	if !ok {
		writeError(w, r, notFound("unknown chart %q", name))
		return
	}
	f, err := s.readFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chart, err := build(s, r, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) handleYearRange(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"min_year": s.state.MinYear,
		"max_year": s.state.MaxYear,
	})
}

func (s *Server) handleMunicipalities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, geodata.Municipalities(s.state))
}

func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	f, err := s.readFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch view := chi.URLParam(r, "viewType"); view {
	case "municipality":
		writeJSON(w, http.StatusOK, geodata.MunicipalityMap(s.state, f))
	case "ais":
		writeJSON(w, http.StatusOK, geodata.RegionMap(s.state, f))
	case "heatmap":
		writeJSON(w, http.StatusOK, geodata.Heatmap(s.state, f))
	default:
		writeError(w, r, badRequest("unknown map view %q, want municipality, ais or heatmap", view))
	}
}

// genericChartRequest is the payload of the generic resolver endpoints. The
// chart type is echoed back untouched so the frontend can route rendering.
type genericChartRequest struct {
	ChartType string `json:"chartType" validate:"required,oneof=bar line pie doughnut"`
	ColumnMap struct {
		Category string `json:"category" validate:"required"`
		Segment  string `json:"segment"`
	} `json:"columnMap" validate:"required"`
	Filters map[string][]string `json:"filters"`
}

type genericChartResponse struct {
	ChartType string `json:"chart_type"`
	charts.Chart
}

func (s *Server) decodeGenericChart(r *http.Request) (*genericChartRequest, error) {
	var req genericChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, badRequest("invalid request body: %v", err)
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, badRequest("invalid request: %v", err)
	}
	return &req, nil
}

func (s *Server) handleGenericChart(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeGenericChart(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chart, err := charts.BuildGenericChart(s.incidents, req.ColumnMap.Category, req.ColumnMap.Segment, req.Filters)
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, genericChartResponse{ChartType: req.ChartType, Chart: chart})
}

func (s *Server) handleDashboardGenericChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "dashboardID")
	tbl, err := s.dashboards.LoadTable(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := s.decodeGenericChart(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chart, err := charts.BuildGenericChart(tbl, req.ColumnMap.Category, req.ColumnMap.Segment, req.Filters)
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, genericChartResponse{ChartType: req.ChartType, Chart: chart})
}

// readUpload accepts either a multipart form with a "file" part or a raw CSV
// body, capped at the service's upload limit.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, dashboard.MaxUploadBytes)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(dashboard.MaxUploadBytes); err != nil {
			return nil, badRequest("invalid multipart form: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, badRequest("missing file part: %v", err)
		}
		defer file.Close()
		payload, err := io.ReadAll(file)
		if err != nil {
			return nil, badRequest("read upload: %v", err)
		}
		return payload, nil
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, badRequest("read upload: %v", err)
	}
	return payload, nil
}

func (s *Server) handleAnalyzeCSV(w http.ResponseWriter, r *http.Request) {
	payload, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	analysis, err := s.dashboards.Analyze(payload)
	if err != nil {
		// Every analysis failure is an input problem.
		writeError(w, r, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleCreateDashboard(w http.ResponseWriter, r *http.Request) {
	payload, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := r.FormValue("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, r, badRequest("name is required"))
		return
	}

	// Reject malformed uploads before touching disk or the registry, so a
	// Create failure afterwards is genuinely internal.
	if _, err := s.dashboards.Analyze(payload); err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}

	rec, err := s.dashboards.Create(name, r.FormValue("description"), payload, r.Form["filterable_columns"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListDashboards(w http.ResponseWriter, r *http.Request) {
	records, err := s.dashboards.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []dashboard.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// dashboardData is the dataset summary served alongside a registered record.
type dashboardData struct {
	Dashboard dashboard.Record       `json:"dashboard"`
	Columns   []dashboard.ColumnInfo `json:"columns"`
	RowCount  int                    `json:"row_count"`
}

func (s *Server) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "dashboardID")
	rec, err := s.dashboards.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tbl, err := s.dashboards.LoadTable(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cols := make([]dashboard.ColumnInfo, 0, len(tbl.Columns))
	for _, name := range tbl.Columns {
		values, _ := tbl.Column(name)
		cols = append(cols, dashboard.ColumnInfo{
			Name:       name,
			Type:       charts.InferColumnType(values),
			Filterable: contains(rec.Columns, name),
		})
	}
	writeJSON(w, http.StatusOK, dashboardData{Dashboard: rec, Columns: cols, RowCount: len(tbl.Rows)})
}

func (s *Server) handleDeleteDashboard(w http.ResponseWriter, r *http.Request) {
	if err := s.dashboards.Delete(chi.URLParam(r, "dashboardID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
