package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crime-observatory/internal/charts"
	"github.com/sells-group/crime-observatory/internal/dashboard"
	"github.com/sells-group/crime-observatory/internal/dataset"
	"github.com/sells-group/crime-observatory/internal/text"
)

func testState(t *testing.T) *dataset.State {
	t.Helper()

	regions, err := dataset.LoadRegions()
	require.NoError(t, err)

	feature := func(name string, x, y float64) string {
		return fmt.Sprintf(`{
			"type": "Feature",
			"properties": {"name": %q},
			"geometry": {"type": "Polygon",
				"coordinates": [[[%[2]f,%[3]f],[%[4]f,%[3]f],[%[4]f,%[5]f],[%[2]f,%[5]f],[%[2]f,%[3]f]]]}
		}`, name, x, y, x+1, y+1)
	}
	src := `{"type":"FeatureCollection","features":[` +
		feature("Caucaia", -38.8, -3.8) + "," +
		feature("Sobral", -40.5, -3.9) +
		`]}`
	boundaries, err := dataset.LoadBoundariesGeoJSON(strings.NewReader(src))
	require.NoError(t, err)

	incident := func(muni, category, gender string, year int, n int) []dataset.Incident {
		out := make([]dataset.Incident, n)
		for i := range out {
			out[i] = dataset.Incident{
				AIS:             "AIS 11",
				Category:        category,
				Municipality:    muni,
				MunicipalityKey: text.NormalizeKey(muni),
				Gender:          gender,
				GenderGroup:     dataset.GroupGender(gender),
				Weekday:         "Sexta-feira",
				Hour:            20,
				AgeRaw:          "25",
				Date:            time.Date(year, 3, 1, 0, 0, 0, 0, time.UTC),
				Year:            year,
				Month:           3,
			}
		}
		return out
	}

	var incidents []dataset.Incident
	incidents = append(incidents, incident("Caucaia", "HOMICIDIO DOLOSO", "Masculino", 2023, 4)...)
	incidents = append(incidents, incident("Caucaia", "HOMICIDIO DOLOSO", "Feminino", 2024, 3)...)
	incidents = append(incidents, incident("Sobral", "ROUBO", "Feminino", 2024, 2)...)

	return &dataset.State{
		Incidents: incidents,
		Population: map[string]dataset.PopulationRecord{
			"CAUCAIA": {Municipality: "Caucaia", Key: "CAUCAIA", Population: 100_000, AIS: "AIS 11"},
			"SOBRAL":  {Municipality: "Sobral", Key: "SOBRAL", Population: 200_000, AIS: "AIS 23"},
		},
		Boundaries:        boundaries,
		Regions:           regions,
		Categories:        []string{"HOMICIDIO DOLOSO", "ROUBO"},
		MinYear:           2023,
		MaxYear:           2024,
		LastObservedMonth: 12,
	}
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	store, err := dashboard.OpenStore(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := dashboard.NewService(store, t.TempDir())
	require.NoError(t, err)

	return NewServer(testState(t), svc, 5, 3).Router([]string{"*"})
}

func doJSON(t *testing.T, h http.Handler, method, target string, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	fields := make(map[string]json.RawMessage)
	if strings.HasPrefix(rec.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	}
	return rec, fields
}

func decodeChart(t *testing.T, rec *httptest.ResponseRecorder) charts.Chart {
	t.Helper()
	var c charts.Chart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c
}

func TestYearRange(t *testing.T) {
	t.Parallel()

	rec, fields := doJSON(t, testRouter(t), http.MethodGet, "/api/year_range", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "2023", string(fields["min_year"]))
	assert.JSONEq(t, "2024", string(fields["max_year"]))
}

func TestMunicipalitiesSortedByName(t *testing.T) {
	t.Parallel()

	rec, _ := doJSON(t, testRouter(t), http.MethodGet, "/api/municipalities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Caucaia", got[0].Name)
	assert.Equal(t, "Sobral", got[1].Name)
}

func TestYearlyEvolutionChart(t *testing.T) {
	t.Parallel()

	rec, _ := doJSON(t, testRouter(t), http.MethodGet, "/api/data/grafico_evolucao_anual", "")
	require.Equal(t, http.StatusOK, rec.Code)

	c := decodeChart(t, rec)
	assert.Equal(t, []string{"2023", "2024"}, c.Labels)
	require.Len(t, c.Datasets, 1)
	assert.Equal(t, []float64{4, 5}, c.Datasets[0].Data)
}

func TestChartFilterBody(t *testing.T) {
	t.Parallel()

	body := `{"columns":{"MUNICIPIO":["Sobral"]}}`
	rec, _ := doJSON(t, testRouter(t), http.MethodPost, "/api/data/grafico_evolucao_anual", body)
	require.Equal(t, http.StatusOK, rec.Code)

	c := decodeChart(t, rec)
	assert.Equal(t, []string{"2024"}, c.Labels)
	assert.Equal(t, []float64{2}, c.Datasets[0].Data)
}

func TestChartGeneroQueryAlias(t *testing.T) {
	t.Parallel()

	rec, _ := doJSON(t, testRouter(t), http.MethodGet, "/api/data/grafico_evolucao_anual?genero=Feminino", "")
	require.Equal(t, http.StatusOK, rec.Code)

	c := decodeChart(t, rec)
	total := 0.0
	for _, v := range c.Datasets[0].Data {
		total += v
	}
	assert.Equal(t, 5.0, total)
}

func TestUnknownChartIs404(t *testing.T) {
	t.Parallel()

	rec, fields := doJSON(t, testRouter(t), http.MethodGet, "/api/data/grafico_inexistente", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, string(fields["error"]), "grafico_inexistente")
}

func TestUnknownFilterColumnIs400(t *testing.T) {
	t.Parallel()

	body := `{"columns":{"NOPE":["x"]}}`
	rec, _ := doJSON(t, testRouter(t), http.MethodPost, "/api/data/grafico_evolucao_anual", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrelationRequiresBothCategories(t *testing.T) {
	t.Parallel()

	router := testRouter(t)

	rec, fields := doJSON(t, router, http.MethodGet, "/api/data/grafico_correlacao_crimes?crime1=ROUBO", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(fields["error"]), "crime2")

	rec, _ = doJSON(t, router, http.MethodGet,
		"/api/data/grafico_correlacao_crimes?crime1=ROUBO&crime2=HOMICIDIO+DOLOSO", "")
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeChart(t, rec)
	assert.Len(t, c.Datasets, 2)
}

func TestTrendChartExtendsYearAxis(t *testing.T) {
	t.Parallel()

	rec, _ := doJSON(t, testRouter(t), http.MethodGet, "/api/data/grafico_evolucao_anual_tendencia", "")
	require.Equal(t, http.StatusOK, rec.Code)

	c := decodeChart(t, rec)
	require.Equal(t, []string{
		"2023", "2024",
		"2025" + charts.TrendSuffix, "2026" + charts.TrendSuffix, "2027" + charts.TrendSuffix,
	}, c.Labels)
	require.Len(t, c.Datasets, 1)
	assert.Len(t, c.Datasets[0].Data, 5)
}

func TestEmptyResultIsWellFormed(t *testing.T) {
	t.Parallel()

	body := `{"columns":{"MUNICIPIO":["Fantasma"]}}`
	rec, _ := doJSON(t, testRouter(t), http.MethodPost, "/api/data/grafico_evolucao_anual", body)
	require.Equal(t, http.StatusOK, rec.Code)

	c := decodeChart(t, rec)
	assert.Empty(t, c.Labels)
	assert.Empty(t, c.Datasets)
}

func TestMapDataViews(t *testing.T) {
	t.Parallel()

	router := testRouter(t)

	rec, fields := doJSON(t, router, http.MethodGet, "/api/map_data/municipality", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, fields, "geojson")
	assert.Contains(t, fields, "max_taxa")
	assert.Contains(t, fields, "taxa_media_estado")

	rec, fields = doJSON(t, router, http.MethodGet, "/api/map_data/ais", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, fields, "geojson")

	rec, _ = doJSON(t, router, http.MethodGet, "/api/map_data/heatmap", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var points [][3]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.NotEmpty(t, points)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/map_data/galaxy", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenericChartOnIncidents(t *testing.T) {
	t.Parallel()

	body := `{"chartType":"bar","columnMap":{"category":"MUNICIPIO"}}`
	rec, fields := doJSON(t, testRouter(t), http.MethodPost, "/api/generic_chart", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"bar"`, string(fields["chart_type"]))

	var labels []string
	require.NoError(t, json.Unmarshal(fields["labels"], &labels))
	assert.Contains(t, labels, "Caucaia")
}

func TestGenericChartValidation(t *testing.T) {
	t.Parallel()

	router := testRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/generic_chart", `{"chartType":"bar","columnMap":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/generic_chart",
		`{"chartType":"sparkline","columnMap":{"category":"MUNICIPIO"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/generic_chart",
		`{"chartType":"bar","columnMap":{"category":"NO_SUCH_COLUMN"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeCSV(t *testing.T) {
	t.Parallel()

	router := testRouter(t)

	rec, fields := doJSON(t, router, http.MethodPost, "/api/analyze_csv", "cidade;valor\nSobral;10\nCaucaia;20\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "2", string(fields["row_count"]))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze_csv", bytes.NewReader([]byte{0x50, 0x4b, 0x03, 0x04, 0x00}))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartUpload(t *testing.T, fields map[string]string, filename, contents string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDashboardLifecycle(t *testing.T) {
	t.Parallel()

	router := testRouter(t)
	csvData := "cidade;ocorrencias\nSobral;10\nCaucaia;20\nSobral;5\n"

	body, ct := multipartUpload(t, map[string]string{
		"name":               "Ocorrências por cidade",
		"description":        "upload de teste",
		"filterable_columns": "cidade",
	}, "dados.csv", csvData)

	req := httptest.NewRequest(http.MethodPost, "/api/create_dashboard", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created dashboard.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.ID, "ds_"))

	listRec, _ := doJSON(t, router, http.MethodGet, "/api/dashboards", "")
	require.Equal(t, http.StatusOK, listRec.Code)
	var records []dashboard.Record
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, created.ID, records[0].ID)

	dataRec, fields := doJSON(t, router, http.MethodGet, "/api/dashboards/"+created.ID+"/data", "")
	require.Equal(t, http.StatusOK, dataRec.Code)
	assert.JSONEq(t, "3", string(fields["row_count"]))

	chartRec, chartFields := doJSON(t, router, http.MethodPost,
		"/api/dashboards/"+created.ID+"/generic_chart",
		`{"chartType":"pie","columnMap":{"category":"cidade"}}`)
	require.Equal(t, http.StatusOK, chartRec.Code)
	var labels []string
	require.NoError(t, json.Unmarshal(chartFields["labels"], &labels))
	assert.Equal(t, []string{"Sobral", "Caucaia"}, labels)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/dashboards/"+created.ID, nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusNoContent, delRec.Code)

	goneRec, _ := doJSON(t, router, http.MethodGet, "/api/dashboards/"+created.ID+"/data", "")
	assert.Equal(t, http.StatusNotFound, goneRec.Code)
}

func TestCreateDashboardRejectsBadUploads(t *testing.T) {
	t.Parallel()

	router := testRouter(t)

	// Missing name.
	body, ct := multipartUpload(t, nil, "dados.csv", "a;b\n1;2\n")
	req := httptest.NewRequest(http.MethodPost, "/api/create_dashboard", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Binary payload posing as CSV.
	body, ct = multipartUpload(t, map[string]string{"name": "x"}, "dados.csv", "PK\x03\x04\x00binary")
	req = httptest.NewRequest(http.MethodPost, "/api/create_dashboard", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUnknownDashboard(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodDelete, "/api/dashboards/ds_0", nil)
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec, fields := doJSON(t, testRouter(t), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"ok"`, string(fields["status"]))
}
