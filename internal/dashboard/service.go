package dashboard

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crime-observatory/internal/charts"
	"github.com/sells-group/crime-observatory/internal/dataset"
)

// Upload size and filterability guards.
const (
	MaxUploadBytes    = 32 << 20
	maxFilterableCard = 50 // categorical columns above this aren't offered as filters
	minAnalyzableCols = 2
)

// ColumnInfo describes one column of an analyzed upload.
type ColumnInfo struct {
	Name       string            `json:"name"`
	Type       charts.ColumnType `json:"type"`
	Filterable bool              `json:"filterable"`
}

// Analysis is the result of inspecting an uploaded CSV before registration.
type Analysis struct {
	Columns   []ColumnInfo `json:"columns"`
	RowCount  int          `json:"row_count"`
	Delimiter string       `json:"delimiter"`
}

// Service implements the custom-dataset lifecycle over a Store and a data
// directory.
type Service struct {
	store   *Store
	dataDir string
	now     func() time.Time
}

// NewService ensures the data directory exists and wires the registry.
func NewService(store *Store, dataDir string) (*Service, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "dashboard: create data dir %s", dataDir)
	}
	return &Service{store: store, dataDir: dataDir, now: time.Now}, nil
}

// Analyze parses an uploaded payload as CSV and reports its columns with
// inferred types. Payloads that do not parse as delimited text are rejected;
// the caller maps the error to a 4xx response.
func (s *Service) Analyze(payload []byte) (*Analysis, error) {
	tbl, delim, err := parseCSV(payload)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{RowCount: len(tbl.Rows), Delimiter: string(delim)}
	for _, col := range tbl.Columns {
		values, _ := tbl.Column(col)
		typ := charts.InferColumnType(values)
		analysis.Columns = append(analysis.Columns, ColumnInfo{
			Name:       col,
			Type:       typ,
			Filterable: typ == charts.TypeCategorical && distinctCount(values) <= maxFilterableCard,
		})
	}
	return analysis, nil
}

// Create persists an uploaded CSV and registers it. The id derives from the
// creation timestamp; sub-millisecond collisions are an accepted residual
// risk of the scheme, not guarded further.
func (s *Service) Create(name, description string, payload []byte, filterColumns []string) (Record, error) {
	if strings.TrimSpace(name) == "" {
		return Record{}, eris.New("dashboard: name is required")
	}
	if _, _, err := parseCSV(payload); err != nil {
		return Record{}, err
	}

	now := s.now().UTC()
	id := fmt.Sprintf("ds_%d", now.UnixMilli())
	path := filepath.Join(s.dataDir, id+".csv")

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return Record{}, eris.Wrapf(err, "dashboard: write %s", path)
	}

	rec := Record{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		FilePath:    path,
		Columns:     filterColumns,
		CreatedAt:   now,
	}
	if err := s.store.Insert(rec); err != nil {
		_ = os.Remove(path)
		return Record{}, err
	}

	zap.L().Info("dashboard created",
		zap.String("id", id),
		zap.String("name", rec.Name),
		zap.Int("bytes", len(payload)),
	)
	return rec, nil
}

// List returns all registered dashboards.
func (s *Service) List() ([]Record, error) { return s.store.List() }

// Get returns one dashboard record.
func (s *Service) Get(id string) (Record, error) { return s.store.Get(id) }

// Delete removes both the registry record and the stored file.
func (s *Service) Delete(id string) error {
	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(id); err != nil {
		return err
	}
	if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("dashboard file not removed", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// LoadTable reads a registered dataset back as a generic table for the chart
// resolver.
func (s *Service) LoadTable(id string) (*charts.Table, error) {
	rec, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(rec.FilePath)
	if err != nil {
		return nil, eris.Wrapf(err, "dashboard: read %s", rec.FilePath)
	}
	tbl, _, err := parseCSV(payload)
	if err != nil {
		return nil, err
	}
	return tbl, nil
}

func parseCSV(payload []byte) (*charts.Table, rune, error) {
	if len(payload) == 0 {
		return nil, 0, eris.New("dashboard: empty upload")
	}
	if len(payload) > MaxUploadBytes {
		return nil, 0, eris.Errorf("dashboard: upload exceeds %d bytes", MaxUploadBytes)
	}
	if !isTextual(payload) {
		return nil, 0, eris.New("dashboard: upload is not a CSV text file")
	}

	delim := dataset.SniffDelimiter(payload)
	cr := csv.NewReader(bytes.NewReader(payload))
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		return nil, 0, eris.Wrap(err, "dashboard: parse csv header")
	}
	if len(header) < minAnalyzableCols {
		return nil, 0, eris.Errorf("dashboard: csv has %d column(s), want at least %d", len(header), minAnalyzableCols)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	tbl := &charts.Table{Columns: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, eris.Wrap(err, "dashboard: parse csv row")
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	if len(tbl.Rows) == 0 {
		return nil, 0, eris.New("dashboard: csv has no data rows")
	}
	return tbl, delim, nil
}

// isTextual rejects binary payloads (zip, xls, images) posted as "CSV".
func isTextual(payload []byte) bool {
	limit := len(payload)
	if limit > 8192 {
		limit = 8192
	}
	for _, b := range payload[:limit] {
		if b == 0 {
			return false
		}
	}
	return true
}

func distinctCount(values []string) int {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}
