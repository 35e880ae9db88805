package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/crime-observatory/internal/text"
)

// PopulationRecord is one municipality's resident estimate. Population
// coverage is authoritative for rate denominators: a municipality absent from
// this table never contributes a rate.
type PopulationRecord struct {
	Municipality string
	Key          string
	Population   int
	AIS          string
}

// LoadPopulationCSV reads a two-column (municipio, populacao) estimate file
// and assigns each municipality its AIS region from the lookup table.
func LoadPopulationCSV(r io.Reader, regions *RegionTable) (map[string]PopulationRecord, error) {
	br := newSniffReader(r)
	cr := csv.NewReader(br)
	cr.Comma = br.Delimiter()

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read population header")
	}
	if len(header) < 2 {
		return nil, eris.Errorf("dataset: population file has %d columns, want at least 2", len(header))
	}

	recs := make(map[string]PopulationRecord)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: parse population csv line %d", line)
		}
		pr, perr := populationRecord(rec[0], rec[1], regions)
		if perr != nil {
			return nil, eris.Wrapf(perr, "dataset: population csv line %d", line)
		}
		recs[pr.Key] = pr
	}

	zap.L().Info("population table loaded", zap.Int("municipalities", len(recs)))
	return recs, nil
}

// LoadPopulationXLSX reads the first sheet of an IBGE estimate workbook,
// expecting municipality name in the first column and the estimate in the
// second. Header rows (non-numeric second column) are skipped.
func LoadPopulationXLSX(path string, regions *RegionTable) (map[string]PopulationRecord, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open population workbook %s", path)
	}
	if len(wb.Sheets) == 0 {
		return nil, eris.New("dataset: population workbook has no sheets")
	}

	recs := make(map[string]PopulationRecord)
	for _, row := range wb.Sheets[0].Rows {
		if len(row.Cells) < 2 {
			continue
		}
		name := strings.TrimSpace(row.Cells[0].String())
		raw := strings.TrimSpace(row.Cells[1].String())
		if name == "" || raw == "" {
			continue
		}
		pr, perr := populationRecord(name, raw, regions)
		if perr != nil {
			continue // header or annotation row
		}
		recs[pr.Key] = pr
	}

	if len(recs) == 0 {
		return nil, eris.New("dataset: population workbook yielded no records")
	}
	zap.L().Info("population workbook loaded", zap.Int("municipalities", len(recs)))
	return recs, nil
}

func populationRecord(name, raw string, regions *RegionTable) (PopulationRecord, error) {
	// IBGE publishes counts with thousand separators.
	cleaned := strings.NewReplacer(".", "", " ", "", " ", "").Replace(strings.TrimSpace(raw))
	pop, err := strconv.Atoi(cleaned)
	if err != nil {
		return PopulationRecord{}, eris.Wrapf(err, "parse population %q", raw)
	}
	if pop < 0 {
		return PopulationRecord{}, eris.Errorf("negative population %d for %q", pop, name)
	}
	key := text.NormalizeKey(name)
	return PopulationRecord{
		Municipality: strings.TrimSpace(name),
		Key:          key,
		Population:   pop,
		AIS:          regions.Lookup(key),
	}, nil
}
