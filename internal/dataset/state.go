package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sources names the reference files loaded at startup.
type Sources struct {
	IncidentsPath  string
	PopulationPath string // .csv or .xlsx
	BoundariesPath string // .geojson/.json or .shp
}

// State is the process-wide reference data. It is built once at startup and
// treated as immutable: request handlers read it and build derived structures,
// never modify it.
type State struct {
	Incidents  []Incident
	Population map[string]PopulationRecord
	Boundaries []Boundary
	Regions    *RegionTable

	Categories []string // distinct NATUREZA values, sorted
	MinYear    int
	MaxYear    int
	// LastObservedMonth is the latest month with data inside MaxYear. When it
	// is below 12 the active year is incomplete and year-series endpoints
	// project the remainder.
	LastObservedMonth int
}

// Load reads the three reference files concurrently and derives the summary
// fields. Any failure here is startup-fatal.
func Load(ctx context.Context, src Sources) (*State, error) {
	regions, err := LoadRegions()
	if err != nil {
		return nil, err
	}

	st := &State{Regions: regions}
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		f, err := os.Open(src.IncidentsPath)
		if err != nil {
			return eris.Wrapf(err, "dataset: open incidents %s", src.IncidentsPath)
		}
		defer f.Close()
		st.Incidents, err = LoadIncidents(f)
		return err
	})

	g.Go(func() error {
		var err error
		if strings.EqualFold(filepath.Ext(src.PopulationPath), ".xlsx") {
			st.Population, err = LoadPopulationXLSX(src.PopulationPath, regions)
			return err
		}
		f, err := os.Open(src.PopulationPath)
		if err != nil {
			return eris.Wrapf(err, "dataset: open population %s", src.PopulationPath)
		}
		defer f.Close()
		st.Population, err = LoadPopulationCSV(f, regions)
		return err
	})

	g.Go(func() error {
		if strings.EqualFold(filepath.Ext(src.BoundariesPath), ".shp") {
			var err error
			st.Boundaries, err = LoadBoundariesShapefile(src.BoundariesPath)
			return err
		}
		f, err := os.Open(src.BoundariesPath)
		if err != nil {
			return eris.Wrapf(err, "dataset: open boundaries %s", src.BoundariesPath)
		}
		defer f.Close()
		var lerr error
		st.Boundaries, lerr = LoadBoundariesGeoJSON(f)
		return lerr
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	st.derive()
	zap.L().Info("reference data ready",
		zap.Int("incidents", len(st.Incidents)),
		zap.Int("municipalities", len(st.Population)),
		zap.Int("boundaries", len(st.Boundaries)),
		zap.Int("min_year", st.MinYear),
		zap.Int("max_year", st.MaxYear),
	)

	return st, nil
}

func (st *State) derive() {
	cats := make(map[string]struct{})
	for _, in := range st.Incidents {
		if in.Category != "" {
			cats[in.Category] = struct{}{}
		}
		if !in.HasDate() {
			continue
		}
		if st.MinYear == 0 || in.Year < st.MinYear {
			st.MinYear = in.Year
		}
		if in.Year > st.MaxYear {
			st.MaxYear = in.Year
		}
	}
	for c := range cats {
		st.Categories = append(st.Categories, c)
	}
	sort.Strings(st.Categories)

	for _, in := range st.Incidents {
		if in.HasDate() && in.Year == st.MaxYear && in.Month > st.LastObservedMonth {
			st.LastObservedMonth = in.Month
		}
	}
}

// YearComplete reports whether the most recent year has data through December.
func (st *State) YearComplete() bool { return st.LastObservedMonth == 12 }
