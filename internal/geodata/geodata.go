// Package geodata annotates municipality and region geometries with computed
// incident metrics for the map views.
package geodata

import (
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/crime-observatory/internal/charts"
	"github.com/sells-group/crime-observatory/internal/dataset"
	"github.com/sells-group/crime-observatory/internal/rates"
)

// MapResponse is the choropleth payload: annotated geometries plus the
// scaling figures the legend needs.
type MapResponse struct {
	GeoJSON         *geojson.FeatureCollection `json:"geojson"`
	MaxTaxa         float64                    `json:"max_taxa"`
	TaxaMediaEstado float64                    `json:"taxa_media_estado"`
	TotalMunicipios int                        `json:"total_municipios"`
}

// HeatPoint is one weighted point of the heatmap view: [lat, lon, intensity].
type HeatPoint [3]float64

// MunicipalityPoint is a named marker position for the search box.
type MunicipalityPoint struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// CountByMunicipality tallies filtered incidents per normalized municipality
// key.
func CountByMunicipality(st *dataset.State, f charts.Filter) map[string]int {
	counts := make(map[string]int)
	for _, in := range charts.Apply(st.Incidents, f) {
		if in.MunicipalityKey != "" {
			counts[in.MunicipalityKey]++
		}
	}
	return counts
}

// MunicipalityMap builds the per-municipality choropleth. Every boundary in
// the reference file renders: municipalities without population coverage or
// without matching incidents carry zero rate/count rather than vanishing from
// the map.
func MunicipalityMap(st *dataset.State, f charts.Filter) *MapResponse {
	counts := CountByMunicipality(st, f)
	rated := rates.Join(counts, st.Population)

	byKey := make(map[string]rates.Rated, len(rated))
	for _, r := range rated {
		byKey[r.Key] = r
	}

	fc := &geojson.FeatureCollection{}
	for _, b := range st.Boundaries {
		r := byKey[b.Key] // zero value when population is unknown
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       b.Key,
			Geometry: b.Geometry,
			Properties: map[string]interface{}{
				"name":          b.Name,
				"QUANTIDADE":    counts[b.Key],
				"POPULACAO":     r.Population,
				"TAXA_POR_100K": r.Rate,
			},
		})
	}

	return &MapResponse{
		GeoJSON:         fc,
		MaxTaxa:         rates.MaxRate(rated),
		TaxaMediaEstado: rates.StateRate(rated),
		TotalMunicipios: len(st.Boundaries),
	}
}

// RegionMap builds the per-AIS choropleth. Member municipality polygons are
// dissolved into one MultiPolygon per region; counts and populations are
// summed per region before the rate is computed. Boundaries outside the
// region table are skipped with a warning.
func RegionMap(st *dataset.State, f charts.Filter) *MapResponse {
	counts := CountByMunicipality(st, f)
	regionRates := rates.ByRegion(counts, st.Population, st.Regions)

	rateByAIS := make(map[string]rates.Rated, len(regionRates))
	for _, r := range regionRates {
		rateByAIS[r.Key] = r
	}

	dissolved := make(map[string]*geom.MultiPolygon)
	var unassigned int
	for _, b := range st.Boundaries {
		ais := st.Regions.Lookup(b.Key)
		if ais == "" {
			unassigned++
			continue
		}
		mp, ok := dissolved[ais]
		if !ok {
			mp = geom.NewMultiPolygon(geom.XY)
			dissolved[ais] = mp
		}
		appendPolygons(mp, b.Geometry)
	}
	if unassigned > 0 {
		zap.L().Warn("boundaries without an AIS assignment", zap.Int("municipalities", unassigned))
	}

	codes := make([]string, 0, len(dissolved))
	for ais := range dissolved {
		codes = append(codes, ais)
	}
	sort.Strings(codes)

	fc := &geojson.FeatureCollection{}
	for _, ais := range codes {
		r := rateByAIS[ais]
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       ais,
			Geometry: dissolved[ais],
			Properties: map[string]interface{}{
				"name":          ais,
				"QUANTIDADE":    r.Count,
				"POPULACAO":     r.Population,
				"TAXA_POR_100K": r.Rate,
			},
		})
	}

	return &MapResponse{
		GeoJSON:         fc,
		MaxTaxa:         rates.MaxRate(regionRates),
		TaxaMediaEstado: rates.StateRate(regionRates),
		TotalMunicipios: len(st.Boundaries) - unassigned,
	}
}

// Heatmap returns weighted centroid points for municipalities with matching
// incidents.
func Heatmap(st *dataset.State, f charts.Filter) []HeatPoint {
	counts := CountByMunicipality(st, f)

	out := make([]HeatPoint, 0, len(counts))
	for _, b := range st.Boundaries {
		n := counts[b.Key]
		if n == 0 {
			continue
		}
		out = append(out, HeatPoint{b.Lat, b.Lon, float64(n)})
	}
	return out
}

// Municipalities lists every boundary's name and representative point, sorted
// by name.
func Municipalities(st *dataset.State) []MunicipalityPoint {
	out := make([]MunicipalityPoint, 0, len(st.Boundaries))
	for _, b := range st.Boundaries {
		out = append(out, MunicipalityPoint{Name: b.Name, Lat: b.Lat, Lon: b.Lon})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// appendPolygons pushes every polygon of src onto dst, the dissolve used for
// region rendering.
func appendPolygons(dst *geom.MultiPolygon, src *geom.MultiPolygon) {
	for i := 0; i < src.NumPolygons(); i++ {
		if err := dst.Push(src.Polygon(i)); err != nil {
			zap.L().Debug("skipping polygon during dissolve", zap.Error(err))
		}
	}
}
