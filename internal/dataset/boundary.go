package dataset

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/crime-observatory/internal/text"
)

// Boundary is one municipality polygon with its join key and a representative
// interior point for marker/heatmap placement.
type Boundary struct {
	Name     string
	Key      string
	Geometry *geom.MultiPolygon
	Lat      float64
	Lon      float64
}

// Property names the IBGE GeoJSON export uses for the municipality name, in
// preference order.
var boundaryNameProps = []string{"name", "NM_MUN", "nome", "NM_MUNICIP"}

// LoadBoundariesGeoJSON reads a municipality FeatureCollection.
func LoadBoundariesGeoJSON(r io.Reader) ([]Boundary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read boundary geojson")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "dataset: parse boundary geojson")
	}
	if len(fc.Features) == 0 {
		return nil, eris.New("dataset: boundary file has no features")
	}

	var boundaries []Boundary
	var skipped int
	for _, f := range fc.Features {
		name := featureName(f.Properties)
		mp := asMultiPolygon(f.Geometry)
		if name == "" || mp == nil {
			skipped++
			continue
		}
		boundaries = append(boundaries, newBoundary(name, mp))
	}

	if skipped > 0 {
		zap.L().Warn("boundary features skipped", zap.Int("features", skipped))
	}
	zap.L().Info("boundary table loaded", zap.Int("municipalities", len(boundaries)))

	return boundaries, nil
}

// LoadBoundariesShapefile reads a municipality shapefile, taking the name
// from the first attribute field matching boundaryNameProps.
func LoadBoundariesShapefile(path string) ([]Boundary, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open boundary shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	for i, f := range reader.Fields() {
		fieldName := strings.TrimRight(f.String(), "\x00")
		for _, want := range boundaryNameProps {
			if strings.EqualFold(fieldName, want) {
				nameIdx = i
				break
			}
		}
		if nameIdx >= 0 {
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("dataset: boundary shapefile has no name field (want one of %v)", boundaryNameProps)
	}

	var boundaries []Boundary
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" || mp == nil {
			skipped++
			continue
		}
		boundaries = append(boundaries, newBoundary(name, mp))
	}

	if skipped > 0 {
		zap.L().Warn("boundary shapes skipped", zap.Int("shapes", skipped))
	}
	zap.L().Info("boundary shapefile loaded", zap.Int("municipalities", len(boundaries)))

	return boundaries, nil
}

func newBoundary(name string, mp *geom.MultiPolygon) Boundary {
	lon, lat := representativePoint(mp)
	return Boundary{
		Name:     name,
		Key:      text.NormalizeKey(name),
		Geometry: mp,
		Lat:      lat,
		Lon:      lon,
	}
}

// representativePoint returns the polygon centroid, falling back to the
// bounding-box center for degenerate geometries.
func representativePoint(mp *geom.MultiPolygon) (lon, lat float64) {
	if c, err := xy.Centroid(mp); err == nil && len(c) >= 2 {
		return c[0], c[1]
	}
	b := mp.Bounds()
	return (b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2
}

// asMultiPolygon lifts Polygon features to single-element MultiPolygons so
// downstream code handles one geometry type.
func asMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil
		}
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Ring parts become separate polygons; hole association is not reconstructed,
// which is sufficient for choropleth rendering.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func featureName(props map[string]interface{}) string {
	for _, p := range boundaryNameProps {
		if v, ok := props[p]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
