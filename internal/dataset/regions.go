package dataset

import (
	_ "embed"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crime-observatory/internal/text"
)

//go:embed ais_regions.yaml
var aisRegionsYAML []byte

// RegionTable is the fixed municipality-to-AIS assignment. It is built once
// at startup from the embedded table and read concurrently afterwards.
type RegionTable struct {
	byKey   map[string]string
	regions []string
}

// LoadRegions parses the embedded AIS assignment table. Municipality names in
// the table are normalized with the same key function used on every other
// source, so the table tolerates accent differences.
func LoadRegions() (*RegionTable, error) {
	var raw struct {
		Regions map[string][]string `yaml:"regions"`
	}
	if err := yaml.Unmarshal(aisRegionsYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "dataset: parse ais region table")
	}
	if len(raw.Regions) == 0 {
		return nil, eris.New("dataset: ais region table is empty")
	}

	t := &RegionTable{byKey: make(map[string]string)}
	for ais, members := range raw.Regions {
		t.regions = append(t.regions, ais)
		for _, name := range members {
			key := text.NormalizeKey(name)
			if prev, dup := t.byKey[key]; dup && prev != ais {
				return nil, eris.Errorf("dataset: municipality %q assigned to both %s and %s", name, prev, ais)
			}
			t.byKey[key] = ais
		}
	}
	sort.Strings(t.regions)

	return t, nil
}

// Lookup returns the AIS code for a normalized municipality key, or "" when
// the municipality is not in the table.
func (t *RegionTable) Lookup(key string) string {
	if t == nil {
		return ""
	}
	return t.byKey[key]
}

// Regions returns all AIS codes in sorted order.
func (t *RegionTable) Regions() []string {
	out := make([]string, len(t.regions))
	copy(out, t.regions)
	return out
}
