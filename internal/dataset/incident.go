// Package dataset loads and canonicalizes the three reference tables the
// dashboard serves: the incident table published by the state security
// secretariat, the IBGE municipal boundary file and the population estimates.
// All loading happens once at startup; the resulting State is never mutated.
package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crime-observatory/internal/text"
)

// Canonical incident columns, in source-file order. The source format is
// positional: the Nth raw column always carries the Nth canonical field, so a
// file with a different column count is rejected outright rather than loaded
// misaligned.
var IncidentColumns = []string{
	"AIS", "NATUREZA", "MUNICIPIO", "LOCAL", "DATA", "HORA", "DIA_SEMANA",
	"MEIO_EMPREGADO", "GENERO", "ORIENTACAO_SEXUAL", "IDADE_VITIMA",
	"ESCOLARIDADE_VITIMA", "RACA_VITIMA",
}

// Gender group labels.
const (
	GenderMale     = "Masculino"
	GenderFemale   = "Feminino"
	GenderUnmapped = ""
)

// genderGroups maps the closed set of raw victim-gender categories onto the
// two grouped buckets. Raw values outside this set group to GenderUnmapped and
// are carried as missing, not dropped.
var genderGroups = map[string]string{
	"Masculino":    GenderMale,
	"Homem Trans":  GenderMale,
	"Feminino":     GenderFemale,
	"Mulher Trans": GenderFemale,
	"Travesti":     GenderFemale,
}

// Incident is one reported crime record with its derived fields.
type Incident struct {
	AIS               string
	Category          string
	Municipality      string
	Location          string
	Date              time.Time // zero when the source date did not parse
	Hour              int       // -1 when unknown
	Weekday           string
	Method            string
	Gender            string
	GenderGroup       string // GenderMale, GenderFemale or GenderUnmapped
	SexualOrientation string
	AgeRaw            string
	Education         string
	Race              string

	Year            int
	Month           int
	MunicipalityKey string
}

// HasDate reports whether the occurrence date parsed. Records without a date
// are excluded from date-dependent aggregations but still count in
// non-temporal breakdowns.
func (in Incident) HasDate() bool { return !in.Date.IsZero() }

// Age parses the victim age, rejecting sentinels and out-of-range values.
func (in Incident) Age() (int, bool) {
	v := strings.TrimSpace(in.AgeRaw)
	if v == "" {
		return 0, false
	}
	age, err := strconv.Atoi(v)
	if err != nil || age < 0 || age > 110 {
		return 0, false
	}
	return age, true
}

// GroupGender maps a raw victim-gender category to its grouped bucket.
func GroupGender(raw string) string {
	return genderGroups[strings.TrimSpace(raw)]
}

const incidentDateLayout = "02/01/2006" // dayfirst, as published

// LoadIncidents reads the incident CSV. The first row is a header and is only
// used to validate the column count; field meaning is positional.
func LoadIncidents(r io.Reader) ([]Incident, error) {
	log := zap.L().With(zap.String("component", "dataset.incidents"))

	br := newSniffReader(r)
	cr := csv.NewReader(br)
	cr.Comma = br.Delimiter()

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read incident header")
	}
	if len(header) != len(IncidentColumns) {
		return nil, eris.Errorf("dataset: incident file has %d columns, want %d", len(header), len(IncidentColumns))
	}
	cr.FieldsPerRecord = len(IncidentColumns)

	var incidents []Incident
	var badDates int
	line := 1

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: parse incident csv line %d", line)
		}

		in := Incident{
			AIS:               strings.TrimSpace(rec[0]),
			Category:          strings.TrimSpace(rec[1]),
			Municipality:      strings.TrimSpace(rec[2]),
			Location:          strings.TrimSpace(rec[3]),
			Weekday:           strings.TrimSpace(rec[6]),
			Method:            strings.TrimSpace(rec[7]),
			Gender:            strings.TrimSpace(rec[8]),
			SexualOrientation: strings.TrimSpace(rec[9]),
			AgeRaw:            strings.TrimSpace(rec[10]),
			Education:         strings.TrimSpace(rec[11]),
			Race:              strings.TrimSpace(rec[12]),
		}
		in.GenderGroup = GroupGender(in.Gender)
		in.MunicipalityKey = text.NormalizeKey(in.Municipality)
		in.Hour = parseHour(rec[5])

		if d, err := time.Parse(incidentDateLayout, strings.TrimSpace(rec[4])); err == nil {
			in.Date = d
			in.Year = d.Year()
			in.Month = int(d.Month())
		} else {
			badDates++
		}

		incidents = append(incidents, in)
	}

	if badDates > 0 {
		log.Warn("incident records with unparseable dates",
			zap.Int("records", badDates),
			zap.Int("total", len(incidents)),
		)
	}
	log.Info("incident table loaded", zap.Int("records", len(incidents)))

	return incidents, nil
}

// parseHour extracts the hour from values like "20:30" or "20h30".
// Returns -1 when the field is empty or malformed.
func parseHour(raw string) int {
	v := strings.TrimSpace(raw)
	if v == "" {
		return -1
	}
	if i := strings.IndexAny(v, ":h"); i >= 0 {
		v = v[:i]
	}
	h, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || h < 0 || h > 23 {
		return -1
	}
	return h
}
