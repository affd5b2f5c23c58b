package preprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mohamedthameursassi/saferoute/categorical"
	"github.com/mohamedthameursassi/saferoute/estimator"
	"github.com/mohamedthameursassi/saferoute/riskmap"
)

var ErrUnsupportedFormat = errors.New("unsupported accident file format")

// Accident is one historical accident record. Coordinates are always valid
// decimal degrees once loaded.
type Accident struct {
	Latitude  float64
	Longitude float64
	Date      string // dd/mm/yyyy
	Time      string // hh:mm:ss
	DayOfWeek string
	Weather   string
	Region    string
	Place     string
	Type      string
}

// Source yields the accident history used to build a risk surface.
type Source interface {
	Accidents(ctx context.Context) ([]Accident, error)
}

// FileSource reads accidents from a JSON or CSV file on every call.
type FileSource struct {
	Path string
}

func (s FileSource) Accidents(ctx context.Context) ([]Accident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadAccidents(s.Path)
}

// coordinate accepts both JSON numbers and strings with a comma decimal
// separator ("-23,5505").
type coordinate struct {
	value float64
	ok    bool
}

func (c *coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := ParseCoordinate(s)
	if err == nil {
		c.value, c.ok = v, true
	}
	return nil
}

type accidentRecord struct {
	Latitude  coordinate `json:"latitude"`
	Longitude coordinate `json:"longitude"`
	Date      string     `json:"data_inversa"`
	Time      string     `json:"horario"`
	DayOfWeek string     `json:"dia_semana"`
	Weather   string     `json:"condicao_metereologica"`
	Region    string     `json:"uf"`
	Place     string     `json:"municipio"`
	Type      string     `json:"tipo_acidente"`
}

// ParseCoordinate parses a decimal degree written with either '.' or ','.
func ParseCoordinate(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not finite", s)
	}
	return v, nil
}

// LoadAccidents reads a .json array or a ';'-separated .csv file.
func LoadAccidents(path string) ([]Accident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accidents: %w", err)
	}
	defer f.Close()

	var acc []Accident
	var skipped int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		acc, skipped, err = ReadAccidentsJSON(f)
	case ".csv":
		acc, skipped, err = ReadAccidentsCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if skipped > 0 {
		log.Printf("Skipped %d accident rows without valid coordinates in %s", skipped, path)
	}
	return acc, nil
}

// ReadAccidentsJSON decodes an array of accident documents. Records with
// missing or unparsable coordinates are skipped and counted.
func ReadAccidentsJSON(r io.Reader) ([]Accident, int, error) {
	var records []accidentRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, 0, fmt.Errorf("decode accidents: %w", err)
	}

	out := make([]Accident, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if !rec.Latitude.ok || !rec.Longitude.ok {
			skipped++
			continue
		}
		out = append(out, Accident{
			Latitude:  rec.Latitude.value,
			Longitude: rec.Longitude.value,
			Date:      rec.Date,
			Time:      rec.Time,
			DayOfWeek: rec.DayOfWeek,
			Weather:   rec.Weather,
			Region:    rec.Region,
			Place:     rec.Place,
			Type:      rec.Type,
		})
	}
	return out, skipped, nil
}

// ReadAccidentsCSV reads the ';'-separated export with a header row.
func ReadAccidentsCSV(r io.Reader) ([]Accident, int, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read accidents header: %w", err)
	}
	h := headerIndex(header)
	if _, ok := h["latitude"]; !ok {
		return nil, 0, fmt.Errorf("accidents header has no latitude column")
	}
	if _, ok := h["longitude"]; !ok {
		return nil, 0, fmt.Errorf("accidents header has no longitude column")
	}

	var out []Accident
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read accidents row: %w", err)
		}

		get := func(k string) string {
			i, ok := h[k]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		lat, errLat := ParseCoordinate(get("latitude"))
		lon, errLon := ParseCoordinate(get("longitude"))
		if errLat != nil || errLon != nil {
			skipped++
			continue
		}

		out = append(out, Accident{
			Latitude:  lat,
			Longitude: lon,
			Date:      get("data_inversa"),
			Time:      get("horario"),
			DayOfWeek: get("dia_semana"),
			Weather:   get("condicao_metereologica"),
			Region:    get("uf"),
			Place:     get("municipio"),
			Type:      get("tipo_acidente"),
		})
	}
	return out, skipped, nil
}

func headerIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		m[strings.ToLower(h)] = i
	}
	return m
}

// Locations projects accidents onto the records a risk surface is built from.
func Locations(accidents []Accident) []riskmap.Location {
	out := make([]riskmap.Location, len(accidents))
	for i, a := range accidents {
		out[i] = riskmap.Location{Latitude: a.Latitude, Longitude: a.Longitude}
	}
	return out
}

// BuildMapping derives the categorical vocabulary from accident history.
// Values are sorted so indices match a one-hot encoder trained on the same
// data.
func BuildMapping(accidents []Accident) categorical.Mapping {
	sets := map[string]map[string]struct{}{
		categorical.FeatureDayOfWeek: {},
		categorical.FeatureWeather:   {},
		categorical.FeatureLocation:  {},
	}
	add := func(feature, v string) {
		if v = strings.TrimSpace(v); v != "" {
			sets[feature][v] = struct{}{}
		}
	}
	for _, a := range accidents {
		add(categorical.FeatureDayOfWeek, a.DayOfWeek)
		add(categorical.FeatureWeather, a.Weather)
		if a.Region != "" && a.Place != "" {
			add(categorical.FeatureLocation, estimator.LocationKey(a.Region, a.Place))
		}
	}

	m := make(categorical.Mapping, len(sets))
	for feature, set := range sets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		m[feature] = values
	}
	return m
}
