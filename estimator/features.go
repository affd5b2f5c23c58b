package estimator

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohamedthameursassi/saferoute/categorical"
)

// DefaultWeather is used when the caller does not report conditions.
const DefaultWeather = "Ignorada"

// Weather labels accepted by the training data.
var WeatherConditions = []string{"Sol", "Chuva", "Nublado", "Nevoeiro", "Ignorada"}

var dayOfWeekLabels = map[time.Weekday]string{
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
	time.Sunday:    "domingo",
}

// Features is the fixed-order tuple the model consumes. Categorical fields
// hold encoded indices.
type Features struct {
	Hour      int `json:"hora_do_dia"`
	Month     int `json:"mes"`
	DayOfWeek int `json:"dia_semana"`
	Weather   int `json:"condicao_metereologica"`
	Location  int `json:"localizacao"`
}

func (f Features) Vector() []float64 {
	return []float64{
		float64(f.Hour),
		float64(f.Month),
		float64(f.DayOfWeek),
		float64(f.Weather),
		float64(f.Location),
	}
}

func (f Features) Validate() error {
	switch {
	case f.Hour < 0 || f.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrInvalidFeatures, f.Hour)
	case f.Month < 1 || f.Month > 12:
		return fmt.Errorf("%w: month %d", ErrInvalidFeatures, f.Month)
	case f.DayOfWeek < 0 || f.Weather < 0 || f.Location < 0:
		return fmt.Errorf("%w: negative categorical index", ErrInvalidFeatures)
	}
	return nil
}

// Conditions describe when and where a trip happens.
type Conditions struct {
	At      time.Time
	Weather string
	Region  string
	Place   string
}

// LocationKey forms the "{region}_{place}" key the model was trained on.
func LocationKey(region, place string) string {
	return strings.ToUpper(strings.TrimSpace(region)) + "_" + strings.ToUpper(strings.TrimSpace(place))
}

func DayOfWeekLabel(d time.Weekday) string {
	return dayOfWeekLabels[d]
}

// BuildFeatures encodes c with enc. Unknown values encode to 0.
func BuildFeatures(enc *categorical.Encoder, c Conditions) Features {
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	weather := strings.TrimSpace(c.Weather)
	if weather == "" {
		weather = DefaultWeather
	}
	return Features{
		Hour:      at.Hour(),
		Month:     int(at.Month()),
		DayOfWeek: enc.Encode(categorical.FeatureDayOfWeek, DayOfWeekLabel(at.Weekday())),
		Weather:   enc.Encode(categorical.FeatureWeather, weather),
		Location:  enc.Encode(categorical.FeatureLocation, LocationKey(c.Region, c.Place)),
	}
}
