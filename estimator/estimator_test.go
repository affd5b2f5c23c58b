package estimator

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedthameursassi/saferoute/categorical"
)

func testEncoder() *categorical.Encoder {
	return categorical.NewEncoder(categorical.Mapping{
		categorical.FeatureDayOfWeek: {"segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado", "domingo"},
		categorical.FeatureWeather:   {"Sol", "Chuva", "Nublado", "Nevoeiro", "Ignorada"},
		categorical.FeatureLocation:  {"SP_SAO PAULO", "RJ_RIO DE JANEIRO"},
	})
}

// ---------------------------------------------------------------------------
// Features
// ---------------------------------------------------------------------------

func TestBuildFeatures(t *testing.T) {
	// 2024-03-15 was a Friday.
	at := time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)
	f := BuildFeatures(testEncoder(), Conditions{
		At:      at,
		Weather: "Chuva",
		Region:  " rj",
		Place:   "Rio de Janeiro ",
	})

	assert.Equal(t, Features{Hour: 18, Month: 3, DayOfWeek: 4, Weather: 1, Location: 1}, f)
	assert.Equal(t, []float64{18, 3, 4, 1, 1}, f.Vector())
}

func TestBuildFeatures_Defaults(t *testing.T) {
	at := time.Date(2024, time.March, 17, 2, 0, 0, 0, time.UTC) // Sunday
	f := BuildFeatures(testEncoder(), Conditions{At: at})

	assert.Equal(t, 6, f.DayOfWeek)
	assert.Equal(t, 4, f.Weather, "empty weather uses the Ignorada label")
	assert.Equal(t, 0, f.Location, "unknown location falls back to index 0")
}

func TestLocationKey(t *testing.T) {
	assert.Equal(t, "SP_SAO PAULO", LocationKey("sp", " Sao Paulo"))
	assert.Equal(t, "_", LocationKey("", ""))
}

func TestFeaturesValidate(t *testing.T) {
	assert.NoError(t, Features{Hour: 0, Month: 1}.Validate())
	assert.ErrorIs(t, Features{Hour: 24, Month: 1}.Validate(), ErrInvalidFeatures)
	assert.ErrorIs(t, Features{Hour: 3, Month: 0}.Validate(), ErrInvalidFeatures)
	assert.ErrorIs(t, Features{Hour: 3, Month: 2, Weather: -1}.Validate(), ErrInvalidFeatures)
}

// ---------------------------------------------------------------------------
// Prediction
// ---------------------------------------------------------------------------

func TestPrediction(t *testing.T) {
	assert.True(t, Predicted(0.4).OK())
	assert.False(t, Predicted(math.NaN()).OK())
	assert.ErrorIs(t, Failed(nil).Err, ErrModelUnavailable)
	assert.ErrorIs(t, Unavailable().Err, ErrModelUnavailable)
}

// ---------------------------------------------------------------------------
// LogisticModel
// ---------------------------------------------------------------------------

const modelJSON = `{
  "name": "modelo_risco_rodoviario",
  "intercept": -1.0,
  "numeric": {
    "hora_do_dia": {"mean": 12, "scale": 6, "weight": 0.6},
    "mes": {"mean": 6.5, "scale": 3.5, "weight": 0}
  },
  "categorical": {
    "dia_semana": [0, 0, 0, 0, 0.2, 0.4, 0.5],
    "condicao_metereologica": [0, 0.8, 0.1, 0.9, 0],
    "localizacao": [0.3, -0.2]
  }
}`

func TestLogisticModel_Predict(t *testing.T) {
	m, err := ParseLogistic(strings.NewReader(modelJSON))
	require.NoError(t, err)
	assert.Equal(t, "modelo_risco_rodoviario", m.Name())

	p := m.Predict(context.Background(), Features{Hour: 18, Month: 3, DayOfWeek: 4, Weather: 1, Location: 1})
	require.True(t, p.OK())

	z := -1.0 + 0.6*(18-12)/6.0 + 0.2 + 0.8 - 0.2
	assert.InDelta(t, 1/(1+math.Exp(-z)), p.Risk, 1e-12)
}

func TestLogisticModel_UnknownIndexContributesNothing(t *testing.T) {
	m, err := ParseLogistic(strings.NewReader(modelJSON))
	require.NoError(t, err)

	inRange := m.Predict(context.Background(), Features{Hour: 12, Month: 6, Location: 0})
	outOfRange := m.Predict(context.Background(), Features{Hour: 12, Month: 6, Location: 99})
	require.True(t, inRange.OK())
	require.True(t, outOfRange.OK())
	assert.Greater(t, inRange.Risk, outOfRange.Risk)
}

func TestLogisticModel_InvalidFeatures(t *testing.T) {
	m := &LogisticModel{}
	p := m.Predict(context.Background(), Features{Hour: 30, Month: 1})
	assert.False(t, p.OK())
	assert.ErrorIs(t, p.Err, ErrInvalidFeatures)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(modelJSON), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1.0, m.Intercept)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrModelUnavailable)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

func TestClient_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 18, req.Features.Hour)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"risk": 0.37}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithName("svc"))
	p := c.Predict(context.Background(), Features{Hour: 18, Month: 3})
	require.True(t, p.OK())
	assert.Equal(t, 0.37, p.Risk)
	assert.Equal(t, "svc", c.Name())
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantErr: ErrModelUnavailable},
		{name: "invalid json", status: http.StatusOK, body: `nope`, wantErr: ErrModelUnavailable},
		{name: "missing risk", status: http.StatusOK, body: `{}`, wantErr: ErrModelUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewClient(srv.URL, WithHTTPClient(srv.Client())).Predict(context.Background(), Features{Hour: 1, Month: 1})
			assert.False(t, p.OK())
			assert.True(t, errors.Is(p.Err, tt.wantErr), "got %v", p.Err)
		})
	}
}

func TestClient_InvalidFeaturesSkipRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := NewClient(srv.URL).Predict(context.Background(), Features{Hour: -1, Month: 1})
	assert.ErrorIs(t, p.Err, ErrInvalidFeatures)
	assert.False(t, called)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewClient(url, WithTimeout(time.Second)).Predict(context.Background(), Features{Hour: 1, Month: 1})
	assert.ErrorIs(t, p.Err, ErrModelUnavailable)
}

func TestClient_TimeoutLeavesSuppliedClientAlone(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}
	c := NewClient("http://127.0.0.1:1", WithHTTPClient(hc), WithTimeout(time.Second))
	assert.Equal(t, time.Minute, hc.Timeout)
	assert.NotSame(t, hc, c.client)
	assert.Equal(t, time.Second, c.client.Timeout)

	c = NewClient("http://127.0.0.1:1", WithTimeout(time.Second), WithHTTPClient(hc))
	assert.Equal(t, time.Minute, hc.Timeout)
	assert.Equal(t, time.Second, c.client.Timeout)

	c = NewClient("http://127.0.0.1:1", WithHTTPClient(hc))
	assert.Same(t, hc, c.client)

	c = NewClient("http://127.0.0.1:1", WithTimeout(3*time.Second))
	assert.Equal(t, 3*time.Second, c.client.Timeout)
}
