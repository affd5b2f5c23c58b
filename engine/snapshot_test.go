package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedthameursassi/saferoute/categorical"
	"github.com/mohamedthameursassi/saferoute/estimator"
	"github.com/mohamedthameursassi/saferoute/preprocessing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const twoAccidents = `[
  {"latitude": "38,7005", "longitude": "-9,14"},
  {"latitude": "38,7005", "longitude": "-9,14"},
  {"latitude": "38,8", "longitude": "-9,2"}
]`

type failingSource struct{}

func (failingSource) Accidents(context.Context) ([]preprocessing.Accident, error) {
	return nil, errors.New("database unreachable")
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	l := Loader{
		Accidents:    preprocessing.FileSource{Path: writeFile(t, dir, "acidentes.json", twoAccidents)},
		MappingsPath: writeFile(t, dir, "mapeamentos.json", `{"condicao_metereologica": ["Sol", "Chuva"]}`),
		ModelPath:    filepath.Join(dir, "missing-model.json"),
	}

	snap, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Surface.Len())
	assert.Equal(t, 2, snap.Surface.MaxCount())
	assert.Equal(t, 1, snap.Encoder.Encode(categorical.FeatureWeather, "Chuva"))
	assert.False(t, snap.ModelLoaded())
	assert.NotEmpty(t, snap.Version)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestLoader_MissingMappingsDegrade(t *testing.T) {
	dir := t.TempDir()
	l := Loader{
		Accidents:    preprocessing.FileSource{Path: writeFile(t, dir, "acidentes.json", twoAccidents)},
		MappingsPath: filepath.Join(dir, "nope.json"),
	}
	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Encoder.Encode(categorical.FeatureWeather, "Chuva"))
}

func TestLoader_RemoteModel(t *testing.T) {
	dir := t.TempDir()
	l := Loader{
		Accidents: preprocessing.FileSource{Path: writeFile(t, dir, "acidentes.json", "[]")},
		ModelURL:  "http://127.0.0.1:1/predict",
	}
	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	require.True(t, snap.ModelLoaded())
	_, ok := snap.Model.(*estimator.Client)
	assert.True(t, ok)
}

func TestLoader_AccidentsFailure(t *testing.T) {
	_, err := Loader{Accidents: failingSource{}}.Load(context.Background())
	assert.ErrorContains(t, err, "database unreachable")

	_, err = Loader{}.Load(context.Background())
	assert.Error(t, err)
}

func TestReloadFrom(t *testing.T) {
	dir := t.TempDir()
	e := New(nil)
	before := e.Snapshot()

	_, err := e.ReloadFrom(context.Background(), Loader{Accidents: failingSource{}})
	require.Error(t, err)
	assert.Same(t, before, e.Snapshot())

	snap, err := e.ReloadFrom(context.Background(), Loader{
		Accidents: preprocessing.FileSource{Path: writeFile(t, dir, "acidentes.json", twoAccidents)},
	})
	require.NoError(t, err)
	assert.Same(t, snap, e.Snapshot())
	assert.NotEqual(t, before.Version, snap.Version)
}
