package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedthameursassi/saferoute/categorical"
	"github.com/mohamedthameursassi/saferoute/preprocessing"
	"github.com/mohamedthameursassi/saferoute/riskmap"
)

func TestHotspots(t *testing.T) {
	s := riskmap.Build([]riskmap.Location{
		{Latitude: 1, Longitude: 1},
		{Latitude: 2, Longitude: 2},
		{Latitude: 2, Longitude: 2},
		{Latitude: 3, Longitude: 3},
		{Latitude: 3, Longitude: 3},
		{Latitude: 3, Longitude: 3},
	})

	top := hotspots(s, 2)
	require.Len(t, top, 2)
	assert.Equal(t, 3, top[0].Count)
	assert.Equal(t, 1.0, top[0].Score)
	assert.Equal(t, 2, top[1].Count)

	assert.Len(t, hotspots(s, 10), 3)

	var buf bytes.Buffer
	printHotspots(&buf, top)
	assert.Contains(t, buf.String(), "1. (3.000000, 3.000000) count=3 score=1.000")
}

func TestWriteJSON_MappingLoadsBack(t *testing.T) {
	accidents := []preprocessing.Accident{
		{Weather: "Sol", DayOfWeek: "segunda-feira", Region: "LISBOA", Place: "LISBOA"},
		{Weather: "Chuva", DayOfWeek: "domingo"},
	}
	path := filepath.Join(t.TempDir(), "nested", "mapeamentos.json")
	require.NoError(t, writeJSON(path, preprocessing.BuildMapping(accidents)))

	enc, err := categorical.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chuva", "Sol"}, enc.Values(categorical.FeatureWeather))
	assert.True(t, enc.Known(categorical.FeatureDayOfWeek, "domingo"))
}
