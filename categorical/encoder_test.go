package categorical

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapping() Mapping {
	return Mapping{
		FeatureWeather:   {"Sol", "Chuva", "Nublado", "Nevoeiro", "Ignorada"},
		FeatureDayOfWeek: {"segunda-feira", "terça-feira", "quarta-feira", "segunda-feira"},
		FeatureLocation:  {"SP_SAO PAULO", "RJ_RIO DE JANEIRO"},
	}
}

func TestEncode_KnownValues(t *testing.T) {
	enc := NewEncoder(testMapping())

	assert.Equal(t, 0, enc.Encode(FeatureWeather, "Sol"))
	assert.Equal(t, 1, enc.Encode(FeatureWeather, "Chuva"))
	assert.Equal(t, 4, enc.Encode(FeatureWeather, "Ignorada"))
	assert.Equal(t, 1, enc.Encode(FeatureLocation, "RJ_RIO DE JANEIRO"))
}

func TestEncode_FallsBackToZero(t *testing.T) {
	enc := NewEncoder(testMapping())

	assert.Equal(t, 0, enc.Encode(FeatureWeather, "Granizo"))
	assert.Equal(t, 0, enc.Encode("unknown_feature", "Sol"))
	assert.Equal(t, 0, enc.Encode("", ""))

	var nilEnc *Encoder
	assert.Equal(t, 0, nilEnc.Encode(FeatureWeather, "Chuva"))
}

func TestEncode_FallbackIndistinguishableFromFirstValue(t *testing.T) {
	enc := NewEncoder(testMapping())

	assert.Equal(t, enc.Encode(FeatureWeather, "Sol"), enc.Encode(FeatureWeather, "Granizo"))
	assert.True(t, enc.Known(FeatureWeather, "Sol"))
	assert.False(t, enc.Known(FeatureWeather, "Granizo"))
}

func TestEncode_TotalAndIdempotent(t *testing.T) {
	enc := NewEncoder(testMapping())
	inputs := []struct{ feature, value string }{
		{FeatureWeather, "Chuva"},
		{FeatureWeather, "chuva"},
		{FeatureDayOfWeek, "domingo"},
		{FeatureLocation, "MG_BELO HORIZONTE"},
		{"tipo_via", "FEDERAL"},
		{"", "x"},
	}
	for _, in := range inputs {
		first := enc.Encode(in.feature, in.value)
		assert.GreaterOrEqual(t, first, 0)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, enc.Encode(in.feature, in.value))
		}
	}
}

func TestNewEncoder_DeduplicatesKeepingFirstOccurrence(t *testing.T) {
	enc := NewEncoder(testMapping())

	assert.Equal(t, []string{"segunda-feira", "terça-feira", "quarta-feira"}, enc.Values(FeatureDayOfWeek))
	assert.Equal(t, 2, enc.Encode(FeatureDayOfWeek, "quarta-feira"))
}

func TestMapping_IsDeepCopy(t *testing.T) {
	enc := NewEncoder(testMapping())
	m := enc.Mapping()
	m[FeatureWeather][0] = "changed"

	assert.Equal(t, 0, enc.Encode(FeatureWeather, "Sol"))
	assert.Equal(t, []string{FeatureWeather, FeatureDayOfWeek, FeatureLocation}, enc.Features())
}

func TestParse(t *testing.T) {
	enc, err := Parse(strings.NewReader(`{"condicao_metereologica": ["Sol", "Chuva"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, enc.Encode(FeatureWeather, "Chuva"))

	_, err = Parse(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"localizacao": ["SP_SAO PAULO"]}`), 0o644))

	enc, err := Load(path)
	require.NoError(t, err)
	assert.True(t, enc.Known(FeatureLocation, "SP_SAO PAULO"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestEncode_UnnamedMappingFeature(t *testing.T) {
	enc := NewEncoder(Mapping{"tipo_via": {"FEDERAL", "ESTADUAL"}})

	assert.Equal(t, 1, enc.Encode("tipo_via", "ESTADUAL"))
	assert.Equal(t, []string{"FEDERAL", "ESTADUAL"}, enc.Values("tipo_via"))
}
