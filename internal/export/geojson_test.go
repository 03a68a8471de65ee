package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-enrich/internal/dataset"
)

var cols = Columns{Address: "Адрес", Coordinate: "Координаты"}

func TestParseCoordinates(t *testing.T) {
	lat, lon, err := ParseCoordinates("55.7558, 37.6173")
	require.NoError(t, err)
	assert.InDelta(t, 55.7558, lat, 1e-9)
	assert.InDelta(t, 37.6173, lon, 1e-9)

	for _, bad := range []string{"55.7558 37.6173", "abc, 1", "1, xyz", "95, 10"} {
		_, _, err := ParseCoordinates(bad)
		assert.Error(t, err, bad)
	}
}

func TestFeatureCollection(t *testing.T) {
	ds, err := dataset.New(
		[]string{"Имя", "Адрес", "Координаты"},
		[][]string{
			{"a", "Москва", "55.7558, 37.6173"},
			{"b", "Нигде", ""},
			{"c", "Тверь", "garbage"},
			{"d", "Петербург", "59.9343, 30.3351"},
		},
	)
	require.NoError(t, err)

	fc, stats, err := FeatureCollection(ds, cols)
	require.NoError(t, err)
	assert.Equal(t, Stats{Features: 2, Empty: 1, Invalid: 1}, stats)
	require.Len(t, fc.Features, 2)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, fc))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)
	first := doc.Features[0]
	assert.Equal(t, "0", first.ID)
	assert.Equal(t, "Point", first.Geometry.Type)
	assert.Equal(t, []float64{37.6173, 55.7558}, first.Geometry.Coordinates, "GeoJSON orders lon, lat")
	assert.Equal(t, "Москва", first.Properties["Адрес"])
	assert.Equal(t, "a", first.Properties["Имя"])
	assert.NotEmpty(t, first.Properties["s2_cell"])
	assert.NotContains(t, first.Properties, "Координаты")
	assert.Equal(t, "3", doc.Features[1].ID)
}

func TestFeatureCollection_NoCoordinateColumn(t *testing.T) {
	ds, err := dataset.New([]string{"Адрес"}, [][]string{{"Москва"}})
	require.NoError(t, err)
	_, _, err = FeatureCollection(ds, cols)
	assert.Error(t, err)
}

func TestFeatureCollection_EmptyDataset(t *testing.T) {
	ds, err := dataset.New([]string{"Адрес", "Координаты"}, nil)
	require.NoError(t, err)

	fc, stats, err := FeatureCollection(ds, cols)
	require.NoError(t, err)
	assert.Zero(t, stats.Features)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, fc))
	assert.Contains(t, buf.String(), `"FeatureCollection"`)
	assert.Nil(t, fc.BBox)
}
