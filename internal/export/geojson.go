// Package export renders enriched datasets as GeoJSON.
package export

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/geo-enrich/internal/dataset"
	"github.com/sells-group/geo-enrich/pkg/geocode"
)

// Columns names the dataset columns read by the exporter.
type Columns struct {
	Address    string
	Coordinate string
}

// Stats counts the rows seen while building a collection.
type Stats struct {
	Features int // rows with valid coordinates
	Empty    int // rows with no coordinates yet
	Invalid  int // rows whose coordinate cell could not be parsed
}

// ParseCoordinates reads a "<lat>, <lon>" cell.
func ParseCoordinates(s string) (lat, lon float64, err error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, eris.Errorf("export: coordinates %q are not \"lat, lon\"", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "export: parse latitude %q", latStr)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "export: parse longitude %q", lonStr)
	}
	if !s2.LatLngFromDegrees(lat, lon).IsValid() {
		return 0, 0, eris.Errorf("export: coordinates out of range: %q", s)
	}
	return lat, lon, nil
}

// FeatureCollection builds one Point feature per row with coordinates. Every
// column of the row becomes a property, plus "row" and "s2_cell". Rows with
// empty or unparseable coordinates are counted and left out.
func FeatureCollection(ds *dataset.Dataset, cols Columns) (*geojson.FeatureCollection, Stats, error) {
	var stats Stats
	if !ds.HasColumn(cols.Coordinate) {
		return nil, stats, eris.Errorf("export: dataset has no %q column", cols.Coordinate)
	}

	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	bounds := geom.NewBounds(geom.XY)

	for i := 0; i < ds.Len(); i++ {
		cell := strings.TrimSpace(ds.Get(i, cols.Coordinate))
		if cell == "" {
			stats.Empty++
			continue
		}
		lat, lon, err := ParseCoordinates(cell)
		if err != nil {
			stats.Invalid++
			continue
		}

		point := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
		bounds.Extend(point)

		props := make(map[string]interface{}, len(ds.Header)+2)
		for _, name := range ds.Header {
			if name == "" || name == cols.Coordinate {
				continue
			}
			props[name] = ds.Get(i, name)
		}
		props["row"] = i
		props["s2_cell"] = (&geocode.Result{Latitude: lat, Longitude: lon}).CellToken()

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(i),
			Geometry:   point,
			Properties: props,
		})
		stats.Features++
	}

	if stats.Features > 0 {
		fc.BBox = bounds
	}
	return fc, stats, nil
}

// Write encodes fc as indented JSON.
func Write(w io.Writer, fc *geojson.FeatureCollection) error {
	raw, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(json.RawMessage(raw)); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}
