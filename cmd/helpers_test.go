package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-enrich/internal/config"
	"github.com/sells-group/geo-enrich/internal/dataset"
)

const (
	addrCol  = "Адрес"
	coordCol = "Координаты"
)

// fakeGeocoder answers every address with the same point and counts requests.
type fakeGeocoder struct {
	*httptest.Server
	requests atomic.Int32
	lastKey  atomic.Value
}

func newFakeGeocoder(t *testing.T) *fakeGeocoder {
	t.Helper()
	fg := &fakeGeocoder{}
	fg.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fg.requests.Add(1)
		fg.lastKey.Store(r.URL.Query().Get("apikey"))
		if strings.Contains(r.URL.Query().Get("geocode"), "Нигде") {
			_, _ = io.WriteString(w, `{"response":{"GeoObjectCollection":{"featureMember":[]}}}`)
			return
		}
		_, _ = io.WriteString(w, `{"response":{"GeoObjectCollection":{"featureMember":[{"GeoObject":{"Point":{"pos":"37.6173 55.7558"}}}]}}}`)
	}))
	t.Cleanup(fg.Close)
	return fg
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Dataset:    config.DatasetConfig{AddressColumn: addrCol, CoordinateColumn: coordCol},
		Geocoder:   config.GeocoderConfig{BaseURL: baseURL, APIKey: "test-key", TimeoutSecs: 5},
		Quota:      config.QuotaConfig{MaxRequestsPerRun: 900, DailyLimit: 900, Timezone: "UTC"},
		RateWindow: config.RateWindowConfig{MaxRequests: 0},
		Retry:      config.RetryConfig{MaxAttempts: 1},
		Store:      config.StoreConfig{DatabaseURL: filepath.Join(dir, "geo-enrich.db")},
		Cache:      config.CacheConfig{TTLDays: 30},
		Server: config.ServerConfig{
			UploadDir:     filepath.Join(dir, "uploads"),
			CredentialDir: dir,
			MaxUploadMB:   1,
		},
		Log: config.LogConfig{Level: "error", Format: "json"},
	}
}

// writeDataset persists a two-column dataset with one row per address.
func writeDataset(t *testing.T, path string, addresses ...string) {
	t.Helper()
	rows := make([][]string, len(addresses))
	for i, a := range addresses {
		rows[i] = []string{fmt.Sprintf("client-%d", i), a}
	}
	ds, err := dataset.New([]string{"Имя", addrCol}, rows)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, dataset.Persist(context.Background(), ds, path))
}

func readCoordinates(t *testing.T, path string) []string {
	t.Helper()
	ds, err := dataset.Load(context.Background(), path)
	require.NoError(t, err)
	out := make([]string, ds.Len())
	for i := range out {
		out[i] = ds.Get(i, coordCol)
	}
	return out
}
