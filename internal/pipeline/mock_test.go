package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/dataset"
	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/pkg/geocode"
)

const (
	addrCol  = "Адрес"
	coordCol = "Координаты"
)

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Lookup(ctx context.Context, address string) (*geocode.Result, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

// --- Recorder Mock ---

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) CreateRun(ctx context.Context, runID, name string) (*model.Run, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockRecorder) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary, runErr error) error {
	args := m.Called(ctx, runID, summary, runErr)
	return args.Error(0)
}

// --- helpers ---

func found(lat, lon float64) *geocode.Result {
	return &geocode.Result{Latitude: lat, Longitude: lon, Found: true}
}

func notFound() *geocode.Result {
	return &geocode.Result{Found: false}
}

func transportErr(status int) error {
	return &model.TransportError{StatusCode: status, Err: errors.New("geocode: unexpected status")}
}

// addrN is the address used for row n in generated datasets.
func addrN(n int) string {
	return fmt.Sprintf("Москва, Тверская %d", n)
}

func newDataset(t *testing.T, addresses ...string) *dataset.Dataset {
	t.Helper()
	rows := make([][]string, len(addresses))
	for i, a := range addresses {
		rows[i] = []string{fmt.Sprintf("client-%d", i), a}
	}
	ds, err := dataset.New([]string{"Имя", addrCol}, rows)
	require.NoError(t, err)
	return ds
}

func numberedDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	addrs := make([]string, n)
	for i := range addrs {
		addrs[i] = addrN(i)
	}
	return newDataset(t, addrs...)
}

// memSink counts persists and keeps a copy of the last persisted coordinates.
type memSink struct {
	calls  int
	coords []string
	err    error
}

func (s *memSink) persist(_ context.Context, ds *dataset.Dataset) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.coords = make([]string, ds.Len())
	for i := range s.coords {
		s.coords[i] = ds.Get(i, coordCol)
	}
	return nil
}

func testConfig() Config {
	return Config{AddressColumn: addrCol, CoordinateColumn: coordCol}
}

func newTestPipeline(cfg Config, client geocode.Client, opts ...Option) *Pipeline {
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	return New(cfg, client, opts...)
}
