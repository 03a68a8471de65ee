// Package geocode resolves free-text addresses to coordinates using the Yandex
// HTTP geocoder.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/internal/resilience"
)

// DefaultBaseURL is the public Yandex geocoder endpoint.
const DefaultBaseURL = "https://geocode-maps.yandex.ru/1.x/"

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	cellLevel      = 13
)

// Client looks up a single address.
type Client interface {
	// Lookup returns Found=false when the geocoder has no candidate for the
	// address. Any failure to obtain a usable answer is a *model.TransportError.
	Lookup(ctx context.Context, address string) (*Result, error)
}

// Result is the outcome of one lookup.
type Result struct {
	Latitude  float64
	Longitude float64
	Found     bool
	Cached    bool   // served from the lookup cache; no request was sent
	Precision string // geocoder precision, e.g. "exact", "street"
	Label     string // geocoder's formatted address
}

// Coordinates renders the result as "<lat>, <lon>" using the shortest decimal
// form that round-trips.
func (r *Result) Coordinates() string {
	return FormatCoordinates(r.Latitude, r.Longitude)
}

// CellToken returns the S2 cell token covering the point, useful for
// grouping nearby results.
func (r *Result) CellToken() string {
	ll := s2.LatLngFromDegrees(r.Latitude, r.Longitude)
	return s2.CellIDFromLatLng(ll).Parent(cellLevel).ToToken()
}

// FormatCoordinates renders a latitude/longitude pair as "<lat>, <lon>".
func FormatCoordinates(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + ", " + strconv.FormatFloat(lon, 'f', -1, 64)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the geocoder endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		g.timeout = d
	}
}

// WithRateLimit smooths requests to at most rps per second. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithLanguage sets the response language (the lang parameter, e.g. "ru_RU").
func WithLanguage(lang string) Option {
	return func(g *geocoder) {
		g.lang = lang
	}
}

type geocoder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	lang       string
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewClient creates a Client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.timeout > 0 {
		hc := *g.httpClient
		hc.Timeout = g.timeout
		g.httpClient = &hc
	}
	return g
}

// yandexResponse is the subset of the geocoder JSON we read.
type yandexResponse struct {
	Response *struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					MetaDataProperty struct {
						GeocoderMetaData struct {
							Precision string `json:"precision"`
							Text      string `json:"text"`
						} `json:"GeocoderMetaData"`
					} `json:"metaDataProperty"`
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

// requestURL adds the lookup parameters to any query the base URL already
// carries.
func (g *geocoder) requestURL(address string) (string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", err
	}
	params := u.Query()
	params.Set("geocode", address)
	params.Set("format", "json")
	params.Set("apikey", g.apiKey)
	if g.lang != "" {
		params.Set("lang", g.lang)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (g *geocoder) Lookup(ctx context.Context, address string) (*Result, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &model.TransportError{Err: eris.Wrap(err, "geocode: rate limit")}
		}
	}

	reqURL, err := g.requestURL(address)
	if err != nil {
		return nil, &model.TransportError{Err: eris.Wrap(scrubURLError(err), "geocode: parse base url")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &model.TransportError{Err: eris.Wrap(scrubURLError(err), "geocode: build request")}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &model.TransportError{Err: eris.Wrap(scrubURLError(err), "geocode: request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &model.TransportError{StatusCode: resp.StatusCode, Err: eris.Wrap(err, "geocode: read body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("geocode: unexpected status %d: %s", resp.StatusCode, snippet(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, &model.TransportError{
				StatusCode: resp.StatusCode,
				Err:        resilience.NewTransientError(statusErr, resp.StatusCode),
			}
		}
		return nil, &model.TransportError{StatusCode: resp.StatusCode, Err: statusErr}
	}

	var parsed yandexResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.TransportError{StatusCode: resp.StatusCode, Err: eris.Wrap(err, "geocode: parse response")}
	}

	if parsed.Response == nil || len(parsed.Response.GeoObjectCollection.FeatureMember) == 0 {
		return &Result{Found: false}, nil
	}

	obj := parsed.Response.GeoObjectCollection.FeatureMember[0].GeoObject
	lat, lon, err := parsePos(obj.Point.Pos)
	if err != nil {
		return nil, &model.TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Found:     true,
		Precision: obj.MetaDataProperty.GeocoderMetaData.Precision,
		Label:     obj.MetaDataProperty.GeocoderMetaData.Text,
	}, nil
}

// parsePos reads the geocoder's "<lon> <lat>" pair and returns it as
// latitude, longitude.
func parsePos(pos string) (float64, float64, error) {
	fields := strings.Fields(pos)
	if len(fields) != 2 {
		return 0, 0, eris.Errorf("geocode: malformed pos %q", pos)
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "geocode: parse longitude %q", fields[0])
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "geocode: parse latitude %q", fields[1])
	}
	if !s2.LatLngFromDegrees(lat, lon).IsValid() {
		return 0, 0, eris.Errorf("geocode: coordinates out of range: lat=%v lon=%v", lat, lon)
	}
	return lat, lon, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return RedactSecrets(s)
}
