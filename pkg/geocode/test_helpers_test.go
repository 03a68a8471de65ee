package geocode

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// newTestLimiter never blocks.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// yandexTransport sends requests aimed at the public geocoder endpoint to a
// local test server and remembers the query of each one.
type yandexTransport struct {
	base    http.RoundTripper
	target  *url.URL
	mu      sync.Mutex
	queries []url.Values
}

// newYandexClient returns an HTTP client whose DefaultBaseURL requests land on
// testServerURL, plus the transport for inspecting sent queries.
func newYandexClient(testServerURL string) (*http.Client, *yandexTransport) {
	target, err := url.Parse(testServerURL)
	if err != nil {
		panic(err)
	}
	tr := &yandexTransport{base: http.DefaultTransport, target: target}
	return &http.Client{Transport: tr}, tr
}

func (t *yandexTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.queries = append(t.queries, req.URL.Query())
	t.mu.Unlock()

	if !strings.HasPrefix(req.URL.String(), DefaultBaseURL) {
		return t.base.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = t.target.Host
	return t.base.RoundTrip(out)
}

// sent returns the queries seen so far.
func (t *yandexTransport) sent() []url.Values {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]url.Values(nil), t.queries...)
}
