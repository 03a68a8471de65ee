package geocode

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>".
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// key=value pairs, including the geocoder's apikey query parameter.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key)\b\s*[:=]\s*[^\s"'&]+`)
)

// RedactSecrets removes secret-bearing substrings from error and log text.
func RedactSecrets(s string) string {
	if s == "" {
		return ""
	}
	out := bearerTokenRe.ReplaceAllString(s, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "${1}=<redacted>")
	return strings.TrimSpace(out)
}

// scrubURLError strips the query string from a *url.Error so the API key
// carried in the request URL never reaches an error message.
func scrubURLError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		ue.URL = u.String()
	} else {
		ue.URL = RedactSecrets(ue.URL)
	}
	return err
}
