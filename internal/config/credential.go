package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-enrich/internal/model"
)

// Secret is an API key that never prints its value. Use Reveal only at the
// point where the key is placed on the wire.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}

// GoString keeps %#v from leaking the key.
func (s Secret) GoString() string { return s.String() }

// Reveal returns the raw key.
func (s Secret) Reveal() string { return string(s) }

// LoadCredential reads a single trimmed API key from path.
func LoadCredential(path string) (Secret, error) {
	if strings.TrimSpace(path) == "" {
		return "", &model.CredentialError{Err: eris.New("no credential file configured")}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", &model.CredentialError{Path: path, Err: eris.Wrap(err, "read credential file")}
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", &model.CredentialError{Path: path, Err: eris.New("credential file is empty")}
	}
	return Secret(key), nil
}

// ResolveCredential returns the inline key when set, otherwise loads it from
// the configured key file.
func (g GeocoderConfig) ResolveCredential() (Secret, error) {
	if key := strings.TrimSpace(g.APIKey); key != "" {
		return Secret(key), nil
	}
	return LoadCredential(g.APIKeyFile)
}
