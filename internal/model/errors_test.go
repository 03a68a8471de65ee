package model

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"data access", &DataAccessError{Op: "load", Path: "a.xlsx", Err: errors.New("boom")}, KindDataAccess},
		{"credential", &CredentialError{Path: "apikey.txt", Err: errors.New("empty")}, KindCredential},
		{"transport", &TransportError{StatusCode: 503, Err: errors.New("unavailable")}, KindTransport},
		{"plain", errors.New("other"), KindInternal},
		{"eris wrapped", eris.Wrap(&CredentialError{Err: errors.New("missing")}, "cli: init"), KindCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "dataset load a.xlsx: boom", (&DataAccessError{Op: "load", Path: "a.xlsx", Err: errors.New("boom")}).Error())
	assert.Equal(t, "dataset persist: boom", (&DataAccessError{Op: "persist", Err: errors.New("boom")}).Error())
	assert.Equal(t, "credential apikey.txt: empty", (&CredentialError{Path: "apikey.txt", Err: errors.New("empty")}).Error())
	assert.Equal(t, "geocoder transport (status 503): unavailable", (&TransportError{StatusCode: 503, Err: errors.New("unavailable")}).Error())
	assert.Equal(t, "geocoder transport: reset", (&TransportError{Err: errors.New("reset")}).Error())
}

func TestUnwrap(t *testing.T) {
	root := errors.New("root")
	assert.ErrorIs(t, &DataAccessError{Err: root}, root)
	assert.ErrorIs(t, &CredentialError{Err: root}, root)
	assert.ErrorIs(t, &TransportError{Err: root}, root)
}
