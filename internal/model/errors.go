package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch on the kind rather than
// on message text.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindDataAccess ErrorKind = "data_access"
	KindCredential ErrorKind = "credential"
	KindTransport  ErrorKind = "transport"
	KindInternal   ErrorKind = "internal"
)

// DataAccessError reports a dataset that could not be read or written.
type DataAccessError struct {
	Op   string // "load" or "persist"
	Path string
	Err  error
}

func (e *DataAccessError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("dataset %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("dataset %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// CredentialError reports a missing, unreadable, or empty API key.
type CredentialError struct {
	Path string
	Err  error
}

func (e *CredentialError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("credential: %v", e.Err)
	}
	return fmt.Sprintf("credential %s: %v", e.Path, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// TransportError reports a single failed geocoder lookup. StatusCode is zero
// when no HTTP response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("geocoder transport (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("geocoder transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first typed error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return KindDataAccess
	}
	var ce *CredentialError
	if errors.As(err, &ce) {
		return KindCredential
	}
	var te *TransportError
	if errors.As(err, &te) {
		return KindTransport
	}
	return KindInternal
}
