package greenbutton

import "fmt"

// ErrorKind classifies how a call against the utility API failed.
type ErrorKind string

const (
	// KindTimeout marks a request that exceeded the client timeout.
	KindTimeout ErrorKind = "timeout"
	// KindTransport marks any other network or HTTP-status failure.
	KindTransport ErrorKind = "transport"
	// KindProvider marks an error payload returned by the provider.
	KindProvider ErrorKind = "provider"
)

// AuthError reports a failed token acquisition. Fatal to the current
// source's extraction.
type AuthError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("token request failed (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("token request failed (%s): %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a failed data-file retrieval after retries.
type FetchError struct {
	Kind   ErrorKind
	URL    string
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("fetching %s (%s): %s", e.URL, e.Kind, e.Detail)
	}
	return fmt.Sprintf("fetching %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a malformed usage payload.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parsing usage payload: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }
