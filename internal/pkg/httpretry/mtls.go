package httpretry

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// NewMTLSClient builds an *http.Client that presents the given client
// certificate pair on every request, with a fixed per-request timeout.
// The utility API requires mutual TLS on both the token and data
// endpoints.
func NewMTLSClient(certFile, keyFile string, timeout time.Duration) (*http.Client, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading client certificate: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
