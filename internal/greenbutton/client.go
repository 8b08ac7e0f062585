// Package greenbutton is a client for the utility's Share My Data API:
// OAuth client-credentials token acquisition, authenticated retrieval of
// usage data files, and parsing of the ESPI interval-reading payload.
package greenbutton

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/greenbutton-etl/internal/config"
	"github.com/ignite/greenbutton-etl/internal/pkg/httpretry"
)

// Client talks to the utility API over mutual TLS.
type Client struct {
	tokenURL   string
	stagingDir string
	httpClient httpretry.HTTPDoer
}

// NewClient builds a Client from the API configuration. Every request
// presents the configured client certificate and is bounded by the
// configured timeout; reads are retried per the retry policy.
func NewClient(cfg config.APIConfig) (*Client, error) {
	base, err := httpretry.NewMTLSClient(cfg.CertFile, cfg.KeyFile, cfg.Timeout())
	if err != nil {
		return nil, err
	}
	return &Client{
		tokenURL:   cfg.TokenURL,
		stagingDir: cfg.StagingDir,
		httpClient: httpretry.NewRetryClient(base, 3),
	}, nil
}

// AcquireToken exchanges the client credentials for a short-lived bearer
// token. Tokens are deliberately not cached: each source's extraction
// acquires its own, since token lifetime is shorter than a full run.
func (c *Client) AcquireToken(ctx context.Context, creds *config.Credentials) (string, error) {
	endpoint := c.tokenURL
	if !strings.Contains(endpoint, "grant_type") {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + "grant_type=client_credentials"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", &AuthError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &AuthError{Kind: KindTimeout, Err: err}
		}
		return "", &AuthError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{
			Kind:   KindTransport,
			Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", &AuthError{Kind: KindTransport, Err: fmt.Errorf("decoding token response: %w", err)}
	}
	if token.Error != "" {
		detail := token.Error
		if token.ErrorDescription != "" {
			detail += ": " + token.ErrorDescription
		}
		return "", &AuthError{Kind: KindProvider, Detail: detail}
	}
	if token.ClientAccessToken == "" {
		return "", &AuthError{Kind: KindProvider, Detail: "no client_access_token in response"}
	}
	return token.ClientAccessToken, nil
}

// FetchUsage retrieves one data file with the bearer token and stages
// it under the source's staging directory. Filenames carry a per-fetch
// UUID so same-day fetches never overwrite each other.
func (c *Client) FetchUsage(ctx context.Context, rawURL, token, source string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{Kind: KindTransport, URL: rawURL, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
		}
		return "", &FetchError{Kind: KindTransport, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &FetchError{
			Kind:   KindTransport,
			URL:    rawURL,
			Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	dir := filepath.Join(c.stagingDir, source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &FetchError{Kind: KindTransport, URL: rawURL, Err: err}
	}

	name := fmt.Sprintf("api_response_%s_%s.xml", time.Now().Format("2006-01-02"), uuid.NewString())
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", &FetchError{Kind: KindTransport, URL: rawURL, Err: err}
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", &FetchError{Kind: KindTransport, URL: rawURL, Err: err}
	}
	return path, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
