// Package etl orchestrates the run: per-source extraction, transform,
// load, and metrics, with one source's failure isolated from the rest.
package etl

import (
	"context"
	"fmt"

	"github.com/ignite/greenbutton-etl/internal/config"
	"github.com/ignite/greenbutton-etl/internal/frame"
	"github.com/ignite/greenbutton-etl/internal/greenbutton"
	"github.com/ignite/greenbutton-etl/internal/pkg/logger"
	"github.com/ignite/greenbutton-etl/internal/webhooks"
)

// ExtractError wraps any failure during a source's extraction pass.
// Fatal to that source only; the run loop catches it.
type ExtractError struct {
	Source string
	Err    error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("[%s] extraction failed: %v", e.Source, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// TokenProvider acquires a bearer token for the extraction pass.
type TokenProvider interface {
	AcquireToken(ctx context.Context, creds *config.Credentials) (string, error)
}

// Discoverer enumerates pending webhook notifications.
type Discoverer interface {
	ListPending(ctx context.Context) ([]webhooks.Notification, error)
}

// Fetcher retrieves one data file and returns its staged path.
type Fetcher interface {
	FetchUsage(ctx context.Context, url, token, source string) (string, error)
}

// Extractor runs the extraction pass for one source: token, discovery,
// fetch, parse, and typed accumulation. The sequence is strictly
// linear; retries happen only inside the HTTP client.
type Extractor struct {
	Tokens   TokenProvider
	Webhooks Discoverer
	Fetcher  Fetcher
	Creds    *config.Credentials

	// ParseFile defaults to the greenbutton parser; tests substitute it.
	ParseFile func(path string) ([]greenbutton.Reading, error)
}

func (e *Extractor) parse(path string) ([]greenbutton.Reading, error) {
	if e.ParseFile != nil {
		return e.ParseFile(path)
	}
	return greenbutton.ParseFile(path)
}

// Extract produces the source's ingested table plus the notification
// keys it consumed. Any failure aborts this source's extraction and is
// wrapped as an ExtractError.
func (e *Extractor) Extract(ctx context.Context, src config.SourceConfig) (*frame.Table, []string, error) {
	token, err := e.Tokens.AcquireToken(ctx, e.Creds)
	if err != nil {
		return nil, nil, &ExtractError{Source: src.Name, Err: err}
	}

	notifications, err := e.Webhooks.ListPending(ctx)
	if err != nil {
		return nil, nil, &ExtractError{Source: src.Name, Err: err}
	}

	var rows []map[string]*string
	var keys []string
	for _, n := range notifications {
		for _, url := range n.URLs {
			path, err := e.Fetcher.FetchUsage(ctx, url, token, src.Name)
			if err != nil {
				return nil, nil, &ExtractError{Source: src.Name, Err: err}
			}
			readings, err := e.parse(path)
			if err != nil {
				return nil, nil, &ExtractError{Source: src.Name, Err: err}
			}
			for _, r := range readings {
				rows = append(rows, r.Row())
			}
		}
		keys = append(keys, n.Key)
	}

	tbl, err := frame.Build(rows, src.Schema)
	if err != nil {
		return nil, nil, &ExtractError{Source: src.Name, Err: err}
	}

	logger.Debug("extraction pass complete",
		"source", src.Name,
		"notifications", len(keys),
		"rows", tbl.Height())
	return tbl, keys, nil
}
