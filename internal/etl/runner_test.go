package etl

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/greenbutton-etl/internal/config"
	"github.com/ignite/greenbutton-etl/internal/frame"
	"github.com/ignite/greenbutton-etl/internal/greenbutton"
	"github.com/ignite/greenbutton-etl/internal/webhooks"
)

type fakeLoader struct {
	mu     sync.Mutex
	loaded map[string]int // source name -> rows
	err    error
}

func (f *fakeLoader) Load(_ context.Context, tbl *frame.Table, src config.SourceConfig) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded == nil {
		f.loaded = make(map[string]int)
	}
	f.loaded[src.Name] = tbl.Height()
	return nil
}

type fakeSink struct {
	saved *RunMetrics
	err   error
}

func (f *fakeSink) SaveMetrics(_ context.Context, run *RunMetrics) error {
	f.saved = run
	return f.err
}

type fakeArchiver struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeArchiver) Archive(_ context.Context, key string) error {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return nil
}

func newRunner(sources []config.SourceConfig, ex *Extractor, loader Loader) *Runner {
	return &Runner{
		Config: &config.ETLConfig{
			DBName:     "ENERGY",
			SchemaName: "USAGE",
			API:        config.APIConfig{MaxParallelSources: 1},
			Sources:    sources,
		},
		Extractor: ex,
		Loader:    loader,
	}
}

func TestRunSuccess(t *testing.T) {
	loader := &fakeLoader{}
	sink := &fakeSink{}
	ex := &Extractor{
		Tokens: &fakeTokens{},
		Webhooks: &fakeDiscovery{notifications: []webhooks.Notification{
			{Key: "n1", URLs: []string{"https://api/usage/1"}},
		}},
		Fetcher:   &fakeFetcher{},
		Creds:     &config.Credentials{},
		ParseFile: func(string) ([]greenbutton.Reading, error) { return stubReadings(3), nil },
	}

	r := newRunner([]config.SourceConfig{testSourceConfig("electric_usage")}, ex, loader)
	r.Sink = sink

	run := r.Run(context.Background())

	m := run.Source("electric_usage")
	require.NotNil(t, m)
	assert.Equal(t, StatusSuccess, m.Status)
	assert.Equal(t, 3, m.RecordsExtracted)
	assert.Equal(t, 3, m.RecordsUploaded)
	assert.False(t, m.SourceEnd.IsZero())
	assert.False(t, run.RunEnd.IsZero())

	assert.Equal(t, 3, loader.loaded["electric_usage"])
	assert.Same(t, run, sink.saved)
}

func TestRunSkipsWhenNothingPending(t *testing.T) {
	loader := &fakeLoader{}
	ex := &Extractor{
		Tokens:   &fakeTokens{},
		Webhooks: &fakeDiscovery{},
		Fetcher:  &fakeFetcher{},
		Creds:    &config.Credentials{},
	}

	r := newRunner([]config.SourceConfig{testSourceConfig("electric_usage")}, ex, loader)
	run := r.Run(context.Background())

	m := run.Source("electric_usage")
	require.NotNil(t, m)
	assert.Equal(t, StatusSkipped, m.Status)
	assert.Equal(t, 0, m.RecordsExtracted)
	assert.False(t, m.SourceEnd.IsZero())
	// Neither transform nor loader runs for a skipped source.
	assert.Empty(t, loader.loaded)
}

func TestRunFailureIsolation(t *testing.T) {
	loader := &fakeLoader{}
	ex := &Extractor{
		Tokens: &fakeTokens{},
		Webhooks: &fakeDiscovery{notifications: []webhooks.Notification{
			{Key: "n1", URLs: []string{"https://api/usage/1"}},
		}},
		Fetcher:   &fakeFetcher{failFor: "bad_source"},
		Creds:     &config.Credentials{},
		ParseFile: func(string) ([]greenbutton.Reading, error) { return stubReadings(2), nil },
	}

	r := newRunner([]config.SourceConfig{
		testSourceConfig("bad_source"),
		testSourceConfig("good_source"),
	}, ex, loader)

	run := r.Run(context.Background())

	bad := run.Source("bad_source")
	require.NotNil(t, bad)
	assert.Equal(t, StatusFailed, bad.Status)
	assert.Contains(t, bad.ErrorMsg, "status 500")
	assert.False(t, bad.SourceEnd.IsZero())

	good := run.Source("good_source")
	require.NotNil(t, good)
	assert.Equal(t, StatusSuccess, good.Status)
	assert.Equal(t, 2, good.RecordsUploaded)

	assert.Equal(t, []string{"bad_source"}, run.FailedSources())
	assert.Equal(t, 2, run.TotalUploaded())
	assert.Equal(t, 4, run.TotalExtracted())
}

func TestRunMarksLoadFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("snowflake: table locked")}
	ex := &Extractor{
		Tokens: &fakeTokens{},
		Webhooks: &fakeDiscovery{notifications: []webhooks.Notification{
			{Key: "n1", URLs: []string{"https://api/usage/1"}},
		}},
		Fetcher:   &fakeFetcher{},
		Creds:     &config.Credentials{},
		ParseFile: func(string) ([]greenbutton.Reading, error) { return stubReadings(1), nil },
	}

	r := newRunner([]config.SourceConfig{testSourceConfig("electric_usage")}, ex, loader)
	run := r.Run(context.Background())

	m := run.Source("electric_usage")
	require.NotNil(t, m)
	assert.Equal(t, StatusFailed, m.Status)
	assert.Contains(t, m.ErrorMsg, "table locked")
	assert.Equal(t, 1, m.RecordsExtracted)
	assert.Equal(t, 0, m.RecordsUploaded)
}

func TestRunMarksTransformFailure(t *testing.T) {
	loader := &fakeLoader{}
	// A nil usage point makes the primary-key check fail.
	readings := []greenbutton.Reading{{Start: str("1700000000"), Value: str("5"), Unit: "kWh"}}
	ex := &Extractor{
		Tokens: &fakeTokens{},
		Webhooks: &fakeDiscovery{notifications: []webhooks.Notification{
			{Key: "n1", URLs: []string{"https://api/usage/1"}},
		}},
		Fetcher:   &fakeFetcher{},
		Creds:     &config.Credentials{},
		ParseFile: func(string) ([]greenbutton.Reading, error) { return readings, nil },
	}

	r := newRunner([]config.SourceConfig{testSourceConfig("electric_usage")}, ex, loader)
	run := r.Run(context.Background())

	m := run.Source("electric_usage")
	require.NotNil(t, m)
	assert.Equal(t, StatusFailed, m.Status)
	assert.Contains(t, m.ErrorMsg, "usage_point_id")
	assert.Empty(t, loader.loaded)
}

func TestRunArchivesOnSuccessWhenEnabled(t *testing.T) {
	loader := &fakeLoader{}
	archiver := &fakeArchiver{}
	ex := &Extractor{
		Tokens: &fakeTokens{},
		Webhooks: &fakeDiscovery{notifications: []webhooks.Notification{
			{Key: "webhooks/pending/n1.json", URLs: []string{"https://api/usage/1"}},
		}},
		Fetcher:   &fakeFetcher{},
		Creds:     &config.Credentials{},
		ParseFile: func(string) ([]greenbutton.Reading, error) { return stubReadings(1), nil },
	}

	r := newRunner([]config.SourceConfig{testSourceConfig("electric_usage")}, ex, loader)
	r.Archiver = archiver
	r.Config.API.ArchiveOnSuccess = true

	r.Run(context.Background())
	assert.Equal(t, []string{"webhooks/pending/n1.json"}, archiver.keys)
}

func TestRunParallelSources(t *testing.T) {
	loader := &fakeLoader{}
	ex := &Extractor{
		Tokens: &fakeTokens{},
		Webhooks: &fakeDiscovery{notifications: []webhooks.Notification{
			{Key: "n1", URLs: []string{"https://api/usage/1"}},
		}},
		Fetcher:   &fakeFetcher{failFor: "s2"},
		Creds:     &config.Credentials{},
		ParseFile: func(string) ([]greenbutton.Reading, error) { return stubReadings(2), nil },
	}

	r := newRunner([]config.SourceConfig{
		testSourceConfig("s1"),
		testSourceConfig("s2"),
		testSourceConfig("s3"),
		testSourceConfig("s4"),
	}, ex, loader)
	r.Config.API.MaxParallelSources = 3

	run := r.Run(context.Background())

	// Join barrier: every source terminated before the summary.
	for _, name := range []string{"s1", "s2", "s3", "s4"} {
		m := run.Source(name)
		require.NotNil(t, m)
		assert.False(t, m.SourceEnd.IsZero(), name)
	}
	assert.Equal(t, []string{"s2"}, run.FailedSources())
	assert.Equal(t, 6, run.TotalUploaded())
	assert.False(t, run.RunEnd.IsZero())
}
