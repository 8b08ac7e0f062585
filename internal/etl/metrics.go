package etl

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state of one source's processing.
type Status string

const (
	StatusPending Status = "pending"
	StatusSkipped Status = "skipped"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// SourceMetrics accumulates one source's outcome. Exactly one instance
// is handed to each source's processing step; nothing else mutates it.
type SourceMetrics struct {
	SourceName       string
	SourceStart      time.Time
	SourceEnd        time.Time
	RecordsExtracted int
	RecordsUploaded  int
	Status           Status
	ErrorMsg         string
}

// Duration returns the source's processing time, or zero if it has not
// finished.
func (m *SourceMetrics) Duration() time.Duration {
	if m.SourceStart.IsZero() || m.SourceEnd.IsZero() {
		return 0
	}
	return m.SourceEnd.Sub(m.SourceStart)
}

// RunMetrics aggregates all source metrics for one run. StartSource is
// safe for concurrent use; each SourceMetrics is then owned by its
// source's goroutine until the run-level join.
type RunMetrics struct {
	RunID    string
	RunStart time.Time
	RunEnd   time.Time

	mu      sync.Mutex
	sources map[string]*SourceMetrics
	order   []string
}

// NewRunMetrics creates run metrics stamped with a fresh run id and the
// current time.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{
		RunID:    uuid.NewString(),
		RunStart: time.Now(),
		sources:  make(map[string]*SourceMetrics),
	}
}

// StartSource registers a source and returns its metrics accumulator
// with the start time captured.
func (r *RunMetrics) StartSource(name string) *SourceMetrics {
	m := &SourceMetrics{
		SourceName:  name,
		SourceStart: time.Now(),
		Status:      StatusPending,
	}
	r.mu.Lock()
	r.sources[name] = m
	r.order = append(r.order, name)
	r.mu.Unlock()
	return m
}

// Source returns the metrics for the named source, or nil.
func (r *RunMetrics) Source(name string) *SourceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sources[name]
}

// Sources returns all source metrics in start order.
func (r *RunMetrics) Sources() []*SourceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*SourceMetrics, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}

// Duration returns the whole run's elapsed time.
func (r *RunMetrics) Duration() time.Duration {
	if r.RunStart.IsZero() || r.RunEnd.IsZero() {
		return 0
	}
	return r.RunEnd.Sub(r.RunStart)
}

// TotalExtracted sums extracted counts across sources.
func (r *RunMetrics) TotalExtracted() int {
	total := 0
	for _, m := range r.Sources() {
		total += m.RecordsExtracted
	}
	return total
}

// TotalUploaded sums uploaded counts across sources.
func (r *RunMetrics) TotalUploaded() int {
	total := 0
	for _, m := range r.Sources() {
		total += m.RecordsUploaded
	}
	return total
}

// FailedSources returns the names of sources that ended failed, in
// start order.
func (r *RunMetrics) FailedSources() []string {
	var failed []string
	for _, m := range r.Sources() {
		if m.Status == StatusFailed {
			failed = append(failed, m.SourceName)
		}
	}
	return failed
}

// Row is the flattened per-source form the metrics sink persists.
type Row struct {
	RunID            string
	RunStart         time.Time
	RunEnd           time.Time
	SourceName       string
	SourceStart      time.Time
	SourceEnd        time.Time
	RecordsExtracted int
	RecordsUploaded  int
	Status           Status
	ErrorMsg         string
}

// Rows flattens the run into one row per source.
func (r *RunMetrics) Rows() []Row {
	var rows []Row
	for _, m := range r.Sources() {
		rows = append(rows, Row{
			RunID:            r.RunID,
			RunStart:         r.RunStart,
			RunEnd:           r.RunEnd,
			SourceName:       m.SourceName,
			SourceStart:      m.SourceStart,
			SourceEnd:        m.SourceEnd,
			RecordsExtracted: m.RecordsExtracted,
			RecordsUploaded:  m.RecordsUploaded,
			Status:           m.Status,
			ErrorMsg:         m.ErrorMsg,
		})
	}
	return rows
}
