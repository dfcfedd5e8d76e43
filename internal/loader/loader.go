// Package loader retrieves scorelog documents by source id and parses
// them. Retrieval is delegated to a Fetcher (directory, HTTP, archive,
// optionally behind a cache); each load is all-or-nothing with no retry.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/scorelog-viewer/internal/scorelog"
)

// Fetcher returns the raw body of a source.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, sourceID string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	return f(ctx, sourceID)
}

// LoadError reports a source that could not be retrieved. StatusCode is
// set for HTTP retrievals, Cause otherwise.
type LoadError struct {
	SourceID   string
	StatusCode int
	Cause      error
}

func (e *LoadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Failed to load %s: %d", e.SourceID, e.StatusCode)
	}
	return fmt.Sprintf("Failed to load %s: %v", e.SourceID, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// asLoadError wraps err unless it already is a LoadError.
func asLoadError(sourceID string, err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	return &LoadError{SourceID: sourceID, Cause: err}
}

// Attempt describes one finished load for the Recorder.
type Attempt struct {
	SourceID    string
	OK          bool
	StatusCode  int
	Message     string
	TagCount    int
	Unparseable bool
	Duration    time.Duration
}

// Recorder receives every load attempt. Implementations must not block
// for long; failures are logged and otherwise ignored.
type Recorder interface {
	RecordLoad(ctx context.Context, a Attempt) error
}

// Loader fetches and parses scorelogs.
type Loader struct {
	fetcher  Fetcher
	recorder Recorder
}

// New creates a loader. recorder may be nil.
func New(fetcher Fetcher, recorder Recorder) *Loader {
	return &Loader{fetcher: fetcher, recorder: recorder}
}

// Load retrieves and parses a source. Retrieval failures return a
// *LoadError. A body that is not JSON collapses to an empty payload
// flagged Unparseable.
func (l *Loader) Load(ctx context.Context, sourceID string) (*scorelog.Payload, error) {
	start := time.Now()

	body, err := l.fetcher.Fetch(ctx, sourceID)
	if err != nil {
		le := asLoadError(sourceID, err)
		l.record(ctx, Attempt{
			SourceID:   sourceID,
			StatusCode: le.StatusCode,
			Message:    le.Error(),
			Duration:   time.Since(start),
		})
		return nil, le
	}

	payload, err := scorelog.Parse(body)
	if err != nil {
		slog.Warn("scorelog not parseable, showing no tags", "source", sourceID, "error", err)
	}

	l.record(ctx, Attempt{
		SourceID:    sourceID,
		OK:          true,
		TagCount:    payload.Len(),
		Unparseable: payload.Unparseable,
		Duration:    time.Since(start),
	})
	return payload, nil
}

func (l *Loader) record(ctx context.Context, a Attempt) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordLoad(ctx, a); err != nil {
		slog.Error("record load failed", "source", a.SourceID, "error", err)
	}
}
