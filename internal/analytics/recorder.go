package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"

	"github.com/penshort/shortlytics/internal/geo"
	"github.com/penshort/shortlytics/internal/metrics"
	"github.com/penshort/shortlytics/internal/model"
	"github.com/penshort/shortlytics/internal/repository"
	"github.com/penshort/shortlytics/internal/useragent"
)

const (
	// DefaultRecordTimeout bounds one detached recording.
	DefaultRecordTimeout = 5 * time.Second

	// DefaultMaxRetries is the max insert retries per click.
	DefaultMaxRetries = 3

	// DefaultRetryBase is the first backoff interval.
	DefaultRetryBase = 50 * time.Millisecond
)

// ErrRecorderClosed is returned once Shutdown has started.
var ErrRecorderClosed = errors.New("click recorder is shutting down")

// ClickStore persists click events.
type ClickStore interface {
	InsertClickEvent(ctx context.Context, event *model.ClickEvent) error
}

// GeoLocator resolves an IP to a location.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (*model.GeoLocation, error)
}

// Click is the raw input captured from a redirect.
type Click struct {
	Alias     string
	IPAddress string
	UserAgent string
	At        time.Time
}

// RecorderConfig tunes a Recorder. Zero values use the defaults.
type RecorderConfig struct {
	Timeout    time.Duration
	MaxRetries uint64
	RetryBase  time.Duration
}

// Recorder appends one click event per redirect. Enrichment is best effort:
// a failed geolocation lookup leaves the location fields NULL.
type Recorder struct {
	store   ClickStore
	geo     GeoLocator
	logger  *slog.Logger
	metrics metrics.Recorder

	timeout    time.Duration
	maxRetries uint64
	retryBase  time.Duration

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// NewRecorder creates a click recorder. geoLocator may be nil.
func NewRecorder(store ClickStore, geoLocator GeoLocator, logger *slog.Logger, recorder metrics.Recorder, cfg RecorderConfig) *Recorder {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRecordTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	return &Recorder{
		store:      store,
		geo:        geoLocator,
		logger:     logger.With("component", "analytics.recorder"),
		metrics:    recorder,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
	}
}

// Record enriches and stores one click, retrying transient store errors.
// A click for an alias that no longer exists is not retried.
func (r *Recorder) Record(ctx context.Context, click Click) error {
	event := r.buildEvent(ctx, click)
	if err := ValidateClick(event); err != nil {
		r.metrics.IncClickRecorded("failed")
		return fmt.Errorf("invalid click: %w", err)
	}

	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.store.InsertClickEvent(ctx, event)
		if err == nil || errors.Is(err, repository.ErrShortURLNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		r.metrics.IncClickRecorded("failed")
		return fmt.Errorf("insert click event: %w", err)
	}

	r.metrics.IncClickRecorded("success")
	return nil
}

// RecordAsync records click on a detached goroutine with its own timeout.
// Failures are logged and counted, never returned.
func (r *Recorder) RecordAsync(click Click) {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		r.metrics.IncClickRecorded("failed")
		r.logger.Warn("click dropped", "alias", click.Alias, "error", ErrRecorderClosed)
		return
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	if click.At.IsZero() {
		click.At = time.Now()
	}

	go func() {
		defer r.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.Record(ctx, click); err != nil {
			r.logger.Warn("click recording failed", "alias", click.Alias, "error", err)
		}
	}()
}

// Shutdown stops accepting clicks and waits for in-flight recordings.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	r.logger.Info("click recorder shutdown initiated")

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("click recorder shutdown complete")
		return nil
	case <-ctx.Done():
		r.logger.Warn("click recorder shutdown timed out")
		return ctx.Err()
	}
}

func (r *Recorder) buildEvent(ctx context.Context, click Click) *model.ClickEvent {
	at := click.At
	if at.IsZero() {
		at = time.Now()
	}

	event := &model.ClickEvent{
		ID:        ulid.Make().String(),
		Alias:     click.Alias,
		IPAddress: click.IPAddress,
		UserAgent: TruncateUserAgent(click.UserAgent),
		Timestamp: at.UTC(),
	}
	event.OSName, event.DeviceName = useragent.Parse(click.UserAgent)

	if loc := r.locate(ctx, click.IPAddress); loc != nil {
		event.Country = nonEmpty(loc.Country)
		event.Region = nonEmpty(loc.Region)
		event.City = nonEmpty(loc.City)
	}
	return event
}

func (r *Recorder) locate(ctx context.Context, ip string) *model.GeoLocation {
	if r.geo == nil || ip == "" {
		return nil
	}
	loc, err := r.geo.Lookup(ctx, ip)
	if err != nil {
		if !errors.Is(err, geo.ErrPrivateAddress) {
			r.metrics.IncGeoLookupFailure()
			r.logger.Debug("geolocation lookup failed", "error", err)
		}
		return nil
	}
	return loc
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
