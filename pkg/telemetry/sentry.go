// Package telemetry reports degraded requests and failures to Sentry.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

const serviceName = "faqbot"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry. The returned function flushes pending events.
// An empty DSN yields a no-op shutdown function.
func Init(cfg Config, logger *slog.Logger) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
	})
	if err != nil {
		logger.Error("sentry init failed, continuing without error reporting", "error", err)
		return func() {}, nil
	}
	logger.Info("sentry error reporting enabled", "environment", cfg.Environment)
	return func() {
		sentry.Flush(5 * time.Second)
	}, nil
}

// Reporter forwards errors to the Sentry hub bound to the context.
type Reporter struct{}

// NewReporter constructs a Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// CaptureError captures err with the request hub when one is present.
func (r *Reporter) CaptureError(ctx context.Context, err error) {
	CaptureError(ctx, err)
}

// Breadcrumb records a breadcrumb on the request hub.
func (r *Reporter) Breadcrumb(ctx context.Context, category, message string) {
	AddBreadcrumb(ctx, category, message)
}

// CaptureError captures an error to Sentry with the current context.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// AddBreadcrumb records a breadcrumb on the request hub.
func AddBreadcrumb(ctx context.Context, category, message string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return
	}
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}
