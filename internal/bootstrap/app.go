package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/yanqian/persian-faqbot/internal/domain/chat"
	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	"github.com/yanqian/persian-faqbot/internal/infra/config"
	"github.com/yanqian/persian-faqbot/internal/infra/faqfile"
)

// App encapsulates the HTTP server lifecycle and its background workers.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	chatSvc chat.Service
	matcher *faq.Matcher
	seeder  *faqfile.Seeder
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, chatSvc chat.Service, matcher *faq.Matcher, seeder *faqfile.Seeder) *App {
	return &App{
		cfg:     cfg,
		logger:  logger.With("component", "bootstrap"),
		server:  server,
		chatSvc: chatSvc,
		matcher: matcher,
		seeder:  seeder,
	}
}

// Run starts the HTTP server, the spool replayer and the optional seed
// watcher, and blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Seed.OnStart && a.cfg.Seed.Path != "" {
		if _, err := a.seeder.Apply(ctx, a.cfg.Seed.Path); err != nil {
			a.logger.Warn("initial faq seed failed", "path", a.cfg.Seed.Path, "error", err)
		}
	}
	if err := a.matcher.Warm(ctx); err != nil {
		// the matcher retries on the next request
		a.logger.Warn("faq snapshot warm-up failed", "error", err)
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.chatSvc.ReplaySpool(workerCtx); err != nil {
			a.logger.Error("chat log spool replay stopped", "error", err)
		}
	}()

	if a.cfg.Seed.Watch {
		watcher := faqfile.NewWatcher(a.seeder, a.cfg.Seed.Path, a.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(workerCtx); err != nil {
				a.logger.Error("faq seed watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutdown signal received")
		runErr = a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	stopWorkers()
	wg.Wait()
	a.logger.Info("background workers stopped")
	return runErr
}
