package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/persian-faqbot/internal/domain/chat"
	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	"github.com/yanqian/persian-faqbot/internal/infra/archive"
	"github.com/yanqian/persian-faqbot/internal/infra/chatlogrepo"
	"github.com/yanqian/persian-faqbot/internal/infra/config"
	"github.com/yanqian/persian-faqbot/internal/infra/database"
	"github.com/yanqian/persian-faqbot/internal/infra/embedder"
	"github.com/yanqian/persian-faqbot/internal/infra/faqrepo"
	"github.com/yanqian/persian-faqbot/internal/infra/spool"
	"github.com/yanqian/persian-faqbot/pkg/metrics"
	"github.com/yanqian/persian-faqbot/pkg/telemetry"
)

const startupTimeout = 10 * time.Second

// repositories groups the two stores that share one database handle.
type repositories struct {
	faqs faq.Repository
	logs chatlog.Repository
}

func provideRepositories(cfg *config.Config, logger *slog.Logger) (repositories, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if cfg.Storage.MigrateOnStart {
			if err := database.MigratePostgres(cfg.Storage.Postgres.DSN, logger); err != nil {
				return repositories{}, nil, err
			}
		}
		pool, err := database.NewPool(ctx, database.PostgresConfig{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return repositories{}, nil, err
		}
		logger.Info("postgres storage enabled")
		return repositories{
			faqs: faqrepo.NewPostgresRepository(pool),
			logs: chatlogrepo.NewPostgresRepository(pool),
		}, pool.Close, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return repositories{}, nil, err
		}
		if cfg.Storage.MigrateOnStart {
			if err := database.MigrateSQLite(db, logger); err != nil {
				_ = db.Close()
				return repositories{}, nil, err
			}
		}
		logger.Info("sqlite storage enabled", "path", cfg.Storage.SQLite.Path)
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Warn("sqlite close failed", "error", err)
			}
		}
		return repositories{
			faqs: faqrepo.NewSQLiteRepository(db),
			logs: chatlogrepo.NewSQLiteRepository(db),
		}, cleanup, nil

	default:
		logger.Warn("memory storage enabled, data is lost on restart")
		return repositories{
			faqs: faqrepo.NewMemoryRepository(),
			logs: chatlogrepo.NewMemoryRepository(),
		}, func() {}, nil
	}
}

func provideFAQRepository(r repositories) faq.Repository {
	return r.faqs
}

func provideChatLogRepository(r repositories) chatlog.Repository {
	return r.logs
}

func provideTokenCounter(cfg *config.Config) *metrics.TokenCounter {
	return metrics.NewTokenCounter(cfg.Embedder.TokenEncoding)
}

func provideEmbedder(cfg *config.Config, tokens *metrics.TokenCounter, logger *slog.Logger) (faq.Embedder, func(), error) {
	switch cfg.Embedder.Provider {
	case config.ProviderOpenAI:
		emb, err := embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			APIKey:  cfg.Embedder.OpenAI.APIKey,
			BaseURL: cfg.Embedder.OpenAI.BaseURL,
			Model:   cfg.Embedder.OpenAI.Model,
		}, tokens, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("openai embedder enabled", "model", cfg.Embedder.OpenAI.Model)
		return emb, func() {}, nil
	case config.ProviderGemini:
		emb, err := embedder.NewGeminiEmbedder(context.Background(), cfg.Embedder.Gemini.APIKey, cfg.Embedder.Gemini.Model, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("gemini embedder enabled", "model", cfg.Embedder.Gemini.Model)
		cleanup := func() {
			if err := emb.Close(); err != nil {
				logger.Warn("gemini client close failed", "error", err)
			}
		}
		return emb, cleanup, nil
	default:
		emb := embedder.NewHashEmbedder(cfg.Embedder.Dimensions)
		logger.Info("hash embedder enabled", "dimensions", emb.Dims())
		return emb, func() {}, nil
	}
}

func provideMatcherConfig(cfg *config.Config) faq.MatcherConfig {
	return faq.MatcherConfig{
		Threshold:      cfg.Matcher.Threshold,
		FallbackAnswer: cfg.Matcher.FallbackAnswer,
	}
}

func provideCatalog(store faq.Store) faq.Catalog {
	return store
}

func provideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		LogTimeout:       cfg.Chat.LogTimeout,
		ReplayPollWait:   cfg.Chat.ReplayPollWait,
		ReplayBackoff:    cfg.Chat.ReplayBackoff,
		ReplayMaxBackoff: cfg.Chat.ReplayMaxBackoff,
		ExportPrefix:     cfg.Chat.ExportPrefix,
	}
}

func provideSpool(cfg *config.Config, logger *slog.Logger) (chat.Spool, func(), error) {
	if cfg.Spool.Driver != config.DriverValkey {
		return spool.NewMemoryQueue(cfg.Spool.Capacity), func() {}, nil
	}
	opt, err := buildValkeyOptions(cfg.Spool.Valkey.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid valkey configuration: %w", err)
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, nil, fmt.Errorf("create valkey client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("valkey ping failed: %w", err)
	}
	logger.Info("valkey chat log spool enabled", "addr", cfg.Spool.Valkey.Addr, "key", cfg.Spool.Valkey.Key)
	return spool.NewValkeyQueue(client, cfg.Spool.Valkey.Key), client.Close, nil
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideObjectStorage(cfg *config.Config, logger *slog.Logger) (chat.ObjectStorage, error) {
	if cfg.Archive.Driver != config.DriverMinio {
		return archive.NewMemoryStorage(), nil
	}
	m := cfg.Archive.Minio
	storage, err := archive.NewMinioStorage(archive.MinioConfig{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Bucket:    m.Bucket,
		Region:    m.Region,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("minio export archive enabled", "endpoint", m.Endpoint, "bucket", m.Bucket)
	return storage, nil
}

func provideReporter(cfg *config.Config, logger *slog.Logger) (*telemetry.Reporter, func(), error) {
	flush, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return telemetry.NewReporter(), flush, nil
}
