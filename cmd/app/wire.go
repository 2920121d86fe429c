//go:build wireinject
// +build wireinject

package main

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/yanqian/persian-faqbot/internal/bootstrap"
	"github.com/yanqian/persian-faqbot/internal/domain/chat"
	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	"github.com/yanqian/persian-faqbot/internal/infra/config"
	"github.com/yanqian/persian-faqbot/internal/infra/faqfile"
	httpiface "github.com/yanqian/persian-faqbot/internal/interface/http"
	"github.com/yanqian/persian-faqbot/pkg/metrics"
	"github.com/yanqian/persian-faqbot/pkg/telemetry"
)

var catalogSet = wire.NewSet(
	provideRepositories,
	provideFAQRepository,
	provideTokenCounter,
	provideEmbedder,
	faq.NewStore,
	faqfile.NewSeeder,
)

func initializeApp(cfg *config.Config, logger *slog.Logger) (*bootstrap.App, func(), error) {
	wire.Build(
		catalogSet,
		provideChatLogRepository,
		provideMatcherConfig,
		provideCatalog,
		provideChatConfig,
		provideSpool,
		provideObjectStorage,
		provideReporter,
		faq.NewMatcher,
		chatlog.NewLog,
		chat.NewService,
		wire.Bind(new(chat.Matcher), new(*faq.Matcher)),
		wire.Bind(new(chat.ChatLog), new(*chatlog.Log)),
		wire.Bind(new(chat.TokenCounter), new(*metrics.TokenCounter)),
		wire.Bind(new(chat.Reporter), new(*telemetry.Reporter)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}

func initializeCatalog(cfg *config.Config, logger *slog.Logger) (*catalogTools, func(), error) {
	wire.Build(
		catalogSet,
		wire.Struct(new(catalogTools), "*"),
	)
	return nil, nil, nil
}
