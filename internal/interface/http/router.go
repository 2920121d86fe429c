package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/persian-faqbot/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		sentryMiddleware(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
	)

	router.GET("/health", handler.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/chat", rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger), handler.Chat)

		api.GET("/logs", handler.ListLogs)
		api.GET("/logs/stats", handler.LogStats)
		api.POST("/logs/export", handler.ExportLogs)

		api.GET("/faqs", handler.ListFAQs)
		api.POST("/faqs", handler.UpsertFAQ)
		api.POST("/faqs/reindex", handler.ReindexFAQs)
		api.GET("/faqs/:id", handler.GetFAQ)
		api.PUT("/faqs/:id", handler.UpdateFAQ)
		api.DELETE("/faqs/:id", handler.DeleteFAQ)

		api.GET("/categories", handler.ListCategories)
		api.POST("/categories", handler.CreateCategory)
		api.PUT("/categories/:id", handler.UpdateCategory)
		api.DELETE("/categories/:id", handler.DeleteCategory)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
