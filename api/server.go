// Package api exposes the document question-answering service over HTTP.
package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"docqa/config"
	"docqa/database"
	"docqa/ingestion"
	"docqa/llm"
	"docqa/vectorstore"
)

const maxUploadBytes = 50 * 1024 * 1024

type Server struct {
	app    *fiber.App
	cfg    config.Config
	logger zerolog.Logger
}

func NewServer(cfg config.Config, db *database.Store, stores *vectorstore.Manager, ingester *ingestion.Service, client llm.Client, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "docqa",
		BodyLimit:    maxUploadBytes,
		ErrorHandler: NewErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(cors.New())

	auth := NewAuthHandler(db, cfg.JWTSecret, cfg.JWTExpiry, logger)
	documents := NewDocumentHandler(db, ingester, stores, client, cfg.TopK, logger)
	chat := NewChatHandler(db, stores, client, cfg.TopK, logger)

	api := app.Group("/api")
	api.Get("/health", handleHealth(cfg))

	api.Post("/auth/register", auth.handleRegister)
	api.Post("/auth/login", auth.handleLogin)

	// Everything registered below requires a valid bearer token.
	api.Use(requireAuth(cfg.JWTSecret))

	api.Get("/auth/me", auth.handleMe)

	api.Post("/documents/upload", documents.handleUpload)
	api.Get("/documents", documents.handleList)
	api.Get("/documents/stats", documents.handleStats)
	api.Get("/documents/:id", documents.handleGet)
	api.Delete("/documents", documents.handleClearAll)
	api.Delete("/documents/:id", documents.handleDelete)
	api.Post("/documents/:id/summarize", documents.handleSummarize)

	api.Post("/chat/query", chat.handleQuery)
	api.Get("/chat/history", chat.handleHistory)
	api.Get("/chat/sessions", chat.handleSessions)
	api.Get("/chat/sessions/:id", chat.handleSessionHistory)
	api.Delete("/chat/history", chat.handleClear)

	return &Server{app: app, cfg: cfg, logger: logger}
}

func handleHealth(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":              "ok",
			"llm_provider":        cfg.LLM.Provider,
			"embeddings_provider": cfg.Embeddings.Provider,
		})
	}
}

func (s *Server) Listen() error {
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("http server listening")
	return s.app.Listen(s.cfg.ListenAddr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
