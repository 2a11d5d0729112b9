package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"docqa/api"
	"docqa/config"
	"docqa/database"
	"docqa/embeddings"
	"docqa/ingestion"
	"docqa/llm"
	"docqa/rag"
	"docqa/vectorstore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger)
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	default:
		logger.Error().Str("command", os.Args[1]).Msg("unknown command")
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger zerolog.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection")
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema setup")
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("embedder setup")
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("llm setup")
	}

	db := database.NewStore(pool)
	stores := vectorstore.NewManager(cfg.VectorStoreDir, embedder, logger)
	splitter := ingestion.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	ingester := ingestion.NewService(db, stores, splitter, cfg.UploadDir, logger)

	server := api.NewServer(cfg, db, stores, ingester, llmClient, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("http server stopped")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown incomplete")
		}
	}
}

// askCmd answers a single question against one user's documents from the
// command line, bypassing the HTTP layer.
func askCmd(cfg config.Config, logger zerolog.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	userID := flags.Int64("user", 0, "user id whose documents to query")
	question := flags.String("question", "", "question to ask")
	topK := flags.Int("k", cfg.TopK, "number of context chunks to retrieve")
	if err := flags.Parse(args); err != nil {
		logger.Fatal().Err(err).Msg("parse ask flags")
	}

	if *userID <= 0 {
		logger.Fatal().Msg("a positive -user id is required")
	}
	if strings.TrimSpace(*question) == "" {
		logger.Fatal().Msg("a non-empty -question is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("embedder setup")
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("llm setup")
	}

	stores := vectorstore.NewManager(cfg.VectorStoreDir, embedder, logger)
	store, err := stores.ForUser(*userID)
	if err != nil {
		logger.Fatal().Err(err).Msg("open vector store")
	}

	pipeline := rag.NewPipeline(store, llmClient, *topK, logger)
	result, err := pipeline.Query(ctx, *question, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("query failed")
	}

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range result.Sources {
			fmt.Printf("%d. %s, page %d\n", idx+1, source.Filename, source.PageNumber)
		}
	}
}

func printUsage() {
	fmt.Println("Usage: docqa <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve   start the HTTP API server")
	fmt.Println("  ask     answer a single question from the command line")
}
