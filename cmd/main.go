package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"professor-rag/internal/config"
	"professor-rag/internal/embedding"
	"professor-rag/internal/helper"
	"professor-rag/internal/ingest"
	"professor-rag/internal/llmservice"
	"professor-rag/internal/models"
	"professor-rag/internal/parser"
	"professor-rag/internal/rag"
	"professor-rag/internal/server"
)

const (
	defaultConfigPath = "./configs/config.yaml"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to the YAML config file")
	query := flag.String("query", "", "Answer a single question and exit")
	seedFile := flag.String("seed", "", "Load professor reviews (.json or .xlsx) into the vector store and exit")
	dryRun := flag.Bool("dry-run", false, "With -seed, parse and print the reviews without storing them")
	reset := flag.Bool("reset", false, "With -seed, remove every stored review before loading the file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// logging is not configured yet
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(&cfg.Log)

	if *seedFile != "" && *query != "" {
		log.Fatal().Msg("Please provide either a reviews file using the -seed flag or a question using the -query flag, but not both")
	}

	if *reset && *seedFile == "" {
		log.Fatal().Msg("The -reset flag only applies together with -seed")
	}

	if *seedFile != "" && *dryRun {
		reviews, err := parser.ParseReviews(*seedFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Error parsing reviews")
		}
		helper.PrettyPrint(reviews)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := embedding.NewGeminiEmbedder(ctx, &cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	store, err := rag.NewStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer store.Close()

	switch {
	case *seedFile != "":
		seedReviews(ctx, cfg, embedder, store, *seedFile, *reset)
	case *query != "":
		askOnce(ctx, cfg, embedder, store, *query)
	default:
		serve(ctx, cfg, embedder, store)
	}
}

func setupLogging(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.JSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
	}
	zerolog.DefaultContextLogger = &log.Logger
}

func newRAG(ctx context.Context, cfg *config.Config, embedder *embedding.Embedder, store rag.Store) *rag.RAG {
	llm, err := llmservice.NewGeminiModel(ctx, &cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing generative model")
	}
	return rag.NewRAG(store, embedder, llm, cfg)
}

func serve(ctx context.Context, cfg *config.Config, embedder *embedding.Embedder, store rag.Store) {
	srv := server.NewServer(newRAG(ctx, cfg, embedder, store), cfg)
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server stopped")
		return
	}
	log.Info().Msg("Server exited")
}

func askOnce(ctx context.Context, cfg *config.Config, embedder *embedding.Embedder, store rag.Store, query string) {
	r := newRAG(ctx, cfg, embedder, store)
	answer, err := r.Query(ctx, []models.Message{{Role: models.RoleUser, Content: query}}, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error querying")
		return
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer)
}

func seedReviews(ctx context.Context, cfg *config.Config, embedder *embedding.Embedder, store rag.Store, filePath string, reset bool) {
	seeder := ingest.NewSeeder(embedder, store, cfg.RAG.SeedBatchSize)
	n, err := seeder.SeedFile(ctx, filePath, reset)
	if err != nil {
		log.Error().Err(err).Int("stored", n).Msg("Error seeding reviews")
		return
	}
	log.Info().Int("stored", n).Str("provider", cfg.VectorDB.Provider).Msg("Seeded reviews")
}
