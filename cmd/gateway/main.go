// Command gateway is the privacy-preserving LLM gateway server.
//
// It sits between clients and an OpenAI-compatible completion router and
// transforms every chat request: grounding passages are retrieved from the
// local knowledge base, detected PII is replaced with pseudonyms before the
// prompt leaves the process, the substitutions are reversed on the response,
// and dangerous commands are stripped from the model output. Every completed
// request is written to the audit log.
//
// The knowledge base is a directory tree of uploaded documents, indexed into
// a Qdrant collection on a periodic schedule and manageable over the HTTP
// API, including per-file version history with rollback.
//
// Usage:
//
//	# All defaults (Postgres, Qdrant, and LiteLLM on localhost)
//	./gateway
//
//	# Against remote services
//	DATABASE_URL=postgres://... QDRANT_URL=http://qdrant:6334 LITELLM_URL=http://litellm:4000 ./gateway
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"llm-privacy-gateway/internal/config"
	"llm-privacy-gateway/internal/embedding"
	"llm-privacy-gateway/internal/files"
	"llm-privacy-gateway/internal/gateway"
	"llm-privacy-gateway/internal/indexer"
	"llm-privacy-gateway/internal/llm"
	"llm-privacy-gateway/internal/logger"
	"llm-privacy-gateway/internal/logstore"
	"llm-privacy-gateway/internal/masker"
	"llm-privacy-gateway/internal/metrics"
	"llm-privacy-gateway/internal/server"
	"llm-privacy-gateway/internal/vectorstore"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel)
	log := logger.Component("main")

	printBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The audit log is mandatory: a gateway that cannot record what it
	// forwarded must not forward anything.
	logs, err := logstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer logs.Close()
	if err := logs.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}

	// RAG is optional: when Qdrant or the embedder is unreachable the
	// gateway still proxies and audits, with retrieval disabled.
	var (
		retriever *gateway.RAGRetriever
		idx       *indexer.Manager
	)
	m := metrics.New()

	vectors, err := vectorstore.New(ctx, cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDimension)
	if err != nil {
		log.Warn().Err(err).Msg("vector store unavailable, RAG disabled")
	} else {
		defer vectors.Close() //nolint:errcheck
		cache, err := embedding.NewCache(cfg.EmbeddingCachePath)
		if err != nil {
			log.Warn().Err(err).Msg("embedding cache unavailable, using memory cache")
			cache, _ = embedding.NewCache("")
		}
		embedder := embedding.NewClient(cfg.LiteLLMURL, cfg.LiteLLMAPIKey,
			cfg.EmbeddingModel, cfg.EmbeddingDimension, cache)
		defer embedder.Close() //nolint:errcheck

		retriever = gateway.NewRAGRetriever(embedder, vectors)
		idx = indexer.New(cfg.UploadDir, embedder, vectors,
			cfg.AutoIndexIntervalMinutes, cfg.MaxChunkSize, cfg.ChunkOverlap, m)
		idx.StartScheduler(ctx)
	}

	fileStore, err := files.New(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("upload directory unavailable")
	}

	upstream := llm.New(cfg.LiteLLMURL, cfg.LiteLLMAPIKey)

	// A nil *RAGRetriever must stay a nil interface, or the disabled checks
	// downstream would see a non-nil value wrapping a nil pointer.
	var pipelineRetriever gateway.Retriever
	var docAdder server.DocumentAdder
	if retriever != nil {
		pipelineRetriever = retriever
		docAdder = retriever
	}
	pipeline := gateway.New(masker.New(), pipelineRetriever, upstream, logs, m)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(pipeline, docAdder, fileStore, idx, logs, upstream, m).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("gateway listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
}

func printBanner(cfg *config.Config) {
	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║        LLM Privacy Gateway  (Go)                     ║
╚══════════════════════════════════════════════════════╝
  Listen addr     : %s
  LiteLLM URL     : %s
  Qdrant URL      : %s
  Collection      : %s
  Upload dir      : %s
  Index interval  : %d min

  Check health:
    curl http://localhost%s/api/health
`, cfg.ListenAddr, cfg.LiteLLMURL, cfg.QdrantURL, cfg.QdrantCollection,
		cfg.UploadDir, cfg.AutoIndexIntervalMinutes, cfg.ListenAddr)
}
