// Command ragindex runs one indexing pass over a document directory from
// the command line, outside the gateway process. Useful for bulk-loading a
// knowledge base before first start and for reindexing from cron.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"llm-privacy-gateway/internal/config"
	"llm-privacy-gateway/internal/embedding"
	"llm-privacy-gateway/internal/indexer"
	"llm-privacy-gateway/internal/logger"
	"llm-privacy-gateway/internal/vectorstore"
)

func main() {
	app := &cli.App{
		Name:  "ragindex",
		Usage: "index a document directory into the vector collection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "document directory to index",
				Value: "./uploads",
			},
			&cli.StringFlag{
				Name:    "qdrant-url",
				Usage:   "Qdrant gRPC endpoint",
				Value:   "http://localhost:6334",
				EnvVars: []string{"QDRANT_URL"},
			},
			&cli.StringFlag{
				Name:    "collection",
				Usage:   "collection name",
				Value:   "documents",
				EnvVars: []string{"QDRANT_COLLECTION"},
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "maximum chunk size in bytes",
				Value: 1000,
			},
			&cli.IntFlag{
				Name:  "chunk-overlap",
				Usage: "overlap between consecutive chunks in bytes",
				Value: 200,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn, or error",
				Value: "info",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ragindex:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger.Setup(c.String("log-level"))
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vectors, err := vectorstore.New(ctx, c.String("qdrant-url"), c.String("collection"), cfg.EmbeddingDimension)
	if err != nil {
		return err
	}
	defer vectors.Close() //nolint:errcheck

	cache, err := embedding.NewCache(cfg.EmbeddingCachePath)
	if err != nil {
		return err
	}
	embedder := embedding.NewClient(cfg.LiteLLMURL, cfg.LiteLLMAPIKey,
		cfg.EmbeddingModel, cfg.EmbeddingDimension, cache)
	defer embedder.Close() //nolint:errcheck

	mgr := indexer.New(c.String("dir"), embedder, vectors,
		cfg.AutoIndexIntervalMinutes, c.Int("chunk-size"), c.Int("chunk-overlap"), nil)
	if err := mgr.RunIndex(ctx); err != nil {
		return err
	}

	status := mgr.Status()
	fmt.Printf("indexed %d files, %d chunks\n", status.TotalFiles, status.TotalChunks)
	if len(status.FailedFiles) > 0 {
		fmt.Printf("failed: %d file(s)\n", len(status.FailedFiles))
		for _, name := range status.FailedFiles {
			fmt.Println("  -", name)
		}
		return cli.Exit("some files failed to index", 2)
	}
	return nil
}
