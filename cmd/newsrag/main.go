package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newsrag/config"
	"newsrag/internal/ingest"
	"newsrag/internal/provider/openai"
	"newsrag/internal/rag"
	"newsrag/internal/resilience"
	"newsrag/internal/scraper"
	"newsrag/internal/server"
	"newsrag/internal/session"
	"newsrag/internal/session/inmemory"
	redis_session "newsrag/internal/session/redis"
	"newsrag/internal/vectorstore/qdrant"
)

func main() {
	root := &cobra.Command{Use: "newsrag", Short: "Retrieval-augmented news question answering"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return runServe(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var urlsFile string
	ingestCmd := &cobra.Command{
		Use:   "ingest [url...]",
		Short: "Fetch, chunk, embed and index news articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			urls := args
			if urlsFile != "" {
				fromFile, err := readURLs(urlsFile)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			if len(urls) == 0 {
				return fmt.Errorf("no urls given: pass them as arguments or via --urls-file")
			}
			return runIngest(cmd.Context(), cfg, urls)
		},
	}
	ingestCmd.Flags().StringVar(&urlsFile, "urls-file", "", "file with one url per line")

	resetIndex := &cobra.Command{
		Use:   "reset-index",
		Short: "Drop the vector collection and all indexed chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Qdrant.Validate(); err != nil {
				return err
			}
			if err := qdrant.New(cfg.Qdrant).DeleteCollection(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("collection %s deleted\n", cfg.Qdrant.Collection)
			return nil
		},
	}

	root.AddCommand(serve, ingestCmd, resetIndex)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, closeStore := newSessionStore(cfg)
	defer closeStore()

	llm := openai.New(cfg.OpenAI)
	vectors := qdrant.New(cfg.Qdrant)

	orch := rag.New(llm, rag.NewQdrantSearcher(vectors), llm, store, cfg.RAG,
		log.New(log.Writer(), "[CHAT] ", log.LstdFlags))
	srv := server.New(orch, cfg.Server, log.New(log.Writer(), "[HTTP] ", log.LstdFlags))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Server.Address) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func runIngest(ctx context.Context, cfg config.Config, urls []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.New(log.Writer(), "[INGEST] ", log.LstdFlags)

	backup, err := ingest.OpenBackupLog(cfg.Ingest.BackupDir)
	if err != nil {
		return err
	}
	defer backup.Close()

	fetcher := scraper.NewFetcher(30*time.Second, 0, "")
	llm := openai.New(cfg.OpenAI)
	vectors := qdrant.New(cfg.Qdrant)

	pipeline := ingest.New(fetcher, llm, vectors, backup, cfg.Ingest, cfg.OpenAI.EmbeddingDim, logger,
		resilience.WithMaxRetries(cfg.RAG.MaxRetries),
		resilience.WithBaseDelay(cfg.RAG.RetryBaseWait),
	)
	report, err := pipeline.Run(ctx, urls)
	if err != nil {
		return err
	}
	fmt.Printf("processed %d/%d urls\n", report.Processed, report.Total)
	return nil
}

// newSessionStore decides the backend once, from configuration presence.
func newSessionStore(cfg config.Config) (session.Store, func()) {
	if cfg.Redis.Addr != "" {
		logger := log.New(log.Writer(), "[SESSION] ", log.LstdFlags)
		logger.Printf("using redis session store at %s", cfg.Redis.Addr)
		s := redis_session.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.RAG.SessionTTL, logger)
		return s, func() { _ = s.Close() }
	}
	s := inmemory.New(cfg.RAG.SessionTTL)
	return s, func() { _ = s.Close() }
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open urls file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read urls file: %w", err)
	}
	return urls, nil
}
