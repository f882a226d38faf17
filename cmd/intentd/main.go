package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bendoumahosni/intent-interpretation/internal/catalog"
	"github.com/bendoumahosni/intent-interpretation/internal/config"
	"github.com/bendoumahosni/intent-interpretation/internal/embedding"
	"github.com/bendoumahosni/intent-interpretation/internal/index"
	"github.com/bendoumahosni/intent-interpretation/internal/logging"
	"github.com/bendoumahosni/intent-interpretation/internal/negotiation"
	"github.com/bendoumahosni/intent-interpretation/internal/nlu"
	"github.com/bendoumahosni/intent-interpretation/internal/server"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "intentd",
	Short: "intentd - natural language to TMF921 intent negotiation service",
	Long: `intentd turns natural language service requests into TMF921 intent
documents through an iterative negotiation loop.

A request is classified, decomposed into candidate services, matched against
a TMF633 service catalog via semantic search, clarified with the user until
the proposals are accepted, and finally synthesized into a TMF921 JSON-LD
intent expression.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP negotiation API",
	Long: `Starts the negotiation API. On startup the TMF633 catalog directory is
loaded and ingested into the semantic index; when watching is enabled the
index follows catalog changes automatically.`,
	RunE: runServe,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed the catalog and rebuild the semantic index",
	RunE:  runIngest,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the semantic index from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var searchTopK int

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	searchCmd.Flags().IntVar(&searchTopK, "top-k", negotiation.DefaultTopK, "Maximum number of matches to print")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the configuration, then brings up the
// category file loggers.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.Logging.Dir, logging.Options{
		Enabled:    cfg.Logging.Enabled,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSON,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openIndex wires the embedding engine and the sqlite index.
func openIndex(cfg *config.Config) (*index.Index, error) {
	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding engine: %w", err)
	}
	ix, err := index.Open(cfg.Index.Path, engine)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return ix, nil
}

func ingestCatalog(ctx context.Context, store *catalog.DirStore, ix *index.Index) error {
	records := store.Records()
	n, err := ix.Ingest(ctx, records)
	if err != nil {
		return fmt.Errorf("ingest catalog: %w", err)
	}
	logger.Info("catalog ingested",
		zap.Int("records", len(records)),
		zap.Int("indexed", n))
	for _, bad := range store.Malformed() {
		logger.Warn("skipped malformed catalog record", zap.String("file", bad.File))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := catalog.NewDirStore(cfg.Catalog.Dir)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	ix, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer ix.Close()

	if err := ingestCatalog(ctx, store, ix); err != nil {
		return err
	}

	if cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(store, func(ctx context.Context) {
			if err := ingestCatalog(ctx, store, ix); err != nil {
				logger.Error("re-ingest after catalog change", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("catalog watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("catalog watcher: %w", err)
		}
		defer watcher.Stop()
	}

	client, err := nlu.NewClient(nlu.ClientConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.GetLLMTimeout(),
	})
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}
	agent := nlu.NewAgent(client)

	assembler := negotiation.NewAssembler(ix, store, cfg.Negotiation.TopK, cfg.Negotiation.MinScore)
	api := server.New(agent, assembler, assembler, cfg.Negotiation.MaxIterations, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := catalog.NewDirStore(cfg.Catalog.Dir)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	ix, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer ix.Close()

	if err := ingestCatalog(cmd.Context(), store, ix); err != nil {
		return err
	}

	count, err := ix.Count()
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d catalog records into %s\n", count, cfg.Index.Path)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ix, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer ix.Close()

	query := strings.Join(args, " ")
	matches, err := ix.Search(cmd.Context(), query, searchTopK)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	// Bare lookups use the stricter relevance floor.
	printed := 0
	for _, m := range matches {
		if m.Score < negotiation.LookupMinScore {
			continue
		}
		fmt.Printf("%d. %s (%s) score=%.3f\n   %s\n", m.Rank, m.Name, m.CatalogID, m.Score, m.Description)
		printed++
	}
	if printed == 0 {
		fmt.Println("No matches above the relevance threshold.")
	}
	return nil
}
