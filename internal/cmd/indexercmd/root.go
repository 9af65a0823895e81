// Package indexercmd provides the command-line interface for the indexer
// service binary: config loading, storage/worker-pool wiring, a periodic
// PageRank ticker, and the index-queue status HTTP API.
package indexercmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/searchengine/searchengine/internal/config"
	"github.com/searchengine/searchengine/internal/httpapi"
	"github.com/searchengine/searchengine/internal/indexworker"
	"github.com/searchengine/searchengine/internal/logging"
	"github.com/searchengine/searchengine/internal/pagerank"
	"github.com/searchengine/searchengine/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

var rootCmd = &cobra.Command{
	Use:   "indexerd",
	Short: "Drains the index job queue into the inverted index and PageRank tables",
	Long: `indexerd owns the Index Writer: it claims jobs from the Index Job
Queue, tokenizes and persists each document's postings, records its outlink
edges, and periodically recomputes page- and domain-level PageRank.`,
	RunE: run,
}

// Execute runs the indexer command.
func Execute() error { return rootCmd.Execute() }

// SetVersionInfo sets version information shown by --version.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./indexer.yaml)")

	rootCmd.Flags().Int("concurrency", 4, "number of concurrent index workers")
	rootCmd.Flags().Duration("lease-duration", 0, "index job lease duration")
	rootCmd.Flags().Duration("pagerank-interval", 0, "how often to recompute PageRank")
	rootCmd.Flags().String("api-key", "", "API key required on POST /page's X-API-Key header")
	rootCmd.Flags().StringP("database", "d", "", "database URL (sqlite://path or postgres://...)")
	rootCmd.Flags().String("listen", "", "HTTP API listen address")

	_ = viper.BindPFlag("concurrency", rootCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("lease_duration", rootCmd.Flags().Lookup("lease-duration"))
	_ = viper.BindPFlag("pagerank_interval", rootCmd.Flags().Lookup("pagerank-interval"))
	_ = viper.BindPFlag("api_key", rootCmd.Flags().Lookup("api-key"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database"))
	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("indexer")
	}
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "using config file: %s\n", viper.ConfigFileUsed())
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultIndexerConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("api_key must be set: POST /page refuses every request without one")
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      logging.ParseLevel(cfg.LogLevel),
		FilePath:   cfg.LogFile,
		MaxSize:    int64(cfg.LogMaxSize),
		MaxBackups: cfg.LogMaxBackups,
		Console:    cfg.LogConsole,
		Service:    "indexerd",
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = db.Close() }()

	workerCfg := indexworker.DefaultConfig()
	if concurrency := viper.GetInt("concurrency"); concurrency > 0 {
		workerCfg.Concurrency = concurrency
	}
	if cfg.LeaseDuration > 0 {
		workerCfg.LeaseSeconds = int(cfg.LeaseDuration.Seconds())
	}
	pool := indexworker.New(workerCfg, db, db, db, logger)

	pagerankCfg := pagerank.DefaultConfig()

	api := httpapi.NewIndexerAPI(db, db, pagerankCfg, cfg.APIKey)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: api.Router("/indexer")}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("indexer HTTP API listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		if err := pool.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	go runPageRankLoop(ctx, db, pagerankCfg, cfg.PageRankInterval, logger)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		_ = server.Close()
		return err
	}
	return server.Close()
}

// runPageRankLoop recomputes page- and domain-level PageRank on a fixed
// interval until ctx is cancelled, logging but not aborting on failure so
// a single bad run doesn't take the service down.
func runPageRankLoop(ctx context.Context, store pagerank.Store, cfg pagerank.Config, interval time.Duration, logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pages, err := pagerank.RunPageRank(store, cfg)
			if err != nil {
				logger.Error("pagerank run failed", "error", err)
				continue
			}
			domains, err := pagerank.RunDomainPageRank(store, cfg)
			if err != nil {
				logger.Error("domain pagerank run failed", "error", err)
				continue
			}
			logger.Info("pagerank recomputed", "pages", pages, "domains", domains)
		}
	}
}
