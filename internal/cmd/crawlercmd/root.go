// Package crawlercmd provides the command-line interface for the crawler
// service binary: config loading, storage/scheduler/worker wiring, and the
// crawl-queue status HTTP API.
package crawlercmd

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
	"github.com/searchengine/searchengine/internal/crawlworker"
	"github.com/searchengine/searchengine/internal/fetch"
	"github.com/searchengine/searchengine/internal/httpapi"
	"github.com/searchengine/searchengine/internal/logging"
	"github.com/searchengine/searchengine/internal/robots"
	"github.com/searchengine/searchengine/internal/scheduler"
	"github.com/searchengine/searchengine/internal/seedimport"
	"github.com/searchengine/searchengine/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

var rootCmd = &cobra.Command{
	Use:   "crawlerd [seed URLs...]",
	Short: "Crawls the web, submitting pages to the index job queue",
	Long: `crawlerd owns the URL Store and Scheduler: it claims pending URLs in
priority order, respects per-host rate limits and robots.txt, fetches and
parses each page, submits it to the Index Job Queue, and scores/enqueues
its outlinks.`,
	Args: cobra.ArbitraryArgs,
	RunE: run,
}

// Execute runs the crawler command.
func Execute() error { return rootCmd.Execute() }

// SetVersionInfo sets version information shown by --version.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")

	rootCmd.Flags().IntP("concurrency", "c", 10, "number of concurrent crawl workers")
	rootCmd.Flags().DurationP("timeout", "t", 0, "HTTP request timeout")
	rootCmd.Flags().StringP("user-agent", "u", "", "HTTP User-Agent header")
	rootCmd.Flags().Bool("ignore-robots", false, "ignore robots.txt rules")
	rootCmd.Flags().IntP("limit", "l", 0, "page limit (stored in config; the crawl worker does not stop on it)")
	rootCmd.Flags().StringSlice("include-patterns", nil, "regex patterns for URLs to include")
	rootCmd.Flags().StringSlice("exclude-patterns", nil, "regex patterns for URLs to exclude")
	rootCmd.Flags().StringArray("header", nil, "extra request header as 'Name: Value' (repeatable)")
	rootCmd.Flags().StringP("database", "d", "", "database URL (sqlite://path or postgres://...)")
	rootCmd.Flags().String("listen", "", "HTTP API listen address")

	_ = viper.BindPFlag("concurrency", rootCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("request_timeout", rootCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("user_agent", rootCmd.Flags().Lookup("user-agent"))
	_ = viper.BindPFlag("ignore_robots", rootCmd.Flags().Lookup("ignore-robots"))
	_ = viper.BindPFlag("limit", rootCmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("include_patterns", rootCmd.Flags().Lookup("include-patterns"))
	_ = viper.BindPFlag("exclude_patterns", rootCmd.Flags().Lookup("exclude-patterns"))
	_ = viper.BindPFlag("headers", rootCmd.Flags().Lookup("header"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database"))
	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen"))

	rootCmd.AddCommand(seedsCmd)
	seedsCmd.AddCommand(seedsImportCmd)
}

var seedsCmd = &cobra.Command{
	Use:   "seeds",
	Short: "Manage the durable seed URL set",
}

var seedsImportCmd = &cobra.Command{
	Use:   "import <tranco.zip>",
	Short: "Bulk-load seed URLs from a Tranco top-sites ZIP archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeedsImport,
}

func runSeedsImport(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultCrawlerConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open tranco archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat tranco archive: %w", err)
	}

	entries, err := seedimport.ParseZip(f, info.Size())
	if err != nil {
		return fmt.Errorf("parse tranco archive: %w", err)
	}

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = db.Close() }()

	urls := seedimport.SeedURLs(entries)
	added, err := db.AddSeeds(urls)
	if err != nil {
		return fmt.Errorf("add seeds: %w", err)
	}
	fmt.Fprintf(os.Stdout, "imported %d seeds (%d new)\n", len(urls), added)
	return nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("crawler")
	}
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "using config file: %s\n", viper.ConfigFileUsed())
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultCrawlerConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      logging.ParseLevel(cfg.LogLevel),
		FilePath:   cfg.LogFile,
		MaxSize:    int64(cfg.LogMaxSize),
		MaxBackups: cfg.LogMaxBackups,
		Console:    cfg.LogConsole,
		Service:    "crawlerd",
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = db.Close() }()

	if len(args) > 0 {
		if _, err := db.AddSeeds(args); err != nil {
			return fmt.Errorf("add seed urls: %w", err)
		}
		if _, err := db.Requeue(100); err != nil {
			return fmt.Errorf("requeue seeds: %w", err)
		}
	}

	sched := scheduler.New(db, scheduler.Config{
		DomainMinInterval:   durationFromSeconds(cfg.MinIntervalSeconds),
		DomainMaxConcurrent: cfg.DomainConcurrency,
		BatchSize:           cfg.SchedulerBatchSize,
	})

	headers := make(map[string]string, len(cfg.Headers))
	for _, h := range cfg.Headers {
		if i := strings.Index(h, ":"); i > 0 {
			headers[strings.TrimSpace(h[:i])] = strings.TrimSpace(h[i+1:])
		}
	}
	client := fetch.New(fetch.Config{
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.RequestTimeout,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Auth:          authFromConfig(cfg.Auth),
		CustomHeaders: headers,
	})

	checker := robots.New(client, cfg.UserAgent, cfg.IgnoreRobots)

	pool := crawlworker.New(crawlworker.Config{
		Concurrency:     cfg.Concurrency,
		RequestTimeout:  cfg.RequestTimeout,
		IncludePatterns: cfg.IncludePatterns,
		ExcludePatterns: cfg.ExcludePatterns,
	}, sched, checker, client, db, db, logger)
	worker := crawlworker.NewController(pool)

	api := httpapi.NewCrawlerAPI(db, db, worker)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: api.Router("")}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := worker.Start(cfg.Concurrency); err != nil {
		return fmt.Errorf("start crawl worker: %w", err)
	}
	defer func() { _ = worker.Stop(false) }()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("crawler HTTP API listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		_ = server.Close()
		return err
	}
	return server.Close()
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func authFromConfig(a *config.Auth) fetch.Auth {
	if a == nil {
		return fetch.Auth{}
	}
	switch a.Type {
	case config.BasicAuthType:
		username, password := a.GetBasicAuthCredentials()
		return fetch.Auth{Type: "basic", Username: username, Password: password}
	case config.BearerAuthType:
		return fetch.Auth{Type: "bearer", BearerToken: a.GetBearerToken()}
	case config.APIKeyAuthType:
		header, value := a.GetAPIKeyCredentials()
		return fetch.Auth{Type: "apikey", APIKeyHeader: header, APIKeyValue: value}
	default:
		return fetch.Auth{}
	}
}
