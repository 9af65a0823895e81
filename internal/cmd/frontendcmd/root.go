// Package frontendcmd provides the command-line interface for the public
// search service binary: config loading, the three query-mode searchers,
// and the search/click/quality HTTP API.
package frontendcmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/searchengine/searchengine/internal/config"
	"github.com/searchengine/searchengine/internal/httpapi"
	"github.com/searchengine/searchengine/internal/logging"
	"github.com/searchengine/searchengine/internal/query"
	"github.com/searchengine/searchengine/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

var rootCmd = &cobra.Command{
	Use:   "frontendd",
	Short: "Serves public search, click tracking, and the quality dashboard",
	Long: `frontendd owns the Query Engine: it answers search requests in
keyword (BM25), semantic (embedding cosine similarity), or hybrid
(Reciprocal Rank Fusion) mode, and records impressions/clicks for the
quality dashboard.`,
	RunE: run,
}

// Execute runs the frontend command.
func Execute() error { return rootCmd.Execute() }

// SetVersionInfo sets version information shown by --version.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./frontend.yaml)")

	rootCmd.Flags().Float64("bm25-k1", 0, "BM25 k1 term-saturation parameter")
	rootCmd.Flags().Float64("bm25-b", 0, "BM25 b length-normalization parameter")
	rootCmd.Flags().Float64("title-boost", 0, "BM25 title field weight multiplier")
	rootCmd.Flags().Float64("pagerank-weight", 0, "BM25 PageRank blend weight")
	rootCmd.Flags().String("session-salt", "", "salt mixed into session identifiers before hashing")
	rootCmd.Flags().String("crawler-base-url", "", "crawler service base URL, used to proxy GET /predict")
	rootCmd.Flags().StringP("database", "d", "", "database URL (sqlite://path or postgres://...)")
	rootCmd.Flags().String("listen", "", "HTTP API listen address")

	_ = viper.BindPFlag("bm25_k1", rootCmd.Flags().Lookup("bm25-k1"))
	_ = viper.BindPFlag("bm25_b", rootCmd.Flags().Lookup("bm25-b"))
	_ = viper.BindPFlag("title_boost", rootCmd.Flags().Lookup("title-boost"))
	_ = viper.BindPFlag("pagerank_weight", rootCmd.Flags().Lookup("pagerank-weight"))
	_ = viper.BindPFlag("session_salt", rootCmd.Flags().Lookup("session-salt"))
	_ = viper.BindPFlag("crawler_base_url", rootCmd.Flags().Lookup("crawler-base-url"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database"))
	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("frontend")
	}
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "using config file: %s\n", viper.ConfigFileUsed())
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultFrontendConfig()
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
		Service:    "frontendd",
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = db.Close() }()

	bm25Cfg := query.BM25Config{
		K1:             cfg.BM25K1,
		B:              cfg.BM25B,
		TitleBoost:     cfg.TitleBoost,
		PageRankWeight: cfg.PageRankWeight,
	}
	keyword := query.NewSearcher(db, bm25Cfg)

	// No embedding provider is wired in by default: the admin-managed
	// embedding pipeline that would populate the embeddings table is an
	// external collaborator, reached only through query.EmbeddingFunc.
	// Until one is configured, semantic mode falls back to keyword search
	// and hybrid degenerates to keyword-only RRF.
	var semantic *query.SemanticSearcher
	hybrid := query.NewHybridSearcher(keyword, semantic)

	api := httpapi.NewFrontendAPI(keyword, nil, hybrid, db, cfg.SessionSalt, cfg.CrawlerBaseURL)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: api.Router("/api")}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("frontend HTTP API listening", "addr", cfg.ListenAddr)
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
