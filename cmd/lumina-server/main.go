package main

import (
	"context"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lumina-labs/lumina/pkg/webchat"
	webhttp "github.com/lumina-labs/lumina/pkg/webchat/http"
)

func main() {
	var (
		addr       string
		dbPath     string
		configPath string
		logLevel   string
		logJSON    bool
	)

	rootCmd := &cobra.Command{
		Use:   "lumina-server",
		Short: "Backend for the Lumina Socratic tutoring extension",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(logLevel, logJSON)

			cfg := webchat.DefaultConfig()
			if configPath != "" {
				if err := webchat.LoadConfigFile(configPath, &cfg); err != nil {
					return err
				}
			}
			cfg.ApplyEnv()
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}

			return run(cmd.Context(), cfg)
		},
	}

	rootCmd.Flags().StringVar(&addr, "addr", ":3000", "HTTP listen address")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (empty runs memory-only)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&logJSON, "log-json", false, "log JSON instead of console output")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("lumina-server failed")
		os.Exit(1)
	}
}

func setupLogging(level string, jsonOut bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if !jsonOut {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func run(ctx context.Context, cfg webchat.Config) error {
	if cfg.APIKey == "" {
		return errors.New("LUMINA_API_KEY is not set")
	}
	if cfg.PromptFile != "" {
		if err := webchat.LoadPromptOverride(cfg.PromptFile); err != nil {
			return errors.Wrap(err, "load prompt override")
		}
	}

	completer, err := webchat.NewOpenAICompleter(webchat.OpenAICompleterOptions{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		return err
	}

	var store webchat.ConversationStore
	if cfg.DBPath != "" {
		dsn, err := webchat.SQLiteDSNForFile(cfg.DBPath)
		if err != nil {
			return err
		}
		sqlStore, err := webchat.NewSQLiteStore(dsn)
		if err != nil {
			return errors.Wrap(err, "open sqlite store")
		}
		store = sqlStore
		log.Info().Str("db", cfg.DBPath).Msg("conversation store enabled")
	} else {
		log.Warn().Msg("no database configured, running memory-only (history/profile endpoints disabled)")
	}

	cm := webchat.NewConvManager(webchat.ConvManagerOptions{
		EvictIdle:     cfg.EvictIdle(),
		EvictInterval: cfg.EvictInterval(),
	})
	svc := webchat.NewChatService(webchat.ChatServiceConfig{
		ConvManager: cm,
		Completer:   completer,
		Store:       store,
		MaxTurns:    cfg.MaxTurns,
	})

	mux := http.NewServeMux()
	webhttp.Register(mux, webhttp.RegisterOptions{
		Service: svc,
		Codes:   webhttp.NewAccessCodes(cfg.AccessCodes),
		Limiter: webhttp.NewPerIPLimiter(cfg.RateLimitPerMin, 0),
	})

	srv, err := webchat.NewServer(webchat.ServerConfig{
		Addr:        cfg.Addr,
		Handler:     mux,
		ConvManager: cm,
		Store:       store,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
