package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/client"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/store"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config.New()
	logger := newLogger(cfg)

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	return newRootCmd(app).Execute()
}

// app wires the token store, executor, auth bindings, and session
// manager. The refresher is bound last because the manager depends on
// the executor it serves.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	tokens  *store.TokenStore
	client  *client.Client
	authAPI *auth.Service
	session *session.Manager
}

func newApp(cfg config.Config, logger zerolog.Logger) (*app, error) {
	var backend store.Storage
	fileStorage, err := store.NewFileStorage(cfg.GetDataFolder())
	if err != nil {
		logger.Warn().Err(err).Msg("persistent storage unavailable, session will not survive restarts")
		backend = store.Unavailable()
	} else {
		backend = fileStorage
	}

	tokens := store.NewTokenStore(backend, store.WithLogger(logger))

	executor, err := client.New(cfg.GetAPIBaseURL(),
		client.WithTimeout(cfg.GetRequestTimeout()),
		client.WithRetries(cfg.GetMaxRetries()),
		client.WithTokenSource(tokens),
		client.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	authAPI, err := auth.NewService(executor, tokens, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(tokens, authAPI,
		session.WithLogger(logger),
		session.WithRefreshInterval(cfg.GetRefreshInterval()),
	)
	if err != nil {
		return nil, err
	}

	executor.SetRefresher(manager)

	return &app{
		cfg:     cfg,
		log:     logger,
		tokens:  tokens,
		client:  executor,
		authAPI: authAPI,
		session: manager,
	}, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if cfg.GetEnv() != "DEV" {
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}
