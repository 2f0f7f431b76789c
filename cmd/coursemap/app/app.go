// Package app provides the application context and dependency wiring for the
// coursemap CLI: configuration, logging, the engine instance, and the store
// lifecycle.
package app

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/coursekit/coursemap"
	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/semantic"
	"github.com/coursekit/coursemap/pkg/store"
)

// App represents the coursemap application with all its dependencies.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger

	// Engine and store, lazy-initialized singletons.
	mu     sync.Mutex
	engine coursemap.Coursemap
	store  store.Store
}

// New creates a new App instance with the given version information.
func New(version, commit, date string) (*App, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := NewLogger(config)
	return &App{
		version: version,
		commit:  commit,
		date:    date,
		config:  config,
		logger:  &logger,
	}, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Store returns the configured store, opening it on first use. A configured
// store path opens SQLite; otherwise runs commit to memory and vanish with
// the process.
func (a *App) Store() (store.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.storeLocked()
}

func (a *App) storeLocked() (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.config.StorePath == "" {
		a.logger.Warn().Msg("no store path configured; results will not be persisted")
		a.store = store.NewMemory()
		return a.store, nil
	}
	s, err := store.Open(a.config.StorePath)
	if err != nil {
		return nil, err
	}
	a.store = s
	return a.store, nil
}

// Coursemap returns the engine instance, creating it lazily from the
// application configuration.
func (a *App) Coursemap() (coursemap.Coursemap, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine != nil {
		return a.engine, nil
	}
	if a.config.CatalogPath == "" {
		return nil, errors.NewConfigError("catalog",
			"no catalog configured; set --catalog or COURSEMAP_CATALOG", nil)
	}

	st, err := a.storeLocked()
	if err != nil {
		return nil, err
	}

	opts := []coursemap.Option{
		coursemap.WithCatalogPath(a.config.CatalogPath),
		coursemap.WithStore(st),
		coursemap.WithLogger(a.logger),
		coursemap.WithPrefixLength(a.config.PrefixLength),
		coursemap.WithConfidenceThreshold(a.config.ConfidenceThreshold),
		coursemap.WithMaxBatchSize(a.config.MaxBatchSize),
		coursemap.WithMatchTimeout(a.config.MatchTimeout),
	}
	if a.config.GeminiAPIKey != "" {
		var geminiOpts []semantic.GeminiOption
		if a.config.GeminiModel != "" {
			geminiOpts = append(geminiOpts, semantic.WithModel(a.config.GeminiModel))
		}
		opts = append(opts, coursemap.WithGeminiAPIKey(a.config.GeminiAPIKey, geminiOpts...))
	} else {
		a.logger.Warn().Msg("no Gemini API key configured; semantic matching disabled")
	}

	engine, err := coursemap.New(opts...)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	return a.engine, nil
}

// Shutdown releases application resources.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		return err
	}
	return nil
}
