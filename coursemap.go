// Package coursemap reconciles institution-specific course records against a
// canonical course catalog. Each record runs through a deterministic matching
// stage (normalized exact code, then unique prefix) and, when that fails, a
// semantic matching stage backed by an external AI service whose responses
// are treated as untrusted and validated before anything is accepted. Every
// run produces an append-only audit session, and results commit atomically:
// a run either lands whole in the store or not at all.
package coursemap

import (
	"context"

	"github.com/coursekit/coursemap/pkg/catalogs"
	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/logging"
	"github.com/coursekit/coursemap/pkg/records"
	"github.com/coursekit/coursemap/pkg/session"
	"github.com/coursekit/coursemap/pkg/store"
)

// Coursemap reconciles course records against a canonical catalog.
type Coursemap interface {
	// Reconcile runs one batch of source records through the full pipeline
	// and commits the run. The finalized session is returned even when the
	// run fails partway, so failures stay auditable; in that case err is
	// non-nil and no mapping results were persisted.
	Reconcile(ctx context.Context, recs []records.SourceRecord) (*session.Session, error)

	// Index returns the catalog index the engine reconciles against.
	Index() *catalogs.Index

	// Session returns one committed session by id.
	Session(ctx context.Context, id string) (*session.Session, error)

	// Sessions returns all committed sessions, newest first.
	Sessions(ctx context.Context) ([]*session.Session, error)

	// LatestMapping returns a source record's mapping from the most recent
	// completed run.
	LatestMapping(ctx context.Context, sourceRecordID string) (*session.MappingResult, error)
}

// coursemap is the internal implementation of the Coursemap interface.
type coursemap struct {
	config *config
	idx    *catalogs.Index
}

// New creates a Coursemap instance with the given options. A catalog is
// required, via WithCatalog or WithCatalogPath; a duplicate normalized code
// anywhere in it fails construction with a DuplicateCodeError.
func New(opts ...Option) (Coursemap, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	entries := cfg.entries
	if len(entries) == 0 && cfg.catalogPath != "" {
		loaded, err := catalogs.Load(cfg.catalogPath)
		if err != nil {
			return nil, err
		}
		entries = loaded
	}
	if len(entries) == 0 {
		return nil, errors.NewConfigError("catalog",
			"no catalog configured; use WithCatalog or WithCatalogPath", nil)
	}

	idx, err := catalogs.NewIndex(entries, cfg.prefixLength)
	if err != nil {
		return nil, err
	}

	if cfg.store == nil {
		cfg.store = store.NewMemory()
	}
	if cfg.logger == nil {
		cfg.logger = logging.Default()
	}

	return &coursemap{config: cfg, idx: idx}, nil
}

// Index implements Coursemap.
func (c *coursemap) Index() *catalogs.Index {
	return c.idx
}

// Session implements Coursemap.
func (c *coursemap) Session(ctx context.Context, id string) (*session.Session, error) {
	return c.config.store.Session(ctx, id)
}

// Sessions implements Coursemap.
func (c *coursemap) Sessions(ctx context.Context) ([]*session.Session, error) {
	return c.config.store.Sessions(ctx)
}

// LatestMapping implements Coursemap.
func (c *coursemap) LatestMapping(ctx context.Context, sourceRecordID string) (*session.MappingResult, error) {
	return c.config.store.LatestMapping(ctx, sourceRecordID)
}
