package coursemap

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/coursekit/coursemap/pkg/catalogs"
	"github.com/coursekit/coursemap/pkg/constants"
	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/semantic"
	"github.com/coursekit/coursemap/pkg/store"
)

// Option is a function that configures a Coursemap instance.
type Option func(*config) error

type config struct {
	entries     []catalogs.Entry
	catalogPath string

	prefixLength        int
	confidenceThreshold int
	maxBatchSize        int
	byteBudget          int
	matchTimeout        time.Duration

	client semantic.Client
	store  store.Store
	logger *zerolog.Logger
}

func defaultEngineConfig() *config {
	return &config{
		prefixLength:        constants.DefaultPrefixLength,
		confidenceThreshold: constants.DefaultConfidenceThreshold,
		maxBatchSize:        constants.DefaultMaxBatchSize,
		byteBudget:          constants.DefaultContextByteBudget,
		matchTimeout:        constants.DefaultMatchTimeout,
	}
}

// WithCatalog configures the canonical catalog entries to reconcile against.
func WithCatalog(entries []catalogs.Entry) Option {
	return func(c *config) error {
		c.entries = entries
		return nil
	}
}

// WithCatalogPath configures a YAML catalog file or directory to load the
// canonical entries from.
func WithCatalogPath(path string) Option {
	return func(c *config) error {
		if path == "" {
			return errors.NewConfigError("catalog", "catalog path is empty", nil)
		}
		c.catalogPath = path
		return nil
	}
}

// WithPrefixLength configures the fixed prefix length for the deterministic
// prefix-matching strategy.
func WithPrefixLength(n int) Option {
	return func(c *config) error {
		if n < catalogs.MinPrefixLength {
			return errors.NewConfigError("match",
				"prefix length below the deterministic minimum", nil)
		}
		c.prefixLength = n
		return nil
	}
}

// WithConfidenceThreshold configures the confidence below which a semantic
// match is flagged for review instead of accepted.
func WithConfidenceThreshold(n int) Option {
	return func(c *config) error {
		if n < 0 || n > 100 {
			return errors.NewConfigError("validate",
				"confidence threshold must be between 0 and 100", nil)
		}
		c.confidenceThreshold = n
		return nil
	}
}

// WithMaxBatchSize configures how many unmatched records one semantic
// request may carry. Larger inputs are split into sequential batches.
func WithMaxBatchSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.NewConfigError("prompt", "batch size must be positive", nil)
		}
		c.maxBatchSize = n
		return nil
	}
}

// WithContextByteBudget caps the serialized size of one semantic request.
func WithContextByteBudget(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.NewConfigError("prompt", "byte budget must be positive", nil)
		}
		c.byteBudget = n
		return nil
	}
}

// WithMatchTimeout bounds each call to the semantic matching service.
func WithMatchTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.NewConfigError("semantic", "match timeout must be positive", nil)
		}
		c.matchTimeout = d
		return nil
	}
}

// WithClient configures the semantic matching client. Without one the
// semantic stage is skipped and deterministically unmatched records are
// reported unmapped.
func WithClient(client semantic.Client) Option {
	return func(c *config) error {
		c.client = client
		return nil
	}
}

// WithGeminiAPIKey configures a Gemini-backed semantic matching client.
func WithGeminiAPIKey(apiKey string, opts ...semantic.GeminiOption) Option {
	return func(c *config) error {
		client, err := semantic.NewGeminiClient(apiKey, opts...)
		if err != nil {
			return err
		}
		c.client = client
		return nil
	}
}

// WithStore configures where committed runs are persisted. Defaults to an
// in-memory store.
func WithStore(s store.Store) Option {
	return func(c *config) error {
		if s == nil {
			return errors.NewConfigError("store", "store is nil", nil)
		}
		c.store = s
		return nil
	}
}

// WithLogger configures the engine's logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
