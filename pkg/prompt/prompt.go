// Package prompt assembles the bounded instruction payload sent to the
// semantic matching service for records the deterministic stage could not
// resolve: a fixed rule set, a catalog summary, and the unmatched batch
// verbatim.
package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/coursekit/coursemap/pkg/catalogs"
	"github.com/coursekit/coursemap/pkg/constants"
	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/records"
)

// Config bounds the context builder.
type Config struct {
	// ConfidenceFlagThreshold is quoted in the rules so the service scores
	// against the same bands the validator enforces.
	ConfidenceFlagThreshold int

	// MaxBatchSize is the largest unmatched batch one request may carry.
	MaxBatchSize int

	// ByteBudget caps the serialized context. Examples are trimmed to fit;
	// the valid-code list never is, since it anchors validation.
	ByteBudget int

	// ExampleEntries is how many sample catalog entries to include before
	// any budget trimming.
	ExampleEntries int
}

// DefaultConfig returns the builder defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceFlagThreshold: constants.DefaultConfidenceThreshold,
		MaxBatchSize:            constants.DefaultMaxBatchSize,
		ByteBudget:              constants.DefaultContextByteBudget,
		ExampleEntries:          constants.DefaultExampleEntries,
	}
}

// CatalogSummary is the condensed catalog view included in the context.
type CatalogSummary struct {
	Categories map[string]int   `json:"categories"`
	ValidCodes []string         `json:"validCodes"`
	Examples   []catalogs.Entry `json:"examples,omitempty"`
}

// Context is the structured payload for one semantic matching request.
type Context struct {
	Rules   []string               `json:"rules"`
	Catalog CatalogSummary         `json:"catalog"`
	Records []records.SourceRecord `json:"records"`
}

// Bytes serializes the context to the request JSON.
func (c *Context) Bytes() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.WrapParse("json", "", err)
	}
	return data, nil
}

// rules is the fixed instruction set. The downstream matcher must only ever
// answer with codes from the supplied list and must account for every input
// record, including explicit not-found entries.
func rules(threshold int) []string {
	return []string{
		"Match each input record to exactly one course code from validCodes, or report it as unmatched.",
		"Never output a code that is not present in validCodes.",
		"Return JSON with three arrays: matches, unmatched, errors. Every input record id must appear in exactly one array.",
		`Each matches entry has fields: recordId, code, confidence, reasoning, and optional alternatives (also drawn from validCodes).`,
		`Each unmatched entry has fields: recordId, reason. Each errors entry has fields: recordId, error.`,
		"Score confidence as an integer from 0 to 100: 90-100 near-certain, 75-89 strong, 50-74 plausible, below 50 weak.",
		fmt.Sprintf("Matches scoring below %d will be flagged for human review; do not inflate scores to avoid review.", threshold),
	}
}

// Build assembles the context for one unmatched batch. It fails with an
// InputValidationError when the batch is empty, exceeds the batch size
// limit, or there is no catalog to match against — all caller faults caught
// before any external call.
func Build(idx *catalogs.Index, unmatched []records.SourceRecord, cfg Config) (*Context, error) {
	if len(unmatched) == 0 {
		return nil, errors.NewInputValidationError("batch", nil, "unmatched batch is empty")
	}
	if cfg.MaxBatchSize > 0 && len(unmatched) > cfg.MaxBatchSize {
		return nil, errors.NewInputValidationError("batch", len(unmatched),
			fmt.Sprintf("batch size %d exceeds limit %d", len(unmatched), cfg.MaxBatchSize))
	}
	if idx == nil || idx.Len() == 0 {
		return nil, errors.NewInputValidationError("catalog", nil, "catalog is empty, nothing to match against")
	}

	exampleCount := cfg.ExampleEntries
	if exampleCount <= 0 {
		exampleCount = constants.DefaultExampleEntries
	}

	ctx := &Context{
		Rules: rules(cfg.ConfidenceFlagThreshold),
		Catalog: CatalogSummary{
			Categories: idx.Categories(),
			ValidCodes: idx.ValidCodes(),
			Examples:   examples(idx, exampleCount),
		},
		Records: unmatched,
	}

	if cfg.ByteBudget > 0 {
		if err := trimToBudget(ctx, cfg.ByteBudget); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}

// examples picks up to n entries spread across the catalog, so the service
// sees the shape of entries from different categories rather than the first
// n rows of one department.
func examples(idx *catalogs.Index, n int) []catalogs.Entry {
	entries := idx.Entries()
	if len(entries) <= n {
		out := make([]catalogs.Entry, len(entries))
		copy(out, entries)
		return out
	}

	out := make([]catalogs.Entry, 0, n)
	step := len(entries) / n
	for i := 0; i < n; i++ {
		out = append(out, entries[i*step])
	}
	return out
}

// trimToBudget drops example entries until the serialized context fits.
// The valid-code list is safety-critical and is never truncated: a context
// that cannot fit even with zero examples is an input validation failure,
// not a silently weakened one.
func trimToBudget(ctx *Context, budget int) error {
	for {
		data, err := ctx.Bytes()
		if err != nil {
			return err
		}
		if len(data) <= budget {
			return nil
		}
		if len(ctx.Catalog.Examples) == 0 {
			return errors.NewInputValidationError("context", len(data),
				fmt.Sprintf("context of %d bytes exceeds budget %d even without examples", len(data), budget))
		}
		ctx.Catalog.Examples = ctx.Catalog.Examples[:len(ctx.Catalog.Examples)/2]
	}
}
