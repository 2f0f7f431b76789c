// Package constants provides shared constants used throughout the coursemap
// codebase: matching confidences, pipeline defaults, and timeouts that should
// be consistent across the application.
package constants

import "time"

// Matching constants define the deterministic stage's fixed confidences.
const (
	// ExactMatchConfidence is assigned when a normalized code matches a
	// catalog entry exactly.
	ExactMatchConfidence = 100

	// PrefixMatchConfidence is assigned when a normalized code uniquely
	// matches a catalog entry by fixed-length prefix.
	PrefixMatchConfidence = 90
)

// Pipeline defaults used when the caller does not override configuration.
const (
	// DefaultPrefixLength is how many normalized characters the prefix
	// matcher compares. Covers department+number codes like "cs101".
	DefaultPrefixLength = 5

	// DefaultConfidenceThreshold is the confidence below which a
	// structurally valid semantic match is flagged for review instead of
	// accepted.
	DefaultConfidenceThreshold = 75

	// DefaultMaxBatchSize bounds how many unmatched records go into one
	// semantic matching request.
	DefaultMaxBatchSize = 100

	// DefaultContextByteBudget bounds the serialized prompt context. When
	// exceeded, example entries are trimmed; the valid-code list never is.
	DefaultContextByteBudget = 96 * 1024

	// DefaultExampleEntries is how many sample catalog entries the prompt
	// context includes before budget trimming.
	DefaultExampleEntries = 10
)

// Anomaly scan thresholds for the validator's secondary pass.
const (
	// RepeatedCodeThreshold is how many accepted matches may share one
	// catalog code before the cluster is flagged as a session warning.
	RepeatedCodeThreshold = 3

	// UniformConfidenceThreshold is how many accepted matches may share
	// the same non-round confidence value before the batch looks templated.
	UniformConfidenceThreshold = 5
)

// Timeout constants define timeout durations used in the application.
const (
	// DefaultMatchTimeout bounds the single semantic matching call per run.
	DefaultMatchTimeout = 2 * time.Minute

	// DefaultCommitTimeout bounds one atomic persistence commit.
	DefaultCommitTimeout = 30 * time.Second
)

// File permission constants define standard Unix file permissions.
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)
