// Package records defines the immutable source records the engine
// reconciles. Records are produced by the document extraction pipeline and
// are read-only input here: the engine never writes them back.
package records

import (
	"encoding/json"
	"os"

	"github.com/coursekit/coursemap/pkg/errors"
)

// SourceRecord is one extracted, unreconciled course entry awaiting a
// canonical code.
type SourceRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RawCode      string `json:"rawCode,omitempty"`
	Description  string `json:"description,omitempty"`
	GradeContext string `json:"gradeContext,omitempty"`
}

// Validate checks the record carries the minimum needed to attempt a match.
func (r SourceRecord) Validate() error {
	if r.ID == "" {
		return errors.NewInputValidationError("record.id", r, "source record has no id")
	}
	if r.Name == "" && r.RawCode == "" {
		return errors.NewInputValidationError("record", r.ID, "source record has neither name nor raw code")
	}
	return nil
}

// LoadFile reads source records from a JSON file: either a bare array or an
// object with a "records" field.
func LoadFile(path string) ([]SourceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapParse("json", path, err)
	}

	var recs []SourceRecord
	if err := json.Unmarshal(data, &recs); err == nil {
		return recs, nil
	}

	var wrapper struct {
		Records []SourceRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return wrapper.Records, nil
}
