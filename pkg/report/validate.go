package report

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// ErrInvalidJSON is returned when the input is not JSON at all.
var ErrInvalidJSON = errors.New("invalid JSON")

// Violation is one schema violation.
type Violation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// String renders the violation as "field: description".
func (v Violation) String() string {
	return v.Field + ": " + v.Description
}

// Validation is the outcome of checking a report against the schema.
type Validation struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Schema returns the JSON schema reports conform to.
func Schema() []byte {
	return schemaJSON
}

// Validate checks the JSON report read from r against the embedded schema.
// Schema violations are reported in the result; the error is reserved for
// unreadable or malformed input.
func Validate(r io.Reader) (*Validation, error) {
	var doc any

	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	out := &Validation{Valid: result.Valid()}

	for _, verr := range result.Errors() {
		out.Violations = append(out.Violations, Violation{Field: verr.Field(), Description: verr.Description()})
	}

	return out, nil
}
