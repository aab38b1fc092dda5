package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON Schema.
type Schema struct {
	s *gojsonschema.Schema
}

// Error lists every violation found in one document.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "schema validation failed: " + strings.Join(e.Problems, "; ")
}

// Compile parses a JSON Schema document.
func Compile(schema []byte) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{s: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(schema []byte) *Schema {
	s, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a raw JSON payload. Malformed JSON is an error too.
func (s *Schema) Validate(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON")
	}
	return s.result(gojsonschema.NewBytesLoader(data))
}

// ValidateValue checks an already decoded value (maps, slices, scalars).
func (s *Schema) ValidateValue(v any) error {
	return s.result(gojsonschema.NewGoLoader(v))
}

func (s *Schema) result(doc gojsonschema.JSONLoader) error {
	res, err := s.s.Validate(doc)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if res.Valid() {
		return nil
	}
	out := &Error{}
	for _, re := range res.Errors() {
		out.Problems = append(out.Problems, re.String())
	}
	return out
}
