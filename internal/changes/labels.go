package changes

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LabelTable is the fixed presentation vocabulary: per-field labels and the
// tokens booleans render as.
type LabelTable struct {
	Fields map[string]string `yaml:"fields,omitempty"`
	Yes    string            `yaml:"yes,omitempty"`
	No     string            `yaml:"no,omitempty"`
}

// DefaultLabels holds the built-in boolean tokens.
var DefaultLabels = LabelTable{Yes: "yes", No: "no"}

// ReadLabels decodes a YAML label table.
func ReadLabels(r io.Reader) (LabelTable, error) {
	var t LabelTable
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		if err == io.EOF {
			return LabelTable{}, nil
		}
		return LabelTable{}, fmt.Errorf("decode label table: %w", err)
	}
	return t, nil
}

// LoadLabels reads a YAML label table from path.
func LoadLabels(path string) (LabelTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return LabelTable{}, fmt.Errorf("open label table: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadLabels(f)
}
