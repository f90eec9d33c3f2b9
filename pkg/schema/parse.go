package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse decodes a raw YAML document. Structural soundness beyond YAML shape
// (reference resolution, state-machine checks) is left to the resolver and
// validator.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}

// Marshal renders a document back to YAML, mainly for debugging and the
// `inspect` surfaces.
func Marshal(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc)
}
