// internal/groundtruth/groundtruth.go

// Package groundtruth loads and validates the hand-authored method catalogue
// the orchestrator iterates. A malformed or empty catalogue is a fatal
// startup error; nothing here is recoverable mid-run.
package groundtruth

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema validates the catalogue document shape before decoding.
const documentSchema = `{
	"type": "object",
	"required": ["framework_methods"],
	"properties": {
		"framework_methods": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["signature", "purpose_behavior", "return_values"],
					"properties": {
						"signature": {"type": "string", "minLength": 1},
						"purpose_behavior": {"type": "string"},
						"return_values": {
							"type": "object",
							"required": ["type", "description"],
							"properties": {
								"type": {"type": "string"},
								"description": {"type": "string"}
							}
						}
					}
				}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// ReturnValues describes a method's authoritative return contract.
type ReturnValues struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// MethodRecord is one hand-authored ground truth entry. Immutable once loaded.
type MethodRecord struct {
	Signature       string       `json:"signature"`
	PurposeBehavior string       `json:"purpose_behavior"`
	ReturnValues    ReturnValues `json:"return_values"`
}

// Document is the full catalogue, mapping category name to its methods.
type Document struct {
	FrameworkMethods map[string][]MethodRecord `json:"framework_methods"`
}

// Entry pairs a method record with its category for iteration.
type Entry struct {
	Signature string
	Category  string
	Record    MethodRecord
}

// Load reads, schema-validates, and decodes the catalogue at path.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ground truth file: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate ground truth: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("ground truth failed validation: %s", strings.Join(details, "; "))
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse ground truth: %w", err)
	}

	if doc.TotalMethods() == 0 {
		return nil, fmt.Errorf("no methods found in ground truth")
	}
	if err := doc.checkUniqueSignatures(); err != nil {
		return nil, err
	}

	return &doc, nil
}

// TotalMethods counts methods across all categories.
func (d *Document) TotalMethods() int {
	total := 0
	for _, methods := range d.FrameworkMethods {
		total += len(methods)
	}
	return total
}

// Categories returns the category names in sorted order.
func (d *Document) Categories() []string {
	names := make([]string, 0, len(d.FrameworkMethods))
	for name := range d.FrameworkMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Methods flattens the catalogue into a deterministic order: categories
// sorted lexically, records in document order within each category. The
// resumability invariant depends on this order being stable across runs.
func (d *Document) Methods() []Entry {
	entries := make([]Entry, 0, d.TotalMethods())
	for _, category := range d.Categories() {
		for _, record := range d.FrameworkMethods[category] {
			entries = append(entries, Entry{
				Signature: record.Signature,
				Category:  category,
				Record:    record,
			})
		}
	}
	return entries
}

// checkUniqueSignatures rejects catalogues where the same signature appears
// twice: signatures are the resume keys and must be unique.
func (d *Document) checkUniqueSignatures() error {
	seen := make(map[string]string)
	for _, category := range d.Categories() {
		for _, record := range d.FrameworkMethods[category] {
			if prev, ok := seen[record.Signature]; ok {
				return fmt.Errorf("duplicate signature %q in categories %q and %q", record.Signature, prev, category)
			}
			seen[record.Signature] = category
		}
	}
	return nil
}
