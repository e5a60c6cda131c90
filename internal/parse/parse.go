// internal/parse/parse.go

// Package parse converts raw backend text into a validated structured record.
// Response is a total function: every input maps to some ParsedResponse,
// success or tagged error, and nothing escapes past the package boundary.
// The orchestrator relies on that to keep a malformed answer from aborting
// the batch.
package parse

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// maxExcerptLen bounds how much offending text a ParseError carries.
const maxExcerptLen = 200

// responseSchema describes the record a backend is instructed to answer with.
const responseSchema = `{
	"type": "object",
	"required": ["purpose_behavior", "return_values"],
	"properties": {
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
}`

var schemaLoader = gojsonschema.NewStringLoader(responseSchema)

// ReturnValues describes the return contract a backend attributed to a method.
type ReturnValues struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ParsedResponse is the typed record decoded from one backend answer. When
// decoding or validation fails the record carries placeholder field values
// plus exactly one of the error tags; OK reports whether neither tag is set.
type ParsedResponse struct {
	PurposeBehavior string       `json:"purpose_behavior"`
	ReturnValues    ReturnValues `json:"return_values"`
	ParseError      string       `json:"parse_error,omitempty"`
	ValidationError string       `json:"validation_error,omitempty"`
}

// OK reports whether the response decoded and validated cleanly.
func (p ParsedResponse) OK() bool {
	return p.ParseError == "" && p.ValidationError == ""
}

// Response parses raw backend text into a ParsedResponse. It strips
// surrounding whitespace and markdown code fences, decodes the JSON body,
// and validates the four required fields against the response schema.
func Response(raw string) ParsedResponse {
	cleaned := stripFences(strings.TrimSpace(raw))

	var parsed ParsedResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return ParsedResponse{
			PurposeBehavior: "PARSE_ERROR: " + excerpt(cleaned),
			ReturnValues: ReturnValues{
				Type:        "PARSE_ERROR",
				Description: "Failed to parse JSON response",
			},
			ParseError: err.Error(),
		}
	}

	if msg := validate(cleaned); msg != "" {
		return ParsedResponse{
			PurposeBehavior: "VALIDATION_ERROR: " + msg,
			ReturnValues: ReturnValues{
				Type:        "VALIDATION_ERROR",
				Description: "Response missing required fields",
			},
			ValidationError: msg,
		}
	}

	parsed.ParseError = ""
	parsed.ValidationError = ""
	return parsed
}

// validate checks the decoded document against the response schema and
// returns a message naming the offending fields, or "" when valid.
func validate(document string) string {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(document))
	if err != nil {
		return err.Error()
	}
	if result.Valid() {
		return ""
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return strings.Join(details, "; ")
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, leaving the enclosed body.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the opening fence line, language tag included.
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// excerpt truncates offending text for embedding in diagnostics.
func excerpt(s string) string {
	if len(s) <= maxExcerptLen {
		return s
	}
	return s[:maxExcerptLen]
}
