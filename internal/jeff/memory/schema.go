package memory

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// logSchema is the shape contract for memory.json. Loading validates
// against it before trusting the file: a log that parses as JSON but has
// drifted structurally (hand edits, partial writes, older tooling) is
// treated the same as a corrupt one.
const logSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["timestamp", "text", "source", "chunks"],
    "properties": {
      "timestamp": {"type": "string"},
      "text": {"type": "string"},
      "source": {"type": "string"},
      "metadata": {
        "type": "object",
        "additionalProperties": {"type": "string"}
      },
      "chunks": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["text"],
          "properties": {
            "text": {"type": "string"},
            "metadata": {
              "type": "object",
              "additionalProperties": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

var compiledLogSchema = jsonschema.MustCompileString("memory.schema.json", logSchema)

func encodeLog(entries []MemoryEntry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

func decodeLog(data []byte) ([]MemoryEntry, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse log: %w", err)
	}
	if err := compiledLogSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("validate log: %w", err)
	}
	var entries []MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode log: %w", err)
	}
	return entries, nil
}
