package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// spanBatchSchema is the wire contract for POST span batches. Structural
// checks live here; semantic checks (zero ids, end before start) stay in
// the model so every transport shares them.
const spanBatchSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["spans"],
  "properties": {
    "spans": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["trace_id", "span_id", "name", "service_name", "start_time"],
        "properties": {
          "trace_id": {"type": "string", "pattern": "^[0-9a-fA-F]{32}$"},
          "span_id": {"type": "string", "pattern": "^[0-9a-fA-F]{16}$"},
          "parent_span_id": {"type": "string", "pattern": "^[0-9a-fA-F]{16}$"},
          "name": {"type": "string", "minLength": 1},
          "service_name": {"type": "string"},
          "start_time": {"type": "integer", "minimum": 0},
          "end_time": {"type": "integer", "minimum": 0},
          "attributes": {
            "type": "object",
            "additionalProperties": {
              "type": ["string", "number", "boolean", "integer"]
            }
          },
          "events": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "timestamp"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "timestamp": {"type": "integer", "minimum": 0}
              }
            }
          },
          "status": {
            "type": "object",
            "required": ["code"],
            "properties": {
              "code": {"type": "integer", "minimum": 0, "maximum": 1},
              "message": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

var (
	spanBatchOnce     sync.Once
	spanBatchCompiled *jsonschema.Schema
	spanBatchErr      error
)

func compiledSpanBatchSchema() (*jsonschema.Schema, error) {
	spanBatchOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("span_batch.json", strings.NewReader(spanBatchSchema)); err != nil {
			spanBatchErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		spanBatchCompiled, spanBatchErr = compiler.Compile("span_batch.json")
	})
	return spanBatchCompiled, spanBatchErr
}

// ValidateSpanBatch validates a raw span batch body against the batch
// schema. The schema is compiled once and reused.
func ValidateSpanBatch(payload []byte) error {
	var body interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ValidationError{Field: "body", Reason: "not valid JSON"}
	}

	schema, err := compiledSpanBatchSchema()
	if err != nil {
		return fmt.Errorf("failed to compile span batch schema: %w", err)
	}

	if err := schema.Validate(body); err != nil {
		return ValidationError{Field: "spans", Reason: err.Error()}
	}
	return nil
}
