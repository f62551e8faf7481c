package ticketapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ticketSchemaJSON is the minimal shape /verify requires of a posted
// ticket: the inner receipt's output_id, shard_hashes, and
// signatures.control_plane/agent, and receipts.merkle_root. Anything more specific is left to receipts.Verify
// itself; the schema only guards against the malformed-input cases
// spec.md §7 calls out as MalformedInput rather than a panic.
const ticketSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["receipts"],
  "properties": {
    "receipts": {
      "type": "object",
      "required": ["sybi", "merkle_root"],
      "properties": {
        "sybi": {
          "type": "object",
          "required": ["output_id", "shard_hashes", "signatures"],
          "properties": {
            "output_id": {"type": "string", "minLength": 1},
            "shard_hashes": {"type": "array"},
            "signatures": {
              "type": "object",
              "required": ["control_plane", "agent"]
            }
          }
        },
        "merkle_root": {"type": "string"}
      }
    }
  }
}`

var ticketSchema = mustCompileSchema("ticket.schema.json", ticketSchemaJSON)

func mustCompileSchema(name, body string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://ticket-core.example/schemas/" + name
	if err := c.AddResource(url, strings.NewReader(body)); err != nil {
		panic(fmt.Sprintf("ticketapi: compile schema %s: %v", name, err))
	}
	return c.MustCompile(url)
}

// validateTicketJSON unmarshals raw as generic JSON and validates it
// against ticketSchema, returning the decoded document on success.
func validateTicketJSON(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed JSON body: %w", err)
	}
	if err := ticketSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("ticket does not match required shape: %w", err)
	}
	return doc, nil
}
