package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrSchemaMismatch is returned when the model output is not the expected
// {"transactions": [...]} document.
var ErrSchemaMismatch = errors.New("model output does not match transactions schema")

const transactionsSchemaURL = "https://finos.local/schemas/transactions.json"

const transactionsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["transactions"],
  "properties": {
    "transactions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["merchant", "amount", "currency"],
        "properties": {
          "merchant": {"type": "string"},
          "amount": {"type": ["number", "string"]},
          "currency": {"type": "string"}
        }
      }
    }
  }
}`

var transactionsSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(transactionsSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("transactions schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(transactionsSchemaURL, doc); err != nil {
		panic(fmt.Sprintf("transactions schema: %v", err))
	}
	return c.MustCompile(transactionsSchemaURL)
}

// BuildPrompt formats the extraction prompt for one message.
func BuildPrompt(issuer, text string) string {
	return fmt.Sprintf(`Identify the transactions in this email from %s.

%s

Return ONLY valid JSON for the schema: { "transactions": [ { "merchant": "...", "amount": 0.0, "currency": "..." } ] }
If there are no transactions, return { "transactions": [] }.`, issuer, text)
}

// ParseTransactions validates a model response against the transactions
// schema and decodes it.
func ParseTransactions(body string) ([]Transaction, error) {
	body = strings.TrimSpace(body)

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrSchemaMismatch, err)
	}
	if err := transactionsSchema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return out.Transactions, nil
}
