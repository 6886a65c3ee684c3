package tools

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Definition describes one operation the model may invoke: a name, a
// description shown to the model, a JSON schema for the arguments, and the
// handler that executes validated calls.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	// Terminal marks operations whose call ends the conversation instead of
	// producing a result turn (used by the intent resolver for final payloads).
	Terminal bool `json:"-"`

	handler  func(ctx context.Context, args json.RawMessage) (any, error)
	compiled *gojsonschema.Schema
}

// NewDefinition creates a Definition whose argument schema is reflected from
// the Args type and whose handler receives decoded arguments. Argument
// validation (schema plus decoding) happens before the handler runs.
func NewDefinition[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error)) (*Definition, error) {
	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs; providers want a
		// single self-contained object schema.
		DoNotReference: true,
	}
	var sample Args
	schema := reflector.Reflect(&sample)
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	// Providers and the validator both want a plain object schema without a
	// draft marker.
	schema.Version = ""

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal schema for %s", name)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, errors.Wrapf(err, "compile schema for %s", name)
	}

	def := &Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		compiled:    compiled,
	}
	def.handler = func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args Args
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, NewArgumentValidationError(name, "", err.Error(), nil)
			}
		}
		return fn(ctx, args)
	}
	return def, nil
}

// ValidateArguments checks raw JSON arguments against the parameter schema.
// Returns a *ToolError of type validation on mismatch.
func (d *Definition) ValidateArguments(raw json.RawMessage) error {
	if d.compiled == nil {
		return nil
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	result, err := d.compiled.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return NewArgumentValidationError(d.Name, "", err.Error(), nil)
	}
	if result.Valid() {
		return nil
	}
	details := make([]map[string]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		details = append(details, map[string]string{
			"path":    re.Field(),
			"message": re.Description(),
		})
	}
	return NewArgumentValidationError(d.Name, "", "arguments do not match operation schema", details)
}

// Execute validates and runs the operation with raw JSON arguments.
func (d *Definition) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	if err := d.ValidateArguments(raw); err != nil {
		return nil, err
	}
	if d.handler == nil {
		return nil, errors.Errorf("operation %s has no handler", d.Name)
	}
	return d.handler(ctx, raw)
}
