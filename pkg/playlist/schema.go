package playlist

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// documentSchema is the playlist document schema built artifacts must satisfy.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["dpVersion", "id", "created", "items"],
  "properties": {
    "dpVersion": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+$"},
    "id": {"type": "string", "minLength": 1},
    "slug": {"type": "string", "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
    "title": {"type": "string"},
    "created": {"type": "string"},
    "signature": {"type": "string", "pattern": "^ed25519:[0-9a-f]+$"},
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "source", "duration", "license"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "source": {"type": "string", "format": "uri"},
          "duration": {"type": "integer", "minimum": 1},
          "license": {"enum": ["open", "token", "subscription"]},
          "provenance": {"type": "string"}
        }
      }
    }
  }
}`

// maxErrorDetails bounds how many schema errors are reported back to the
// model; more than a few just burns context without helping the rebuild.
const maxErrorDetails = 3

// ErrorDetail is one schema violation, addressable enough for a targeted fix.
type ErrorDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaValidationError reports an artifact that does not satisfy the
// document schema. Details carries at most maxErrorDetails entries.
type SchemaValidationError struct {
	ArtifactID string
	Details    []ErrorDetail
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("artifact %s failed schema validation (%d error(s))", e.ArtifactID, len(e.Details))
}

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// ValidateDocument checks the artifact against the playlist document schema.
// On failure it returns a *SchemaValidationError with the first few details.
func ValidateDocument(a *Artifact) error {
	if a == nil {
		return errors.New("nil artifact")
	}
	doc, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "marshal artifact for validation")
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return errors.Wrap(err, "run schema validation")
	}
	if result.Valid() {
		return nil
	}
	verr := &SchemaValidationError{ArtifactID: a.ID}
	for _, re := range result.Errors() {
		if len(verr.Details) >= maxErrorDetails {
			break
		}
		verr.Details = append(verr.Details, ErrorDetail{
			Path:    re.Field(),
			Message: re.Description(),
		})
	}
	return verr
}
