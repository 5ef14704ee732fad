package curriculum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	pathSchema     = mustSchema(pathSchemaJSON)
	categorySchema = mustSchema(categorySchemaJSON)
)

const stringList = `{"type": "array", "items": {"type": "string"}}`

var pathSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "steps"],
  "additionalProperties": false,
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "category": {"type": "string"},
    "difficulty": {"enum": ["beginner", "intermediate", "advanced"]},
    "public": {"type": "boolean"},
    "created_by": {"type": "string"},
    "tags": ` + stringList + `,
    "prerequisites": ` + stringList + `,
    "learning_objectives": ` + stringList + `,
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "title", "type"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "type": {"enum": ["concept", "practice", "assessment", "project", "reading"]},
          "difficulty": {"type": "integer", "minimum": 1, "maximum": 5},
          "minutes": {"type": "integer", "minimum": 0},
          "prerequisites": ` + stringList + `,
          "tags": ` + stringList + `,
          "resources": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["title"],
              "additionalProperties": false,
              "properties": {
                "title": {"type": "string", "minLength": 1},
                "type": {"type": "string"},
                "url": {"type": "string"},
                "content": {"type": "string"},
                "minutes": {"type": "integer", "minimum": 0},
                "difficulty": {"type": "integer", "minimum": 1, "maximum": 5},
                "rating": {"type": "number", "minimum": 0, "maximum": 5},
                "provider": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

var categorySchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["categories"],
  "properties": {
    "categories": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["category", "keywords"],
        "properties": {
          "category": {"type": "string", "minLength": 1},
          "keywords": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
        }
      }
    }
  }
}`

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// validateDocument checks a decoded YAML value against schema and joins every violation
// into one error.
func validateDocument(schema *gojsonschema.Schema, doc any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("schema violations: " + strings.Join(msgs, "; "))
}
