package llm

import (
	"github.com/xeipuuv/gojsonschema"
)

// snapshotSchema is the loose contract an extracted snapshot object should
// follow. Violations are surfaced as warnings, never failures: the model
// output is authoritative and a loosely-shaped answer still persists.
var snapshotSchema = map[string]any{
	"type":     "object",
	"required": []any{"title"},
	"properties": map[string]any{
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"fields": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "type", "label"},
				"properties": map[string]any{
					"id":          map[string]any{"type": "string"},
					"type":        map[string]any{"type": "string"},
					"label":       map[string]any{"type": "string"},
					"placeholder": map[string]any{"type": "string"},
					"required":    map[string]any{"type": "boolean"},
					"options": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"validation": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"min":     map[string]any{"type": "number"},
							"max":     map[string]any{"type": "number"},
							"pattern": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
		"settings": map[string]any{"type": "object"},
	},
}

// CheckSnapshotShape validates an extracted object against the snapshot
// contract and returns one warning per violation. A schema-engine error
// yields a single warning describing it.
func CheckSnapshotShape(object map[string]any) []string {
	schemaLoader := gojsonschema.NewGoLoader(snapshotSchema)
	dataLoader := gojsonschema.NewGoLoader(object)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return []string{"schema check unavailable: " + err.Error()}
	}

	if result.Valid() {
		return nil
	}

	warnings := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		warnings = append(warnings, desc.String())
	}

	return warnings
}
