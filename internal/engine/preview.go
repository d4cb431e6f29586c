package engine

import "flowform/internal/form"

type PreviewSchema struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Tone        string                 `json:"tone,omitempty"`
	Fields      []form.FieldDefinition `json:"fields"`
}

type PreviewResult struct {
	Schema    PreviewSchema  `json:"schema"`
	Responses map[string]any `json:"responses"`
}

// Preview projects the schema and whatever responses the caller has
// accumulated so far, for the user to confirm before submission. It is
// a pure projection: no validation, no side effects, and it never
// rejects partial input.
func (e *Engine) Preview(f *form.Form, responses map[string]any) PreviewResult {
	if responses == nil {
		responses = map[string]any{}
	}
	return PreviewResult{
		Schema: PreviewSchema{
			Title:       f.Title,
			Description: f.Description,
			Tone:        f.Tone,
			Fields:      f.Schema.Fields,
		},
		Responses: responses,
	}
}
