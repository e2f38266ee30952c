package consultation

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const defaultStructuredPrompt = "Please provide the following information:"

// ReconcileStructuredInput derives the form to show from
// template_progress.ui_components.structured_input. A missing or malformed
// hint yields an empty form, which means free text.
func ReconcileStructuredInput(ctx context.Context, resp *entity.ConsultationResponse) entity.StructuredInput {
	empty := entity.StructuredInput{Fields: []entity.StructuredInputField{}}
	if resp == nil {
		return empty
	}

	raw := lookupPath(resp.TemplateProgress, "ui_components", "structured_input")
	if raw == nil {
		return empty
	}

	var hint struct {
		Prompt json.RawMessage `json:"prompt"`
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(raw, &hint); err != nil {
		ctxzap.Warn(ctx, "structured input hint is not an object", zap.Error(err))
		return empty
	}

	var items []json.RawMessage
	if !isJSONArray(hint.Fields) {
		ctxzap.Warn(ctx, "structured input fields is not an array",
			zap.ByteString("fields", hint.Fields),
		)
		return empty
	}
	if err := json.Unmarshal(hint.Fields, &items); err != nil {
		ctxzap.Warn(ctx, "failed to decode structured input fields", zap.Error(err))
		return empty
	}

	fields := make([]entity.StructuredInputField, 0, len(items))
	for i, item := range items {
		field, ok := normalizeField(item)
		if !ok {
			ctxzap.Warn(ctx, "structured input field is not an object, dropping form",
				zap.Int("index", i),
			)
			return empty
		}
		fields = append(fields, field)
	}

	prompt, _ := stringField(hint.Prompt)
	if prompt == "" {
		prompt = defaultStructuredPrompt
	}

	return entity.StructuredInput{Prompt: prompt, Fields: fields}
}

func normalizeField(raw json.RawMessage) (entity.StructuredInputField, bool) {
	var in map[string]json.RawMessage
	if err := json.Unmarshal(raw, &in); err != nil || in == nil {
		return entity.StructuredInputField{}, false
	}

	field := entity.StructuredInputField{
		Type:    entity.FieldTypeText,
		Options: []entity.FieldOption{},
		Value:   "",
	}

	if id, _ := stringField(in["id"]); id != "" {
		field.ID = id
	} else {
		field.ID = "field_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	}

	if label, _ := stringField(in["label"]); label != "" {
		field.Label = label
	} else {
		field.Label = "Unnamed Field"
	}

	if t, _ := stringField(in["type"]); entity.FieldType(t).IsValid() {
		field.Type = entity.FieldType(t)
	}

	field.Options = decodeOptions(in["options"])
	field.Placeholder, _ = stringField(in["placeholder"])
	field.Required = isTrue(in["required"])

	if help, _ := stringField(in["help_text"]); help != "" {
		field.HelpText = help
	} else {
		field.HelpText, _ = stringField(in["helpText"])
	}

	return field, true
}

// decodeOptions accepts {value, label} objects or bare strings
func decodeOptions(raw json.RawMessage) []entity.FieldOption {
	var items []json.RawMessage
	if !isJSONArray(raw) || json.Unmarshal(raw, &items) != nil {
		return []entity.FieldOption{}
	}

	out := make([]entity.FieldOption, 0, len(items))
	for _, item := range items {
		if s, ok := stringField(item); ok {
			out = append(out, entity.FieldOption{Value: s, Label: s})
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		value, _ := stringField(obj["value"])
		label, _ := stringField(obj["label"])
		if label == "" {
			label = value
		}
		out = append(out, entity.FieldOption{Value: value, Label: label})
	}

	return out
}

// lookupPath walks nested JSON objects, returning nil when any step is
// missing, null or not an object
func lookupPath(raw json.RawMessage, path ...string) json.RawMessage {
	current := raw
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(current, &obj); err != nil || obj == nil {
			return nil
		}
		next, ok := obj[key]
		if !ok || bytes.Equal(bytes.TrimSpace(next), []byte("null")) {
			return nil
		}
		current = next
	}
	return current
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
