package validator

import (
	"testing"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/stretchr/testify/assert"
)

func slaFields() []entity.StructuredInputField {
	return []entity.StructuredInputField{
		{ID: "service", Label: "Service", Type: entity.FieldTypeText, Required: true},
		{ID: "tier", Label: "Tier", Type: entity.FieldTypeSelect, Options: []entity.FieldOption{{Value: "gold"}, {Value: "silver"}}},
		{ID: "channels", Label: "Channels", Type: entity.FieldTypeCheckbox, Options: []entity.FieldOption{{Value: "email"}, {Value: "phone"}}},
		{ID: "notes", Type: entity.FieldTypeTextarea},
	}
}

func TestValidateStructuredInput(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		data    map[string]any
		wantErr string
	}{
		{"valid", map[string]any{"service": "payments", "tier": "gold", "channels": []any{"email"}}, ""},
		{"optional fields omitted", map[string]any{"service": "payments"}, ""},
		{"extra keys pass", map[string]any{"service": "payments", "other": 1}, ""},
		{"missing required", map[string]any{"tier": "gold"}, "missing required fields: Service"},
		{"blank required", map[string]any{"service": "  "}, "missing required fields: Service"},
		{"unknown option", map[string]any{"service": "x", "tier": "bronze"}, "unknown option for: Tier"},
		{"unknown checkbox option", map[string]any{"service": "x", "channels": []any{"email", "fax"}}, "unknown option for: Channels"},
		{"list for select", map[string]any{"service": "x", "tier": []any{"gold"}}, "unknown option for: Tier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStructuredInput(slaFields(), tt.data)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, entity.ErrInvalidStructuredInput)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateRequests(t *testing.T) {
	v := New()

	assert.ErrorIs(t, v.ValidateStartConsultation(&entity.StartConsultationRequest{}), entity.ErrMissingField)
	assert.NoError(t, v.ValidateStartConsultation(&entity.StartConsultationRequest{TemplateID: "sla"}))
	assert.ErrorIs(t, v.ValidateSendMessage(&entity.SendMessageRequest{Content: " "}), entity.ErrMissingField)
	assert.ErrorIs(t, v.ValidateSubmitStructured(&entity.SubmitStructuredRequest{}), entity.ErrMissingField)

	assert.ErrorIs(t, v.ValidateExtractedTemplate(&entity.ExtractedTemplate{Name: "x"}), entity.ErrInvalidTemplate)
	assert.ErrorIs(t, v.ValidateExtractedTemplate(&entity.ExtractedTemplate{Name: "x", Stages: []entity.ExtractedStage{{}}}), entity.ErrInvalidTemplate)
	assert.NoError(t, v.ValidateExtractedTemplate(&entity.ExtractedTemplate{Name: "x", Stages: []entity.ExtractedStage{{Name: "Scope"}}}))
}
