package validator

import (
	"fmt"
	"strings"

	"github.com/futig/sla-consultant/internal/entity"
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateStartConsultation validates StartConsultationRequest
func (v *Validator) ValidateStartConsultation(req *entity.StartConsultationRequest) error {
	if strings.TrimSpace(req.TemplateID) == "" {
		return fmt.Errorf("%w: template_id", entity.ErrMissingField)
	}
	return nil
}

// ValidateSendMessage validates a free-text turn
func (v *Validator) ValidateSendMessage(req *entity.SendMessageRequest) error {
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%w: content", entity.ErrMissingField)
	}
	return nil
}

// ValidateSubmitStructured validates the envelope of a structured turn.
// Field-level checks happen against the active form.
func (v *Validator) ValidateSubmitStructured(req *entity.SubmitStructuredRequest) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: data", entity.ErrMissingField)
	}
	return nil
}

// ValidateExtractedTemplate checks an extracted template before it is saved
func (v *Validator) ValidateExtractedTemplate(t *entity.ExtractedTemplate) error {
	if t == nil || strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template name is required", entity.ErrInvalidTemplate)
	}
	if len(t.Stages) == 0 {
		return fmt.Errorf("%w: template must have at least one stage", entity.ErrInvalidTemplate)
	}
	for i, st := range t.Stages {
		if strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("%w: stage %d has no name", entity.ErrInvalidTemplate, i+1)
		}
	}
	return nil
}
