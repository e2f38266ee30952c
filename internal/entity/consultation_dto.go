package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// SessionID is the backend session identifier. The backend sends it either
// as a JSON number or as a string.
type SessionID string

func (s *SessionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SessionID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	*s = SessionID(num.String())
	return nil
}

func (s SessionID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(string(s))
}

func (s SessionID) String() string {
	return string(s)
}

// ChatRequest is the body of a chat turn sent to the consultation API
type ChatRequest struct {
	Content      string `json:"content"`
	Role         Role   `json:"role"`
	IsStructured bool   `json:"is_structured,omitempty"`
}

// ConsultationResponse is the reply to a start, chat or structured turn.
// Message and TemplateProgress are kept raw because their shape varies.
type ConsultationResponse struct {
	Message          json.RawMessage `json:"message,omitempty"`
	SessionID        *SessionID      `json:"session_id,omitempty"`
	TemplateProgress json.RawMessage `json:"template_progress,omitempty"`
	Sources          []any           `json:"sources,omitempty"`
}

// ForceNextStageResponse is the reply of the force-advance endpoint
type ForceNextStageResponse struct {
	CurrentStage       string   `json:"current_stage"`
	CurrentStageIndex  int      `json:"current_stage_index"`
	ProgressPercentage float64  `json:"progress_percentage"`
	CompletedStages    []string `json:"completed_stages"`
}

// ExtractedTemplate is a reusable template derived from a finished consultation
type ExtractedTemplate struct {
	Name                string           `json:"name"`
	Description         string           `json:"description"`
	Domain              string           `json:"domain"`
	Stages              []ExtractedStage `json:"stages"`
	InitialSystemPrompt string           `json:"initial_system_prompt"`
	Tags                []string         `json:"tags"`
}

// ExtractedStage is a stage of an extracted template
type ExtractedStage struct {
	ID              string           `json:"id,omitempty"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	PromptTemplate  string           `json:"prompt_template"`
	StageType       string           `json:"stage_type"`
	ExpectedOutputs []ExpectedOutput `json:"expected_outputs"`
}

// StartConsultationRequest is the API body to start a consultation
type StartConsultationRequest struct {
	TemplateID string `json:"template_id"`
}

// SendMessageRequest is the API body of a free-text turn
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SubmitStructuredRequest is the API body of a structured turn
type SubmitStructuredRequest struct {
	Data map[string]any `json:"data"`
}

// ConsultationListItem is a short description of a live consultation
type ConsultationListItem struct {
	ID           string            `json:"id"`
	TemplateID   string            `json:"template_id"`
	TemplateName string            `json:"template_name"`
	State        ConsultationState `json:"state"`
	Stage        int               `json:"stage"`
	TotalStages  int               `json:"total_stages"`
}

// ErrorResponse is returned by the API on failures
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
