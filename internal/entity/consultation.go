package entity

import "time"

// ConsultationState is a state of the consultation orchestrator
type ConsultationState string

const (
	ConsultationStateLoading            ConsultationState = "loading"
	ConsultationStateAwaitingInput      ConsultationState = "awaiting_input"
	ConsultationStateWaitingForResponse ConsultationState = "waiting_for_response"
	ConsultationStateCompleted          ConsultationState = "completed"
)

// Role is the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the consultation chat
type Message struct {
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	StageID   string    `json:"stage_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FieldType is the kind of a structured input field
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeSelect   FieldType = "select"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeCheckbox FieldType = "checkbox"
)

// IsValid reports whether the type is one of the supported field types
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypeSelect, FieldTypeRadio, FieldTypeCheckbox:
		return true
	}
	return false
}

// HasOptions reports whether the field is answered by picking an option
func (t FieldType) HasOptions() bool {
	return t == FieldTypeSelect || t == FieldTypeRadio || t == FieldTypeCheckbox
}

// FieldOption is a choice of a select, radio or checkbox field
type FieldOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// StructuredInputField is a normalized form field
type StructuredInputField struct {
	ID          string        `json:"id" yaml:"id"`
	Label       string        `json:"label" yaml:"label"`
	Type        FieldType     `json:"type" yaml:"type"`
	Options     []FieldOption `json:"options" yaml:"options"`
	Value       string        `json:"value" yaml:"value"`
	Placeholder string        `json:"placeholder,omitempty" yaml:"placeholder"`
	Required    bool          `json:"required" yaml:"required"`
	HelpText    string        `json:"help_text" yaml:"help_text"`
}

// StructuredInput is the active form and its prompt
type StructuredInput struct {
	Prompt string                 `json:"prompt"`
	Fields []StructuredInputField `json:"fields"`
}

// Active reports whether a form should be shown instead of free text
func (s StructuredInput) Active() bool {
	return len(s.Fields) > 0
}

// StructuredOutput is the record of one structured submission
type StructuredOutput struct {
	StageID     string         `json:"stage_id"`
	StageName   string         `json:"stage_name"`
	StageNumber int            `json:"stage_number"`
	Data        map[string]any `json:"data"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ConsultationSummary is the result of a consultation
type ConsultationSummary struct {
	ConsultationID string             `json:"consultation_id"`
	TemplateID     string             `json:"template_id"`
	TemplateName   string             `json:"template_name"`
	SessionID      *SessionID         `json:"session_id,omitempty"`
	Outputs        []StructuredOutput `json:"outputs"`
	StartTime      time.Time          `json:"start_time"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	Completed      bool               `json:"completed"`
	Summary        map[string]any     `json:"summary,omitempty"`
}

// NoticeLevel classifies a user-visible notification
type NoticeLevel string

const (
	NoticeLevelInfo    NoticeLevel = "info"
	NoticeLevelSuccess NoticeLevel = "success"
	NoticeLevelError   NoticeLevel = "error"
)

// Notice is a best-effort notification for the presentation layer
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
}

// ConsultationView is a snapshot of everything the presentation layer renders
type ConsultationView struct {
	ID                  string                 `json:"id"`
	TemplateID          string                 `json:"template_id"`
	TemplateName        string                 `json:"template_name"`
	SessionID           *SessionID             `json:"session_id,omitempty"`
	State               ConsultationState      `json:"state"`
	Messages            []Message              `json:"messages"`
	Progress            CanonicalProgress      `json:"progress"`
	StructuredInput     StructuredInput        `json:"structured_input"`
	ProvidedInformation ProvidedInformation    `json:"provided_information"`
	StageCompletion     *StageCompletionStatus `json:"stage_completion,omitempty"`
	Guidance            []GuidanceItem         `json:"guidance"`
	Completed           bool                   `json:"completed"`
	Summary             *ConsultationSummary   `json:"summary,omitempty"`
}
