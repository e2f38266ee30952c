package entity

import "math"

// CanonicalProgress is the protocol-agnostic progress record derived from
// every server response.
type CanonicalProgress struct {
	CurrentStageNumber int      `json:"current_stage_number"`
	TotalStages        int      `json:"total_stages"`
	StageID            string   `json:"stage_id"`
	StageName          string   `json:"stage_name"`
	StageDescription   string   `json:"stage_description"`
	ProgressPercentage float64  `json:"progress_percentage"`
	CompletedStageIDs  []string `json:"completed_stage_ids"`
	StageJustCompleted bool     `json:"stage_just_completed"`
}

// Percent is the percentage rounded for display
func (p CanonicalProgress) Percent() int {
	return int(math.Round(p.ProgressPercentage))
}

// Clone returns a copy that does not share the completed ids slice
func (p CanonicalProgress) Clone() CanonicalProgress {
	out := p
	if p.CompletedStageIDs != nil {
		out.CompletedStageIDs = append([]string(nil), p.CompletedStageIDs...)
	}
	return out
}

// TransitionEvent is emitted when the canonical stage id changes
type TransitionEvent struct {
	FromStageNumber int    `json:"from_stage_number"`
	ToStageNumber   int    `json:"to_stage_number"`
	FromStageName   string `json:"from_stage_name"`
	ToStageName     string `json:"to_stage_name"`
	FromStageID     string `json:"from_stage_id"`
	ToStageID       string `json:"to_stage_id"`
}

// ProvidedInformation maps expected output name to whether it has been supplied
type ProvidedInformation map[string]bool

// StageCompletionStatus is the advisory answer of the completion-inference service
type StageCompletionStatus struct {
	IsComplete    bool           `json:"is_complete"`
	Confidence    float64        `json:"confidence"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
}

// GuidanceItem reports whether an expected output of the current stage was provided
type GuidanceItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Provided    bool   `json:"provided"`
}
