package entity

// Template describes a guided consultation. Stage order defines the 1-indexed
// stage numbering, stage ids are the join key against server progress.
type Template struct {
	ID                  string   `json:"id" yaml:"id"`
	Name                string   `json:"name" yaml:"name"`
	Description         string   `json:"description" yaml:"description"`
	Domain              string   `json:"domain" yaml:"domain"`
	Version             string   `json:"version,omitempty" yaml:"version"`
	Tags                []string `json:"tags" yaml:"tags"`
	InitialSystemPrompt string   `json:"initial_system_prompt,omitempty" yaml:"initial_system_prompt"`
	Stages              []Stage  `json:"stages" yaml:"stages"`
	IsPublic            bool     `json:"is_public" yaml:"is_public"`
}

// Stage is one step of a template
type Stage struct {
	ID                 string           `json:"id" yaml:"id"`
	Name               string           `json:"name" yaml:"name"`
	Description        string           `json:"description" yaml:"description"`
	StageType          string           `json:"stage_type" yaml:"stage_type"`
	PromptTemplate     string           `json:"prompt_template,omitempty" yaml:"prompt_template"`
	SystemInstructions string           `json:"system_instructions,omitempty" yaml:"system_instructions"`
	ExpectedOutputs    []ExpectedOutput `json:"expected_outputs" yaml:"expected_outputs"`
	UIComponents       *UIComponents    `json:"ui_components,omitempty" yaml:"ui_components"`
}

// ExpectedOutput is descriptive only, it drives the stage guidance view
type ExpectedOutput struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	DataType    string `json:"data_type" yaml:"data_type"`
	Required    bool   `json:"required" yaml:"required"`
}

// UIComponents holds optional presentation hints for a stage
type UIComponents struct {
	StructuredInput *StructuredInputDescriptor `json:"structured_input,omitempty" yaml:"structured_input"`
}

// StructuredInputDescriptor describes a form attached to a stage
type StructuredInputDescriptor struct {
	Prompt string                 `json:"prompt,omitempty" yaml:"prompt"`
	Fields []StructuredInputField `json:"fields" yaml:"fields"`
}

// TotalStages returns the stage count, never less than 1
func (t *Template) TotalStages() int {
	if t == nil || len(t.Stages) == 0 {
		return 1
	}
	return len(t.Stages)
}

// StageByID returns the stage and its 1-indexed number
func (t *Template) StageByID(id string) (*Stage, int, bool) {
	if t == nil || id == "" {
		return nil, 0, false
	}
	for i := range t.Stages {
		if t.Stages[i].ID == id {
			return &t.Stages[i], i + 1, true
		}
	}
	return nil, 0, false
}
