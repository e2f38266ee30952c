package consultation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// turnsPerStage is how many free-text answers the mock needs before it
// moves on. A structured submission always completes the stage.
const turnsPerStage = 2

type TemplateSource interface {
	GetTemplate(ctx context.Context, templateID string) (*entity.Template, error)
}

type mockSession struct {
	tpl       *entity.Template
	stage     int // 0-indexed, len(Stages) once finished
	turns     int
	completed []string
	extracted map[string]any
}

// MockConnector emulates the Consultation API in memory. It walks the
// template stage by stage and answers in the legacy progress format.
type MockConnector struct {
	templates TemplateSource
	logger    *zap.Logger

	nextID   atomic.Int64
	mu       sync.Mutex
	sessions map[entity.SessionID]*mockSession
}

func NewMockConnector(templates TemplateSource, logger *zap.Logger) *MockConnector {
	return &MockConnector{
		templates: templates,
		logger:    logger,
		sessions:  map[entity.SessionID]*mockSession{},
	}
}

func (m *MockConnector) StartConsultation(ctx context.Context, templateID string) (*entity.ConsultationResponse, error) {
	tpl, err := m.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("mock start consultation: %w", err)
	}

	sid := entity.SessionID(strconv.FormatInt(m.nextID.Add(1), 10))

	m.mu.Lock()
	s := &mockSession{tpl: tpl, extracted: map[string]any{}}
	m.sessions[sid] = s
	resp := m.responseLocked(s, fmt.Sprintf("Welcome to the %q consultation. %s", tpl.Name, stagePrompt(s)))
	m.mu.Unlock()

	resp.SessionID = &sid

	ctxzap.Info(ctx, "[MOCK] consultation started",
		zap.String("session_id", sid.String()),
		zap.String("template_id", templateID),
	)

	return resp, nil
}

func (m *MockConnector) SendMessage(ctx context.Context, sessionID entity.SessionID, req *entity.ChatRequest) (*entity.ConsultationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("mock session %s: %w", sessionID, entity.ErrNoSession)
	}

	ctxzap.Info(ctx, "[MOCK] message received",
		zap.String("session_id", sessionID.String()),
		zap.Bool("structured", req.IsStructured),
	)

	if s.stage >= len(s.tpl.Stages) {
		return m.responseLocked(s, "The consultation is complete."), nil
	}

	if req.IsStructured {
		var data map[string]any
		if err := json.Unmarshal([]byte(req.Content), &data); err == nil {
			for k, v := range data {
				s.extracted[k] = v
			}
		}
		s.turns = turnsPerStage
	} else {
		s.turns++
		if stage := s.tpl.Stages[s.stage]; len(stage.ExpectedOutputs) > 0 {
			idx := min(s.turns-1, len(stage.ExpectedOutputs)-1)
			s.extracted[stage.ExpectedOutputs[idx].Name] = req.Content
		}
	}

	if s.turns < turnsPerStage {
		return m.responseLocked(s, "Thanks. Could you tell me a bit more?"), nil
	}

	m.advanceLocked(s)
	if s.stage >= len(s.tpl.Stages) {
		return m.responseLocked(s, "Thank you, we have covered every stage."), nil
	}
	return m.responseLocked(s, "Got it. "+stagePrompt(s)), nil
}

func (m *MockConnector) CheckStageCompletion(ctx context.Context, sessionID entity.SessionID) (*entity.StageCompletionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("mock session %s: %w", sessionID, entity.ErrNoSession)
	}

	extracted := make(map[string]any, len(s.extracted))
	for k, v := range s.extracted {
		extracted[k] = v
	}

	return &entity.StageCompletionStatus{
		IsComplete:    s.turns >= turnsPerStage-1,
		Confidence:    math.Min(1, float64(s.turns)/turnsPerStage),
		ExtractedData: extracted,
	}, nil
}

func (m *MockConnector) ForceNextStage(ctx context.Context, sessionID entity.SessionID) (*entity.ForceNextStageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("mock session %s: %w", sessionID, entity.ErrNoSession)
	}
	if s.stage >= len(s.tpl.Stages)-1 {
		return nil, fmt.Errorf("mock force next stage: already at the last stage")
	}

	m.advanceLocked(s)

	ctxzap.Info(ctx, "[MOCK] stage forced", zap.Int("stage", s.stage+1))

	return &entity.ForceNextStageResponse{
		CurrentStage:       s.tpl.Stages[s.stage].ID,
		CurrentStageIndex:  s.stage + 1,
		ProgressPercentage: percent(s),
		CompletedStages:    append([]string{}, s.completed...),
	}, nil
}

func (m *MockConnector) ExtractTemplate(ctx context.Context, sessionID entity.SessionID) (*entity.ExtractedTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("mock session %s: %w", sessionID, entity.ErrNoSession)
	}

	extracted := &entity.ExtractedTemplate{
		Name:        s.tpl.Name + " (derived)",
		Description: s.tpl.Description,
		Domain:      s.tpl.Domain,
		Tags:        append([]string{"derived"}, s.tpl.Tags...),
	}
	for _, st := range s.tpl.Stages {
		extracted.Stages = append(extracted.Stages, entity.ExtractedStage{
			Name:            st.Name,
			Description:     st.Description,
			StageType:       st.StageType,
			PromptTemplate:  st.PromptTemplate,
			ExpectedOutputs: append([]entity.ExpectedOutput{}, st.ExpectedOutputs...),
		})
	}

	return extracted, nil
}

func (m *MockConnector) advanceLocked(s *mockSession) {
	if s.stage < len(s.tpl.Stages) {
		s.completed = append(s.completed, s.tpl.Stages[s.stage].ID)
	}
	s.stage++
	s.turns = 0
}

func (m *MockConnector) responseLocked(s *mockSession, text string) *entity.ConsultationResponse {
	message, _ := json.Marshal(text)

	number := s.stage + 1
	stageID := ""
	var ui *entity.UIComponents
	if s.stage < len(s.tpl.Stages) {
		stageID = s.tpl.Stages[s.stage].ID
		ui = s.tpl.Stages[s.stage].UIComponents
	} else if len(s.tpl.Stages) > 0 {
		stageID = s.tpl.Stages[len(s.tpl.Stages)-1].ID
	}

	progress := map[string]any{
		"stage_id":            stageID,
		"current_stage":       number,
		"completed_stages":    append([]string{}, s.completed...),
		"progress_percentage": percent(s),
		"stage_completed":     s.turns == 0 && s.stage > 0,
	}
	if ui != nil && ui.StructuredInput != nil {
		progress["ui_components"] = ui
	}
	rawProgress, _ := json.Marshal(progress)

	return &entity.ConsultationResponse{
		Message:          message,
		TemplateProgress: rawProgress,
	}
}

func percent(s *mockSession) float64 {
	if len(s.tpl.Stages) == 0 {
		return 100
	}
	return math.Round(float64(len(s.completed)) / float64(len(s.tpl.Stages)) * 100)
}

func stagePrompt(s *mockSession) string {
	if s.stage >= len(s.tpl.Stages) {
		return ""
	}
	st := s.tpl.Stages[s.stage]
	if st.PromptTemplate != "" {
		return st.PromptTemplate
	}
	return fmt.Sprintf("Let's talk about %s.", st.Name)
}
