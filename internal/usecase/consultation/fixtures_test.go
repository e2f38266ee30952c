package consultation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
)

func slaTemplate() *entity.Template {
	return &entity.Template{
		ID:     "tpl-sla",
		Name:   "SLA basics",
		Domain: "it",
		Stages: []entity.Stage{
			{
				ID:   "s1",
				Name: "Intro",
				ExpectedOutputs: []entity.ExpectedOutput{
					{Name: "service_name", Required: true},
					{Name: "owner", Required: false},
				},
			},
			{ID: "s2", Name: "Metrics", Description: "Availability and latency"},
			{ID: "s3", Name: "Support"},
		},
	}
}

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func sessionID(s string) *entity.SessionID {
	sid := entity.SessionID(s)
	return &sid
}

type fakeConnector struct {
	mu sync.Mutex

	startResp *entity.ConsultationResponse
	startErr  error

	replies  []*entity.ConsultationResponse
	sendErr  error
	requests []entity.ChatRequest
	block    chan struct{}

	completion    *entity.StageCompletionStatus
	completionErr error
	checks        int

	forceResp *entity.ForceNextStageResponse
	forceErr  error

	extracted *entity.ExtractedTemplate
}

func (f *fakeConnector) StartConsultation(ctx context.Context, templateID string) (*entity.ConsultationResponse, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.startResp, nil
}

func (f *fakeConnector) SendMessage(ctx context.Context, sid entity.SessionID, req *entity.ChatRequest) (*entity.ConsultationResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if len(f.replies) == 0 {
		return &entity.ConsultationResponse{}, nil
	}
	resp := f.replies[0]
	f.replies = f.replies[1:]
	return resp, nil
}

func (f *fakeConnector) CheckStageCompletion(ctx context.Context, sid entity.SessionID) (*entity.StageCompletionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.completionErr != nil {
		return nil, f.completionErr
	}
	if f.completion == nil {
		return &entity.StageCompletionStatus{}, nil
	}
	c := *f.completion
	return &c, nil
}

func (f *fakeConnector) ForceNextStage(ctx context.Context, sid entity.SessionID) (*entity.ForceNextStageResponse, error) {
	if f.forceErr != nil {
		return nil, f.forceErr
	}
	return f.forceResp, nil
}

func (f *fakeConnector) ExtractTemplate(ctx context.Context, sid entity.SessionID) (*entity.ExtractedTemplate, error) {
	return f.extracted, nil
}

func (f *fakeConnector) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

func (f *fakeConnector) lastRequest() entity.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []entity.ConsultationEvent
}

func (s *recordingSink) Publish(ctx context.Context, event entity.ConsultationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) ofType(t entity.EventType) []entity.ConsultationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.ConsultationEvent
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) notices() []string {
	var out []string
	for _, e := range s.ofType(entity.EventTypeNotice) {
		out = append(out, e.Notice.Text)
	}
	return out
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}
