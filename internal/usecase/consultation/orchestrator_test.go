package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startResponse(progress string) *entity.ConsultationResponse {
	return &entity.ConsultationResponse{
		Message:          raw(`"Welcome! Let's define your SLA."`),
		SessionID:        sessionID("42"),
		TemplateProgress: raw(progress),
	}
}

func newTestOrchestrator(t *testing.T, conn *fakeConnector, cfg OrchestratorConfig) (*Orchestrator, *recordingSink) {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	}
	sink := &recordingSink{}
	o := NewOrchestrator("c-1", slaTemplate(), conn, nil, sink, cfg, nil)
	t.Cleanup(o.Close)
	return o, sink
}

func startedOrchestrator(t *testing.T, conn *fakeConnector, cfg OrchestratorConfig) (*Orchestrator, *recordingSink) {
	t.Helper()
	if conn.startResp == nil {
		conn.startResp = startResponse(`{"stage_id":"s1","current_stage":1,"completed_stages":[]}`)
	}
	o, sink := newTestOrchestrator(t, conn, cfg)
	require.NoError(t, o.Start(context.Background()))
	return o, sink
}

func TestOrchestrator_Start(t *testing.T) {
	conn := &fakeConnector{}
	o, sink := startedOrchestrator(t, conn, OrchestratorConfig{})

	view := o.View()
	assert.Equal(t, entity.ConsultationStateAwaitingInput, view.State)
	require.NotNil(t, view.SessionID)
	assert.Equal(t, entity.SessionID("42"), *view.SessionID)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, entity.RoleAssistant, view.Messages[0].Role)
	assert.Equal(t, "s1", view.Progress.StageID)
	assert.Equal(t, "Intro", view.Progress.StageName)
	assert.False(t, view.StructuredInput.Active())
	assert.Len(t, view.Guidance, 2)
	assert.Empty(t, sink.ofType(entity.EventTypeTransition))

	require.Eventually(t, func() bool { return conn.checkCount() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestOrchestrator_StartWithoutProgressUsesFirstStage(t *testing.T) {
	conn := &fakeConnector{startResp: &entity.ConsultationResponse{SessionID: sessionID("7")}}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{})

	view := o.View()
	assert.Equal(t, "s1", view.Progress.StageID)
	assert.Equal(t, 1, view.Progress.CurrentStageNumber)
	assert.Empty(t, view.Messages)
}

func TestOrchestrator_StartFailure(t *testing.T) {
	conn := &fakeConnector{startErr: errors.New("connection refused")}
	o, _ := newTestOrchestrator(t, conn, OrchestratorConfig{})

	err := o.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, entity.ConsultationStateLoading, o.State())
	assert.ErrorIs(t, o.SendFreeText(context.Background(), "hi"), entity.ErrRequestInFlight)
}

func TestOrchestrator_SendFreeTextWithTransition(t *testing.T) {
	conn := &fakeConnector{
		replies: []*entity.ConsultationResponse{{
			Message:          raw(`{"content":"Great, now the metrics."}`),
			TemplateProgress: raw(`{"stage_id":"s2","current_stage":2,"completed_stages":["s1"]}`),
		}},
	}
	o, sink := startedOrchestrator(t, conn, OrchestratorConfig{})

	require.NoError(t, o.SendFreeText(context.Background(), "Our service is the payments API"))

	view := o.View()
	require.Len(t, view.Messages, 4)
	assert.Equal(t, entity.RoleUser, view.Messages[1].Role)
	assert.Equal(t, "s1", view.Messages[1].StageID)
	assert.Equal(t, "Great, now the metrics.", view.Messages[2].Content)
	assert.Equal(t, entity.RoleSystem, view.Messages[3].Role)
	assert.Equal(t, "✅ Completed: \"Intro\"\n\n▶️ Starting: \"Metrics\"", view.Messages[3].Content)

	assert.Equal(t, entity.CanonicalProgress{
		CurrentStageNumber: 2,
		TotalStages:        3,
		StageID:            "s2",
		StageName:          "Metrics",
		StageDescription:   "Availability and latency",
		ProgressPercentage: 67,
		CompletedStageIDs:  []string{"s1"},
	}, view.Progress)

	transitions := sink.ofType(entity.EventTypeTransition)
	require.Len(t, transitions, 1)
	assert.Equal(t, 1, transitions[0].Transition.FromStageNumber)
	assert.Equal(t, "c-1", transitions[0].ConsultationID)
	assert.Contains(t, sink.notices(), "Moving to stage 2: Metrics")

	assert.Equal(t, entity.ChatRequest{Content: "Our service is the payments API", Role: entity.RoleUser}, conn.lastRequest())
	assert.Equal(t, entity.ConsultationStateAwaitingInput, view.State)
}

func TestOrchestrator_SendFailureIsRecoverable(t *testing.T) {
	conn := &fakeConnector{sendErr: errors.New("boom")}
	o, sink := startedOrchestrator(t, conn, OrchestratorConfig{})

	err := o.SendFreeText(context.Background(), "hello")
	require.Error(t, err)

	view := o.View()
	assert.Equal(t, entity.ConsultationStateAwaitingInput, view.State)
	last := view.Messages[len(view.Messages)-1]
	assert.Equal(t, entity.RoleSystem, last.Role)
	assert.Equal(t, "There was an error communicating with the server. Please try again.", last.Content)
	assert.Len(t, sink.ofType(entity.EventTypeError), 1)

	conn.mu.Lock()
	conn.sendErr = nil
	conn.mu.Unlock()
	assert.NoError(t, o.SendFreeText(context.Background(), "hello again"))
}

func TestOrchestrator_RejectsConcurrentPrimaryRequests(t *testing.T) {
	conn := &fakeConnector{block: make(chan struct{})}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{})

	done := make(chan error, 1)
	go func() { done <- o.SendFreeText(context.Background(), "first") }()

	require.Eventually(t, func() bool {
		return o.State() == entity.ConsultationStateWaitingForResponse
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, o.SendFreeText(context.Background(), "second"), entity.ErrRequestInFlight)
	assert.ErrorIs(t, o.SubmitStructured(context.Background(), map[string]any{"a": 1}), entity.ErrRequestInFlight)
	assert.ErrorIs(t, o.ForceNextStage(context.Background()), entity.ErrRequestInFlight)

	close(conn.block)
	require.NoError(t, <-done)
	assert.Equal(t, entity.ConsultationStateAwaitingInput, o.State())
}

func TestOrchestrator_PrimaryRequestTimeout(t *testing.T) {
	conn := &fakeConnector{block: make(chan struct{})}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{RequestTimeout: 20 * time.Millisecond})

	err := o.SendFreeText(context.Background(), "anyone there?")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	view := o.View()
	assert.Equal(t, entity.ConsultationStateAwaitingInput, view.State)
	assert.Equal(t, msgSendFailed, view.Messages[len(view.Messages)-1].Content)
}

func TestOrchestrator_NoReplyFallback(t *testing.T) {
	conn := &fakeConnector{replies: []*entity.ConsultationResponse{
		{TemplateProgress: raw(`{"stage_id":"s1","current_stage":1}`)},
		{Message: raw(`""`)},
	}}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{})

	require.NoError(t, o.SendFreeText(context.Background(), "one"))
	require.NoError(t, o.SubmitStructured(context.Background(), map[string]any{"owner": "ops"}))

	msgs := o.View().Messages
	assert.Equal(t, "The system responded but did not provide a message.", msgs[2].Content)
	assert.Equal(t, entity.RoleSystem, msgs[2].Role)
	assert.Equal(t, "The system processed your input but did not provide a response message.", msgs[4].Content)
}

func TestOrchestrator_SubmitStructured(t *testing.T) {
	conn := &fakeConnector{
		startResp: startResponse(`{"stage_id":"s1","current_stage":1,"ui_components":{"structured_input":{"fields":[{"id":"service_name","label":"Service"}]}}}`),
		replies: []*entity.ConsultationResponse{{
			Message:          raw(`"Thanks"`),
			TemplateProgress: raw(`{"stage_id":"s1","current_stage":1}`),
		}},
	}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{})
	require.True(t, o.View().StructuredInput.Active())

	data := map[string]any{"service_name": "Payments API", "support_hours": "24/7"}
	require.NoError(t, o.SubmitStructured(context.Background(), data))

	req := conn.lastRequest()
	assert.True(t, req.IsStructured)
	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Content), &sent))
	assert.Equal(t, data, sent)

	view := o.View()
	assert.Equal(t, "### Structured Input:\n**Service Name**: Payments API\n**Support Hours**: 24/7\n", view.Messages[1].Content)
	assert.False(t, view.StructuredInput.Active())
	require.Len(t, view.Summary.Outputs, 1)
	assert.Equal(t, "Intro", view.Summary.Outputs[0].StageName)
	assert.Equal(t, 1, view.Summary.Outputs[0].StageNumber)
}

func TestOrchestrator_SubmitStructuredUnknownStageKeepsChatFlow(t *testing.T) {
	conn := &fakeConnector{startResp: startResponse(`{"next_stage":{"name":"Metrics"},"completed_stage_index":0}`)}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{})

	require.NoError(t, o.SubmitStructured(context.Background(), map[string]any{"a": 1}))

	view := o.View()
	assert.Equal(t, "stage_1", view.Progress.StageID)
	assert.Empty(t, view.Summary.Outputs)
	assert.Len(t, view.Messages, 3)
}

func TestOrchestrator_CompletionAndSummary(t *testing.T) {
	conn := &fakeConnector{replies: []*entity.ConsultationResponse{
		{
			Message:          raw(`"Metrics next"`),
			TemplateProgress: raw(`{"stage_id":"s2","current_stage":2,"completed_stages":["s1"]}`),
		},
		{
			Message:          raw(`"All done"`),
			TemplateProgress: raw(`{"stage_id":"s2","current_stage":2,"progress_percentage":100}`),
		},
	}}
	o, sink := startedOrchestrator(t, conn, OrchestratorConfig{})
	ctx := context.Background()

	require.NoError(t, o.SubmitStructured(ctx, map[string]any{"contact": "ops@example.com"}))
	require.NoError(t, o.SubmitStructured(ctx, map[string]any{"contact": "noc@example.com", "uptime": "99.9"}))

	view := o.View()
	assert.Equal(t, entity.ConsultationStateCompleted, view.State)
	assert.True(t, view.Completed)

	summary, err := o.Summary()
	require.NoError(t, err)
	assert.True(t, summary.Completed)
	require.NotNil(t, summary.CompletedAt)
	assert.Len(t, summary.Outputs, 2)
	assert.Equal(t, map[string]any{
		"contact": []any{"ops@example.com", "noc@example.com"},
		"uptime":  "99.9",
	}, summary.Summary)

	assert.Len(t, sink.ofType(entity.EventTypeCompleted), 1)
	assert.Contains(t, sink.notices(), "All stages have been completed. You can now export your results.")
	assert.ErrorIs(t, o.SendFreeText(ctx, "more?"), entity.ErrConsultationCompleted)
}

func TestOrchestrator_SummaryNotReady(t *testing.T) {
	o, _ := startedOrchestrator(t, &fakeConnector{}, OrchestratorConfig{})

	_, err := o.Summary()
	assert.ErrorIs(t, err, entity.ErrConsultationNotReady)
}

func TestOrchestrator_FinalizeIsIdempotent(t *testing.T) {
	o, sink := startedOrchestrator(t, &fakeConnector{}, OrchestratorConfig{})

	first := o.Finalize(context.Background())
	second := o.Finalize(context.Background())

	require.NotNil(t, first.CompletedAt)
	require.NotNil(t, second.CompletedAt)
	assert.Equal(t, *first.CompletedAt, *second.CompletedAt)
	assert.Len(t, sink.ofType(entity.EventTypeCompleted), 1)
}

func TestOrchestrator_ForceNextStage(t *testing.T) {
	conn := &fakeConnector{forceResp: &entity.ForceNextStageResponse{
		CurrentStage:       "s2",
		CurrentStageIndex:  2,
		ProgressPercentage: 66.6,
		CompletedStages:    []string{"s1"},
	}}
	o, sink := startedOrchestrator(t, conn, OrchestratorConfig{})

	require.NoError(t, o.ForceNextStage(context.Background()))

	view := o.View()
	assert.Equal(t, "s2", view.Progress.StageID)
	assert.Equal(t, "Metrics", view.Progress.StageName)
	assert.Equal(t, 2, view.Progress.CurrentStageNumber)
	assert.InDelta(t, 66.6, view.Progress.ProgressPercentage, 1e-9)
	assert.Equal(t, 67, view.Progress.Percent())
	assert.Empty(t, sink.ofType(entity.EventTypeTransition))
	assert.Contains(t, sink.notices(), "Successfully advanced to the next stage")
	assert.Equal(t, entity.ConsultationStateAwaitingInput, view.State)
}

func TestOrchestrator_ForceNextStageUnknownStage(t *testing.T) {
	conn := &fakeConnector{forceResp: &entity.ForceNextStageResponse{CurrentStage: "x", CurrentStageIndex: 2}}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{})

	require.NoError(t, o.ForceNextStage(context.Background()))
	assert.Equal(t, "Next Stage", o.View().Progress.StageName)
}

func TestOrchestrator_ForceNextStageFailure(t *testing.T) {
	conn := &fakeConnector{forceErr: errors.New("stage locked")}
	o, sink := startedOrchestrator(t, conn, OrchestratorConfig{})

	require.Error(t, o.ForceNextStage(context.Background()))
	assert.Contains(t, sink.notices(), "Failed to advance to the next stage: stage locked")
	assert.Equal(t, entity.ConsultationStateAwaitingInput, o.State())
	assert.Equal(t, "s1", o.View().Progress.StageID)
}

func TestOrchestrator_StageCompletionPolling(t *testing.T) {
	conn := &fakeConnector{
		completion: &entity.StageCompletionStatus{
			IsComplete:    true,
			Confidence:    85,
			ExtractedData: map[string]any{"service_name": "Payments"},
		},
		replies: []*entity.ConsultationResponse{{
			Message:          raw(`"Metrics now"`),
			TemplateProgress: raw(`{"stage_id":"s2","current_stage":2}`),
		}},
	}
	o, sink := startedOrchestrator(t, conn, OrchestratorConfig{PollInterval: 5 * time.Millisecond})

	require.Eventually(t, func() bool {
		return o.View().ProvidedInformation["service_name"]
	}, time.Second, 5*time.Millisecond)

	view := o.View()
	require.NotNil(t, view.StageCompletion)
	assert.Equal(t, 85.0, view.StageCompletion.Confidence)
	assert.Equal(t, []string(nil), MissingRequired(view.Guidance))

	require.Eventually(t, func() bool { return conn.checkCount() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, countString(sink.notices(), "Stage requirements met! You can proceed to the next stage."))

	conn.mu.Lock()
	conn.completion = &entity.StageCompletionStatus{}
	conn.mu.Unlock()

	require.NoError(t, o.SendFreeText(context.Background(), "next"))
	require.Eventually(t, func() bool {
		v := o.View()
		return v.Progress.StageID == "s2" && len(v.ProvidedInformation) == 0 && v.StageCompletion != nil
	}, time.Second, 5*time.Millisecond)
}

func TestOrchestrator_PollFailuresAreSilent(t *testing.T) {
	conn := &fakeConnector{completionErr: errors.New("inference down")}
	o, sink := startedOrchestrator(t, conn, OrchestratorConfig{PollInterval: 5 * time.Millisecond})

	require.Eventually(t, func() bool { return conn.checkCount() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.ofType(entity.EventTypeError))
	assert.Equal(t, entity.ConsultationStateAwaitingInput, o.State())
}

func TestOrchestrator_CloseStopsPolling(t *testing.T) {
	conn := &fakeConnector{}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{PollInterval: 5 * time.Millisecond})

	require.Eventually(t, func() bool { return conn.checkCount() >= 2 }, time.Second, 5*time.Millisecond)
	o.Close()

	after := conn.checkCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, conn.checkCount())
	assert.ErrorIs(t, o.SendFreeText(context.Background(), "hi"), entity.ErrConsultationClosed)
}

func TestOrchestrator_ExtractTemplate(t *testing.T) {
	conn := &fakeConnector{extracted: &entity.ExtractedTemplate{Name: "Payments SLA"}}
	o, _ := startedOrchestrator(t, conn, OrchestratorConfig{})

	got, err := o.ExtractTemplate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Payments SLA", got.Name)
}

func countString(items []string, s string) int {
	n := 0
	for _, item := range items {
		if item == s {
			n++
		}
	}
	return n
}
