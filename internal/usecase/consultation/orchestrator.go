package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// OrchestratorConfig tunes a single consultation
type OrchestratorConfig struct {
	RequestTimeout time.Duration
	PollInterval   time.Duration
	Now            func() time.Time
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Orchestrator drives one template consultation:
// Loading -> AwaitingInput <-> WaitingForResponse -> Completed.
// Events are published after the state lock is released.
type Orchestrator struct {
	id        string
	tpl       *entity.Template
	connector ConsultationConnector
	validator StructuredInputValidator
	sink      EventSink
	cfg       OrchestratorConfig

	// baseCtx outlives requests, it scopes the completion poll
	baseCtx    context.Context
	baseCancel context.CancelFunc
	pollWG     sync.WaitGroup

	mu                 sync.Mutex
	state              entity.ConsultationState
	closed             bool
	sessionID          *entity.SessionID
	messages           []entity.Message
	progress           entity.CanonicalProgress
	input              entity.StructuredInput
	provided           entity.ProvidedInformation
	stageCompletion    *entity.StageCompletionStatus
	stageReadyNotified bool
	pollCancel         context.CancelFunc
	accumulator        *Accumulator
	summary            entity.ConsultationSummary
}

func NewOrchestrator(
	id string,
	tpl *entity.Template,
	connector ConsultationConnector,
	validator StructuredInputValidator,
	sink EventSink,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseCtx, cancel := context.WithCancel(ctxzap.ToContext(context.Background(), logger.With(
		zap.String("consultation_id", id),
		zap.String("template_id", tpl.ID),
	)))

	return &Orchestrator{
		id:          id,
		tpl:         tpl,
		connector:   connector,
		validator:   validator,
		sink:        sink,
		cfg:         cfg,
		baseCtx:     baseCtx,
		baseCancel:  cancel,
		state:       entity.ConsultationStateLoading,
		messages:    []entity.Message{},
		provided:    entity.ProvidedInformation{},
		input:       entity.StructuredInput{Fields: []entity.StructuredInputField{}},
		accumulator: NewAccumulator(cfg.Now),
		summary: entity.ConsultationSummary{
			ConsultationID: id,
			TemplateID:     tpl.ID,
			TemplateName:   tpl.Name,
			Outputs:        []entity.StructuredOutput{},
			StartTime:      cfg.Now(),
		},
	}
}

func (o *Orchestrator) ID() string {
	return o.id
}

func (o *Orchestrator) Template() *entity.Template {
	return o.tpl
}

// Start opens the backend session and processes the first turn
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return entity.ErrConsultationClosed
	}
	if o.state != entity.ConsultationStateLoading || o.sessionID != nil {
		o.mu.Unlock()
		return entity.ErrRequestInFlight
	}
	o.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	resp, err := o.connector.StartConsultation(reqCtx, o.tpl.ID)
	if err != nil {
		return fmt.Errorf("start consultation: %w", err)
	}

	var events []entity.ConsultationEvent

	o.mu.Lock()
	if resp.SessionID != nil {
		sid := *resp.SessionID
		o.sessionID = &sid
		o.summary.SessionID = &sid
	}

	if text, ok := replyText(resp.Message); ok {
		msg := o.appendMessageLocked(text, entity.RoleAssistant)
		events = append(events, o.messageEvent(msg))
	}

	var payload ProgressPayload
	if hasValue(resp.TemplateProgress) {
		payload = DecodeProgressPayload(resp.TemplateProgress)
	} else {
		ctxzap.Warn(ctx, "start response has no template progress, using first stage")
		payload = DefaultProgressPayload(o.tpl)
	}
	events = append(events, o.applyProgressLocked(payload)...)
	o.input = ReconcileStructuredInput(ctx, resp)
	o.state = entity.ConsultationStateAwaitingInput
	events = append(events, o.checkCompletionLocked()...)
	o.mu.Unlock()

	o.publish(ctx, events)

	ctxzap.Info(ctx, "consultation started",
		zap.String("consultation_id", o.id),
		zap.Stringp("session_id", (*string)(o.sessionIDCopy())),
	)

	return nil
}

// SendFreeText sends a free-text turn
func (o *Orchestrator) SendFreeText(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content", entity.ErrMissingField)
	}

	o.mu.Lock()
	sid, err := o.beginPrimaryLocked()
	if err != nil {
		o.mu.Unlock()
		return err
	}
	userMsg := o.appendMessageLocked(content, entity.RoleUser)
	o.mu.Unlock()

	o.publish(ctx, []entity.ConsultationEvent{o.messageEvent(userMsg)})

	reqCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	resp, err := o.connector.SendMessage(reqCtx, sid, &entity.ChatRequest{
		Content: content,
		Role:    entity.RoleUser,
	})
	if err != nil {
		o.failPrimary(ctx, msgSendFailed, err)
		return fmt.Errorf("send message: %w", err)
	}

	o.completePrimary(ctx, resp, msgNoReply)
	return nil
}

// SubmitStructured sends a structured-form turn and records it against the
// current stage
func (o *Orchestrator) SubmitStructured(ctx context.Context, data map[string]any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: data", entity.ErrMissingField)
	}

	o.mu.Lock()
	if o.validator != nil {
		if err := o.validator.ValidateStructuredInput(o.input.Fields, data); err != nil {
			o.mu.Unlock()
			return err
		}
	}
	sid, err := o.beginPrimaryLocked()
	if err != nil {
		o.mu.Unlock()
		return err
	}
	userMsg := o.appendMessageLocked(formatStructuredData(data), entity.RoleUser)
	if o.progress.StageID != "" {
		o.accumulator.Record(ctx, o.tpl, o.progress.StageID, data)
	}
	o.mu.Unlock()

	o.publish(ctx, []entity.ConsultationEvent{o.messageEvent(userMsg)})

	content, err := json.Marshal(data)
	if err != nil {
		o.failPrimary(ctx, msgStructuredFailed, err)
		return fmt.Errorf("marshal structured input: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	resp, err := o.connector.SendMessage(reqCtx, sid, &entity.ChatRequest{
		Content:      string(content),
		Role:         entity.RoleUser,
		IsStructured: true,
	})
	if err != nil {
		o.failPrimary(ctx, msgStructuredFailed, err)
		return fmt.Errorf("submit structured input: %w", err)
	}

	o.completePrimary(ctx, resp, msgNoStructuredReply)
	return nil
}

// ForceNextStage asks the backend to advance and overwrites progress with
// its answer. No transition comparison is made.
func (o *Orchestrator) ForceNextStage(ctx context.Context) error {
	o.mu.Lock()
	sid, err := o.beginPrimaryLocked()
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	resp, err := o.connector.ForceNextStage(reqCtx, sid)
	if err != nil {
		o.mu.Lock()
		o.endPrimaryLocked()
		o.mu.Unlock()

		o.publish(ctx, []entity.ConsultationEvent{
			o.noticeEvent(entity.NoticeLevelError, msgForceFailed+err.Error()),
			o.errorEvent(err),
		})
		return fmt.Errorf("force next stage: %w", err)
	}

	o.mu.Lock()
	o.endPrimaryLocked()

	name, description := defaultForcedStageName, ""
	if stage, _, ok := o.tpl.StageByID(resp.CurrentStage); ok {
		name, description = stage.Name, stage.Description
	}

	prevStageID := o.progress.StageID
	o.progress = entity.CanonicalProgress{
		CurrentStageNumber: atLeastOne(resp.CurrentStageIndex),
		TotalStages:        o.tpl.TotalStages(),
		StageID:            resp.CurrentStage,
		StageName:          name,
		StageDescription:   description,
		ProgressPercentage: clampPercentage(resp.ProgressPercentage),
		CompletedStageIDs:  append([]string{}, resp.CompletedStages...),
	}
	if prevStageID != o.progress.StageID {
		o.resetStageScopeLocked()
		o.restartPollLocked()
	}

	events := []entity.ConsultationEvent{o.noticeEvent(entity.NoticeLevelSuccess, msgForceSucceeded)}
	events = append(events, o.checkCompletionLocked()...)
	o.mu.Unlock()

	o.publish(ctx, events)

	ctxzap.Info(ctx, "stage advanced manually",
		zap.String("stage_id", resp.CurrentStage),
		zap.Int("stage_index", resp.CurrentStageIndex),
	)

	return nil
}

// Finalize freezes the summary. Further calls keep the first completion time.
func (o *Orchestrator) Finalize(ctx context.Context) entity.ConsultationSummary {
	o.mu.Lock()
	events := o.finalizeLocked()
	summary := o.summarySnapshotLocked()
	o.mu.Unlock()

	o.publish(ctx, events)

	return summary
}

// Summary returns the frozen summary of a completed consultation
func (o *Orchestrator) Summary() (entity.ConsultationSummary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.summary.Completed {
		return entity.ConsultationSummary{}, entity.ErrConsultationNotReady
	}
	return o.summarySnapshotLocked(), nil
}

// ExtractTemplate derives a reusable template from the consultation
func (o *Orchestrator) ExtractTemplate(ctx context.Context) (*entity.ExtractedTemplate, error) {
	sid := o.sessionIDCopy()
	if sid == nil {
		return nil, entity.ErrNoSession
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	extracted, err := o.connector.ExtractTemplate(reqCtx, *sid)
	if err != nil {
		o.publish(ctx, []entity.ConsultationEvent{o.errorEvent(err)})
		return nil, fmt.Errorf("extract template: %w", err)
	}

	return extracted, nil
}

// View returns a snapshot for the presentation layer
func (o *Orchestrator) View() entity.ConsultationView {
	o.mu.Lock()
	defer o.mu.Unlock()

	view := entity.ConsultationView{
		ID:                  o.id,
		TemplateID:          o.tpl.ID,
		TemplateName:        o.tpl.Name,
		SessionID:           copySessionID(o.sessionID),
		State:               o.state,
		Messages:            append([]entity.Message{}, o.messages...),
		Progress:            o.progress.Clone(),
		StructuredInput:     copyInput(o.input),
		ProvidedInformation: maps.Clone(o.provided),
		Guidance:            buildGuidance(o.tpl, o.progress.StageID, o.provided),
		Completed:           o.summary.Completed,
	}
	if o.stageCompletion != nil {
		status := *o.stageCompletion
		status.ExtractedData = maps.Clone(status.ExtractedData)
		view.StageCompletion = &status
	}
	summary := o.summarySnapshotLocked()
	view.Summary = &summary

	return view
}

func (o *Orchestrator) State() entity.ConsultationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close stops the completion poll and waits for it to exit
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.pollCancel = nil
	o.mu.Unlock()

	o.baseCancel()
	o.pollWG.Wait()
}

// beginPrimaryLocked gates a primary request
func (o *Orchestrator) beginPrimaryLocked() (entity.SessionID, error) {
	switch {
	case o.closed:
		return "", entity.ErrConsultationClosed
	case o.state == entity.ConsultationStateCompleted:
		return "", entity.ErrConsultationCompleted
	case o.state == entity.ConsultationStateWaitingForResponse, o.state == entity.ConsultationStateLoading:
		return "", entity.ErrRequestInFlight
	case o.sessionID == nil:
		return "", entity.ErrNoSession
	}

	o.state = entity.ConsultationStateWaitingForResponse
	return *o.sessionID, nil
}

func (o *Orchestrator) endPrimaryLocked() {
	if o.state == entity.ConsultationStateWaitingForResponse {
		o.state = entity.ConsultationStateAwaitingInput
	}
}

func (o *Orchestrator) failPrimary(ctx context.Context, text string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		ctxzap.Warn(ctx, "consultation request timed out", zap.Error(err))
	} else {
		ctxzap.Error(ctx, "consultation request failed", zap.Error(err))
	}

	o.mu.Lock()
	o.endPrimaryLocked()
	msg := o.appendMessageLocked(text, entity.RoleSystem)
	o.mu.Unlock()

	o.publish(ctx, []entity.ConsultationEvent{o.messageEvent(msg), o.errorEvent(err)})
}

func (o *Orchestrator) completePrimary(ctx context.Context, resp *entity.ConsultationResponse, fallback string) {
	var events []entity.ConsultationEvent

	o.mu.Lock()
	o.endPrimaryLocked()

	if text, ok := replyText(resp.Message); ok {
		events = append(events, o.messageEvent(o.appendMessageLocked(text, entity.RoleAssistant)))
	} else {
		ctxzap.Warn(ctx, "response has no message")
		events = append(events, o.messageEvent(o.appendMessageLocked(fallback, entity.RoleSystem)))
	}

	if hasValue(resp.TemplateProgress) {
		events = append(events, o.applyProgressLocked(DecodeProgressPayload(resp.TemplateProgress))...)
	} else {
		ctxzap.Warn(ctx, "response has no template progress")
	}

	o.input = ReconcileStructuredInput(ctx, resp)
	events = append(events, o.checkCompletionLocked()...)
	o.mu.Unlock()

	o.publish(ctx, events)
}

// applyProgressLocked replaces canonical progress and handles a stage change
func (o *Orchestrator) applyProgressLocked(payload ProgressPayload) []entity.ConsultationEvent {
	prevStageID, prevStageNumber := o.progress.StageID, o.progress.CurrentStageNumber
	next := Normalize(payload, o.tpl, o.progress)
	o.progress = next

	if prevStageID != next.StageID || o.pollCancel == nil {
		if prevStageID != next.StageID {
			o.resetStageScopeLocked()
		}
		o.restartPollLocked()
	}

	ev := DetectTransition(prevStageID, prevStageNumber, next, o.tpl)
	if ev == nil {
		return nil
	}

	msg := o.appendMessageLocked(transitionMessage(ev), entity.RoleSystem)
	return []entity.ConsultationEvent{
		o.messageEvent(msg),
		{Type: entity.EventTypeTransition, Transition: ev},
		o.noticeEvent(entity.NoticeLevelInfo, transitionNotice(ev)),
	}
}

func (o *Orchestrator) resetStageScopeLocked() {
	o.provided = entity.ProvidedInformation{}
	o.stageCompletion = nil
	o.stageReadyNotified = false
}

func (o *Orchestrator) checkCompletionLocked() []entity.ConsultationEvent {
	if o.summary.Completed || !IsComplete(o.progress) {
		return nil
	}
	return o.finalizeLocked()
}

func (o *Orchestrator) finalizeLocked() []entity.ConsultationEvent {
	if o.summary.Completed {
		return nil
	}

	now := o.cfg.Now()
	outputs := o.accumulator.Outputs()
	o.summary.CompletedAt = &now
	o.summary.Completed = true
	o.summary.Outputs = outputs
	o.summary.Summary = Summarize(outputs)
	o.state = entity.ConsultationStateCompleted
	o.stopPollLocked()

	summary := o.summarySnapshotLocked()
	return []entity.ConsultationEvent{
		o.noticeEvent(entity.NoticeLevelSuccess, msgCompleted),
		{Type: entity.EventTypeCompleted, Summary: &summary},
	}
}

func (o *Orchestrator) summarySnapshotLocked() entity.ConsultationSummary {
	s := o.summary
	s.SessionID = copySessionID(o.summary.SessionID)
	if s.Completed {
		s.Outputs = append([]entity.StructuredOutput{}, o.summary.Outputs...)
		s.Summary = maps.Clone(o.summary.Summary)
	} else {
		s.Outputs = o.accumulator.Outputs()
	}
	return s
}

func (o *Orchestrator) appendMessageLocked(content string, role entity.Role) entity.Message {
	msg := entity.Message{
		Content:   content,
		Role:      role,
		StageID:   o.progress.StageID,
		Timestamp: o.cfg.Now(),
	}
	o.messages = append(o.messages, msg)
	return msg
}

func (o *Orchestrator) sessionIDCopy() *entity.SessionID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copySessionID(o.sessionID)
}

func (o *Orchestrator) publish(ctx context.Context, events []entity.ConsultationEvent) {
	for _, ev := range events {
		ev.ConsultationID = o.id
		if ev.Timestamp.IsZero() {
			ev.Timestamp = o.cfg.Now()
		}
		o.sink.Publish(ctx, ev)
	}
}

func (o *Orchestrator) messageEvent(msg entity.Message) entity.ConsultationEvent {
	return entity.ConsultationEvent{Type: entity.EventTypeMessage, Message: &msg}
}

func (o *Orchestrator) noticeEvent(level entity.NoticeLevel, text string) entity.ConsultationEvent {
	return entity.ConsultationEvent{Type: entity.EventTypeNotice, Notice: &entity.Notice{Level: level, Text: text}}
}

func (o *Orchestrator) errorEvent(err error) entity.ConsultationEvent {
	return entity.ConsultationEvent{Type: entity.EventTypeError, Error: err.Error()}
}

func copySessionID(sid *entity.SessionID) *entity.SessionID {
	if sid == nil {
		return nil
	}
	c := *sid
	return &c
}

func copyInput(in entity.StructuredInput) entity.StructuredInput {
	out := entity.StructuredInput{Prompt: in.Prompt, Fields: make([]entity.StructuredInputField, len(in.Fields))}
	for i, f := range in.Fields {
		f.Options = append([]entity.FieldOption{}, f.Options...)
		out.Fields[i] = f
	}
	return out
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && truthy(raw)
}
