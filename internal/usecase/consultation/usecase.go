package consultation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Usecase struct {
	templates TemplateStore
	connector ConsultationConnector
	registry  Registry
	validator StructuredInputValidator
	archive   SummaryArchive
	sink      EventSink
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

func NewUsecase(
	templates TemplateStore,
	connector ConsultationConnector,
	registry Registry,
	validator StructuredInputValidator,
	archive SummaryArchive,
	sink EventSink,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Usecase {
	return &Usecase{
		templates: templates,
		connector: connector,
		registry:  registry,
		validator: validator,
		archive:   archive,
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start loads the template, opens a consultation and registers it.
// Extra sinks receive this consultation's events only.
func (u *Usecase) Start(ctx context.Context, templateID string, sinks ...EventSink) (*Orchestrator, error) {
	ctx = logger.AddFields(ctx, zap.String("template_id", templateID))

	if strings.TrimSpace(templateID) == "" {
		return nil, fmt.Errorf("%w: template_id", entity.ErrMissingField)
	}

	tpl, err := u.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	id := uuid.NewString()
	fanout := MultiSink{u.sink}
	fanout = append(fanout, sinks...)
	if u.archive != nil {
		fanout = append(fanout, SinkFunc(u.archiveCompleted))
	}

	o := NewOrchestrator(id, tpl, u.connector, u.validator, fanout, u.cfg, u.logger)
	if err := o.Start(ctx); err != nil {
		o.Close()
		return nil, err
	}

	u.registry.Save(id, o)

	ctxzap.Info(ctx, "consultation registered",
		zap.String("consultation_id", id),
		zap.Int("stages", len(tpl.Stages)),
	)

	return o, nil
}

func (u *Usecase) Get(id string) (*Orchestrator, error) {
	o, ok := u.registry.Get(id)
	if !ok {
		return nil, entity.ErrConsultationNotFound
	}
	return o, nil
}

func (u *Usecase) List() []entity.ConsultationListItem {
	live := u.registry.List()
	items := make([]entity.ConsultationListItem, 0, len(live))
	for _, o := range live {
		view := o.View()
		items = append(items, entity.ConsultationListItem{
			ID:           view.ID,
			TemplateID:   view.TemplateID,
			TemplateName: view.TemplateName,
			State:        view.State,
			Stage:        view.Progress.CurrentStageNumber,
			TotalStages:  view.Progress.TotalStages,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (u *Usecase) SendFreeText(ctx context.Context, id, content string) (entity.ConsultationView, error) {
	o, err := u.Get(id)
	if err != nil {
		return entity.ConsultationView{}, err
	}
	if err := o.SendFreeText(ctx, content); err != nil {
		return o.View(), err
	}
	return o.View(), nil
}

func (u *Usecase) SubmitStructured(ctx context.Context, id string, data map[string]any) (entity.ConsultationView, error) {
	o, err := u.Get(id)
	if err != nil {
		return entity.ConsultationView{}, err
	}
	if err := o.SubmitStructured(ctx, data); err != nil {
		return o.View(), err
	}
	return o.View(), nil
}

func (u *Usecase) ForceNextStage(ctx context.Context, id string) (entity.ConsultationView, error) {
	o, err := u.Get(id)
	if err != nil {
		return entity.ConsultationView{}, err
	}
	if err := o.ForceNextStage(ctx); err != nil {
		return o.View(), err
	}
	return o.View(), nil
}

func (u *Usecase) View(id string) (entity.ConsultationView, error) {
	o, err := u.Get(id)
	if err != nil {
		return entity.ConsultationView{}, err
	}
	return o.View(), nil
}

func (u *Usecase) Summary(id string) (entity.ConsultationSummary, error) {
	o, err := u.Get(id)
	if err != nil {
		return entity.ConsultationSummary{}, err
	}
	return o.Summary()
}

func (u *Usecase) ExtractTemplate(ctx context.Context, id string) (*entity.ExtractedTemplate, error) {
	o, err := u.Get(id)
	if err != nil {
		return nil, err
	}
	return o.ExtractTemplate(ctx)
}

// SaveExtractedTemplate stores an extracted template as a new private template
func (u *Usecase) SaveExtractedTemplate(ctx context.Context, extracted *entity.ExtractedTemplate) (*entity.Template, error) {
	if extracted == nil || strings.TrimSpace(extracted.Name) == "" {
		return nil, fmt.Errorf("%w: template name is required", entity.ErrInvalidTemplate)
	}
	if len(extracted.Stages) == 0 {
		return nil, fmt.Errorf("%w: template must have at least one stage", entity.ErrInvalidTemplate)
	}

	now := u.now().UnixMilli()
	tpl := &entity.Template{
		Name:                extracted.Name,
		Description:         extracted.Description,
		Domain:              extracted.Domain,
		InitialSystemPrompt: extracted.InitialSystemPrompt,
		Tags:                append([]string{}, extracted.Tags...),
		IsPublic:            false,
		Stages:              make([]entity.Stage, 0, len(extracted.Stages)),
	}
	for i, s := range extracted.Stages {
		tpl.Stages = append(tpl.Stages, entity.Stage{
			ID:              fmt.Sprintf("stage_%d_%d", now, i),
			Name:            s.Name,
			Description:     s.Description,
			StageType:       s.StageType,
			PromptTemplate:  s.PromptTemplate,
			ExpectedOutputs: append([]entity.ExpectedOutput{}, s.ExpectedOutputs...),
		})
	}

	saved, err := u.templates.CreateTemplate(ctx, tpl)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	ctxzap.Info(ctx, "extracted template saved",
		zap.String("template_id", saved.ID),
		zap.Int("stages", len(saved.Stages)),
	)

	return saved, nil
}

// Close tears a consultation down and forgets it
func (u *Usecase) Close(id string) error {
	o, ok := u.registry.Get(id)
	if !ok {
		return entity.ErrConsultationNotFound
	}
	u.registry.Delete(id)
	o.Close()
	return nil
}

// Shutdown closes every live consultation
func (u *Usecase) Shutdown() {
	for _, o := range u.registry.List() {
		u.registry.Delete(o.ID())
		o.Close()
	}
}

func (u *Usecase) archiveCompleted(ctx context.Context, event entity.ConsultationEvent) {
	if event.Type != entity.EventTypeCompleted || event.Summary == nil {
		return
	}
	if err := u.archive.SaveSummary(ctx, event.Summary); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		ctxzap.Error(ctx, "failed to archive consultation summary",
			zap.String("consultation_id", event.ConsultationID),
			zap.Error(err),
		)
	}
}

func (u *Usecase) now() time.Time {
	if u.cfg.Now != nil {
		return u.cfg.Now()
	}
	return time.Now()
}
