package consultation

import (
	"context"
	"errors"
	"net/http"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/pkg/logger"
	"github.com/futig/sla-consultant/internal/pkg/response"
	pkghttp "github.com/futig/sla-consultant/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Handler struct {
	usecase   ConsultationUsecase
	validator RequestValidator
	stream    EventStream
	logger    *zap.Logger
}

func NewHandler(usecase ConsultationUsecase, validator RequestValidator, stream EventStream, logger *zap.Logger) *Handler {
	return &Handler{
		usecase:   usecase,
		validator: validator,
		stream:    stream,
		logger:    logger,
	}
}

// StartConsultation handles POST /api/v1/consultations
func (h *Handler) StartConsultation(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "StartConsultation")

	var req entity.StartConsultationRequest
	if err := response.Decode(w, r, &req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.validator.ValidateStartConsultation(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "validation failed", err)
		return
	}

	ctx = logger.AddFields(ctx, zap.String("template_id", req.TemplateID))

	o, err := h.usecase.Start(ctx, req.TemplateID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Created(w, toConsultationResponse(o.View()))
}

// ListConsultations handles GET /api/v1/consultations
func (h *Handler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	response.Success(w, toListResponse(h.usecase.List()))
}

// GetConsultation handles GET /api/v1/consultations/{consultationID}
func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "GetConsultation")

	view, err := h.usecase.View(chi.URLParam(r, "consultationID"))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toConsultationResponse(view))
}

// SendMessage handles POST /api/v1/consultations/{consultationID}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "SendMessage")

	var req entity.SendMessageRequest
	if err := response.Decode(w, r, &req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.validator.ValidateSendMessage(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "validation failed", err)
		return
	}

	view, err := h.usecase.SendFreeText(ctx, chi.URLParam(r, "consultationID"), req.Content)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toConsultationResponse(view))
}

// SubmitStructured handles POST /api/v1/consultations/{consultationID}/structured
func (h *Handler) SubmitStructured(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "SubmitStructured")

	var req entity.SubmitStructuredRequest
	if err := response.Decode(w, r, &req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.validator.ValidateSubmitStructured(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "validation failed", err)
		return
	}

	view, err := h.usecase.SubmitStructured(ctx, chi.URLParam(r, "consultationID"), req.Data)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toConsultationResponse(view))
}

// ForceNextStage handles POST /api/v1/consultations/{consultationID}/force-next-stage
func (h *Handler) ForceNextStage(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "ForceNextStage")

	view, err := h.usecase.ForceNextStage(ctx, chi.URLParam(r, "consultationID"))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, toConsultationResponse(view))
}

// GetSummary handles GET /api/v1/consultations/{consultationID}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "GetSummary")

	summary, err := h.usecase.Summary(chi.URLParam(r, "consultationID"))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, summary)
}

// ExtractTemplate handles POST /api/v1/consultations/{consultationID}/extract-template
func (h *Handler) ExtractTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "ExtractTemplate")

	extracted, err := h.usecase.ExtractTemplate(ctx, chi.URLParam(r, "consultationID"))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, extracted)
}

// SaveTemplate handles POST /api/v1/consultations/{consultationID}/templates.
// An empty body saves the template extracted from the consultation as is.
func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "SaveTemplate")
	id := chi.URLParam(r, "consultationID")

	var extracted *entity.ExtractedTemplate
	if err := response.Decode(w, r, &extracted); err != nil && !errors.Is(err, response.ErrEmptyBody) {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if extracted == nil {
		var err error
		extracted, err = h.usecase.ExtractTemplate(ctx, id)
		if err != nil {
			h.handleUsecaseError(ctx, w, err)
			return
		}
	}

	if err := h.validator.ValidateExtractedTemplate(extracted); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "validation failed", err)
		return
	}

	saved, err := h.usecase.SaveExtractedTemplate(ctx, extracted)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Created(w, saved)
}

// CloseConsultation handles DELETE /api/v1/consultations/{consultationID}
func (h *Handler) CloseConsultation(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "CloseConsultation")

	if err := h.usecase.Close(chi.URLParam(r, "consultationID")); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.NoContent(w)
}

// StreamEvents handles GET /api/v1/consultations/{consultationID}/events
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := h.consultationContext(r, "StreamEvents")

	id := chi.URLParam(r, "consultationID")
	if _, err := h.usecase.View(id); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	snapshot := func() (entity.ConsultationView, error) { return h.usecase.View(id) }

	// The upgrader has already answered the client on failure
	if err := h.stream.Serve(w, r.WithContext(ctx), id, snapshot); err != nil {
		ctxzap.Warn(ctx, "event stream closed", zap.Error(err))
	}
}

func (h *Handler) consultationContext(r *http.Request, action string) context.Context {
	return logger.AddFields(r.Context(),
		zap.String("consultation_id", chi.URLParam(r, "consultationID")),
		zap.String("action", action),
	)
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	ctxzap.Error(ctx, message,
		zap.Int("status", status),
		zap.Error(err),
	)

	if err != nil && status < http.StatusInternalServerError {
		message = message + ": " + err.Error()
	}
	response.Error(w, status, message)
}

// handleUsecaseError maps usecase errors to HTTP status codes
func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	var httpErr *pkghttp.HTTPError
	var netErr *pkghttp.NetworkError

	switch {
	case errors.Is(err, entity.ErrConsultationNotFound), errors.Is(err, entity.ErrTemplateNotFound):
		h.respondError(ctx, w, http.StatusNotFound, "resource not found", err)
	case errors.Is(err, entity.ErrMissingField), errors.Is(err, entity.ErrInvalidParameter), errors.Is(err, entity.ErrInvalidTemplate):
		h.respondError(ctx, w, http.StatusBadRequest, "invalid parameter", err)
	case errors.Is(err, entity.ErrInvalidStructuredInput):
		h.respondError(ctx, w, http.StatusUnprocessableEntity, "invalid structured input", err)
	case errors.Is(err, entity.ErrRequestInFlight),
		errors.Is(err, entity.ErrConsultationCompleted),
		errors.Is(err, entity.ErrConsultationNotReady),
		errors.Is(err, entity.ErrNoSession):
		h.respondError(ctx, w, http.StatusConflict, "invalid consultation state", err)
	case errors.Is(err, entity.ErrConsultationClosed):
		h.respondError(ctx, w, http.StatusGone, "consultation is closed", err)
	case errors.Is(err, context.DeadlineExceeded):
		h.respondError(ctx, w, http.StatusGatewayTimeout, "consultation service timed out", err)
	case errors.As(err, &httpErr), errors.As(err, &netErr),
		errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		h.respondError(ctx, w, http.StatusBadGateway, "consultation service unavailable", err)
	default:
		h.respondError(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}
