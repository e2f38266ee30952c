package handlers

import (
	"context"
	"errors"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/telegram/render"
	"github.com/futig/sla-consultant/internal/telegram/state"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// startConsultation replaces the chat's consultation with a new one. Without
// a template the available templates are offered instead.
func (h *Handler) startConsultation(ctx context.Context, msg *Message, templateID string) error {
	if templateID == "" {
		templateID = h.defaultTemplate
	}
	if templateID == "" {
		h.offerTemplates(msg.ChatID)
		return nil
	}

	ctx = ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(zap.String("template_id", templateID)))

	h.closePrevious(ctx, msg.ChatID)
	h.sender.Send(msg.ChatID, render.MsgStarting, nil)

	typing := NewTypingNotifier(h.api, msg.ChatID, h.logger)
	typing.Start(ctx)
	o, err := h.usecase.Start(ctx, templateID, NewChatSink(msg.ChatID, h.sender, h.keyboard))
	typing.Stop()
	if err != nil {
		return h.reportError(ctx, msg.ChatID, err)
	}

	session, err := h.states.Bind(ctx, msg.ChatID, msg.UserID, o.ID(), templateID)
	if err != nil {
		return err
	}

	ctxzap.Info(ctx, "consultation bound to chat", zap.String("consultation_id", o.ID()))

	return h.afterTurn(ctx, session, o.View())
}

func (h *Handler) offerTemplates(chatID int64) {
	var templates []*entity.Template
	if h.templates != nil {
		templates = h.templates.List()
	}
	if len(templates) == 0 {
		h.sender.Send(chatID, render.MsgNoTemplates, nil)
		return
	}
	h.sender.Send(chatID, render.MsgWelcome, h.keyboard.TemplatesKeyboard(templates))
}

func (h *Handler) closePrevious(ctx context.Context, chatID int64) {
	session, err := h.states.GetActive(ctx, chatID)
	if err != nil {
		return
	}
	if err := h.usecase.Close(session.ConsultationID); err != nil && !errors.Is(err, entity.ErrConsultationNotFound) {
		ctxzap.Warn(ctx, "failed to close previous consultation", zap.Error(err))
	}
}

// cancel asks for confirmation before the consultation is abandoned
func (h *Handler) cancel(ctx context.Context, msg *Message) error {
	session, ok := h.activeSession(ctx, msg.ChatID)
	if !ok {
		return nil
	}

	session.PendingConfirmation = "cancel"
	if err := h.states.SetSession(ctx, session); err != nil {
		return err
	}

	h.sender.Send(msg.ChatID, render.MsgCancelConfirm, h.keyboard.ConfirmCancelKeyboard())
	return nil
}

func (h *Handler) confirmCancel(ctx context.Context, msg *Message, answer string) error {
	session, ok := h.activeSession(ctx, msg.ChatID)
	if !ok {
		return nil
	}

	if answer != "cancel" || session.PendingConfirmation != "cancel" {
		session.PendingConfirmation = ""
		if err := h.states.SetSession(ctx, session); err != nil {
			return err
		}
		h.sender.Send(msg.ChatID, render.MsgContinue, nil)
		return nil
	}

	if err := h.usecase.Close(session.ConsultationID); err != nil && !errors.Is(err, entity.ErrConsultationNotFound) {
		ctxzap.Error(ctx, "failed to close consultation", zap.Error(err))
	}
	if err := h.states.DeleteSession(ctx, msg.ChatID); err != nil {
		ctxzap.Error(ctx, "failed to delete telegram session", zap.Error(err))
	}

	h.sender.Send(msg.ChatID, render.MsgCancelled, nil)
	return nil
}

func (h *Handler) forceNextStage(ctx context.Context, msg *Message) error {
	session, ok := h.activeSession(ctx, msg.ChatID)
	if !ok {
		return nil
	}

	typing := NewTypingNotifier(h.api, msg.ChatID, h.logger)
	typing.Start(ctx)
	view, err := h.usecase.ForceNextStage(ctx, session.ConsultationID)
	typing.Stop()
	if err != nil {
		return h.reportTurnError(ctx, msg.ChatID, err)
	}

	return h.afterStageChange(ctx, session, view)
}

// afterStageChange drops a form that belonged to the previous stage
func (h *Handler) afterStageChange(ctx context.Context, session *state.ChatSession, view entity.ConsultationView) error {
	if session.Form != nil && session.Form.StageID != view.Progress.StageID {
		if err := h.states.ClearForm(ctx, session); err != nil {
			return err
		}
	}
	return h.afterTurn(ctx, session, view)
}

func (h *Handler) showProgress(ctx context.Context, msg *Message) error {
	session, ok := h.activeSession(ctx, msg.ChatID)
	if !ok {
		return nil
	}

	view, err := h.usecase.View(session.ConsultationID)
	if err != nil {
		return h.reportError(ctx, msg.ChatID, err)
	}

	if view.Completed {
		h.sender.Send(msg.ChatID, render.RenderProgress(view), h.keyboard.SummaryKeyboard())
		return nil
	}
	h.sender.Send(msg.ChatID, render.RenderProgress(view), h.keyboard.StageKeyboard())
	return nil
}

func (h *Handler) showSummary(ctx context.Context, msg *Message) error {
	session, ok := h.activeSession(ctx, msg.ChatID)
	if !ok {
		return nil
	}

	summary, err := h.usecase.Summary(session.ConsultationID)
	if err != nil {
		return h.reportError(ctx, msg.ChatID, err)
	}

	h.sender.Send(msg.ChatID, render.RenderSummary(summary), nil)
	return nil
}
