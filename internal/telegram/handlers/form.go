package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/telegram/keyboard"
	"github.com/futig/sla-consultant/internal/telegram/render"
	"github.com/futig/sla-consultant/internal/telegram/state"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// askField sends the prompt of the field the form is waiting for
func (h *Handler) askField(session *state.ChatSession) {
	field, ok := session.Form.Current()
	if !ok {
		return
	}

	text := render.RenderField(field, session.Form.Index+1, len(session.Form.Fields))
	if markup := h.keyboard.FieldKeyboard(field, session.Form.Selected); markup != nil {
		h.sender.Send(session.ChatID, text, *markup)
		return
	}
	h.sender.Send(session.ChatID, text, nil)
}

func (h *Handler) answerFormText(ctx context.Context, msg *Message, session *state.ChatSession) error {
	field, ok := session.Form.Current()
	if !ok {
		return h.advanceForm(ctx, msg, session)
	}

	if field.Type.HasOptions() {
		h.sender.Send(msg.ChatID, render.MsgUseButtons, nil)
		h.askField(session)
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" && field.Required {
		h.askField(session)
		return nil
	}

	var value any
	if text != "" {
		value = text
	}
	if err := h.states.Answer(ctx, session, value); err != nil {
		return err
	}
	return h.advanceForm(ctx, msg, session)
}

func (h *Handler) handleFormCallback(ctx context.Context, msg *Message, data *keyboard.CallbackData) error {
	session, ok := h.activeSession(ctx, msg.ChatID)
	if !ok {
		return nil
	}

	field, ok := session.Form.Current()
	if !ok {
		ctxzap.Debug(ctx, "form callback without an active field")
		return nil
	}

	switch data.Action {
	case keyboard.ActionOption:
		opt, ok := optionAt(field, data.Value)
		if !ok || field.Type == entity.FieldTypeCheckbox {
			return nil
		}
		if err := h.states.Answer(ctx, session, opt.Value); err != nil {
			return err
		}
	case keyboard.ActionToggle:
		opt, ok := optionAt(field, data.Value)
		if !ok || field.Type != entity.FieldTypeCheckbox {
			return nil
		}
		if err := h.states.Toggle(ctx, session, opt.Value); err != nil {
			return err
		}
		if markup := h.keyboard.FieldKeyboard(field, session.Form.Selected); markup != nil && msg.MessageID != 0 {
			h.sender.Enqueue(tgbotapi.NewEditMessageReplyMarkup(msg.ChatID, msg.MessageID, *markup))
		}
		return nil
	case keyboard.ActionDone:
		if data.Value != field.ID {
			return nil
		}
		if field.Required && len(session.Form.Selected) == 0 {
			h.askField(session)
			return nil
		}
		if err := h.states.Answer(ctx, session, session.Form.SelectedValues()); err != nil {
			return err
		}
	case keyboard.ActionSkip:
		if data.Value != field.ID || field.Required {
			return nil
		}
		if err := h.states.Answer(ctx, session, nil); err != nil {
			return err
		}
		h.sender.Send(msg.ChatID, render.MsgFieldSkipped, nil)
	}

	return h.advanceForm(ctx, msg, session)
}

// advanceForm asks the next field or submits the answers once the form is done
func (h *Handler) advanceForm(ctx context.Context, msg *Message, session *state.ChatSession) error {
	if !session.Form.Done() {
		h.askField(session)
		return nil
	}

	answers := session.Form.Answers
	stageID := session.Form.StageID
	if err := h.states.ClearForm(ctx, session); err != nil {
		return err
	}

	h.sender.Send(msg.ChatID, render.MsgFormSubmitting, nil)

	typing := NewTypingNotifier(h.api, msg.ChatID, h.logger)
	typing.Start(ctx)
	view, err := h.usecase.SubmitStructured(ctx, session.ConsultationID, answers)
	typing.Stop()
	if err != nil {
		if errors.Is(err, entity.ErrInvalidStructuredInput) {
			ctxzap.Info(ctx, "structured input rejected, restarting form", zap.String("stage_id", stageID))
			_ = h.reportError(ctx, msg.ChatID, err)
			if current, viewErr := h.usecase.View(session.ConsultationID); viewErr == nil {
				return h.afterTurn(ctx, session, current)
			}
			return nil
		}
		return h.reportTurnError(ctx, msg.ChatID, err)
	}

	return h.afterStageChange(ctx, session, view)
}

func optionAt(field entity.StructuredInputField, raw string) (entity.FieldOption, bool) {
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 || i >= len(field.Options) {
		return entity.FieldOption{}, false
	}
	return field.Options[i], true
}
