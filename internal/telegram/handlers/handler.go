package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/telegram/keyboard"
	"github.com/futig/sla-consultant/internal/telegram/render"
	"github.com/futig/sla-consultant/internal/telegram/state"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Message represents a normalized Telegram message
type Message struct {
	ChatID       int64
	UserID       int64
	MessageID    int
	Text         string
	Command      string
	Args         string
	CallbackData string
	CallbackID   string
}

// Handler turns chat updates into consultation operations
type Handler struct {
	api             BotAPI
	sender          *MessageSender
	states          *state.Manager
	usecase         ConsultationUsecase
	templates       TemplateCatalog
	keyboard        *keyboard.Builder
	defaultTemplate string
	logger          *zap.Logger

	// one update per chat at a time
	locks sync.Map
}

func NewHandler(
	api BotAPI,
	sender *MessageSender,
	states *state.Manager,
	usecase ConsultationUsecase,
	templates TemplateCatalog,
	kb *keyboard.Builder,
	defaultTemplate string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		api:             api,
		sender:          sender,
		states:          states,
		usecase:         usecase,
		templates:       templates,
		keyboard:        kb,
		defaultTemplate: defaultTemplate,
		logger:          logger,
	}
}

// HandleMessage handles commands and free text
func (h *Handler) HandleMessage(ctx context.Context, msg *Message) error {
	if msg.Command == "help" {
		h.sender.Send(msg.ChatID, render.MsgHelp, nil)
		return nil
	}

	unlock, ok := h.lockChat(msg.ChatID)
	if !ok {
		h.sender.Send(msg.ChatID, render.ErrBusy, nil)
		return nil
	}
	defer unlock()

	if msg.Command != "" {
		return h.handleCommand(ctx, msg)
	}
	return h.handleText(ctx, msg)
}

// HandleCallback handles inline keyboard presses
func (h *Handler) HandleCallback(ctx context.Context, msg *Message) error {
	h.answerCallback(msg.CallbackID)

	unlock, ok := h.lockChat(msg.ChatID)
	if !ok {
		h.sender.Send(msg.ChatID, render.ErrBusy, nil)
		return nil
	}
	defer unlock()

	data, err := keyboard.ParseCallback(msg.CallbackData)
	if err != nil {
		ctxzap.Warn(ctx, "invalid callback data",
			zap.Error(err),
			zap.String("data", msg.CallbackData),
		)
		return nil
	}

	ctxzap.Debug(ctx, "callback query received",
		zap.String("callback_action", data.Action),
		zap.String("value", data.Value),
	)

	switch data.Action {
	case keyboard.ActionTemplate:
		return h.startConsultation(ctx, msg, data.Value)
	case keyboard.ActionConfirm:
		return h.confirmCancel(ctx, msg, data.Value)
	case keyboard.ActionStage:
		switch data.Value {
		case "force":
			return h.forceNextStage(ctx, msg)
		case "progress":
			return h.showProgress(ctx, msg)
		case "summary":
			return h.showSummary(ctx, msg)
		}
	case keyboard.ActionOption, keyboard.ActionToggle, keyboard.ActionDone, keyboard.ActionSkip:
		return h.handleFormCallback(ctx, msg, data)
	}

	ctxzap.Warn(ctx, "unknown callback action", zap.String("callback_action", data.Action))
	return nil
}

func (h *Handler) handleCommand(ctx context.Context, msg *Message) error {
	ctxzap.Info(ctx, "command received", zap.String("command", msg.Command))

	switch msg.Command {
	case "start":
		return h.startConsultation(ctx, msg, strings.TrimSpace(msg.Args))
	case "cancel":
		return h.cancel(ctx, msg)
	case "force":
		return h.forceNextStage(ctx, msg)
	case "progress":
		return h.showProgress(ctx, msg)
	case "summary":
		return h.showSummary(ctx, msg)
	default:
		h.sender.Send(msg.ChatID, render.MsgHelp, nil)
		return nil
	}
}

func (h *Handler) handleText(ctx context.Context, msg *Message) error {
	session, ok := h.activeSession(ctx, msg.ChatID)
	if !ok {
		return nil
	}

	if session.Form != nil {
		return h.answerFormText(ctx, msg, session)
	}

	typing := NewTypingNotifier(h.api, msg.ChatID, h.logger)
	typing.Start(ctx)
	view, err := h.usecase.SendFreeText(ctx, session.ConsultationID, msg.Text)
	typing.Stop()
	if err != nil {
		return h.reportTurnError(ctx, msg.ChatID, err)
	}

	return h.afterTurn(ctx, session, view)
}

// afterTurn starts the form of the new turn, if there is one
func (h *Handler) afterTurn(ctx context.Context, session *state.ChatSession, view entity.ConsultationView) error {
	if view.Completed || !view.StructuredInput.Active() {
		if session.Form != nil {
			return h.states.ClearForm(ctx, session)
		}
		return nil
	}

	started, err := h.states.BeginForm(ctx, session, view.Progress.StageID, view.StructuredInput)
	if err != nil {
		return err
	}
	if started {
		intro := view.StructuredInput.Prompt
		if intro == "" {
			intro = render.MsgFormIntro
		}
		h.sender.Send(session.ChatID, "📝 "+intro, nil)
	}
	h.askField(session)
	return nil
}

// activeSession loads the chat session and tells the user when there is none
func (h *Handler) activeSession(ctx context.Context, chatID int64) (*state.ChatSession, bool) {
	session, err := h.states.GetActive(ctx, chatID)
	if err != nil {
		if !errors.Is(err, state.ErrSessionNotFound) {
			ctxzap.Error(ctx, "failed to get telegram session", zap.Error(err))
			h.sender.Send(chatID, render.ErrGeneric, nil)
			return nil, false
		}
		h.sender.Send(chatID, render.ErrNoConsultation, nil)
		return nil, false
	}
	return session, true
}

// reportError logs err and shows a user-friendly message. Lost consultations
// also drop the chat binding.
func (h *Handler) reportError(ctx context.Context, chatID int64, err error) error {
	ctxzap.Warn(ctx, "consultation operation failed", zap.Error(err))

	if errors.Is(err, entity.ErrConsultationNotFound) || errors.Is(err, entity.ErrConsultationClosed) {
		if delErr := h.states.DeleteSession(ctx, chatID); delErr != nil {
			ctxzap.Error(ctx, "failed to delete telegram session", zap.Error(delErr))
		}
	}

	h.sender.Send(chatID, render.ClassifyError(err), nil)
	return nil
}

// reportTurnError is reportError for turns. Backend failures of a turn were
// already published to the chat by the consultation itself.
func (h *Handler) reportTurnError(ctx context.Context, chatID int64, err error) error {
	if isLocalError(err) {
		return h.reportError(ctx, chatID, err)
	}
	ctxzap.Warn(ctx, "consultation turn failed", zap.Error(err))
	return nil
}

var localErrors = []error{
	entity.ErrConsultationNotFound,
	entity.ErrConsultationClosed,
	entity.ErrConsultationCompleted,
	entity.ErrConsultationNotReady,
	entity.ErrRequestInFlight,
	entity.ErrNoSession,
	entity.ErrInvalidStructuredInput,
	entity.ErrMissingField,
	entity.ErrInvalidParameter,
}

func isLocalError(err error) bool {
	for _, target := range localErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h *Handler) lockChat(chatID int64) (func(), bool) {
	v, _ := h.locks.LoadOrStore(chatID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, false
	}
	return mu.Unlock, true
}

func (h *Handler) answerCallback(callbackID string) {
	if callbackID == "" {
		return
	}
	if _, err := h.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		h.logger.Error("failed to answer callback",
			zap.Error(err),
			zap.String("callback_id", callbackID),
		)
	}
}
