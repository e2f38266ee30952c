package handlers

import (
	"context"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/futig/sla-consultant/internal/telegram/keyboard"
	"github.com/futig/sla-consultant/internal/telegram/render"
)

// ChatSink renders the events of one consultation into its chat
type ChatSink struct {
	chatID   int64
	sender   *MessageSender
	keyboard *keyboard.Builder
}

func NewChatSink(chatID int64, sender *MessageSender, kb *keyboard.Builder) *ChatSink {
	return &ChatSink{
		chatID:   chatID,
		sender:   sender,
		keyboard: kb,
	}
}

func (s *ChatSink) Publish(ctx context.Context, event entity.ConsultationEvent) {
	text, ok := render.RenderEvent(event)
	if !ok {
		return
	}

	if event.Type == entity.EventTypeCompleted {
		s.sender.Send(s.chatID, text, s.keyboard.SummaryKeyboard())
		return
	}
	s.sender.Send(s.chatID, text, nil)
}
