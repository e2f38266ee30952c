package handlers

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const outboxSize = 256

// MessageSender delivers outgoing messages in order from a single worker,
// so consultation events and handler replies never interleave.
type MessageSender struct {
	bot    BotAPI
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan tgbotapi.Chattable
	wg     sync.WaitGroup
}

// NewMessageSender creates a new MessageSender and starts its worker
func NewMessageSender(bot BotAPI, logger *zap.Logger) *MessageSender {
	s := &MessageSender{
		bot:    bot,
		logger: logger,
		queue:  make(chan tgbotapi.Chattable, outboxSize),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Send queues a text message. markup may be nil.
func (s *MessageSender) Send(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	s.Enqueue(msg)
}

// Enqueue queues any chattable, it blocks only when the outbox is full
func (s *MessageSender) Enqueue(c tgbotapi.Chattable) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.queue <- c
}

// Close stops accepting messages and waits for queued ones to be sent
func (s *MessageSender) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *MessageSender) run() {
	defer s.wg.Done()

	for c := range s.queue {
		var err error
		switch c.(type) {
		case tgbotapi.MessageConfig:
			_, err = s.bot.Send(c)
		default:
			_, err = s.bot.Request(c)
		}
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err))
		}
	}
}
