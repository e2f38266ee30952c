package middleware

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// LoggingMiddleware logs every update with what it asked for. Free text is
// not logged, it may hold the user's answers.
type LoggingMiddleware struct {
	logger *zap.Logger
}

func NewLoggingMiddleware(logger *zap.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

func (m *LoggingMiddleware) Handle(update tgbotapi.Update, next func(tgbotapi.Update)) {
	start := time.Now()
	userID, chatID := updateIDs(update)
	kind, action := describe(update)

	logger := m.logger.With(
		zap.Int64("user_id", userID),
		zap.Int64("chat_id", chatID),
		zap.Int("update_id", update.UpdateID),
		zap.String("type", kind),
	)
	if action != "" {
		logger = logger.With(zap.String("action", action))
	}

	logger.Debug("telegram update received")
	next(update)
	logger.Info("telegram update processed", zap.Duration("duration", time.Since(start)))
}

// describe names the update kind and, for commands and buttons, the action
func describe(update tgbotapi.Update) (kind, action string) {
	switch {
	case update.CallbackQuery != nil:
		data := update.CallbackQuery.Data
		if i := strings.IndexByte(data, ':'); i >= 0 {
			data = data[:i]
		}
		return "callback", data
	case update.Message != nil && update.Message.IsCommand():
		return "command", update.Message.Command()
	case update.Message != nil && update.Message.Text != "":
		return "text", ""
	default:
		return "other", ""
	}
}
