package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/futig/sla-consultant/internal/telegram/state"
	"github.com/patrickmn/go-cache"
)

const (
	chatKeyPrefix         = "chat:"
	consultationKeyPrefix = "consultation:"
)

// TelegramStateCache keeps chat sessions in memory. Sessions expire together
// with the consultations they point to.
type TelegramStateCache struct {
	cache *cache.Cache
}

func NewTelegramStateCache(ttl, cleanupInterval time.Duration) *TelegramStateCache {
	return &TelegramStateCache{cache: cache.New(ttl, cleanupInterval)}
}

// Get retrieves a chat session by chat ID
func (r *TelegramStateCache) Get(ctx context.Context, chatID int64) (*state.ChatSession, error) {
	v, ok := r.cache.Get(chatKey(chatID))
	if !ok {
		return nil, fmt.Errorf("chat %d: %w", chatID, state.ErrSessionNotFound)
	}

	session := *v.(*state.ChatSession)
	return &session, nil
}

// Set saves a chat session and indexes it by consultation
func (r *TelegramStateCache) Set(ctx context.Context, session *state.ChatSession) error {
	if prev, ok := r.cache.Get(chatKey(session.ChatID)); ok {
		if old := prev.(*state.ChatSession).ConsultationID; old != "" && old != session.ConsultationID {
			r.cache.Delete(consultationKeyPrefix + old)
		}
	}

	stored := *session
	r.cache.SetDefault(chatKey(session.ChatID), &stored)
	if session.ConsultationID != "" {
		r.cache.SetDefault(consultationKeyPrefix+session.ConsultationID, session.ChatID)
	}
	return nil
}

// Delete removes a chat session
func (r *TelegramStateCache) Delete(ctx context.Context, chatID int64) error {
	if v, ok := r.cache.Get(chatKey(chatID)); ok {
		if id := v.(*state.ChatSession).ConsultationID; id != "" {
			r.cache.Delete(consultationKeyPrefix + id)
		}
	}
	r.cache.Delete(chatKey(chatID))
	return nil
}

// GetByConsultationID retrieves the session bound to a consultation
func (r *TelegramStateCache) GetByConsultationID(ctx context.Context, consultationID string) (*state.ChatSession, error) {
	v, ok := r.cache.Get(consultationKeyPrefix + consultationID)
	if !ok {
		return nil, fmt.Errorf("consultation %s: %w", consultationID, state.ErrSessionNotFound)
	}
	return r.Get(ctx, v.(int64))
}

func chatKey(chatID int64) string {
	return chatKeyPrefix + strconv.FormatInt(chatID, 10)
}
