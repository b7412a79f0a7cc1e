package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hatchnet/chat-service/internal/domain"
)

const maxContentLen = 4000

// MessageRepo is the durable append-only store contract: insert one message
// (store assigns the timestamp), replay a room oldest-first, or page it
// newest-first for the REST surface.
type MessageRepo interface {
	Insert(ctx context.Context, roomID, sender, content string) (*domain.Message, error)
	ListByRoom(ctx context.Context, roomID string) ([]domain.Message, error)
	Page(ctx context.Context, roomID, after string, limit int) ([]domain.Message, string, error)
}

type ChatService struct {
	repo MessageRepo
}

func NewChatService(repo MessageRepo) *ChatService {
	return &ChatService{repo: repo}
}

// Save validates and persists one message. The returned message carries the
// store-assigned id and created_at.
func (s *ChatService) Save(ctx context.Context, roomID, sender, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return nil, domain.ErrMessageTooLong
	}
	return s.repo.Insert(ctx, roomID, sender, content)
}

// History returns the full replay snapshot for a room, oldest first.
func (s *ChatService) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	return s.repo.ListByRoom(ctx, roomID)
}

// Page returns one cursor page for the REST history endpoint, newest first.
func (s *ChatService) Page(ctx context.Context, roomID, after string, limit int) ([]domain.Message, string, error) {
	return s.repo.Page(ctx, roomID, after, limit)
}
