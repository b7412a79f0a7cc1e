package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type ChatMessageItem struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatHistoryResponse struct {
	Items      []ChatMessageItem `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}
