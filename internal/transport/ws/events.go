package ws

import (
	"encoding/json"
	"time"
)

// Event kinds crossing the websocket, both directions.
const (
	EventJoinRoom       = "join-room"       // client -> server: register room membership
	EventLoadHistory    = "load-history"    // server -> client: replay snapshot after join
	EventSendMessage    = "send-message"    // client -> server: author a message
	EventReceiveMessage = "receive-message" // server -> client: live fan-out
	EventError          = "error"           // server -> client: non-fatal failure notice
)

// Fixed failure reasons surfaced to the affected connection.
const (
	ReasonHistoryLoadFailed = "Failed to load message history"
	ReasonSaveFailed        = "Failed to save message"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type JoinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type SendMessagePayload struct {
	RoomID  string `json:"room_id"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

type MessageItem struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	RoomID    string    `json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryPayload struct {
	RoomID   string        `json:"room_id"`
	Messages []MessageItem `json:"messages"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// decode re-marshals a loosely typed payload into its fixed schema.
func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}
