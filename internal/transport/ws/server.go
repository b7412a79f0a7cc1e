package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hatchnet/chat-service/internal/domain"
	"github.com/hatchnet/chat-service/internal/metrics"

	"github.com/gorilla/websocket"
)

type ChatSvc interface {
	Save(ctx context.Context, roomID, sender, content string) (*domain.Message, error)
	History(ctx context.Context, roomID string) ([]domain.Message, error)
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	chatSvc  ChatSvc

	// roomLocks serializes persist+fan-out per room so the order members see
	// broadcasts in always matches durable insertion order. Joins take the
	// same lock: a snapshot is never cut between a persist and its broadcast.
	roomLocks sync.Map // roomID -> *sync.Mutex

	pingEvery time.Duration
}

func NewServer(hub *Hub, chat ChatSvc) *Server {
	return &Server{
		hub:     hub,
		chatSvc: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws?username=...
// Identity is caller-supplied; session issuance lives upstream of this core.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		http.Error(w, "missing username", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, username)
	metrics.ActiveConnections.Inc()

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	s.hub.Remove(c)
	metrics.ActiveConnections.Dec()

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "user", username, "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}

		switch evt.Type {
		case EventJoinRoom:
			var p JoinRoomPayload
			if decode(evt.Payload, &p) != nil || strings.TrimSpace(p.RoomID) == "" {
				continue
			}
			s.handleJoin(ctx, c, p.RoomID)

		case EventSendMessage:
			var p SendMessagePayload
			if decode(evt.Payload, &p) != nil {
				continue
			}
			s.handleSend(ctx, c, p)

		default:
			// ignore
		}
	}
}

// handleJoin registers membership first, then replays history to the joining
// connection only. A failed replay is surfaced as an error event but does not
// undo the join.
//
// Runs under the room lock: a join lands either wholly before a message's
// persist+fan-out or wholly after it, never in between. Otherwise a joiner
// could catch a message in its snapshot and again as the pending broadcast.
func (s *Server) handleJoin(ctx context.Context, c *wsConn, roomID string) {
	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	s.hub.Join(c, roomID)

	msgs, err := s.chatSvc.History(ctx, roomID)
	if err != nil {
		metrics.HistoryFailures.Inc()
		slog.Warn("ws history load failed", "room", roomID, "user", c.Identity(), "err", err)
		_ = c.Send(Event{Type: EventError, Payload: ErrorPayload{Message: ReasonHistoryLoadFailed}})
		return
	}

	items := make([]MessageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, MessageItem{
			Sender:    m.Sender,
			Content:   m.Content,
			RoomID:    m.RoomID,
			CreatedAt: m.CreatedAt,
		})
	}

	_ = c.Send(Event{Type: EventLoadHistory, Payload: HistoryPayload{RoomID: roomID, Messages: items}})
}

// handleSend persists the message, then fans it out to every other member of
// the room. Persist happens-before broadcast; a failed save means no
// broadcast at all.
func (s *Server) handleSend(ctx context.Context, c *wsConn, p SendMessagePayload) {
	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		roomID, _ = s.hub.Room(c)
	}
	if roomID == "" {
		return
	}
	sender := strings.TrimSpace(p.Sender)
	if sender == "" {
		sender = c.Identity()
	}
	if strings.TrimSpace(p.Content) == "" {
		return
	}

	mu := s.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	msg, err := s.chatSvc.Save(ctx, roomID, sender, p.Content)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) || errors.Is(err, domain.ErrMessageTooLong) {
			return
		}
		metrics.PersistFailures.Inc()
		slog.Warn("ws chat save failed", "room", roomID, "user", c.Identity(), "err", err)
		_ = c.Send(Event{Type: EventError, Payload: ErrorPayload{Message: ReasonSaveFailed}})
		return
	}
	metrics.MessagesPersisted.Inc()

	n := s.hub.Broadcast(roomID, Event{
		Type: EventReceiveMessage,
		Payload: MessageItem{
			Sender:    msg.Sender,
			Content:   msg.Content,
			RoomID:    msg.RoomID,
			CreatedAt: msg.CreatedAt,
		},
	}, c)
	metrics.Broadcasts.Add(float64(n))
}

func (s *Server) roomLock(roomID string) *sync.Mutex {
	if mu, ok := s.roomLocks.Load(roomID); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := s.roomLocks.LoadOrStore(roomID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}
