// Package chatclient is the room client for the chat relay: it joins one
// room over the websocket, keeps a local view of the conversation (history
// snapshot + live broadcasts + optimistic local sends), and surfaces server
// error events as non-fatal notices.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hatchnet/chat-service/internal/transport/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("chatclient: closed")

// Message is one entry of the local view. Pending marks an optimistic local
// send that the server has not been asked to confirm (there is no ack in the
// protocol; the flag is cosmetic).
type Message struct {
	LocalID   string
	RoomID    string
	Sender    string
	Content   string
	CreatedAt time.Time
	Pending   bool
}

type Option func(*Client)

// WithNoticeFunc registers a callback for non-fatal server notices
// (history-load and save failures). Called from the read goroutine.
func WithNoticeFunc(fn func(msg string)) Option {
	return func(c *Client) { c.onNotice = fn }
}

type Client struct {
	conn     *websocket.Conn
	identity string

	writeMu sync.Mutex // gorilla allows a single concurrent writer

	mu       sync.Mutex
	roomID   string
	messages []Message
	notices  []string
	closed   bool

	onNotice func(string)
	readDone chan struct{}

	syncOnce  sync.Once
	firstSync chan struct{} // closed when the first snapshot or notice lands
}

// Open dials the relay at rawURL (ws:// or wss://, path /ws), identifies as
// identity and joins roomID. The local view fills in as soon as the history
// snapshot arrives.
func Open(ctx context.Context, rawURL, roomID, identity string, opts ...Option) (*Client, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, errors.New("chatclient: identity is required")
	}
	if strings.TrimSpace(roomID) == "" {
		return nil, errors.New("chatclient: room id is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("username", identity)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:      conn,
		identity:  identity,
		readDone:  make(chan struct{}),
		firstSync: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()

	if err := c.Join(roomID); err != nil {
		_ = c.Close()
		return nil, err
	}

	// Wait for the initial room sync: either the history snapshot or, if the
	// replay failed server-side, the error notice. The join itself has
	// succeeded in both cases.
	select {
	case <-c.firstSync:
	case <-c.readDone:
		_ = c.Close()
		return nil, errors.New("chatclient: connection closed before room sync")
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		_ = c.Close()
		return nil, errors.New("chatclient: timed out waiting for room sync")
	}
	return c, nil
}

// Join switches the client to roomID. The server re-registers membership
// (leaving the previous room) and replies with the room's history snapshot,
// which replaces the local view wholesale.
func (c *Client) Join(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return errors.New("chatclient: room id is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.roomID = roomID
	c.mu.Unlock()

	return c.write(ws.Event{
		Type:    ws.EventJoinRoom,
		Payload: ws.JoinRoomPayload{RoomID: roomID},
	})
}

// Send emits content to the current room and appends an optimistic local
// copy without waiting for the server. Whitespace-only content, or sending
// before a room is joined, is a no-op.
func (c *Client) Send(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	// append and wire write stay under the write lock together, so
	// concurrent Sends reach the server in local view order
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	roomID := c.roomID
	if roomID == "" {
		c.mu.Unlock()
		return nil
	}
	c.messages = append(c.messages, Message{
		LocalID:   uuid.NewString(),
		RoomID:    roomID,
		Sender:    c.identity,
		Content:   content,
		CreatedAt: time.Now(),
		Pending:   true,
	})
	c.mu.Unlock()

	return c.writeLocked(ws.Event{
		Type: ws.EventSendMessage,
		Payload: ws.SendMessagePayload{
			RoomID:  roomID,
			Sender:  c.identity,
			Content: content,
		},
	})
}

// Messages returns a copy of the local view in display order.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Notices returns the error notices received so far.
func (c *Client) Notices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.notices))
	copy(out, c.notices)
	return out
}

// Close tears down the transport. Server-side membership cleanup follows
// automatically from the disconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()

	select {
	case <-c.readDone:
	case <-time.After(time.Second):
	}
	return err
}

func (c *Client) write(evt ws.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.writeLocked(evt)
}

func (c *Client) writeLocked(evt ws.Event) error {
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(evt)
}

func (c *Client) readLoop() {
	defer close(c.readDone)

	for {
		var evt ws.Event
		if err := c.conn.ReadJSON(&evt); err != nil {
			return
		}

		switch evt.Type {
		case ws.EventLoadHistory:
			var p ws.HistoryPayload
			if decode(evt.Payload, &p) != nil {
				continue
			}
			c.replaceView(p)

		case ws.EventReceiveMessage:
			var p ws.MessageItem
			if decode(evt.Payload, &p) != nil {
				continue
			}
			c.appendLive(p)

		case ws.EventError:
			var p ws.ErrorPayload
			if decode(evt.Payload, &p) != nil {
				continue
			}
			c.addNotice(p.Message)
		}
	}
}

// replaceView swaps in the history snapshot wholesale; any optimistic state
// for the room is superseded by the server's ordered record.
func (c *Client) replaceView(p ws.HistoryPayload) {
	msgs := make([]Message, 0, len(p.Messages))
	for _, m := range p.Messages {
		msgs = append(msgs, Message{
			RoomID:    m.RoomID,
			Sender:    m.Sender,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncOnce.Do(func() { close(c.firstSync) })
	if p.RoomID != c.roomID {
		return // stale snapshot from a room we already left
	}
	c.messages = msgs
}

// appendLive appends a broadcast to the end of the view. No re-sorting: the
// server's persist order is the append order.
func (c *Client) appendLive(m ws.MessageItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.RoomID != c.roomID {
		return
	}
	c.messages = append(c.messages, Message{
		RoomID:    m.RoomID,
		Sender:    m.Sender,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	})
}

func (c *Client) addNotice(msg string) {
	c.mu.Lock()
	c.notices = append(c.notices, msg)
	fn := c.onNotice
	c.syncOnce.Do(func() { close(c.firstSync) })
	c.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}
