package chatclient_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hatchnet/chat-service/internal/domain"
	"github.com/hatchnet/chat-service/internal/transport/ws"
	"github.com/hatchnet/chat-service/pkg/chatclient"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	msgs     map[string][]domain.Message
	seq      int
	failSave bool
}

func newMemStore() *memStore {
	return &memStore{msgs: make(map[string][]domain.Message)}
}

func (s *memStore) Save(ctx context.Context, roomID, sender, content string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return nil, errors.New("store unreachable")
	}
	s.seq++
	m := domain.Message{
		ID:        fmt.Sprintf("m-%d", s.seq),
		RoomID:    roomID,
		Sender:    sender,
		Content:   strings.TrimSpace(content),
		CreatedAt: time.Now(),
	}
	s.msgs[roomID] = append(s.msgs[roomID], m)
	return &m, nil
}

func (s *memStore) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.msgs[roomID]))
	copy(out, s.msgs[roomID])
	return out, nil
}

func (s *memStore) count(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs[roomID])
}

func newRelay(t *testing.T, store *memStore) string {
	t.Helper()
	srv := ws.NewServer(ws.NewHub(), store)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func open(t *testing.T, wsURL, roomID, identity string, opts ...chatclient.Option) *chatclient.Client {
	t.Helper()
	c, err := chatclient.Open(context.Background(), wsURL, roomID, identity, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenLoadsHistorySnapshot(t *testing.T) {
	store := newMemStore()
	_, err := store.Save(context.Background(), "team_1", "alice", "first")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "team_1", "bob", "second")
	require.NoError(t, err)

	c := open(t, newRelay(t, store), "team_1", "carol")

	require.Eventually(t, func() bool { return len(c.Messages()) == 2 },
		2*time.Second, 10*time.Millisecond)

	msgs := c.Messages()
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "second", msgs[1].Content)
	require.False(t, msgs[0].Pending)
	require.False(t, msgs[1].Pending)
}

func TestSendAppendsOptimistically(t *testing.T) {
	store := newMemStore()
	c := open(t, newRelay(t, store), "team_1", "alice")

	require.NoError(t, c.Send("hello"))

	// optimistic copy is visible before any server round trip
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "alice", msgs[0].Sender)
	require.True(t, msgs[0].Pending)
	require.NotEmpty(t, msgs[0].LocalID)

	require.Eventually(t, func() bool { return store.count("team_1") == 1 },
		2*time.Second, 10*time.Millisecond)

	// the server excludes the sender from the fan-out, so the view never
	// grows a duplicate
	time.Sleep(300 * time.Millisecond)
	require.Len(t, c.Messages(), 1)
}

func TestSendGuards(t *testing.T) {
	store := newMemStore()
	c := open(t, newRelay(t, store), "team_1", "alice")

	require.NoError(t, c.Send(""))
	require.NoError(t, c.Send("   \t\n"))

	require.Empty(t, c.Messages())
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 0, store.count("team_1"))
}

func TestBroadcastAppendsToOtherMembers(t *testing.T) {
	store := newMemStore()
	wsURL := newRelay(t, store)

	a := open(t, wsURL, "team_42", "alice")
	b := open(t, wsURL, "team_42", "bob")

	require.NoError(t, a.Send("hello"))

	require.Eventually(t, func() bool { return len(b.Messages()) == 1 },
		2*time.Second, 10*time.Millisecond)

	msgs := b.Messages()
	require.Equal(t, "alice", msgs[0].Sender)
	require.Equal(t, "hello", msgs[0].Content)
	require.False(t, msgs[0].Pending)
	require.False(t, msgs[0].CreatedAt.IsZero())
}

// Concurrent Sends must hit the wire in the same order they were appended to
// the local view, so the store's order and the view's order agree.
func TestConcurrentSendsKeepViewOrder(t *testing.T) {
	store := newMemStore()
	c := open(t, newRelay(t, store), "team_1", "alice")

	const workers, perWorker = 2, 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := c.Send(fmt.Sprintf("w%d-%d", w, i)); err != nil {
					t.Error(err)
				}
			}
		}(w)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return store.count("team_1") == workers*perWorker },
		2*time.Second, 10*time.Millisecond)

	msgs := c.Messages()
	require.Len(t, msgs, workers*perWorker)

	stored, err := store.History(context.Background(), "team_1")
	require.NoError(t, err)
	for i := range stored {
		require.Equal(t, stored[i].Content, msgs[i].Content,
			"view position %d diverged from durable order", i)
	}
}

func TestSaveFailureSurfacesAsNotice(t *testing.T) {
	store := newMemStore()
	store.failSave = true

	noticeCh := make(chan string, 1)
	c := open(t, newRelay(t, store), "team_1", "alice",
		chatclient.WithNoticeFunc(func(msg string) { noticeCh <- msg }))

	require.NoError(t, c.Send("test"))

	select {
	case msg := <-noticeCh:
		require.Equal(t, "Failed to save message", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no notice received")
	}
	require.Contains(t, c.Notices(), "Failed to save message")
}

func TestJoinReplacesViewWithNewRoomSnapshot(t *testing.T) {
	store := newMemStore()
	_, err := store.Save(context.Background(), "team_1", "alice", "team talk")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "mentor_9", "mentor", "office hours")
	require.NoError(t, err)

	c := open(t, newRelay(t, store), "team_1", "bob")
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Join("mentor_9"))

	require.Eventually(t, func() bool {
		msgs := c.Messages()
		return len(msgs) == 1 && msgs[0].Content == "office hours"
	}, 2*time.Second, 10*time.Millisecond)
}
