package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T, boardID string) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, boardID)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func peer(t *testing.T, mr *miniredis.Miniredis, boardID string) *Client {
	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, boardID)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []string
	fail  error
	seen  chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: make(chan struct{}, 16)}
}

func (h *recordingHandler) record(s string) error {
	h.mu.Lock()
	h.calls = append(h.calls, s)
	err := h.fail
	h.mu.Unlock()
	h.seen <- struct{}{}
	return err
}

func (h *recordingHandler) HandleCreated(_ context.Context, columnID, id string) error {
	return h.record("created:" + columnID + ":" + id)
}

func (h *recordingHandler) HandleUpdated(_ context.Context, columnID, id string) error {
	return h.record("updated:" + columnID + ":" + id)
}

func (h *recordingHandler) HandleDeleted(_ context.Context, columnID, id string) error {
	return h.record("deleted:" + columnID + ":" + id)
}

func (h *recordingHandler) CheckBoard(context.Context) (bool, error) {
	return true, h.record("board")
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *recordingHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.seen:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for handler call %d", i+1)
		}
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t, "b1")
		assert.Equal(t, "b1", client.BoardID())
		assert.NotEmpty(t, client.Origin())
	})

	t.Run("rejects empty board id", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "board id cannot be empty")
	})

	t.Run("origins are unique", func(t *testing.T) {
		client, mr := setupTestClient(t, "b1")
		other := peer(t, mr, "b1")
		assert.NotEqual(t, client.Origin(), other.Origin())
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t, "b1")
	assert.NoError(t, client.Ping(context.Background()))
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "retro:b1:items", Channel("b1"))
}

func TestAnnounce_PublishesEvents(t *testing.T) {
	client, mr := setupTestClient(t, "b1")
	ctx := context.Background()
	listener := peer(t, mr, "b1")

	sub, err := listener.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.AnnounceCreated(ctx, "good", "c1"))
	require.NoError(t, client.AnnounceUpdated(ctx, "good", "c1"))
	require.NoError(t, client.AnnounceDeleted(ctx, "bad", "c2"))
	require.NoError(t, client.AnnounceBoardUpdated(ctx))

	want := []Event{
		{Kind: KindCreated, BoardID: "b1", ColumnID: "good", CardID: "c1", Origin: client.Origin()},
		{Kind: KindUpdated, BoardID: "b1", ColumnID: "good", CardID: "c1", Origin: client.Origin()},
		{Kind: KindDeleted, BoardID: "b1", ColumnID: "bad", CardID: "c2", Origin: client.Origin()},
		{Kind: KindBoardUpdated, BoardID: "b1", Origin: client.Origin()},
	}
	for _, w := range want {
		assert.Equal(t, w, receive(t, sub))
	}
}

func TestSubscribe_SkipsMalformedPayloads(t *testing.T) {
	client, mr := setupTestClient(t, "b1")
	ctx := context.Background()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	mr.Publish(Channel("b1"), "{not json")

	select {
	case err := <-sub.Errors():
		assert.Contains(t, err.Error(), "failed to unmarshal event")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for decode error")
	}

	require.NoError(t, peer(t, mr, "b1").AnnounceCreated(ctx, "good", "c9"))
	assert.Equal(t, "c9", receive(t, sub).CardID)
}

func TestSubscription_CloseEndsStream(t *testing.T) {
	client, _ := setupTestClient(t, "b1")
	sub, err := client.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestDispatch(t *testing.T) {
	h := newRecordingHandler()
	ctx := context.Background()

	require.NoError(t, Dispatch(ctx, h, Event{Kind: KindCreated, ColumnID: "a", CardID: "1"}))
	require.NoError(t, Dispatch(ctx, h, Event{Kind: KindUpdated, ColumnID: "a", CardID: "1"}))
	require.NoError(t, Dispatch(ctx, h, Event{Kind: KindDeleted, ColumnID: "a", CardID: "1"}))
	require.NoError(t, Dispatch(ctx, h, Event{Kind: KindBoardUpdated}))
	assert.Equal(t, []string{"created:a:1", "updated:a:1", "deleted:a:1", "board"}, h.snapshot())

	err := Dispatch(ctx, h, Event{Kind: "renamed"})
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestPump_SkipsOwnOriginAndOtherBoards(t *testing.T) {
	client, mr := setupTestClient(t, "b1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	h := newRecordingHandler()
	done := make(chan struct{})
	go func() {
		Pump(ctx, sub, h)
		close(done)
	}()

	// Own message: skipped.
	require.NoError(t, client.AnnounceCreated(ctx, "good", "mine"))
	// Same channel, foreign board id: skipped.
	mr.Publish(Channel("b1"), `{"kind":"created","board_id":"b2","card_id":"stray","origin":"x"}`)
	// Another participant: delivered.
	require.NoError(t, peer(t, mr, "b1").AnnounceUpdated(ctx, "bad", "theirs"))

	h.wait(t, 1)
	assert.Equal(t, []string{"updated:bad:theirs"}, h.snapshot())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop on cancel")
	}
}

func TestPump_HandlerErrorsDoNotStop(t *testing.T) {
	client, mr := setupTestClient(t, "b1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)

	h := newRecordingHandler()
	h.fail = errors.New("boom")
	done := make(chan struct{})
	go func() {
		Pump(ctx, sub, h)
		close(done)
	}()

	other := peer(t, mr, "b1")
	require.NoError(t, other.AnnounceDeleted(ctx, "a", "1"))
	require.NoError(t, other.AnnounceBoardUpdated(ctx))
	h.wait(t, 2)
	assert.Equal(t, []string{"deleted:a:1", "board"}, h.snapshot())

	// Closing the subscription ends the pump.
	require.NoError(t, sub.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop after Close")
	}
}
