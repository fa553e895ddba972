// Package broadcast carries card change notifications between participants
// of a board over Redis pub/sub. Messages only name what changed; receivers
// refetch the card from persistence.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/debug"
)

// Kind is the type of change an Event announces.
type Kind string

const (
	KindCreated      Kind = "created"
	KindUpdated      Kind = "updated"
	KindDeleted      Kind = "deleted"
	KindBoardUpdated Kind = "board_updated"
)

// Event is the wire message published on a board's channel.
type Event struct {
	Kind     Kind   `json:"kind"`
	BoardID  string `json:"board_id"`
	ColumnID string `json:"column_id,omitempty"`
	CardID   string `json:"card_id,omitempty"`
	Origin   string `json:"origin"`
}

// Channel returns the pub/sub channel for a board.
func Channel(boardID string) string {
	return fmt.Sprintf("retro:%s:items", boardID)
}

// Client publishes and subscribes to one board's channel. It is safe for
// concurrent use.
type Client struct {
	rdb     *redis.Client
	boardID string
	origin  string
}

var (
	_ board.Broadcaster    = (*Client)(nil)
	_ board.BoardAnnouncer = (*Client)(nil)
)

// NewClient creates a client for boardID. Every client gets a fresh origin
// so it can recognise and skip its own messages.
func NewClient(redisOpts *redis.Options, boardID string) (*Client, error) {
	if boardID == "" {
		return nil, fmt.Errorf("board id cannot be empty")
	}
	return &Client{
		rdb:     redis.NewClient(redisOpts),
		boardID: boardID,
		origin:  uuid.NewString(),
	}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Origin identifies messages published by this client.
func (c *Client) Origin() string { return c.origin }

// BoardID returns the board this client is bound to.
func (c *Client) BoardID() string { return c.boardID }

func (c *Client) publish(ctx context.Context, kind Kind, columnID, id string) error {
	payload, err := json.Marshal(Event{
		Kind:     kind,
		BoardID:  c.boardID,
		ColumnID: columnID,
		CardID:   id,
		Origin:   c.origin,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}
	if err := c.rdb.Publish(ctx, Channel(c.boardID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}
	debug.Log("broadcast: %s %s/%s", kind, columnID, id)
	return nil
}

// AnnounceCreated tells other participants a card was created.
func (c *Client) AnnounceCreated(ctx context.Context, columnID, id string) error {
	return c.publish(ctx, KindCreated, columnID, id)
}

// AnnounceUpdated tells other participants a card changed.
func (c *Client) AnnounceUpdated(ctx context.Context, columnID, id string) error {
	return c.publish(ctx, KindUpdated, columnID, id)
}

// AnnounceDeleted tells other participants a card was deleted.
func (c *Client) AnnounceDeleted(ctx context.Context, columnID, id string) error {
	return c.publish(ctx, KindDeleted, columnID, id)
}

// AnnounceBoardUpdated tells other participants the board definition
// (phase, columns, notes) changed.
func (c *Client) AnnounceBoardUpdated(ctx context.Context) error {
	return c.publish(ctx, KindBoardUpdated, "", "")
}

// Subscription is an active subscription to a board's channel.
// Caller must call Close() when done.
type Subscription struct {
	boardID string
	origin  string
	events  <-chan Event
	errors  <-chan error
	cancel  func()
	once    sync.Once
}

// Events returns the channel of decoded events. It is closed when the
// subscription is closed or its context is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns decoding failures. The subscription continues after
// errors; the offending message is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to the board's channel. It returns once Redis has
// confirmed the subscription, so anything published afterwards is seen.
//
// Events are delivered on a buffered channel (size 10). Redis pub/sub is
// at-most-once; a slow receiver loses messages and relies on polling.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, Channel(c.boardID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel(c.boardID), err)
	}

	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}
				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		boardID: c.boardID,
		origin:  c.origin,
		events:  eventsChan,
		errors:  errorsChan,
		cancel:  cancelFunc,
	}, nil
}

// Handler receives inbound events. *board.Board implements it.
type Handler interface {
	HandleCreated(ctx context.Context, columnID, id string) error
	HandleUpdated(ctx context.Context, columnID, id string) error
	HandleDeleted(ctx context.Context, columnID, id string) error
	CheckBoard(ctx context.Context) (bool, error)
}

var _ Handler = (*board.Board)(nil)

// ErrUnknownKind is returned by Dispatch for an event it cannot route.
var ErrUnknownKind = errors.New("unknown event kind")

// Dispatch routes one event to h.
func Dispatch(ctx context.Context, h Handler, ev Event) error {
	switch ev.Kind {
	case KindCreated:
		return h.HandleCreated(ctx, ev.ColumnID, ev.CardID)
	case KindUpdated:
		return h.HandleUpdated(ctx, ev.ColumnID, ev.CardID)
	case KindDeleted:
		return h.HandleDeleted(ctx, ev.ColumnID, ev.CardID)
	case KindBoardUpdated:
		_, err := h.CheckBoard(ctx)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}
}

// Pump feeds events from sub to h until ctx is done or the subscription
// ends. Events the subscribing client published itself, and events for
// other boards, are skipped. Handler errors are logged and do not stop the
// pump.
func Pump(ctx context.Context, sub *Subscription, h Handler) {
	events, errs := sub.Events(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			debug.Warn("broadcast: %v", err)
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Origin == sub.origin || ev.BoardID != sub.boardID {
				continue
			}
			if err := Dispatch(ctx, h, ev); err != nil {
				debug.Warn("broadcast: handling %s %s: %v", ev.Kind, ev.CardID, err)
			}
		}
	}
}
