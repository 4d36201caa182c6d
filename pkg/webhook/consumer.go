package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voxgate/callgateway/o11y"
)

// ErrQueueFull is returned by Enqueue when the bounded event queue has no
// room; the HTTP handler maps this to a 503 response (§5 backpressure).
var ErrQueueFull = errors.New("webhook: event queue full")

// CallNotifier is CO's narrow inbound surface, as seen from WI. WI calls
// into CO; CO never calls back into WI (§9: the CO↔WI reference is
// unidirectional despite appearances).
type CallNotifier interface {
	RoomStarted(ctx context.Context, callID, roomName string, metadata string) error
	RoomFinished(ctx context.Context, callID string) error
	ParticipantJoined(ctx context.Context, callID, identity string) error
	ParticipantLeft(ctx context.Context, callID, identity string) error
	AudioTrackPublished(ctx context.Context, callID, trackSID, identity string) error
	AudioTrackUnpublished(ctx context.Context, callID, trackSID string) error
}

// Consumer is WI's event queue and RoomSession table. Exactly one goroutine
// (run) drains the queue; mu guards sessions and finished, since
// ActiveCalls, Call and CleanupStale reach them from other goroutines.
type Consumer struct {
	notifier CallNotifier
	logger   *o11y.Logger
	metrics  *o11y.Metrics

	queue chan Event

	mu       sync.Mutex
	sessions map[string]*RoomSession // room_name -> session
	finished map[string]bool         // room_name -> room_finished already seen (idempotence law)

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewConsumer constructs a Consumer with a bounded queue of the given
// capacity (at least 1).
func NewConsumer(notifier CallNotifier, metrics *o11y.Metrics, capacity int) *Consumer {
	if capacity < 1 {
		capacity = 1
	}
	c := &Consumer{
		notifier: notifier,
		logger:   o11y.NewLogger(),
		metrics:  metrics,
		queue:    make(chan Event, capacity),
		sessions: make(map[string]*RoomSession),
		finished: make(map[string]bool),
		stop:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Enqueue submits an event for processing without blocking. It returns
// ErrQueueFull if the queue has no room.
func (c *Consumer) Enqueue(e Event) error {
	select {
	case c.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Consumer) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case e := <-c.queue:
			c.process(e)
		}
	}
}

func (c *Consumer) process(e Event) {
	ctx := context.Background()
	roomName := e.RoomName()

	callID, ours := CallIDFromRoom(roomName)
	if c.metrics != nil {
		c.metrics.RecordWebhookEvent(ctx, string(e.Kind()))
	}

	switch ev := e.(type) {
	case RoomStarted:
		if !ours {
			return
		}
		c.mu.Lock()
		c.sessions[roomName] = newRoomSession(callID, roomName, time.Now())
		delete(c.finished, roomName)
		c.mu.Unlock()
		if err := c.notifier.RoomStarted(ctx, callID, roomName, ev.Metadata); err != nil {
			c.logger.Error(ctx, "room_started notify failed", "call_id", callID, "room", roomName, "error", err)
		}

	case RoomFinished:
		if !ours {
			return
		}
		c.mu.Lock()
		alreadyFinished := c.finished[roomName]
		c.finished[roomName] = true
		delete(c.sessions, roomName)
		c.mu.Unlock()
		if alreadyFinished {
			// Repeated room_finished for the same room is a no-op after the
			// first (§8 idempotence law).
			return
		}
		if err := c.notifier.RoomFinished(ctx, callID); err != nil {
			c.logger.Error(ctx, "room_finished notify failed", "call_id", callID, "room", roomName, "error", err)
		}

	case ParticipantJoined:
		if !ours {
			return
		}
		c.mu.Lock()
		if sess, ok := c.sessions[roomName]; ok {
			sess.Participants[ev.Identity] = struct{}{}
		}
		c.mu.Unlock()
		if err := c.notifier.ParticipantJoined(ctx, callID, ev.Identity); err != nil {
			c.logger.Error(ctx, "participant_joined notify failed", "call_id", callID, "error", err)
		}

	case ParticipantLeft:
		if !ours {
			return
		}
		c.mu.Lock()
		if sess, ok := c.sessions[roomName]; ok {
			delete(sess.Participants, ev.Identity)
		}
		c.mu.Unlock()
		if err := c.notifier.ParticipantLeft(ctx, callID, ev.Identity); err != nil {
			c.logger.Error(ctx, "participant_left notify failed", "call_id", callID, "error", err)
		}

	case TrackPublished:
		if !ours {
			return
		}
		c.mu.Lock()
		if sess, ok := c.sessions[roomName]; ok {
			sess.AudioTracks[ev.TrackSID] = TrackInfo{Type: ev.Type, Identity: ev.Identity}
		}
		c.mu.Unlock()
		if ev.Type == "audio" {
			if err := c.notifier.AudioTrackPublished(ctx, callID, ev.TrackSID, ev.Identity); err != nil {
				c.logger.Error(ctx, "track_published notify failed", "call_id", callID, "error", err)
			}
		}

	case TrackUnpublished:
		if !ours {
			return
		}
		c.mu.Lock()
		if sess, ok := c.sessions[roomName]; ok {
			delete(sess.AudioTracks, ev.TrackSID)
		}
		c.mu.Unlock()
		if ev.Type == "audio" {
			if err := c.notifier.AudioTrackUnpublished(ctx, callID, ev.TrackSID); err != nil {
				c.logger.Error(ctx, "track_unpublished notify failed", "call_id", callID, "error", err)
			}
		}

	case RecordingStarted, RecordingFinished:
		c.logger.Debug(ctx, "recording event", "room", roomName, "kind", e.Kind())
	}
}

// ActiveCalls returns a snapshot of every live RoomSession.
func (c *Consumer) ActiveCalls() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Snapshot, 0, len(c.sessions))
	for _, sess := range c.sessions {
		out = append(out, sess.snapshot())
	}
	return out
}

// Call returns the snapshot for one call_id, if a live RoomSession exists.
func (c *Consumer) Call(callID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sess := range c.sessions {
		if sess.CallID == callID {
			return sess.snapshot(), true
		}
	}
	return Snapshot{}, false
}

// CleanupStale removes RoomSessions older than maxAge and reports how many
// were removed.
func (c *Consumer) CleanupStale(maxAge time.Duration) int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int
	for room, sess := range c.sessions {
		if now.Sub(sess.OpenedAt) > maxAge {
			delete(c.sessions, room)
			delete(c.finished, room)
			removed++
		}
	}
	return removed
}

// QueueDepth reports the current number of queued, unprocessed events.
func (c *Consumer) QueueDepth() int {
	return len(c.queue)
}

// Shutdown stops the consumer goroutine. Idempotent.
func (c *Consumer) Shutdown(ctx context.Context) error {
	select {
	case <-c.stop:
		return nil
	default:
		close(c.stop)
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
