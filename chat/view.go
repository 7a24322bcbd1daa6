// Package chat keeps a local message sequence and status snapshot consistent
// with the server for one open conversation. The client never assumes
// exclusive access to the server's data: it polls on a timer, merges by
// message identity, and treats the server as authoritative for status.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-arena-client/api"
)

// Conversation is one pollable chat backend: a tournament match room, a
// classic tournament chat, or the user's support thread.
type Conversation interface {
	// Messages returns messages newer than after; the zero time returns the
	// full list.
	Messages(ctx context.Context, after time.Time) ([]api.Message, error)
	// Send posts content and returns the stored message with its
	// server-assigned identity.
	Send(ctx context.Context, content string) (*api.Message, error)
	// Status returns the parent entity's current status, or "" when the
	// conversation has none (support threads).
	Status(ctx context.Context) (string, error)
}

const defaultPollInterval = 10 * time.Second

// View is the local cache for one open conversation. Messages are immutable
// once created, so the merge is append-only with identity-based deduplication:
// overlapping poll responses can re-deliver known messages but can never
// duplicate or reorder them.
type View struct {
	conv     Conversation
	log      zerolog.Logger
	interval time.Duration
	onUpdate func()

	mu       sync.Mutex
	messages []api.Message
	seen     map[string]struct{}
	cursor   time.Time // CreatedAt of the newest held message
	status   string
	closed   bool
	polling  bool // guards against overlapping ticks when a fetch runs long

	cancel context.CancelFunc
	done   chan struct{}
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithPollInterval overrides the poll timer period.
func WithPollInterval(d time.Duration) ViewOption {
	return func(v *View) { v.interval = d }
}

// WithViewLogger sets the view's logger.
func WithViewLogger(log zerolog.Logger) ViewOption {
	return func(v *View) { v.log = log }
}

// WithOnUpdate registers a callback invoked synchronously after every change
// to the held state (merge, status change, confirmed send). It runs outside
// the view's lock, so it may call back into the view, and calls never overlap
// for changes made by the same goroutine.
func WithOnUpdate(fn func()) ViewOption {
	return func(v *View) { v.onUpdate = fn }
}

// NewView creates a View over conv. Call Open to populate it and start the
// poll loop.
func NewView(conv Conversation, options ...ViewOption) *View {
	v := &View{
		conv:     conv,
		log:      zerolog.Nop(),
		interval: defaultPollInterval,
		seen:     make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Open loads the initial state and starts the poll loop. The initial load is
// surfaced to the caller; later poll failures are not.
func (v *View) Open(ctx context.Context) error {
	if err := v.LoadInitial(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})
	go v.pollLoop(loopCtx)
	return nil
}

// LoadInitial fetches the full message list and current status and replaces
// the local state wholesale.
func (v *View) LoadInitial(ctx context.Context) error {
	msgs, err := v.conv.Messages(ctx, time.Time{})
	if err != nil {
		return err
	}
	status, err := v.conv.Status(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.messages = nil
	v.seen = make(map[string]struct{})
	v.cursor = time.Time{}
	v.appendLocked(msgs)
	v.status = status
	v.mu.Unlock()

	v.notify()
	return nil
}

// Poll performs one sync tick: fetch messages newer than the cursor, merge,
// and replace the status snapshot. Results arriving after Close are
// discarded. Safe to call directly for an explicit user-triggered refresh.
func (v *View) Poll(ctx context.Context) {
	v.mu.Lock()
	if v.closed || v.polling {
		v.mu.Unlock()
		return
	}
	v.polling = true
	after := v.cursor
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.polling = false
		v.mu.Unlock()
	}()

	msgs, msgErr := v.conv.Messages(ctx, after)
	status, statusErr := v.conv.Status(ctx)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}

	changed := false
	if msgErr != nil {
		// Transient failures keep the stale-but-consistent view; the next
		// tick retries.
		v.log.Debug().Err(msgErr).Msg("message poll failed")
	} else {
		changed = v.appendLocked(msgs)
	}

	if statusErr != nil {
		v.log.Debug().Err(statusErr).Msg("status poll failed")
	} else if status != v.status {
		v.status = status
		changed = true
	}
	v.mu.Unlock()

	if changed {
		v.notify()
	}
}

// Send posts content and appends the server-confirmed message. There is no
// optimistic append and no silent retry: on failure the local sequence is
// untouched and the error goes to the caller, who must know the message may
// not have been delivered.
func (v *View) Send(ctx context.Context, content string) (*api.Message, error) {
	msg, err := v.conv.Send(ctx, content)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	appended := !v.closed && v.appendLocked([]api.Message{*msg})
	v.mu.Unlock()

	if appended {
		v.notify()
	}
	return msg, nil
}

// Messages returns a copy of the held sequence in merge order.
func (v *View) Messages() []api.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]api.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Status returns the last status snapshot fetched from the server.
func (v *View) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Close stops the poll loop. In-flight fetches are allowed to finish but
// their results are discarded.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	cancel, done := v.cancel, v.done
	v.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (v *View) pollLoop(ctx context.Context) {
	defer close(v.done)
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Poll(ctx)
		}
	}
}

// appendLocked merges a batch: unknown identities are appended in the order
// received, known ones are discarded untouched. Held messages never reorder.
func (v *View) appendLocked(msgs []api.Message) bool {
	added := false
	for _, m := range msgs {
		if _, ok := v.seen[m.ID]; ok {
			continue
		}
		v.seen[m.ID] = struct{}{}
		v.messages = append(v.messages, m)
		if m.CreatedAt.After(v.cursor) {
			v.cursor = m.CreatedAt
		}
		added = true
	}
	return added
}

// notify is called with the mutex released.
func (v *View) notify() {
	if v.onUpdate != nil {
		v.onUpdate()
	}
}
