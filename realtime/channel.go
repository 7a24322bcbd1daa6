// Package realtime maintains the client's single persistent push connection.
// The server uses it for exactly one named event, balance:update; everything
// else the client learns by polling. The credential is fixed at connect time,
// so the session coordinator re-opens the channel whenever the access token
// rotates.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-arena-client/api"
)

const (
	eventBalanceUpdate = "balance:update"

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// envelope is the wire frame for every push event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Channel is an owned resource with an explicit Open/Close lifecycle. Open
// dials and keeps the connection alive with backoff until Close (or a
// credential rotation) tears it down.
type Channel struct {
	url       string
	clientID  string // stable per-process id sent on the handshake
	onBalance func(api.BalancePush)
	log       zerolog.Logger

	retryMin time.Duration
	retryMax time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithReconnect overrides the reconnect backoff bounds.
func WithReconnect(min, max time.Duration) ChannelOption {
	return func(ch *Channel) {
		ch.retryMin, ch.retryMax = min, max
	}
}

// NewChannel creates a channel that will dial wsURL and invoke onBalance for
// every balance:update event received.
func NewChannel(wsURL string, onBalance func(api.BalancePush), log zerolog.Logger, options ...ChannelOption) *Channel {
	ch := &Channel{
		url:       wsURL,
		clientID:  uuid.NewString(),
		onBalance: onBalance,
		log:       log,
		retryMin:  reconnectMin,
		retryMax:  reconnectMax,
	}
	for _, opt := range options {
		opt(ch)
	}
	return ch
}

// Open starts the connection loop authenticated with accessToken. An already
// open channel is closed first, so Open doubles as "rotate credential". The
// mutex is held across the whole teardown-and-replace so concurrent Opens
// serialize and at most one connection loop exists at any instant.
func (ch *Channel) Open(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return errors.New("realtime: access token required")
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ch.cancel = cancel
	ch.done = done

	go ch.run(runCtx, accessToken, done)
	return nil
}

// Close tears down the connection loop. Safe to call when already closed.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.stopLocked()
	return nil
}

// stopLocked cancels the current loop and waits for it to exit. The run
// goroutine never takes the mutex, so waiting under it cannot deadlock.
func (ch *Channel) stopLocked() {
	if ch.cancel == nil {
		return
	}
	ch.cancel()
	<-ch.done
	ch.cancel, ch.done = nil, nil
}

func (ch *Channel) run(ctx context.Context, accessToken string, done chan struct{}) {
	defer close(done)

	backoff := ch.retryMin
	for {
		if ctx.Err() != nil {
			return
		}

		connected, err := ch.connectAndRead(ctx, accessToken)
		if ctx.Err() != nil {
			return
		}
		if connected {
			// The dial succeeded, so the next drop starts backing off from
			// scratch rather than inheriting an earlier streak's delay.
			backoff = ch.retryMin
		}
		ch.log.Debug().Err(err).Dur("retry_in", backoff).Msg("realtime channel dropped")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > ch.retryMax {
			backoff = ch.retryMax
		}
	}
}

// connectAndRead dials and pumps frames until the connection drops. The
// returned bool reports whether the dial itself succeeded.
func (ch *Channel) connectAndRead(ctx context.Context, accessToken string) (bool, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)
	header.Set("X-Client-ID", ch.clientID)

	conn, _, err := websocket.Dial(ctx, ch.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ch.log.Debug().Msg("realtime channel connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			ch.log.Warn().Err(err).Msg("unparseable realtime frame")
			continue
		}
		if env.Event != eventBalanceUpdate {
			continue
		}

		var push api.BalancePush
		if err := json.Unmarshal(env.Data, &push); err != nil {
			ch.log.Warn().Err(err).Msg("unparseable balance push")
			continue
		}
		if ch.onBalance != nil {
			ch.onBalance(push)
		}
	}
}
