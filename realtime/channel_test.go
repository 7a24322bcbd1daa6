package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-arena-client/api"
	"github.com/jrsteele09/go-arena-client/realtime"
)

// pushServer accepts websocket connections, records the bearer each one
// presented, and pushes one balance frame per connection.
type pushServer struct {
	mu      sync.Mutex
	bearers []string
	frame   string
}

func (s *pushServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.bearers = append(s.bearers, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		frame := s.frame
		s.mu.Unlock()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		if err := conn.Write(r.Context(), websocket.MessageText, []byte(frame)); err != nil {
			return
		}
		// Hold the connection open until the client goes away.
		_, _, _ = conn.Read(r.Context())
	}
}

func (s *pushServer) seenBearers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.bearers))
	copy(out, s.bearers)
	return out
}

func wsURL(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestChannel_DeliversBalancePush(t *testing.T) {
	ps := &pushServer{frame: `{"event":"balance:update","data":{"balance":150,"ucBalance":60}}`}
	srv := httptest.NewServer(ps.handler())
	defer srv.Close()

	pushes := make(chan api.BalancePush, 1)
	ch := realtime.NewChannel(wsURL(t, srv), func(p api.BalancePush) { pushes <- p }, zerolog.Nop())
	require.NoError(t, ch.Open(context.Background(), "A1"))
	defer ch.Close()

	select {
	case p := <-pushes:
		require.Equal(t, 150.0, p.Balance)
		require.Equal(t, 60.0, p.UCBalance)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for balance push")
	}

	require.Equal(t, []string{"A1"}, ps.seenBearers())
}

func TestChannel_IgnoresUnknownEvents(t *testing.T) {
	ps := &pushServer{frame: `{"event":"something:else","data":{"balance":1}}`}
	srv := httptest.NewServer(ps.handler())
	defer srv.Close()

	pushes := make(chan api.BalancePush, 1)
	ch := realtime.NewChannel(wsURL(t, srv), func(p api.BalancePush) { pushes <- p }, zerolog.Nop())
	require.NoError(t, ch.Open(context.Background(), "A1"))
	defer ch.Close()

	select {
	case p := <-pushes:
		t.Fatalf("unexpected push: %+v", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestChannel_ReopenRotatesCredential(t *testing.T) {
	ps := &pushServer{frame: `{"event":"balance:update","data":{"balance":1,"ucBalance":1}}`}
	srv := httptest.NewServer(ps.handler())
	defer srv.Close()

	ch := realtime.NewChannel(wsURL(t, srv), nil, zerolog.Nop())
	require.NoError(t, ch.Open(context.Background(), "A1"))
	require.Eventually(t, func() bool { return len(ps.seenBearers()) == 1 }, 3*time.Second, 10*time.Millisecond)

	// Open again with a fresh token: the old connection is torn down first.
	require.NoError(t, ch.Open(context.Background(), "A2"))
	defer ch.Close()

	require.Eventually(t, func() bool {
		bearers := ps.seenBearers()
		return len(bearers) >= 2 && bearers[len(bearers)-1] == "A2"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestChannel_ReconnectsAfterDrop(t *testing.T) {
	ps := &pushServer{frame: `{"event":"balance:update","data":{"balance":1,"ucBalance":1}}`}

	var drop sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dropped := false
		drop.Do(func() {
			// First connection dies immediately after the upgrade.
			conn, err := websocket.Accept(w, r, nil)
			if err == nil {
				conn.Close(websocket.StatusInternalError, "drop")
			}
			dropped = true
		})
		if !dropped {
			ps.handler()(w, r)
		}
	}))
	defer srv.Close()

	pushes := make(chan api.BalancePush, 1)
	ch := realtime.NewChannel(wsURL(t, srv), func(p api.BalancePush) { pushes <- p }, zerolog.Nop(),
		realtime.WithReconnect(10*time.Millisecond, 50*time.Millisecond))
	require.NoError(t, ch.Open(context.Background(), "A1"))
	defer ch.Close()

	select {
	case <-pushes:
	case <-time.After(3 * time.Second):
		t.Fatal("channel did not reconnect after a dropped connection")
	}
}

// countingServer tracks how many websocket connections are live right now.
type countingServer struct {
	mu     sync.Mutex
	active int
	total  int
}

func (s *countingServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.active++
		s.total++
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		}()
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		_, _, _ = conn.Read(r.Context())
	}
}

func (s *countingServer) activeConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *countingServer) totalConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func TestChannel_ConcurrentOpensLeaveOneConnection(t *testing.T) {
	cs := &countingServer{}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	ch := realtime.NewChannel(wsURL(t, srv), nil, zerolog.Nop())

	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		errs := make([]error, 4)
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				errs[j] = ch.Open(context.Background(), "A1")
			}(j)
		}
		wg.Wait()
		for j, err := range errs {
			require.NoErrorf(t, err, "iteration %d opener %d", i, j)
		}

		// However the Opens interleaved, exactly one connection loop survives.
		require.Eventually(t, func() bool { return cs.activeConns() == 1 }, 3*time.Second, 5*time.Millisecond,
			"iteration %d: expected a single live connection, got %d", i, cs.activeConns())

		require.NoError(t, ch.Close())
		require.Eventually(t, func() bool { return cs.activeConns() == 0 }, 3*time.Second, 5*time.Millisecond,
			"iteration %d: Close left %d connections behind", i, cs.activeConns())
	}
}

func TestChannel_BackoffResetsAfterSuccessfulConnect(t *testing.T) {
	// Every connection is cut straight after the upgrade, so the channel is
	// reconnecting constantly. With the backoff reset after each successful
	// dial, the delay stays at the minimum instead of climbing to the cap.
	cs := &countingServer{}
	countAndDrop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.total++
		cs.mu.Unlock()
		conn, err := websocket.Accept(w, r, nil)
		if err == nil {
			conn.Close(websocket.StatusInternalError, "drop")
		}
	}))
	defer countAndDrop.Close()

	ch := realtime.NewChannel(wsURL(t, countAndDrop), nil, zerolog.Nop(),
		realtime.WithReconnect(10*time.Millisecond, 10*time.Second))
	require.NoError(t, ch.Open(context.Background(), "A1"))
	defer ch.Close()

	// A doubling backoff that never resets reaches only ~9 dials in two
	// seconds; resetting after each successful dial reaches many more.
	require.Eventually(t, func() bool { return cs.totalConns() >= 20 }, 2*time.Second, 20*time.Millisecond)
}

func TestChannel_CloseIsIdempotent(t *testing.T) {
	ch := realtime.NewChannel("ws://127.0.0.1:0", nil, zerolog.Nop())
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
}

func TestChannel_OpenRequiresToken(t *testing.T) {
	ch := realtime.NewChannel("ws://127.0.0.1:0", nil, zerolog.Nop())
	require.Error(t, ch.Open(context.Background(), ""))
}
