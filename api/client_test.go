package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-arena-client/api"
	"github.com/jrsteele09/go-arena-client/apierr"
	"github.com/jrsteele09/go-arena-client/tokenstore"
	"github.com/jrsteele09/go-arena-client/tokenstore/storefake"
)

// testFixture wires a Client against an httptest server with a programmable
// protected endpoint and a counting refresh endpoint.
type testFixture struct {
	store  *storefake.FakeStore
	client *api.Client
	server *httptest.Server

	refreshCalls atomic.Int64
	refreshOK    bool // when false the refresh endpoint answers 401

	mu          sync.Mutex
	validAccess string // bearer the protected endpoint accepts
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		store:       storefake.NewFakeStore(),
		refreshOK:   true,
		validAccess: "A1",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.PathAuthRefresh, func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if !f.refreshOK {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"refresh token revoked"}`))
			return
		}
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		require.Equal(t, "R1", req.RefreshToken)

		f.mu.Lock()
		f.validAccess = "A2"
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(api.AuthTokens{AccessToken: "A2", RefreshToken: "R2"})
	})
	mux.HandleFunc("GET /protected", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := "Bearer " + f.validAccess
		f.mu.Unlock()
		if r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"token expired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	t.Cleanup(func() { _ = f.store.Close() })

	f.client = api.New(f.server.URL, f.store)
	return f
}

func (f *testFixture) seedTokens(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, f.store.Save(tokenstore.TokenPair{AccessToken: access, RefreshToken: refresh}))
}

func TestDo_RefreshAndRetry(t *testing.T) {
	f := setupTestFixture(t)
	f.seedTokens(t, "A1", "R1")
	f.mu.Lock()
	f.validAccess = "A2" // A1 is already stale
	f.mu.Unlock()

	var out map[string]string
	err := f.client.Do(context.Background(), http.MethodGet, "/protected", nil, &out)
	require.NoError(t, err)
	require.Equal(t, "yes", out["ok"])

	// Exactly one refresh happened and the store now holds the rotated pair.
	require.EqualValues(t, 1, f.refreshCalls.Load())
	pair, err := f.store.Tokens()
	require.NoError(t, err)
	require.NotNil(t, pair)
	require.Equal(t, "A2", pair.AccessToken)
	require.Equal(t, "R2", pair.RefreshToken)
}

func TestDo_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.seedTokens(t, "A1", "R1")
	f.mu.Lock()
	f.validAccess = "A2"
	f.mu.Unlock()

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]string
			errs[i] = f.client.Do(context.Background(), http.MethodGet, "/protected", nil, &out)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "caller %d", i)
	}
	require.EqualValues(t, 1, f.refreshCalls.Load(),
		"concurrent 401 victims must share a single refresh call")
}

func TestDo_RefreshFailureClearsTokensAndExpiresSession(t *testing.T) {
	f := setupTestFixture(t)
	f.seedTokens(t, "A1", "R1")
	f.refreshOK = false
	f.mu.Lock()
	f.validAccess = "A2"
	f.mu.Unlock()

	err := f.client.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	require.ErrorIs(t, err, apierr.ErrSessionExpired)

	pair, storeErr := f.store.Tokens()
	require.NoError(t, storeErr)
	require.Nil(t, pair, "a failed refresh must clear the stored pair")

	// Only one refresh attempt, and the original request was not retried a
	// second time.
	require.EqualValues(t, 1, f.refreshCalls.Load())
}

func TestDo_NoRetryWithoutStoredPair(t *testing.T) {
	f := setupTestFixture(t)
	// No tokens at all: the request goes out unauthenticated, the 401 is
	// normalized and no refresh is attempted.
	err := f.client.Do(context.Background(), http.MethodGet, "/protected", nil, nil)
	require.ErrorIs(t, err, apierr.ErrUnauthenticated)
	require.EqualValues(t, 0, f.refreshCalls.Load())
}

func TestRefresh_NoNetworkCallWithoutRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.client.Refresh(context.Background())
	require.ErrorIs(t, err, apierr.ErrSessionExpired)
	require.EqualValues(t, 0, f.refreshCalls.Load())
}

func TestLogin_BannedCarriesReason(t *testing.T) {
	store := storefake.NewFakeStore()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"BANNED","reason":"cheating"}`))
	}))
	defer server.Close()

	client := api.New(server.URL, store)
	_, err := client.Login(context.Background(), api.LoginRequest{Email: "a@b.c", Password: "pw"})
	require.ErrorIs(t, err, apierr.ErrBanned)
	require.Equal(t, "cheating", apierr.ReasonOf(err))

	pair, storeErr := store.Tokens()
	require.NoError(t, storeErr)
	require.Nil(t, pair, "a banned login must not store tokens")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	store := storefake.NewFakeStore()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"wrong email or password"}`))
	}))
	defer server.Close()

	client := api.New(server.URL, store)
	_, err := client.Login(context.Background(), api.LoginRequest{Email: "a@b.c", Password: "bad"})
	require.ErrorIs(t, err, apierr.ErrInvalidCredentials)
	require.NotErrorIs(t, err, apierr.ErrUnauthenticated)
}

func TestDo_ValidationDetails(t *testing.T) {
	store := storefake.NewFakeStore()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"validation failed","details":{"username":["too short"]}}`))
	}))
	defer server.Close()

	client := api.New(server.URL, store)
	err := client.Do(context.Background(), http.MethodPost, "/anything", map[string]string{}, nil)
	require.ErrorIs(t, err, apierr.ErrValidationFailed)
	require.Equal(t, []string{"too short"}, apierr.DetailsOf(err)["username"])
}

func TestDo_NotFound(t *testing.T) {
	store := storefake.NewFakeStore()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such tournament"}`))
	}))
	defer server.Close()

	client := api.New(server.URL, store)
	err := client.Do(context.Background(), http.MethodGet, "/tournaments/nope", nil, nil)
	require.ErrorIs(t, err, apierr.ErrNotFound)
	require.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
}
