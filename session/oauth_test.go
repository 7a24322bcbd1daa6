package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-arena-client/session"
)

func TestCompleteProviderLogin_NilLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.start(t)

	err := f.coord.CompleteProviderLogin(context.Background(), nil, "state", "code")
	require.Error(t, err)
	require.Equal(t, session.StateAnonymous, f.coord.Snapshot().State)
}

func TestCompleteProviderLogin_StateMismatch(t *testing.T) {
	f := setupTestFixture(t)
	f.start(t)

	login := &session.ProviderLogin{AuthURL: "https://idp.example/authorize"}

	err := f.coord.CompleteProviderLogin(context.Background(), login, "forged-state", "code")
	require.ErrorContains(t, err, "state mismatch")
	require.Equal(t, session.StateAnonymous, f.coord.Snapshot().State)
}

func TestBeginProviderLogin_ConfigFetchFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.start(t)

	// The fake API does not script a provider config; the flow must stop
	// before any discovery happens.
	login, err := f.coord.BeginProviderLogin(context.Background())
	require.Error(t, err)
	require.Nil(t, login)
}
