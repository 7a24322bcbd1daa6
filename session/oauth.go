package session

import (
	"context"
	"errors"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-arena-client/api"
	"github.com/jrsteele09/go-arena-client/apierr"
)

// ProviderLogin is the in-progress state of an external-identity sign-in.
// BeginProviderLogin creates one; the caller sends the user to AuthURL, and
// hands the returned state and code to CompleteProviderLogin.
type ProviderLogin struct {
	AuthURL string

	provider   string
	state      string
	verifier   string // PKCE code verifier
	oauthCfg   *oauth2.Config
	idVerifier *oidc.IDTokenVerifier
}

// BeginProviderLogin fetches the server's provider settings, runs OIDC
// discovery against the issuer, and builds the PKCE authorization URL.
func (c *Coordinator) BeginProviderLogin(ctx context.Context) (*ProviderLogin, error) {
	conf, err := c.api.FetchOAuthConfig(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, conf.IssuerURL)
	if err != nil {
		return nil, apierr.Wrapf(err, "session: oidc discovery")
	}

	scopes := conf.Scopes
	if !containsScope(scopes, oidc.ScopeOpenID) {
		scopes = append([]string{oidc.ScopeOpenID}, scopes...)
	}

	oauthCfg := &oauth2.Config{
		ClientID:    conf.ClientID,
		RedirectURL: conf.RedirectURL,
		Endpoint:    provider.Endpoint(),
		Scopes:      scopes,
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	return &ProviderLogin{
		AuthURL:    oauthCfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		provider:   conf.Provider,
		state:      state,
		verifier:   verifier,
		oauthCfg:   oauthCfg,
		idVerifier: provider.Verifier(&oidc.Config{ClientID: conf.ClientID}),
	}, nil
}

// CompleteProviderLogin exchanges the authorization code with the provider,
// verifies the returned ID token, then trades it with the platform for a
// session. The banned special case propagates from the platform exchange with
// its reason intact, exactly as it does for a password login.
func (c *Coordinator) CompleteProviderLogin(ctx context.Context, login *ProviderLogin, state, code string) error {
	if login == nil {
		return errors.New("session: no provider login in progress")
	}
	if state == "" || state != login.state {
		return errors.New("session: state mismatch in provider callback")
	}

	token, err := login.oauthCfg.Exchange(ctx, code, oauth2.VerifierOption(login.verifier))
	if err != nil {
		return apierr.Wrapf(err, "session: provider code exchange")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return errors.New("session: provider response carried no id_token")
	}
	if _, err := login.idVerifier.Verify(ctx, rawIDToken); err != nil {
		return apierr.Wrapf(err, "session: verify id token")
	}

	resp, err := c.api.ExchangeOAuth(ctx, api.OAuthExchangeRequest{
		Provider: login.provider,
		IDToken:  rawIDToken,
	})
	if err != nil {
		return err
	}
	return c.adoptSession(resp)
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
