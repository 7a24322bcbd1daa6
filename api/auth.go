package api

import (
	"context"
	"net/http"
)

// Auth endpoint paths.
const (
	PathAuthRegister        = "/auth/register"
	PathAuthLogin           = "/auth/login"
	PathAuthOAuthConfig     = "/auth/oauth/config"
	PathAuthOAuthExchange   = "/auth/oauth/exchange"
	PathAuthRefresh         = "/auth/refresh"
	PathAuthLogout          = "/auth/logout"
	PathAuthMe              = "/auth/me"
	PathAuthEmailCodeSend   = "/auth/email-code/send"
	PathAuthEmailCodeVerify = "/auth/email-code/verify"
	PathAuthPasswordForgot  = "/auth/password/forgot"
	PathAuthPasswordReset   = "/auth/password/reset"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates with platform credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OAuthConfig is the provider configuration the server advertises for
// external-identity sign-in.
type OAuthConfig struct {
	Provider    string   `json:"provider"`
	IssuerURL   string   `json:"issuerUrl"`
	ClientID    string   `json:"clientId"`
	RedirectURL string   `json:"redirectUrl"`
	Scopes      []string `json:"scopes"`
}

// OAuthExchangeRequest trades an external provider's ID token for platform
// tokens.
type OAuthExchangeRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"idToken"`
}

// Register creates an account and returns the initial token pair plus the new
// identity. Tokens are not stored here; the session coordinator owns that.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.DoUnauthenticated(ctx, http.MethodPost, PathAuthRegister, req, &resp); err != nil {
		return nil, asInvalidCredentials(err)
	}
	return &resp, nil
}

// Login authenticates with email and password. A banned account surfaces as
// apierr.ErrBanned carrying the ban reason.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.DoUnauthenticated(ctx, http.MethodPost, PathAuthLogin, req, &resp); err != nil {
		return nil, asInvalidCredentials(err)
	}
	return &resp, nil
}

// FetchOAuthConfig returns the server's external-identity provider settings.
func (c *Client) FetchOAuthConfig(ctx context.Context) (*OAuthConfig, error) {
	var cfg OAuthConfig
	if err := c.DoUnauthenticated(ctx, http.MethodGet, PathAuthOAuthConfig, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExchangeOAuth trades a verified external ID token for platform tokens. The
// banned special case applies here exactly as it does to Login.
func (c *Client) ExchangeOAuth(ctx context.Context, req OAuthExchangeRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.DoUnauthenticated(ctx, http.MethodPost, PathAuthOAuthExchange, req, &resp); err != nil {
		return nil, asInvalidCredentials(err)
	}
	return &resp, nil
}

// Logout notifies the server that the refresh token should be revoked. Callers
// treat failures as advisory: local teardown must proceed regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, PathAuthLogout, nil, nil)
}

// Me fetches the identity bound to the current access token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.Do(ctx, http.MethodGet, PathAuthMe, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SendEmailCode asks the server to mail a verification code.
func (c *Client) SendEmailCode(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.DoUnauthenticated(ctx, http.MethodPost, PathAuthEmailCodeSend, body, nil)
}

// VerifyEmailCode confirms a mailed verification code.
func (c *Client) VerifyEmailCode(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "code": code}
	return c.DoUnauthenticated(ctx, http.MethodPost, PathAuthEmailCodeVerify, body, nil)
}

// RequestPasswordReset starts the forgotten-password flow.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.DoUnauthenticated(ctx, http.MethodPost, PathAuthPasswordForgot, body, nil)
}

// ResetPassword completes the forgotten-password flow with the mailed code.
func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	body := map[string]string{"email": email, "code": code, "password": newPassword}
	return c.DoUnauthenticated(ctx, http.MethodPost, PathAuthPasswordReset, body, nil)
}
