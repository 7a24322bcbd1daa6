package api

import (
	"context"
	"net/http"
	"net/url"
)

// Admin endpoint paths. All of these require an admin-role access token; the
// server enforces that, the client just forwards the bearer.
const (
	PathAdminUsers    = "/admin/users"
	PathAdminTourneys = "/admin/tournaments"
	PathAdminClassics = "/admin/classic-tournaments"
	PathAdminWowMaps  = "/admin/wow-maps"
	PathAdminDisputes = "/admin/disputes"
)

func pathAdminUser(id string) string { return PathAdminUsers + "/" + url.PathEscape(id) }

func pathAdminTourney(id string) string { return PathAdminTourneys + "/" + url.PathEscape(id) }

func pathAdminClassic(id string) string { return PathAdminClassics + "/" + url.PathEscape(id) }

func pathAdminWowMap(id string) string { return PathAdminWowMaps + "/" + url.PathEscape(id) }

// AdminUserUpdate mutates a user record. Nil fields are left untouched.
type AdminUserUpdate struct {
	Username *string `json:"username,omitempty"`
	Role     *string `json:"role,omitempty"`
	Verified *bool   `json:"verified,omitempty"`
}

// AdminBalanceUpdate adjusts a user's wallets by the given deltas.
type AdminBalanceUpdate struct {
	BalanceDelta   float64 `json:"balanceDelta"`
	UCBalanceDelta float64 `json:"ucBalanceDelta"`
	Note           string  `json:"note,omitempty"`
}

// AdminBanRequest bans or unbans a user. Reason is required when banning; it
// is the string surfaced to the user on their next login attempt.
type AdminBanRequest struct {
	Banned bool   `json:"banned"`
	Reason string `json:"reason,omitempty"`
}

// DisputeResolution settles a disputed tournament.
type DisputeResolution struct {
	WinnerID string `json:"winnerId"`
	Note     string `json:"note,omitempty"`
}

func (c *Client) AdminListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.Do(ctx, http.MethodGet, PathAdminUsers, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminUpdateUser(ctx context.Context, id string, update AdminUserUpdate) (*User, error) {
	var u User
	if err := c.Do(ctx, http.MethodPatch, pathAdminUser(id), update, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) AdminDeleteUser(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, pathAdminUser(id), nil, nil)
}

func (c *Client) AdminAdjustBalance(ctx context.Context, id string, update AdminBalanceUpdate) (*User, error) {
	var u User
	if err := c.Do(ctx, http.MethodPost, pathAdminUser(id)+"/balance", update, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) AdminSetBan(ctx context.Context, id string, req AdminBanRequest) error {
	return c.Do(ctx, http.MethodPost, pathAdminUser(id)+"/ban", req, nil)
}

func (c *Client) AdminListTournaments(ctx context.Context) ([]Tournament, error) {
	var out []Tournament
	if err := c.Do(ctx, http.MethodGet, PathAdminTourneys, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminCreateTournament(ctx context.Context, t Tournament) (*Tournament, error) {
	var out Tournament
	if err := c.Do(ctx, http.MethodPost, PathAdminTourneys, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminUpdateTournament(ctx context.Context, id string, t Tournament) (*Tournament, error) {
	var out Tournament
	if err := c.Do(ctx, http.MethodPut, pathAdminTourney(id), t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminDeleteTournament(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, pathAdminTourney(id), nil, nil)
}

// AdminAssignWinner settles a finished tournament in favour of winnerID.
func (c *Client) AdminAssignWinner(ctx context.Context, id, winnerID string) (*Tournament, error) {
	var out Tournament
	body := map[string]string{"winnerId": winnerID}
	if err := c.Do(ctx, http.MethodPost, pathAdminTourney(id)+"/winner", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminListDisputes(ctx context.Context) ([]Dispute, error) {
	var out []Dispute
	if err := c.Do(ctx, http.MethodGet, PathAdminDisputes, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminResolveDispute(ctx context.Context, id string, res DisputeResolution) (*Dispute, error) {
	var out Dispute
	if err := c.Do(ctx, http.MethodPost, PathAdminDisputes+"/"+url.PathEscape(id)+"/resolve", res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminListClassics(ctx context.Context) ([]ClassicTournament, error) {
	var out []ClassicTournament
	if err := c.Do(ctx, http.MethodGet, PathAdminClassics, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminCreateClassic(ctx context.Context, t ClassicTournament) (*ClassicTournament, error) {
	var out ClassicTournament
	if err := c.Do(ctx, http.MethodPost, PathAdminClassics, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminUpdateClassic(ctx context.Context, id string, t ClassicTournament) (*ClassicTournament, error) {
	var out ClassicTournament
	if err := c.Do(ctx, http.MethodPut, pathAdminClassic(id), t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminDeleteClassic(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, pathAdminClassic(id), nil, nil)
}

func (c *Client) AdminListWowMaps(ctx context.Context) ([]WowMap, error) {
	var out []WowMap
	if err := c.Do(ctx, http.MethodGet, PathAdminWowMaps, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminCreateWowMap(ctx context.Context, m WowMap) (*WowMap, error) {
	var out WowMap
	if err := c.Do(ctx, http.MethodPost, PathAdminWowMaps, m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminUpdateWowMap(ctx context.Context, id string, m WowMap) (*WowMap, error) {
	var out WowMap
	if err := c.Do(ctx, http.MethodPut, pathAdminWowMap(id), m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminDeleteWowMap(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, pathAdminWowMap(id), nil, nil)
}
