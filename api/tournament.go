package api

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Tournament endpoint paths. Paths taking an id use the helper builders below.
const (
	PathTournamentChats       = "/tournaments/chats"
	PathTournamentUnreadCount = "/tournaments/chats/unread-count"
	PathClassicMine           = "/classic-tournaments/mine"
)

func pathTournament(id string) string { return "/tournaments/" + url.PathEscape(id) }

func pathTournamentMessages(id string) string { return pathTournament(id) + "/messages" }

func pathTournamentResult(id string) string { return pathTournament(id) + "/result" }

func pathClassic(id string) string { return "/classic-tournaments/" + url.PathEscape(id) }

func pathClassicRegister(id string) string { return pathClassic(id) + "/register" }

func pathClassicMessages(id string) string { return pathClassic(id) + "/messages" }

// afterQuery appends the incremental-fetch cursor when one is held. The zero
// time means "no cursor": fetch everything.
func afterQuery(path string, after time.Time) string {
	if after.IsZero() {
		return path
	}
	return path + "?after=" + url.QueryEscape(after.UTC().Format(time.RFC3339Nano))
}

// SendMessageRequest posts one chat message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// MyTournamentChats lists the caller's open match rooms.
func (c *Client) MyTournamentChats(ctx context.Context) ([]Tournament, error) {
	var out []Tournament
	if err := c.Do(ctx, http.MethodGet, PathTournamentChats, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TournamentDetail fetches one tournament's current server-side state.
func (c *Client) TournamentDetail(ctx context.Context, id string) (*Tournament, error) {
	var t Tournament
	if err := c.Do(ctx, http.MethodGet, pathTournament(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TournamentMessages fetches messages newer than after; the zero time fetches
// the full list.
func (c *Client) TournamentMessages(ctx context.Context, id string, after time.Time) ([]Message, error) {
	var out []Message
	if err := c.Do(ctx, http.MethodGet, afterQuery(pathTournamentMessages(id), after), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendTournamentMessage posts a message and returns it with its
// server-assigned identity.
func (c *Client) SendTournamentMessage(ctx context.Context, id, content string) (*Message, error) {
	var msg Message
	if err := c.Do(ctx, http.MethodPost, pathTournamentMessages(id), SendMessageRequest{Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SubmitTournamentResult submits the caller's claimed match outcome.
func (c *Client) SubmitTournamentResult(ctx context.Context, id string, result MatchResult) (*Tournament, error) {
	var t Tournament
	if err := c.Do(ctx, http.MethodPost, pathTournamentResult(id), result, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UnreadCount returns the total unread messages across the caller's chats.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.Do(ctx, http.MethodGet, PathTournamentUnreadCount, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// RegisterClassic enters the caller into a classic tournament.
func (c *Client) RegisterClassic(ctx context.Context, id string) (*ClassicTournament, error) {
	var t ClassicTournament
	if err := c.Do(ctx, http.MethodPost, pathClassicRegister(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// MyClassicTournaments lists the caller's classic tournaments filtered by
// section: "chats", "active" or "history".
func (c *Client) MyClassicTournaments(ctx context.Context, section string) ([]ClassicTournament, error) {
	var out []ClassicTournament
	path := PathClassicMine + "?section=" + url.QueryEscape(section)
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassicMessages fetches a classic tournament's chat messages newer than
// after; the zero time fetches everything.
func (c *Client) ClassicMessages(ctx context.Context, id string, after time.Time) ([]Message, error) {
	var out []Message
	if err := c.Do(ctx, http.MethodGet, afterQuery(pathClassicMessages(id), after), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendClassicMessage posts a message into a classic tournament's chat.
func (c *Client) SendClassicMessage(ctx context.Context, id, content string) (*Message, error) {
	var msg Message
	if err := c.Do(ctx, http.MethodPost, pathClassicMessages(id), SendMessageRequest{Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
