package api

import (
	"context"
	"net/http"
	"time"
)

// Support endpoint paths.
const (
	PathSupportMessages      = "/support/messages"
	PathSupportConversations = "/support/conversations"
)

// SupportMessages fetches the caller's support thread, newer than after when
// a cursor is held.
func (c *Client) SupportMessages(ctx context.Context, after time.Time) ([]Message, error) {
	var out []Message
	if err := c.Do(ctx, http.MethodGet, afterQuery(PathSupportMessages, after), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendSupportMessage posts a message into the caller's support thread.
func (c *Client) SendSupportMessage(ctx context.Context, content string) (*Message, error) {
	var msg Message
	if err := c.Do(ctx, http.MethodPost, PathSupportMessages, SendMessageRequest{Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SupportConversations lists all users' support threads. Admin only.
func (c *Client) SupportConversations(ctx context.Context) ([]SupportConversation, error) {
	var out []SupportConversation
	if err := c.Do(ctx, http.MethodGet, PathSupportConversations, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
