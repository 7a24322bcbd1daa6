package chat

import (
	"context"
	"time"

	"github.com/jrsteele09/go-arena-client/api"
)

// TournamentConversation adapts one match room's endpoints to Conversation.
type TournamentConversation struct {
	Client *api.Client
	ID     string
}

var _ Conversation = TournamentConversation{}

func (c TournamentConversation) Messages(ctx context.Context, after time.Time) ([]api.Message, error) {
	return c.Client.TournamentMessages(ctx, c.ID, after)
}

func (c TournamentConversation) Send(ctx context.Context, content string) (*api.Message, error) {
	return c.Client.SendTournamentMessage(ctx, c.ID, content)
}

func (c TournamentConversation) Status(ctx context.Context) (string, error) {
	t, err := c.Client.TournamentDetail(ctx, c.ID)
	if err != nil {
		return "", err
	}
	return t.Status, nil
}

// ClassicConversation adapts a classic tournament's chat to Conversation.
type ClassicConversation struct {
	Client *api.Client
	ID     string
}

var _ Conversation = ClassicConversation{}

func (c ClassicConversation) Messages(ctx context.Context, after time.Time) ([]api.Message, error) {
	return c.Client.ClassicMessages(ctx, c.ID, after)
}

func (c ClassicConversation) Send(ctx context.Context, content string) (*api.Message, error) {
	return c.Client.SendClassicMessage(ctx, c.ID, content)
}

func (c ClassicConversation) Status(ctx context.Context) (string, error) {
	// Classic chats stay open for the tournament's lifetime; there is no
	// per-room status endpoint to mirror.
	return "", nil
}

// SupportConversation adapts the caller's support thread to Conversation.
type SupportConversation struct {
	Client *api.Client
}

var _ Conversation = SupportConversation{}

func (c SupportConversation) Messages(ctx context.Context, after time.Time) ([]api.Message, error) {
	return c.Client.SupportMessages(ctx, after)
}

func (c SupportConversation) Send(ctx context.Context, content string) (*api.Message, error) {
	return c.Client.SendSupportMessage(ctx, content)
}

func (c SupportConversation) Status(ctx context.Context) (string, error) {
	return "", nil
}
