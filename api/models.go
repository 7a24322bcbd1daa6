package api

import "time"

// User is the identity record returned by the auth endpoints. Balance is the
// withdrawable wallet in platform currency, UCBalance the in-game UC wallet;
// both are pushed over the realtime channel when they change.
type User struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatarUrl"`
	Role      string  `json:"role"`
	Verified  bool    `json:"verified"`
	Balance   float64 `json:"balance"`
	UCBalance float64 `json:"ucBalance"`
}

// AuthTokens is the token payload of every auth-family success response.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by register, login and the external-identity
// exchange.
type AuthResponse struct {
	AuthTokens
	User User `json:"user"`
}

// Message is one chat message. Messages are immutable once created: the merge
// logic in the chat package relies on identity alone and never updates one in
// place.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tournament statuses as reported by the server. The server is authoritative;
// the client only ever mirrors the latest value it has seen.
const (
	TournamentStatusSearching = "SEARCHING"
	TournamentStatusWaiting   = "WAITING"
	TournamentStatusLive      = "LIVE"
	TournamentStatusReview    = "REVIEW"
	TournamentStatusResolved  = "RESOLVED"
	TournamentStatusDisputed  = "DISPUTED"
)

// Tournament is a head-to-head match room.
type Tournament struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Mode        string    `json:"mode"`
	Map         string    `json:"map"`
	EntryFee    float64   `json:"entryFee"`
	Prize       float64   `json:"prize"`
	Status      string    `json:"status"`
	HostID      string    `json:"hostId"`
	OpponentID  string    `json:"opponentId,omitempty"`
	WinnerID    string    `json:"winnerId,omitempty"`
	UnreadCount int       `json:"unreadCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ClassicTournament is a scheduled multi-player event with open registration.
type ClassicTournament struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Map        string    `json:"map"`
	EntryFee   float64   `json:"entryFee"`
	PrizePool  float64   `json:"prizePool"`
	MaxPlayers int       `json:"maxPlayers"`
	Players    int       `json:"players"`
	Status     string    `json:"status"`
	StartsAt   time.Time `json:"startsAt"`
}

// MatchResult is a player's claimed outcome for a tournament, submitted for
// server-side review.
type MatchResult struct {
	Outcome       string `json:"outcome"` // WIN or LOSS
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// Dispute is an admin-side view of a contested tournament result.
type Dispute struct {
	ID           string    `json:"id"`
	TournamentID string    `json:"tournamentId"`
	OpenedBy     string    `json:"openedBy"`
	Reason       string    `json:"reason"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WowMap is a custom WoW-mode map managed through the admin panel.
type WowMap struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Active   bool   `json:"active"`
}

// SupportConversation is one user's support thread, listed for admins.
type SupportConversation struct {
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	Unread        int       `json:"unread"`
}

// BalancePush is the payload of the realtime channel's balance:update event.
type BalancePush struct {
	Balance   float64 `json:"balance"`
	UCBalance float64 `json:"ucBalance"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
