package webchat

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by store reads when no matching record exists.
var ErrNotFound = errors.New("not found")

// StoredConversation is the durable form of a conversation. One record per
// (access code, session id, active=true); clearing marks it inactive
// instead of deleting it, preserving history.
type StoredConversation struct {
	ID           string    `json:"id"`
	AccessCode   string    `json:"-"`
	SessionID    string    `json:"sessionId"`
	Turns        []Turn    `json:"messages"`
	Active       bool      `json:"active"`
	Context      string    `json:"context,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Profile aggregates per-access-code usage counters. It is updated as a
// side effect of chat and clear; the cache layer never reads it.
type Profile struct {
	AccessCode         string         `json:"accessCode"`
	TotalConversations int            `json:"totalConversations"`
	TotalMessages      int            `json:"totalMessages"`
	FirstSeen          time.Time      `json:"firstSeen"`
	LastActive         time.Time      `json:"lastActive"`
	Metadata           map[string]any `json:"metadata"`
}

// ProfileDelta describes counter increments applied by BumpProfile.
type ProfileDelta struct {
	Messages      int
	Conversations int
}

// ConversationStore persists conversations and profiles. Implementations
// must keep at most one active conversation per (access code, session id).
type ConversationStore interface {
	// FindActive returns the active conversation for the pair, or
	// ErrNotFound.
	FindActive(ctx context.Context, accessCode, sessionID string) (*StoredConversation, error)
	// Upsert replaces the active conversation's turn list and context,
	// creating the record if absent.
	Upsert(ctx context.Context, accessCode, sessionID string, turns []Turn, studentContext string) error
	// MarkInactive deactivates the active conversation for the pair.
	// No-op when none is active.
	MarkInactive(ctx context.Context, accessCode, sessionID string) error
	// List returns conversations for the access code ordered by most
	// recent activity, plus the total count before paging.
	List(ctx context.Context, accessCode string, limit, skip int) ([]StoredConversation, int, error)
	// BumpProfile applies counter deltas, creating the profile with
	// defaults if absent, and refreshes its last-active timestamp.
	BumpProfile(ctx context.Context, accessCode string, delta ProfileDelta) error
	// GetProfile returns the profile, or a default-empty profile when
	// the access code has never been seen.
	GetProfile(ctx context.Context, accessCode string) (*Profile, error)
	Close() error
}
