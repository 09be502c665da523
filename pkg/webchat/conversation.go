package webchat

import (
	"time"
)

// Role tags one side of an exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation. Turns are immutable once
// appended; their relative order is the chat history replayed to the model.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Conversation holds the live state for one session key.
type Conversation struct {
	Key          string
	Turns        []Turn
	LastActivity time.Time
}

// DefaultSessionID is used when a client does not name a session.
const DefaultSessionID = "default"

// ConvKey derives the cache key for an (access code, session id) pair.
// The same pair always yields the same key.
func ConvKey(accessCode, sessionID string) string {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return accessCode + "-" + sessionID
}
