package webchat

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ServiceError is a typed error allowing handlers to choose an HTTP status
// code without duplicating policy logic.
type ServiceError struct {
	Status    int
	ClientMsg string
	Err       error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.ClientMsg + ": " + e.Err.Error()
	}
	return e.ClientMsg
}

func (e *ServiceError) Unwrap() error { return e.Err }

// DefaultMaxTurns caps the history replayed to the model. Older turns are
// dropped permanently from the live cache; the durable store keeps the
// full history.
const DefaultMaxTurns = 50

// ChatServiceConfig wires the lifecycle controller's collaborators.
// Store is optional: when nil the service runs memory-only and the
// read endpoints that need durable history report unavailable.
type ChatServiceConfig struct {
	ConvManager *ConvManager
	Completer   Completer
	Store       ConversationStore
	MaxTurns    int
	Now         func() time.Time
}

// ChatService orchestrates one exchange: cache lookup, store hydration,
// context wrapping, trim, completion call, best-effort persistence.
type ChatService struct {
	cm         *ConvManager
	completer  Completer
	store      ConversationStore
	persistent bool
	maxTurns   int
	now        func() time.Time
}

func NewChatService(cfg ChatServiceConfig) *ChatService {
	if cfg.ConvManager == nil || cfg.Completer == nil {
		return nil
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ChatService{
		cm:         cfg.ConvManager,
		completer:  cfg.Completer,
		store:      cfg.Store,
		persistent: cfg.Store != nil,
		maxTurns:   maxTurns,
		now:        now,
	}
}

// Persistent reports whether a durable store was configured.
func (s *ChatService) Persistent() bool { return s != nil && s.persistent }

// ConvManager exposes the cache, for the server to run eviction on.
func (s *ChatService) ConvManager() *ConvManager { return s.cm }

// Chat runs one exchange for (accessCode, sessionID) and returns the
// assistant's reply. Completion failures surface to the caller; store
// failures never do.
func (s *ChatService) Chat(ctx context.Context, accessCode, sessionID, message, studentContext string) (string, error) {
	if message == "" {
		return "", &ServiceError{Status: http.StatusBadRequest, ClientMsg: "Message is required"}
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	key := ConvKey(accessCode, sessionID)

	// No per-conversation lock: concurrent chats on the same session race
	// on the turn list, last writer wins.
	conv := s.cm.GetOrCreate(key)
	s.cm.Touch(key)

	// Cold key: pull the active durable conversation back into the cache.
	// Failures here fall back to an empty history.
	if len(conv.Turns) == 0 && s.persistent {
		stored, err := s.store.FindActive(ctx, accessCode, sessionID)
		switch {
		case err == nil && len(stored.Turns) > 0:
			hydrated := make([]Turn, 0, len(stored.Turns))
			for _, t := range stored.Turns {
				hydrated = append(hydrated, Turn{Role: t.Role, Content: t.Content})
			}
			conv.Turns = hydrated
			log.Debug().Str("conv_key", key).Int("turns", len(hydrated)).Msg("hydrated conversation from store")
		case err != nil && err != ErrNotFound:
			log.Warn().Err(err).Str("conv_key", key).Msg("hydration failed, starting with empty history")
		}
	}

	userMessage := message
	if studentContext != "" && len(conv.Turns) == 0 {
		userMessage = WrapFirstMessage(studentContext, message)
	}

	conv.Turns = append(conv.Turns, Turn{Role: RoleUser, Content: userMessage, CreatedAt: s.now()})
	if len(conv.Turns) > s.maxTurns {
		conv.Turns = conv.Turns[len(conv.Turns)-s.maxTurns:]
	}

	assistant, err := s.completer.Complete(ctx, SystemPrompt(s.now()), conv.Turns)
	if err != nil {
		log.Error().Err(err).Str("conv_key", key).Msg("completion call failed")
		return "", &ServiceError{
			Status:    http.StatusInternalServerError,
			ClientMsg: "Oops! Something went wrong. " + err.Error(),
			Err:       err,
		}
	}

	conv.Turns = append(conv.Turns, Turn{Role: RoleAssistant, Content: assistant, CreatedAt: s.now()})

	if s.persistent {
		if err := s.store.Upsert(ctx, accessCode, sessionID, conv.Turns, studentContext); err != nil {
			log.Warn().Err(err).Str("conv_key", key).Msg("conversation persist failed")
		}
		if err := s.store.BumpProfile(ctx, accessCode, ProfileDelta{Messages: 2}); err != nil {
			log.Warn().Err(err).Str("access_code", accessCode).Msg("profile update failed")
		}
	}

	return assistant, nil
}

// Clear drops the cached conversation and, when a store is configured,
// deactivates the durable record and counts the finished conversation.
// It always succeeds.
func (s *ChatService) Clear(ctx context.Context, accessCode, sessionID string) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	key := ConvKey(accessCode, sessionID)
	s.cm.Delete(key)

	if !s.persistent {
		return
	}
	if err := s.store.MarkInactive(ctx, accessCode, sessionID); err != nil {
		log.Warn().Err(err).Str("conv_key", key).Msg("mark inactive failed")
	}
	if err := s.store.BumpProfile(ctx, accessCode, ProfileDelta{Conversations: 1}); err != nil {
		log.Warn().Err(err).Str("access_code", accessCode).Msg("profile update failed")
	}
}

// HistoryPage is one page of stored conversations.
type HistoryPage struct {
	Conversations []StoredConversation
	Total         int
	Page          int
	TotalPages    int
}

var errStoreUnavailable = &ServiceError{Status: http.StatusServiceUnavailable, ClientMsg: "Database not available"}

// History returns stored conversations ordered by most recent activity.
func (s *ChatService) History(ctx context.Context, accessCode string, limit, skip int) (*HistoryPage, error) {
	if !s.persistent {
		return nil, errStoreUnavailable
	}
	if limit <= 0 {
		limit = 10
	}
	if skip < 0 {
		skip = 0
	}
	items, total, err := s.store.List(ctx, accessCode, limit, skip)
	if err != nil {
		return nil, &ServiceError{Status: http.StatusInternalServerError, ClientMsg: "Failed to load history", Err: err}
	}
	totalPages := (total + limit - 1) / limit
	return &HistoryPage{
		Conversations: items,
		Total:         total,
		Page:          skip/limit + 1,
		TotalPages:    totalPages,
	}, nil
}

// Profile returns the aggregate usage profile for an access code.
func (s *ChatService) Profile(ctx context.Context, accessCode string) (*Profile, error) {
	if !s.persistent {
		return nil, errStoreUnavailable
	}
	p, err := s.store.GetProfile(ctx, accessCode)
	if err != nil {
		return nil, &ServiceError{Status: http.StatusInternalServerError, ClientMsg: "Failed to load profile", Err: err}
	}
	return p, nil
}

// Conversation returns the active stored conversation for a session.
func (s *ChatService) Conversation(ctx context.Context, accessCode, sessionID string) (*StoredConversation, error) {
	if !s.persistent {
		return nil, errStoreUnavailable
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	conv, err := s.store.FindActive(ctx, accessCode, sessionID)
	if err == ErrNotFound {
		return nil, &ServiceError{Status: http.StatusNotFound, ClientMsg: "Conversation not found"}
	}
	if err != nil {
		return nil, &ServiceError{Status: http.StatusInternalServerError, ClientMsg: "Failed to load conversation", Err: err}
	}
	return conv, nil
}
