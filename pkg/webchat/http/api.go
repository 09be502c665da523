package webhttp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	root "github.com/lumina-labs/lumina/pkg/webchat"
)

// ChatRequestBody is the expected JSON body for chat requests.
type ChatRequestBody struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
	Context   string `json:"context,omitempty"`
}

// ClearRequestBody is the expected JSON body for clear requests.
type ClearRequestBody struct {
	SessionID string `json:"sessionId,omitempty"`
}

// VerifyRequestBody is the expected JSON body for access-code verification.
type VerifyRequestBody struct {
	AccessCode string `json:"accessCode"`
}

// ChatService describes the lifecycle surface used by HTTP handlers.
type ChatService interface {
	Chat(ctx context.Context, accessCode, sessionID, message, studentContext string) (string, error)
	Clear(ctx context.Context, accessCode, sessionID string)
	History(ctx context.Context, accessCode string, limit, skip int) (*root.HistoryPage, error)
	Profile(ctx context.Context, accessCode string) (*root.Profile, error)
	Conversation(ctx context.Context, accessCode, sessionID string) (*root.StoredConversation, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"
	var se *root.ServiceError
	if stderrors.As(err, &se) && se != nil {
		if se.Status > 0 {
			status = se.Status
		}
		if strings.TrimSpace(se.ClientMsg) != "" {
			msg = se.ClientMsg
		}
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

// NewHealthHandler serves the root health payload.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"name":    "Lumina API",
			"message": "✨ Illuminating minds through discovery",
		})
	}
}

// NewVerifyHandler checks a submitted access code against the allow-list.
func NewVerifyHandler(codes *AccessCodes) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body VerifyRequestBody
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.AccessCode == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": "Access code required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"valid": codes.Contains(body.AccessCode)})
	}
}

// NewChatHandler runs one tutoring exchange.
func NewChatHandler(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if svc == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "Chat service not initialized"})
			return
		}
		var body ChatRequestBody
		_ = json.NewDecoder(req.Body).Decode(&body)

		reply, err := svc.Chat(req.Context(), AccessCodeFromContext(req.Context()), body.SessionID, body.Message, body.Context)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": reply})
	}
}

// NewClearHandler ends the current session. It always reports success.
func NewClearHandler(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body ClearRequestBody
		_ = json.NewDecoder(req.Body).Decode(&body)
		svc.Clear(req.Context(), AccessCodeFromContext(req.Context()), body.SessionID)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// NewHistoryHandler lists stored conversations, newest first.
func NewHistoryHandler(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		limit := intQuery(req, "limit", 10)
		skip := intQuery(req, "skip", 0)
		page, err := svc.History(req.Context(), AccessCodeFromContext(req.Context()), limit, skip)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"conversations": page.Conversations,
			"total":         page.Total,
			"page":          page.Page,
			"totalPages":    page.TotalPages,
		})
	}
}

// NewProfileHandler returns aggregate usage counters for the caller.
func NewProfileHandler(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		profile, err := svc.Profile(req.Context(), AccessCodeFromContext(req.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": profile})
	}
}

// NewConversationHandler returns one active stored conversation.
func NewConversationHandler(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sessionID := req.PathValue("sessionId")
		conv, err := svc.Conversation(req.Context(), AccessCodeFromContext(req.Context()), sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversation": conv})
	}
}

func intQuery(req *http.Request, key string, def int) int {
	v := req.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// RegisterOptions configures the API surface mounted by Register.
type RegisterOptions struct {
	Service ChatService
	Codes   *AccessCodes
	// Limiter throttles /api/* per client address. Nil disables limiting.
	Limiter *PerIPLimiter
}

// Register mounts all Lumina API routes onto mux.
func Register(mux *http.ServeMux, opts RegisterOptions) {
	if mux == nil {
		return
	}
	api := func(h http.Handler) http.Handler {
		if opts.Limiter != nil {
			h = opts.Limiter.Middleware(h)
		}
		return CORS(h)
	}
	authed := func(h http.Handler) http.Handler {
		return api(RequireAccessCode(opts.Codes, h))
	}

	mux.Handle("GET /{$}", CORS(NewHealthHandler()))
	mux.Handle("POST /api/verify", api(NewVerifyHandler(opts.Codes)))
	mux.Handle("POST /api/chat", authed(NewChatHandler(opts.Service)))
	mux.Handle("POST /api/clear", authed(NewClearHandler(opts.Service)))
	mux.Handle("GET /api/history", authed(NewHistoryHandler(opts.Service)))
	mux.Handle("GET /api/profile", authed(NewProfileHandler(opts.Service)))
	mux.Handle("GET /api/conversation/{sessionId}", authed(NewConversationHandler(opts.Service)))
	mux.Handle("OPTIONS /api/", CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))
}
