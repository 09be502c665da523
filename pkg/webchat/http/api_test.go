package webhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	root "github.com/lumina-labs/lumina/pkg/webchat"
)

type stubCompleter struct {
	reply string
}

func (s stubCompleter) Complete(_ context.Context, _ string, _ []root.Turn) (string, error) {
	return s.reply, nil
}

func newTestMux(t *testing.T, store root.ConversationStore) *http.ServeMux {
	t.Helper()
	svc := root.NewChatService(root.ChatServiceConfig{
		ConvManager: root.NewConvManager(root.ConvManagerOptions{}),
		Completer:   stubCompleter{reply: "What have you tried so far?"},
		Store:       store,
	})
	require.NotNil(t, svc)

	mux := http.NewServeMux()
	Register(mux, RegisterOptions{
		Service: svc,
		Codes:   NewAccessCodes("LUMINA2024, BETA99"),
	})
	return mux
}

func newSQLiteStore(t *testing.T) root.ConversationStore {
	t.Helper()
	dsn, err := root.SQLiteDSNForFile(filepath.Join(t.TempDir(), "lumina.db"))
	require.NoError(t, err)
	s, err := root.NewSQLiteStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, bearer, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	payload := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestMux(t, nil)
	rec, payload := doJSON(t, mux, http.MethodGet, "/", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", payload["status"])
	require.Equal(t, "Lumina API", payload["name"])
}

func TestVerifyEndpoint(t *testing.T) {
	mux := newTestMux(t, nil)

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/verify", "", `{"accessCode":"lumina2024"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, payload["valid"])

	rec, payload = doJSON(t, mux, http.MethodPost, "/api/verify", "", `{"accessCode":"NOPE"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, payload["valid"])

	rec, payload = doJSON(t, mux, http.MethodPost, "/api/verify", "", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, false, payload["valid"])
	require.Equal(t, "Access code required", payload["error"])
}

func TestChatEndpoint(t *testing.T) {
	mux := newTestMux(t, nil)

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/chat", "LUMINA2024", `{"message":"What is 5+7?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, payload["success"])
	msg, ok := payload["message"].(string)
	require.True(t, ok)
	require.NotEmpty(t, msg)
	// the tutor guides instead of answering outright
	require.NotEqual(t, "12", msg)
}

func TestChatEndpoint_MissingMessage(t *testing.T) {
	mux := newTestMux(t, nil)

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/chat", "LUMINA2024", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Message is required", payload["error"])
}

func TestChatEndpoint_BadAccessCode(t *testing.T) {
	mux := newTestMux(t, nil)

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/chat", "WRONG", `{"message":"hi"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid access code. Please check your code and try again.", payload["error"])

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/chat", "", `{"message":"hi"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatEndpoint_CaseInsensitiveBearer(t *testing.T) {
	mux := newTestMux(t, nil)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/chat", "lumina2024", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClearEndpoint_WithoutStore(t *testing.T) {
	mux := newTestMux(t, nil)

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/clear", "LUMINA2024", `{"sessionId":"ghost"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, payload["success"])
}

func TestHistoryAndProfile_UnavailableWithoutStore(t *testing.T) {
	mux := newTestMux(t, nil)

	rec, _ := doJSON(t, mux, http.MethodGet, "/api/history", "LUMINA2024", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/profile", "LUMINA2024", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/conversation/s1", "LUMINA2024", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	store := newSQLiteStore(t)
	mux := newTestMux(t, store)

	for _, sid := range []string{"a", "b", "c"} {
		rec, _ := doJSON(t, mux, http.MethodPost, "/api/chat", "LUMINA2024", `{"message":"hi","sessionId":"`+sid+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, payload := doJSON(t, mux, http.MethodGet, "/api/history?limit=2&skip=0", "LUMINA2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, payload["success"])
	require.Equal(t, float64(3), payload["total"])
	require.Equal(t, float64(1), payload["page"])
	require.Equal(t, float64(2), payload["totalPages"])
	require.Len(t, payload["conversations"], 2)
}

func TestProfileEndpoint(t *testing.T) {
	store := newSQLiteStore(t)
	mux := newTestMux(t, store)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/chat", "LUMINA2024", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload := doJSON(t, mux, http.MethodGet, "/api/profile", "LUMINA2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, payload["success"])
	profile, ok := payload["profile"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(2), profile["totalMessages"])
}

func TestConversationEndpoint(t *testing.T) {
	store := newSQLiteStore(t)
	mux := newTestMux(t, store)

	rec, _ := doJSON(t, mux, http.MethodGet, "/api/conversation/nope", "LUMINA2024", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/chat", "LUMINA2024", `{"message":"hi","sessionId":"algebra"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload := doJSON(t, mux, http.MethodGet, "/api/conversation/algebra", "LUMINA2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, payload["success"])
	conv, ok := payload["conversation"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "algebra", conv["sessionId"])
}

func TestCORSPreflight(t *testing.T) {
	mux := newTestMux(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
