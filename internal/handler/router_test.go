package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/realty-assistant/backend/internal/config"
	"github.com/zhouzirui/realty-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/realty-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/realty-assistant/backend/internal/service/render"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, history []chat.Turn) (string, error) {
	return "echo: " + history[len(history)-1].Content, nil
}

func newTestRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Addr: ":0", StaticDir: staticDir},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:8080"}},
	}
	store := chatService.NewStore(chatService.StoreConfig{})
	chatSvc := chatService.NewService(store, echoGenerator{}, render.NewMarkdown(), chatService.Options{})
	return NewRouter(cfg, chatSvc, nil)
}

func TestRootMessage(t *testing.T) {
	r := newTestRouter(t, "")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"message": "Realty assistant backend running"}`, resp.Body.String())
}

func TestChatRoundTrip(t *testing.T) {
	r := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/chat/", bytes.NewBufferString(`{"message": "hi"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"response":"echo: hi"`)
}

func TestAuthUnavailableWithoutConfig(t *testing.T) {
	r := newTestRouter(t, "")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, "http://localhost:8080", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header().Get("Access-Control-Allow-Credentials"))
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.txt"), []byte("realty"), 0o644))
	r := newTestRouter(t, dir)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/static/logo.txt", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "realty", strings.TrimSpace(resp.Body.String()))
}

func TestStaticSkippedWhenMissing(t *testing.T) {
	r := newTestRouter(t, filepath.Join(t.TempDir(), "missing"))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/static/logo.txt", nil))

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
