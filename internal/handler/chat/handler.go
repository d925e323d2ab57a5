package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/realty-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/realty-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/realty-assistant/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, allowedOrigins []string) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		upgrader: newUpgrader(allowedOrigins),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/", h.handleChat)
		r.Get("/history/{sessionID}", h.handleHistory)
		r.Delete("/clear/{sessionID}", h.handleClear)
		r.Get("/ws", h.handleWebSocket)
	})
}

type chatRequest struct {
	Message   *string `json:"message"`
	SessionID *string `json:"session_id"`
}

type historyResponse struct {
	SessionID string      `json:"session_id"`
	Messages  []chat.Turn `json:"messages"`
}

// handleChat 处理一次对话交换
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == nil {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := ""
	if payload.SessionID != nil {
		sessionID = *payload.SessionID
	}

	reply, err := h.chatSvc.Exchange(r.Context(), *payload.Message, sessionID)
	if err != nil {
		status, detail := classifyError(err)
		utils.RespondError(w, status, detail)
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

// handleHistory 返回会话历史，未知会话返回空列表
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	utils.RespondJSON(w, http.StatusOK, historyResponse{
		SessionID: sessionID,
		Messages:  h.chatSvc.History(r.Context(), sessionID),
	})
}

// handleClear 删除会话
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := "Session not found"
	if h.chatSvc.Clear(r.Context(), sessionID) {
		message = "Session cleared"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// classifyError maps service errors to a status and a client-safe detail.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, chatService.ErrGenerationFailed):
		return http.StatusInternalServerError, "failed to generate response"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
