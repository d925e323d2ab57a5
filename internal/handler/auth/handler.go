package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authService "github.com/zhouzirui/realty-assistant/backend/internal/service/auth"
	"github.com/zhouzirui/realty-assistant/backend/pkg/utils"
)

const stateCookie = "oauth_state"

// LoginService is the subset of the auth service used by the handlers.
type LoginService interface {
	AuthCodeURL(state string) string
	LoginWithCode(ctx context.Context, code string) (authService.Login, error)
	LoginWithIDToken(ctx context.Context, rawIDToken string) (authService.Login, error)
}

// Handler Google 登录的HTTP处理器
type Handler struct {
	svc         LoginService
	frontendURL string
}

// New 创建登录处理器
func New(svc LoginService, frontendURL string) *Handler {
	return &Handler{svc: svc, frontendURL: frontendURL}
}

// RegisterRoutes 注册登录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth/google", func(r chi.Router) {
		r.Get("/login", h.handleLogin)
		r.Get("/callback", h.handleCallback)
		r.Post("/verify", h.handleVerify)
	})
}

type userPayload struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type loginResponse struct {
	authService.TokenPair
	User userPayload `json:"user"`
}

// handleLogin 跳转到 Google 登录页
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.svc.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// handleCallback 处理 Google 回调并把令牌带回前端
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	if code == "" {
		utils.RespondError(w, http.StatusBadRequest, "code is required")
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		utils.RespondError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/api/auth/google", MaxAge: -1})

	login, err := h.svc.LoginWithCode(r.Context(), code)
	if err != nil {
		status, detail := classifyError(err)
		utils.RespondError(w, status, detail)
		return
	}

	params := url.Values{}
	params.Set("access_token", login.Tokens.AccessToken)
	params.Set("refresh_token", login.Tokens.RefreshToken)
	params.Set("name", login.Identity.Name)
	params.Set("email", login.Identity.Email)
	params.Set("picture", login.Identity.Picture)

	http.Redirect(w, r, h.frontendURL+"/google-auth-success?"+params.Encode(), http.StatusTemporaryRedirect)
}

// handleVerify 校验前端拿到的 Google credential 并签发令牌
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Credential == "" {
		utils.RespondError(w, http.StatusBadRequest, "credential is required")
		return
	}

	login, err := h.svc.LoginWithIDToken(r.Context(), payload.Credential)
	if err != nil {
		status, detail := classifyError(err)
		utils.RespondError(w, status, detail)
		return
	}

	utils.RespondJSON(w, http.StatusOK, loginResponse{
		TokenPair: login.Tokens,
		User: userPayload{
			Email:   login.Identity.Email,
			Name:    login.Identity.Name,
			Picture: login.Identity.Picture,
		},
	})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, authService.ErrUpstreamAuthFailed):
		return http.StatusUnauthorized, "invalid Google token"
	case errors.Is(err, authService.ErrMissingIDToken):
		return http.StatusBadRequest, "unable to fetch Google ID token"
	case errors.Is(err, authService.ErrMissingEmail):
		return http.StatusBadRequest, "Google account has no email"
	default:
		log.Printf("[auth] login failed: %v", err)
		return http.StatusInternalServerError, "login failed"
	}
}
