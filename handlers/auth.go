package handlers

import (
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/CrowderSoup/dealerdesk/services"
	"go.uber.org/zap"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	logger      *zap.Logger
	// exposeLinks returns the magic link in the login response, for local use without SMTP.
	exposeLinks bool
}

func NewAuthHandler(authService *services.AuthService, logger *zap.Logger, exposeLinks bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
		exposeLinks: exposeLinks,
	}
}

// Login handles the login request (sending a magic link)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	magicLink, err := h.authService.GenerateMagicLink(email, baseURL)
	if err != nil {
		h.logger.Error("Error generating magic link", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate login link")
		return
	}

	resp := map[string]string{
		"status":  "success",
		"message": "Magic link has been sent",
	}
	if h.exposeLinks {
		resp["magicLink"] = magicLink
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMagicLink processes a magic link token and redirects to the frontend
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	email, err := h.authService.VerifyMagicLinkToken(token)
	if err != nil {
		fail(w, h.logger, err)
		return
	}

	jwtToken, err := h.authService.CreateJWT(email)
	if err != nil {
		fail(w, h.logger, err)
		return
	}

	q := url.Values{"token": {jwtToken}, "email": {email}}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusFound)
}

// VerifyToken reports the email behind a valid bearer token. It runs behind
// the auth middleware.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"email":  emailFrom(r),
		"status": "valid",
	})
}
