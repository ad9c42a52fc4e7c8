package httpserver

import (
	"net/http"

	"github.com/emberline/hubd/internal/session"
)

type loginRequest struct {
	PIN        string `json:"pin" validate:"required"`
	TerminalID string `json:"terminalId"`
}

type loginResponse struct {
	SessionID   string   `json:"sessionId"`
	StaffID     string   `json:"staffId"`
	DisplayName string   `json:"displayName"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	MaxDiscount int      `json:"maxDiscount"`
}

// HandleLogin authenticates a PIN against the active staff roster and
// issues a session token. Rate-limited per source IP.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.RateLimiter.Allow(ip) {
		RespondError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts, try again later")
		return
	}

	var req loginRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if !session.ValidPINFormat(req.PIN) {
		RespondError(w, http.StatusBadRequest, "bad_request", "pin must be 4-10 characters")
		return
	}

	profile, ok, err := s.Authenticator.Authenticate(r.Context(), req.PIN)
	if err != nil {
		s.Logger.Error("login: authenticating pin", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "authentication failed")
		return
	}
	if !ok {
		RespondError(w, http.StatusUnauthorized, "invalid_credentials", "pin not recognized")
		return
	}

	token, err := s.SessionMgr.Login(r.Context(), profile, req.TerminalID)
	if err != nil {
		s.Logger.Error("login: creating session", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "could not create session")
		return
	}

	Respond(w, http.StatusOK, loginResponse{
		SessionID:   token,
		StaffID:     profile.ID,
		DisplayName: profile.DisplayName,
		Role:        profile.Role,
		Permissions: profile.Permissions,
		MaxDiscount: profile.MaxDiscount,
	})
}

// HandleLogout revokes the session identified by the x-session-id header.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := session.FromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "unauthorized", "no active session")
		return
	}
	if err := s.SessionMgr.Logout(r.Context(), claims.SessionID); err != nil {
		s.Logger.Error("logout: revoking session", "error", err)
		RespondError(w, http.StatusInternalServerError, "internal_error", "could not revoke session")
		return
	}
	Respond(w, http.StatusOK, map[string]bool{"success": true})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
