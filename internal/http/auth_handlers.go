package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"gastos/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token       string    `json:"token,omitempty"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func newSessionResponse(sess *auth.Session) sessionResponse {
	return sessionResponse{
		Token:       sess.Token,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		ExpiresAt:   sess.ExpiresAt,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if s.deps.Passwords == nil {
		NotFoundError("Inicio con contraseña no disponible.").Write(w)
		return
	}

	sess, err := s.deps.Gate.SignInWithPassword(r.Context(), s.deps.Passwords, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthorized) {
			s.clearSessionCookie(w)
		}
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, sess)
	NewJSONResponse().Body(newSessionResponse(sess)).Write(w)
}

type googleLoginResponse struct {
	Flow    auth.Flow `json:"flow"`
	AuthURL string    `json:"authUrl"`
}

// handleGoogleLogin picks popup or redirect from the client's display mode
// and returns the consent URL with a signed state.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Google == nil {
		NotFoundError("Inicio con Google no configurado.").Write(w)
		return
	}
	q := r.URL.Query()
	flow := auth.SelectFlow(q.Get("display-mode"), ParseBool(q.Get("standalone")))

	state, err := s.deps.JWT.GenerateState(flow)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(googleLoginResponse{Flow: flow, AuthURL: s.deps.Google.AuthCodeURL(state)}).Write(w)
}

// handleGoogleCallback completes both flows. The redirect flow lands the
// browser back on the app; the popup flow answers JSON to its opener.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Google == nil {
		NotFoundError("Inicio con Google no configurado.").Write(w)
		return
	}
	q := r.URL.Query()
	flow, err := s.deps.JWT.ValidateState(q.Get("state"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fail := func(err error, code string) {
		s.clearSessionCookie(w)
		if flow == auth.FlowRedirect {
			http.Redirect(w, r, "/?error="+url.QueryEscape(code), http.StatusSeeOther)
			return
		}
		s.writeError(w, r, err)
	}

	if e := q.Get("error"); e != "" {
		s.logger.InfoContext(r.Context(), "Google sign-in cancelled", "reason", e)
		fail(auth.ErrInvalidCredentials, "cancelled")
		return
	}
	id, err := s.deps.Google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		s.logger.WarnContext(r.Context(), "Google code exchange failed", "error", err)
		fail(auth.ErrInvalidCredentials, "exchange_failed")
		return
	}
	sess, err := s.deps.Gate.Admit(r.Context(), id)
	if err != nil {
		code := "sign_in_failed"
		if errors.Is(err, auth.ErrNotAuthorized) {
			code = "not_authorized"
		}
		fail(err, code)
		return
	}

	s.setSessionCookie(w, sess)
	if flow == auth.FlowRedirect {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewJSONResponse().Body(newSessionResponse(sess)).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	NewJSONResponse().Body(map[string]any{
		"email":       claims.Email,
		"displayName": claims.Name,
		"method":      claims.Method,
		"expiresAt":   claims.ExpiresAt.Time,
	}).Write(w)
}
