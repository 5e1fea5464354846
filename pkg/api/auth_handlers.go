package api

import (
	"net/http"

	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles POST /api/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, user, err := s.Auth.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.sessions.SetCookie(w, token)
	httputil.WriteSuccess(w, map[string]interface{}{"user": user})
}

// logout handles POST /api/auth/logout. It succeeds without a session.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.Auth.Logout(r.Context(), s.sessions.Token(r), requestMeta(r))
	s.sessions.ClearCookie(w)
	httputil.WriteSuccess(w, map[string]interface{}{"success": true})
}

// me handles GET /api/auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{"user": middleware.CurrentUser(r)})
}
