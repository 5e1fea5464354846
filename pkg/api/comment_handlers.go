package api

import (
	"net/http"

	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
)

type commentRequest struct {
	Body string `json:"body"`
}

// listComments handles GET /api/incidents/{id}/comments
func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.Comments.List(r.Context(), middleware.CurrentUser(r), id, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, page)
}

// createComment handles POST /api/incidents/{id}/comments
func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req commentRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.Comments.Create(r.Context(), middleware.CurrentUser(r), id, req.Body, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, c)
}

// deleteComment handles DELETE /api/comments/{id}
func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.Comments.Delete(r.Context(), middleware.CurrentUser(r), id, requestMeta(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
