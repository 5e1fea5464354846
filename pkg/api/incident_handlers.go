package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/platinummonkey/warden/pkg/middleware"
)

// listIncidents handles GET /api/incidents
func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := incident.Query{
		Status:   incident.Status(strings.ToUpper(params.Get("status"))),
		Severity: incident.Severity(strings.ToUpper(params.Get("severity"))),
		Q:        params.Get("q"),
		Cursor:   params.Get("cursor"),
		Limit:    limit,
	}

	page, err := s.Incidents.List(r.Context(), middleware.CurrentUser(r), q, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, page)
}

// createIncident handles POST /api/incidents
func (s *Server) createIncident(w http.ResponseWriter, r *http.Request) {
	var in incident.NewIncident
	if err := httputil.ParseJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.Severity = incident.Severity(strings.ToUpper(string(in.Severity)))

	inc, err := s.Incidents.Create(r.Context(), middleware.CurrentUser(r), in, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, inc)
}

// incidentStats handles GET /api/incidents/stats
func (s *Server) incidentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Incidents.Stats(r.Context(), middleware.CurrentUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// getIncident handles GET /api/incidents/{id}
func (s *Server) getIncident(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	inc, err := s.Incidents.Get(r.Context(), middleware.CurrentUser(r), id, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, inc)
}

// updateIncident handles PATCH /api/incidents/{id}
func (s *Server) updateIncident(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch incident.Patch
	if err := httputil.ParseJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	if patch.Status != nil {
		st := incident.Status(strings.ToUpper(string(*patch.Status)))
		patch.Status = &st
	}
	if patch.Severity != nil {
		sev := incident.Severity(strings.ToUpper(string(*patch.Severity)))
		patch.Severity = &sev
	}

	inc, err := s.Incidents.Update(r.Context(), middleware.CurrentUser(r), id, patch, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, inc)
}

// deleteIncident handles DELETE /api/incidents/{id}
func (s *Server) deleteIncident(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.Incidents.Delete(r.Context(), middleware.CurrentUser(r), id, requestMeta(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
