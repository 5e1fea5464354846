package workflow

import (
	"context"
	"strings"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/cache"
	"github.com/platinummonkey/warden/pkg/ids"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IncidentService creates, reads, updates and deletes incidents on behalf of
// authenticated users
type IncidentService struct {
	base
	store incident.Store
}

// NewIncidentService creates an incident service
func NewIncidentService(store incident.Store, deps Deps) *IncidentService {
	return &IncidentService{base: newBase(deps), store: store}
}

// Create reports a new incident owned by user
func (s *IncidentService) Create(ctx context.Context, user *auth.User, in incident.NewIncident, meta audit.RequestMeta) (*incident.Incident, error) {
	ctx, span := tracer.Start(ctx, "IncidentService.Create")
	defer span.End()

	if err := requireUser(user); err != nil {
		return nil, fail(span, err)
	}
	if err := s.RBAC.RequireIncidentCreate(user); err != nil {
		return nil, fail(span, err)
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, fail(span, err)
	}

	now := s.Now().UTC()
	creator := *user
	inc := &incident.Incident{
		ID:          ids.NewAt(now),
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Status:      incident.InitialStatus,
		Source:      in.Source,
		CreatedByID: user.ID,
		CreatedBy:   &creator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	span.SetAttributes(attribute.String("incident.id", inc.ID))

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Create(storeCtx, inc); err != nil {
		return nil, fail(span, storeError("failed to create incident", err))
	}

	s.invalidate(ctx, "")
	s.audit(func(t *audit.Trail) { t.LogIncidentCreate(ctx, user, inc, meta) })

	s.logger(ctx).WithFields(logrus.Fields{
		"incident_id": inc.ID,
		"severity":    inc.Severity,
	}).Info("incident created")
	return inc, nil
}

// load reads an incident straight from the store
func (s *IncidentService) load(ctx context.Context, id string) (*incident.Incident, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	inc, err := s.store.Get(storeCtx, id)
	if err != nil {
		return nil, storeError("failed to load incident", err)
	}
	if inc == nil {
		return nil, apperr.NotFound("Incident")
	}
	return inc, nil
}

// cached reads an incident through the cache. Missing incidents are not cached.
func (s *IncidentService) cached(ctx context.Context, id string) (*incident.Incident, error) {
	return readThrough(ctx, &s.base, cache.IncidentKey(id), s.ttls().Incident, cache.IncidentTags(id),
		func(ctx context.Context) (*incident.Incident, error) {
			return s.load(ctx, id)
		})
}

// Get returns one incident. Cached entries are still authorized against the
// caller before being returned.
func (s *IncidentService) Get(ctx context.Context, user *auth.User, id string, meta audit.RequestMeta) (*incident.Incident, error) {
	ctx, span := tracer.Start(ctx, "IncidentService.Get", trace.WithAttributes(attribute.String("incident.id", id)))
	defer span.End()

	if err := requireUser(user); err != nil {
		return nil, fail(span, err)
	}
	inc, err := s.cached(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.RBAC.RequireIncidentAccess(user, inc, rbac.ActionView); err != nil {
		return nil, fail(span, err)
	}

	s.audit(func(t *audit.Trail) { t.LogIncidentView(ctx, user, inc.ID, meta) })
	return inc, nil
}

// Update applies patch to an incident. A status change must be an edge the
// caller may take; requesting the current status is not a transition.
func (s *IncidentService) Update(ctx context.Context, user *auth.User, id string, patch incident.Patch, meta audit.RequestMeta) (*incident.Incident, error) {
	ctx, span := tracer.Start(ctx, "IncidentService.Update", trace.WithAttributes(attribute.String("incident.id", id)))
	defer span.End()

	if err := requireUser(user); err != nil {
		return nil, fail(span, err)
	}
	before, err := s.load(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.RBAC.RequireIncidentAccess(user, before, rbac.ActionUpdate); err != nil {
		return nil, fail(span, err)
	}
	if patch.Empty() {
		return nil, fail(span, apperr.Validation("No fields to update"))
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	if err := patch.Validate(); err != nil {
		return nil, fail(span, err)
	}

	to, transition := patch.StatusChange(before.Status)
	if transition {
		if err := s.RBAC.RequireStatusTransition(user, before, before.Status, to); err != nil {
			return nil, fail(span, err)
		}
		span.SetAttributes(
			attribute.String("status.from", string(before.Status)),
			attribute.String("status.to", string(to)),
		)
	}

	changes := patch.Changes(before)
	if len(changes) == 0 {
		return before, nil
	}

	updated := *before
	patch.Apply(&updated)
	updated.UpdatedAt = s.Now().UTC()

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Update(storeCtx, &updated); err != nil {
		return nil, fail(span, storeError("failed to update incident", err))
	}

	s.invalidate(ctx, id)
	s.audit(func(t *audit.Trail) { t.LogIncidentUpdate(ctx, user, id, changes, meta) })

	log := s.logger(ctx).WithField("incident_id", id)
	if transition {
		s.Metrics.RecordTransition(string(before.Status), string(to))
		log = log.WithFields(logrus.Fields{"from": before.Status, "to": to})
	}
	log.WithField("fields", len(changes)).Info("incident updated")
	return &updated, nil
}

// List returns one page of the incidents visible to user, newest first.
// Free-text searches are audited.
func (s *IncidentService) List(ctx context.Context, user *auth.User, q incident.Query, meta audit.RequestMeta) (incident.Page[*incident.Incident], error) {
	ctx, span := tracer.Start(ctx, "IncidentService.List")
	defer span.End()

	if err := requireUser(user); err != nil {
		return incident.Page[*incident.Incident]{}, fail(span, err)
	}
	if err := q.Normalize(); err != nil {
		return incident.Page[*incident.Incident]{}, fail(span, err)
	}

	scope := s.RBAC.ListFilter(user)
	span.SetAttributes(
		attribute.Bool("scope.restricted", !scope.Unrestricted()),
		attribute.Bool("search", q.Q != ""),
		attribute.Int("limit", q.Limit),
	)

	page, err := readThrough(ctx, &s.base, cache.ListKey(scope, q), s.ttls().List, cache.ListTags(),
		func(ctx context.Context) (incident.Page[*incident.Incident], error) {
			storeCtx, cancel := s.storeCtx(ctx)
			defer cancel()

			rows, err := s.store.List(storeCtx, scope, q)
			if err != nil {
				return incident.Page[*incident.Incident]{}, storeError("failed to list incidents", err)
			}
			return incident.NewPage(rows, q.Limit, func(inc *incident.Incident) string { return inc.ID }), nil
		})
	if err != nil {
		return incident.Page[*incident.Incident]{}, fail(span, err)
	}

	if q.Q != "" {
		s.audit(func(t *audit.Trail) { t.LogIncidentSearch(ctx, user, q, len(page.Data), meta) })
	}
	return page, nil
}

// Delete removes an incident and its comments
func (s *IncidentService) Delete(ctx context.Context, user *auth.User, id string, meta audit.RequestMeta) error {
	ctx, span := tracer.Start(ctx, "IncidentService.Delete", trace.WithAttributes(attribute.String("incident.id", id)))
	defer span.End()

	if err := requireUser(user); err != nil {
		return fail(span, err)
	}
	inc, err := s.load(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	if err := s.RBAC.RequireIncidentAccess(user, inc, rbac.ActionDelete); err != nil {
		return fail(span, err)
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Delete(storeCtx, id); err != nil {
		return fail(span, storeError("failed to delete incident", err))
	}

	s.invalidate(ctx, id)
	s.audit(func(t *audit.Trail) { t.LogIncidentDelete(ctx, user, inc, meta) })

	s.logger(ctx).WithField("incident_id", id).Info("incident deleted")
	return nil
}

// Stats counts the incidents visible to user by status
func (s *IncidentService) Stats(ctx context.Context, user *auth.User) (incident.Stats, error) {
	ctx, span := tracer.Start(ctx, "IncidentService.Stats")
	defer span.End()

	if err := requireUser(user); err != nil {
		return incident.Stats{}, fail(span, err)
	}
	scope := s.RBAC.ListFilter(user)

	stats, err := readThrough(ctx, &s.base, cache.StatsKey(scope), s.ttls().Stats, cache.ListTags(),
		func(ctx context.Context) (incident.Stats, error) {
			storeCtx, cancel := s.storeCtx(ctx)
			defer cancel()

			counts, err := s.store.CountByStatus(storeCtx, scope)
			if err != nil {
				return incident.Stats{}, storeError("failed to count incidents", err)
			}
			return incident.StatsFromCounts(counts), nil
		})
	return stats, fail(span, err)
}
