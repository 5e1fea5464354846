package workflow

import (
	"context"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/cache"
	"github.com/platinummonkey/warden/pkg/ids"
	"github.com/platinummonkey/warden/pkg/incident"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CommentService manages comments. Access follows the parent incident: anyone who
// can view an incident can read and add comments.
type CommentService struct {
	base
	incidents *IncidentService
	store     incident.CommentStore
}

// NewCommentService creates a comment service
func NewCommentService(store incident.CommentStore, incidents *IncidentService, deps Deps) *CommentService {
	return &CommentService{base: newBase(deps), incidents: incidents, store: store}
}

// Create adds a comment to an incident
func (s *CommentService) Create(ctx context.Context, user *auth.User, incidentID, body string, meta audit.RequestMeta) (*incident.Comment, error) {
	ctx, span := tracer.Start(ctx, "CommentService.Create", trace.WithAttributes(attribute.String("incident.id", incidentID)))
	defer span.End()

	if err := requireUser(user); err != nil {
		return nil, fail(span, err)
	}
	if err := incident.ValidateCommentBody(body); err != nil {
		return nil, fail(span, err)
	}
	inc, err := s.incidents.load(ctx, incidentID)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.RBAC.RequireCommentCreate(user, inc); err != nil {
		return nil, fail(span, err)
	}

	now := s.Now().UTC()
	author := *user
	c := &incident.Comment{
		ID:         ids.NewAt(now),
		IncidentID: incidentID,
		AuthorID:   user.ID,
		Author:     &author,
		Body:       body,
		CreatedAt:  now,
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Create(storeCtx, c); err != nil {
		return nil, fail(span, storeError("failed to create comment", err))
	}

	s.invalidate(ctx, incidentID)
	s.audit(func(t *audit.Trail) { t.LogCommentCreate(ctx, user, c, meta) })
	return c, nil
}

// List returns one page of an incident's comments, newest first
func (s *CommentService) List(ctx context.Context, user *auth.User, incidentID, cursor string, limit int) (incident.Page[*incident.Comment], error) {
	ctx, span := tracer.Start(ctx, "CommentService.List", trace.WithAttributes(attribute.String("incident.id", incidentID)))
	defer span.End()

	var empty incident.Page[*incident.Comment]
	if err := requireUser(user); err != nil {
		return empty, fail(span, err)
	}
	limit, err := incident.NormalizeLimit(limit)
	if err != nil {
		return empty, fail(span, err)
	}
	inc, err := s.incidents.cached(ctx, incidentID)
	if err != nil {
		return empty, fail(span, err)
	}
	if err := s.RBAC.RequireCommentView(user, inc); err != nil {
		return empty, fail(span, err)
	}

	page, err := readThrough(ctx, &s.base, cache.CommentsKey(incidentID, cursor, limit), s.ttls().Comments, cache.IncidentTags(incidentID),
		func(ctx context.Context) (incident.Page[*incident.Comment], error) {
			storeCtx, cancel := s.storeCtx(ctx)
			defer cancel()

			rows, err := s.store.ListByIncident(storeCtx, incidentID, cursor, limit)
			if err != nil {
				return incident.Page[*incident.Comment]{}, storeError("failed to list comments", err)
			}
			return incident.NewPage(rows, limit, func(c *incident.Comment) string { return c.ID }), nil
		})
	if err != nil {
		return empty, fail(span, err)
	}
	return page, nil
}

// Delete removes a comment. Authors may delete their own; analysts any.
func (s *CommentService) Delete(ctx context.Context, user *auth.User, commentID string, meta audit.RequestMeta) error {
	ctx, span := tracer.Start(ctx, "CommentService.Delete", trace.WithAttributes(attribute.String("comment.id", commentID)))
	defer span.End()

	if err := requireUser(user); err != nil {
		return fail(span, err)
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	c, err := s.store.Get(storeCtx, commentID)
	if err != nil {
		return fail(span, storeError("failed to load comment", err))
	}
	if c == nil {
		return fail(span, apperr.NotFound("Comment"))
	}
	if err := s.RBAC.RequireCommentDelete(user, c); err != nil {
		return fail(span, err)
	}
	if err := s.store.Delete(storeCtx, commentID); err != nil {
		return fail(span, storeError("failed to delete comment", err))
	}

	s.invalidate(ctx, c.IncidentID)
	s.audit(func(t *audit.Trail) { t.LogCommentDelete(ctx, user, c, meta) })
	return nil
}
