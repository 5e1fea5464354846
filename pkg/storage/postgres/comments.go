package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/incident"
)

// CommentStore implements incident.CommentStore
type CommentStore struct {
	conn Conn
}

var _ incident.CommentStore = (*CommentStore)(nil)

// NewCommentStore creates a comment store
func NewCommentStore(conn Conn) *CommentStore {
	return &CommentStore{conn: conn}
}

const selectComment = `
	SELECT c.id, c.incident_id, c.author_id, c.body, c.created_at,
		u.id, u.email, u.name, u.role
	FROM incident_comments c
	JOIN users u ON u.id = c.author_id
`

func scanComment(row scanner) (*incident.Comment, error) {
	var (
		c      incident.Comment
		author auth.User
		role   string
	)
	err := row.Scan(&c.ID, &c.IncidentID, &c.AuthorID, &c.Body, &c.CreatedAt,
		&author.ID, &author.Email, &author.Name, &role)
	if err != nil {
		return nil, err
	}
	author.Role = auth.Role(role)
	c.Author = &author
	return &c, nil
}

func (s *CommentStore) Create(ctx context.Context, c *incident.Comment) error {
	query := `
		INSERT INTO incident_comments (id, incident_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.conn.Primary().ExecContext(ctx, query, c.ID, c.IncidentID, c.AuthorID, c.Body, c.CreatedAt.UTC())
	if isForeignKeyViolation(err) {
		return apperr.NotFound("Incident")
	}
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (s *CommentStore) Get(ctx context.Context, id string) (*incident.Comment, error) {
	c, err := scanComment(s.conn.Primary().QueryRowContext(ctx, selectComment+"WHERE c.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

func (s *CommentStore) Delete(ctx context.Context, id string) error {
	res, err := s.conn.Primary().ExecContext(ctx, `DELETE FROM incident_comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("Comment")
	}
	return nil
}

func (s *CommentStore) ListByIncident(ctx context.Context, incidentID, cursor string, limit int) ([]*incident.Comment, error) {
	w := &whereBuilder{}
	w.add("c.incident_id = %s", incidentID)
	if cursor != "" {
		w.add("c.id < %s", cursor)
	}
	query := selectComment + w.String() + "ORDER BY c.id DESC\nLIMIT " + w.next()

	rows, err := s.conn.Reader().QueryContext(ctx, query, append(w.args, limit+1)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var out []*incident.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return out, nil
}
