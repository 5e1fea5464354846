package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/incident"
)

// IncidentStore implements incident.Store. Lists and counts go through Conn.Reader.
type IncidentStore struct {
	conn Conn
}

var _ incident.Store = (*IncidentStore)(nil)

// NewIncidentStore creates an incident store
func NewIncidentStore(conn Conn) *IncidentStore {
	return &IncidentStore{conn: conn}
}

const selectIncident = `
	SELECT i.id, i.title, i.description, i.severity, i.status, i.source,
		i.created_by_id, i.created_at, i.updated_at,
		u.id, u.email, u.name, u.role
	FROM incidents i
	JOIN users u ON u.id = i.created_by_id
`

func scanIncident(row scanner) (*incident.Incident, error) {
	var (
		inc      incident.Incident
		creator  auth.User
		severity string
		status   string
		role     string
		source   sql.NullString
	)
	err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &severity, &status, &source,
		&inc.CreatedByID, &inc.CreatedAt, &inc.UpdatedAt,
		&creator.ID, &creator.Email, &creator.Name, &role)
	if err != nil {
		return nil, err
	}
	inc.Severity = incident.Severity(severity)
	inc.Status = incident.Status(status)
	inc.Source = stringPtr(source)
	creator.Role = auth.Role(role)
	inc.CreatedBy = &creator
	return &inc, nil
}

func (s *IncidentStore) Create(ctx context.Context, inc *incident.Incident) error {
	query := `
		INSERT INTO incidents (id, title, description, severity, status, source,
			created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.conn.Primary().ExecContext(ctx, query,
		inc.ID, inc.Title, inc.Description, string(inc.Severity), string(inc.Status), nullString(inc.Source),
		inc.CreatedByID, inc.CreatedAt.UTC(), inc.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("Incident already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

func (s *IncidentStore) Get(ctx context.Context, id string) (*incident.Incident, error) {
	inc, err := scanIncident(s.conn.Primary().QueryRowContext(ctx, selectIncident+"WHERE i.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return inc, nil
}

func (s *IncidentStore) Update(ctx context.Context, inc *incident.Incident) error {
	query := `
		UPDATE incidents
		SET title = $1, description = $2, severity = $3, status = $4, source = $5, updated_at = $6
		WHERE id = $7
	`
	res, err := s.conn.Primary().ExecContext(ctx, query,
		inc.Title, inc.Description, string(inc.Severity), string(inc.Status), nullString(inc.Source),
		inc.UpdatedAt.UTC(), inc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("Incident")
	}
	return nil
}

// Delete removes the incident and its comments in one transaction
func (s *IncidentStore) Delete(ctx context.Context, id string) error {
	tx, err := s.conn.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM incident_comments WHERE incident_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete incident: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("Incident")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// whereBuilder accumulates conditions with sequential placeholders
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(cond string, args ...interface{}) {
	placeholders := make([]interface{}, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", len(w.args)+i+1)
	}
	w.conds = append(w.conds, fmt.Sprintf(cond, placeholders...))
	w.args = append(w.args, args...)
}

func (w *whereBuilder) next() string {
	return fmt.Sprintf("$%d", len(w.args)+1)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ") + "\n"
}

func scopeWhere(scope incident.Scope) *whereBuilder {
	w := &whereBuilder{}
	if !scope.Unrestricted() {
		w.add("i.created_by_id = %s", scope.OwnerID)
	}
	return w
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *IncidentStore) List(ctx context.Context, scope incident.Scope, q incident.Query) ([]*incident.Incident, error) {
	w := scopeWhere(scope)
	if q.Status != "" {
		w.add("i.status = %s", string(q.Status))
	}
	if q.Severity != "" {
		w.add("i.severity = %s", string(q.Severity))
	}
	if q.Q != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(q.Q)) + "%"
		w.add(`(LOWER(i.title) LIKE %s ESCAPE '\' OR LOWER(i.description) LIKE %s ESCAPE '\')`, pattern, pattern)
	}
	if q.Cursor != "" {
		w.add("i.id < %s", q.Cursor)
	}

	query := selectIncident + w.String() + "ORDER BY i.id DESC\nLIMIT " + w.next()
	rows, err := s.conn.Reader().QueryContext(ctx, query, append(w.args, q.Limit+1)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var out []*incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	return out, nil
}

func (s *IncidentStore) CountByStatus(ctx context.Context, scope incident.Scope) (map[incident.Status]int64, error) {
	w := scopeWhere(scope)
	query := "SELECT i.status, COUNT(*) FROM incidents i\n" + w.String() + "GROUP BY i.status"

	rows, err := s.conn.Reader().QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}
	defer rows.Close()

	counts := make(map[incident.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[incident.Status(status)] = n
	}
	return counts, rows.Err()
}
