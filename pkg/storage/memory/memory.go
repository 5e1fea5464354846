// Package memory is an in-process implementation of every warden store, for
// development and tests. State lives for the life of the DB value.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/platinummonkey/warden/pkg/session"
)

// DB holds all tables behind one lock
type DB struct {
	mu        sync.RWMutex
	users     map[string]*auth.Account
	emails    map[string]string
	sessions  map[string]*session.Session
	incidents map[string]*incident.Incident
	comments  map[string]*incident.Comment
}

// New creates an empty database
func New() *DB {
	return &DB{
		users:     make(map[string]*auth.Account),
		emails:    make(map[string]string),
		sessions:  make(map[string]*session.Session),
		incidents: make(map[string]*incident.Incident),
		comments:  make(map[string]*incident.Comment),
	}
}

// Users returns the user store
func (db *DB) Users() *Users { return &Users{db: db} }

// Sessions returns the session repository
func (db *DB) Sessions() *Sessions { return &Sessions{db: db} }

// Incidents returns the incident store
func (db *DB) Incidents() *Incidents { return &Incidents{db: db} }

// Comments returns the comment store
func (db *DB) Comments() *Comments { return &Comments{db: db} }

// userProjection returns the public view of a user. Caller holds mu.
func (db *DB) userProjection(id string) *auth.User {
	acct, ok := db.users[id]
	if !ok {
		return nil
	}
	u := acct.User
	return &u
}

// Users implements auth.UserStore
type Users struct{ db *DB }

var _ auth.UserStore = (*Users)(nil)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyAccount(a *auth.Account) *auth.Account {
	c := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func (s *Users) GetUserByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	id, ok := s.db.emails[normalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return copyAccount(s.db.users[id]), nil
}

func (s *Users) GetUser(_ context.Context, id string) (*auth.Account, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	acct, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}
	return copyAccount(acct), nil
}

func (s *Users) CreateUser(_ context.Context, account *auth.Account) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	email := normalizeEmail(account.Email)
	if _, exists := s.db.emails[email]; exists {
		return apperr.Conflict("User with this email already exists")
	}
	if _, exists := s.db.users[account.ID]; exists {
		return apperr.Conflict("User already exists")
	}
	s.db.users[account.ID] = copyAccount(account)
	s.db.emails[email] = account.ID
	return nil
}

func (s *Users) RecordLogin(_ context.Context, userID string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	acct, ok := s.db.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	acct.LastLoginAt = &at
	acct.UpdatedAt = at
	return nil
}

// Sessions implements session.Repository
type Sessions struct{ db *DB }

var _ session.Repository = (*Sessions)(nil)

func (s *Sessions) Create(_ context.Context, sess *session.Session) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, exists := s.db.sessions[sess.Token]; exists {
		return apperr.Conflict("session token collision")
	}
	c := *sess
	s.db.sessions[sess.Token] = &c
	return nil
}

func (s *Sessions) GetWithUser(_ context.Context, token string) (*session.Session, *auth.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	sess, ok := s.db.sessions[token]
	if !ok {
		return nil, nil, nil
	}
	user := s.db.userProjection(sess.UserID)
	if user == nil {
		return nil, nil, nil
	}
	c := *sess
	return &c, user, nil
}

func (s *Sessions) Refresh(_ context.Context, token string, refreshedAt, expiresAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if sess, ok := s.db.sessions[token]; ok {
		sess.LastRefreshedAt = refreshedAt
		sess.ExpiresAt = expiresAt
	}
	return nil
}

func (s *Sessions) Delete(_ context.Context, token string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.sessions, token)
	return nil
}

func (s *Sessions) DeleteByUser(_ context.Context, userID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for token, sess := range s.db.sessions {
		if sess.UserID == userID {
			delete(s.db.sessions, token)
		}
	}
	return nil
}

func (s *Sessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for token, sess := range s.db.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.db.sessions, token)
			n++
		}
	}
	return n, nil
}

// Incidents implements incident.Store
type Incidents struct{ db *DB }

var _ incident.Store = (*Incidents)(nil)

func copyIncident(inc *incident.Incident) *incident.Incident {
	c := *inc
	if inc.Source != nil {
		src := *inc.Source
		c.Source = &src
	}
	c.CreatedBy = nil
	return &c
}

func (s *Incidents) Create(_ context.Context, inc *incident.Incident) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, exists := s.db.incidents[inc.ID]; exists {
		return apperr.Conflict("Incident already exists")
	}
	s.db.incidents[inc.ID] = copyIncident(inc)
	inc.CreatedBy = s.db.userProjection(inc.CreatedByID)
	return nil
}

// withCreator returns a copy of inc with its creator projection attached. Caller holds mu.
func (s *Incidents) withCreator(inc *incident.Incident) *incident.Incident {
	c := copyIncident(inc)
	c.CreatedBy = s.db.userProjection(inc.CreatedByID)
	return c
}

func (s *Incidents) Get(_ context.Context, id string) (*incident.Incident, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	inc, ok := s.db.incidents[id]
	if !ok {
		return nil, nil
	}
	return s.withCreator(inc), nil
}

func (s *Incidents) Update(_ context.Context, inc *incident.Incident) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.incidents[inc.ID]; !ok {
		return apperr.NotFound("Incident")
	}
	s.db.incidents[inc.ID] = copyIncident(inc)
	return nil
}

func (s *Incidents) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.incidents[id]; !ok {
		return apperr.NotFound("Incident")
	}
	delete(s.db.incidents, id)
	for cid, c := range s.db.comments {
		if c.IncidentID == id {
			delete(s.db.comments, cid)
		}
	}
	return nil
}

func matchesQuery(inc *incident.Incident, q incident.Query) bool {
	if q.Status != "" && inc.Status != q.Status {
		return false
	}
	if q.Severity != "" && inc.Severity != q.Severity {
		return false
	}
	if q.Q != "" {
		needle := strings.ToLower(q.Q)
		if !strings.Contains(strings.ToLower(inc.Title), needle) &&
			!strings.Contains(strings.ToLower(inc.Description), needle) {
			return false
		}
	}
	return q.Cursor == "" || inc.ID < q.Cursor
}

func (s *Incidents) List(_ context.Context, scope incident.Scope, q incident.Query) ([]*incident.Incident, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []*incident.Incident
	for _, inc := range s.db.incidents {
		if scope.Admits(inc) && matchesQuery(inc, q) {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit+1 {
		out = out[:q.Limit+1]
	}
	for i, inc := range out {
		out[i] = s.withCreator(inc)
	}
	return out, nil
}

func (s *Incidents) CountByStatus(_ context.Context, scope incident.Scope) (map[incident.Status]int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	counts := make(map[incident.Status]int64)
	for _, inc := range s.db.incidents {
		if scope.Admits(inc) {
			counts[inc.Status]++
		}
	}
	return counts, nil
}

// Comments implements incident.CommentStore
type Comments struct{ db *DB }

var _ incident.CommentStore = (*Comments)(nil)

func (s *Comments) Create(_ context.Context, c *incident.Comment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.incidents[c.IncidentID]; !ok {
		return apperr.NotFound("Incident")
	}
	stored := *c
	stored.Author = nil
	s.db.comments[c.ID] = &stored
	c.Author = s.db.userProjection(c.AuthorID)
	return nil
}

func (s *Comments) withAuthor(c *incident.Comment) *incident.Comment {
	out := *c
	out.Author = s.db.userProjection(c.AuthorID)
	return &out
}

func (s *Comments) Get(_ context.Context, id string) (*incident.Comment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c, ok := s.db.comments[id]
	if !ok {
		return nil, nil
	}
	return s.withAuthor(c), nil
}

func (s *Comments) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.comments[id]; !ok {
		return apperr.NotFound("Comment")
	}
	delete(s.db.comments, id)
	return nil
}

func (s *Comments) ListByIncident(_ context.Context, incidentID, cursor string, limit int) ([]*incident.Comment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []*incident.Comment
	for _, c := range s.db.comments {
		if c.IncidentID == incidentID && (cursor == "" || c.ID < cursor) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit+1 {
		out = out[:limit+1]
	}
	for i, c := range out {
		out[i] = s.withAuthor(c)
	}
	return out, nil
}
