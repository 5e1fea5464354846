// Package contextkeys provides centralized context key definitions.
//
// All context keys used across warden are defined here so key usage is discoverable:
//
//	ctx = contextkeys.WithUser(ctx, user)
//	user := contextkeys.GetUser(ctx)
package contextkeys

import (
	"context"

	"github.com/platinummonkey/warden/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserKey contains *auth.User
	// Set by: api session middleware after validating the session cookie
	// Required by: every authenticated handler
	UserKey Key = "user"

	// SessionTokenKey contains the raw session token string
	// Set by: api session middleware
	// Used by: logout
	SessionTokenKey Key = "session_token"

	// RequestIDKey contains request ID string (UUID)
	// Set by: request id middleware
	// Used by: logger, error responses
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: api session middleware
	// Used by: logger
	UserIDKey Key = "user_id"

	// ClientIPKey contains the resolved client address string
	// Set by: client ip middleware
	// Used by: rate limiter, audit, request logger
	ClientIPKey Key = "client_ip"
)

// WithUser adds the authenticated user to the context, along with its id
func WithUser(ctx context.Context, user *auth.User) context.Context {
	ctx = context.WithValue(ctx, UserKey, user)
	if user != nil {
		ctx = WithUserID(ctx, user.ID)
	}
	return ctx
}

// GetUser retrieves the authenticated user, or nil
func GetUser(ctx context.Context) *auth.User {
	if user, ok := ctx.Value(UserKey).(*auth.User); ok {
		return user
	}
	return nil
}

// WithSessionToken adds the session token to the context
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, SessionTokenKey, token)
}

// GetSessionToken retrieves the session token
func GetSessionToken(ctx context.Context) string {
	if token, ok := ctx.Value(SessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithClientIP adds the resolved client address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// GetClientIP retrieves the resolved client address
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}
