package ratelimit

import (
	"fmt"
	"time"
)

// Policy is a fixed-window limit applied per identifier
type Policy struct {
	// Name labels metrics and logs
	Name        string
	Window      time.Duration
	MaxRequests int
	// KeyPrefix namespaces counters, e.g. "login" gives "login:<ip>:<window>"
	KeyPrefix string
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	if p.Window < time.Millisecond {
		return fmt.Errorf("rate limit %q: window must be at least 1ms", p.Name)
	}
	if p.MaxRequests < 1 {
		return fmt.Errorf("rate limit %q: max requests must be positive", p.Name)
	}
	if p.KeyPrefix == "" {
		return fmt.Errorf("rate limit %q: key prefix is required", p.Name)
	}
	return nil
}

func (p Policy) windowMillis() int64 {
	return p.Window.Milliseconds()
}

// windowIndex returns floor(now / window) in milliseconds
func (p Policy) windowIndex(now time.Time) int64 {
	return now.UnixMilli() / p.windowMillis()
}

func (p Policy) key(identifier string, window int64) string {
	return fmt.Sprintf("%s:%s:%d", p.KeyPrefix, identifier, window)
}

// Presets for the three request classes
const (
	PolicyLogin    = "login"
	PolicyAPIWrite = "api_write"
	PolicyAPIRead  = "api_read"
)

// LoginPolicy limits login attempts per client address
func LoginPolicy(window time.Duration, max int) Policy {
	return Policy{Name: PolicyLogin, Window: window, MaxRequests: max, KeyPrefix: "login"}
}

// APIWritePolicy limits mutating API calls per user
func APIWritePolicy(window time.Duration, max int) Policy {
	return Policy{Name: PolicyAPIWrite, Window: window, MaxRequests: max, KeyPrefix: "api_write"}
}

// APIReadPolicy limits read API calls per user
func APIReadPolicy(window time.Duration, max int) Policy {
	return Policy{Name: PolicyAPIRead, Window: window, MaxRequests: max, KeyPrefix: "api_read"}
}

// Policies groups the presets wired into the HTTP layer
type Policies struct {
	Login    Policy
	APIWrite Policy
	APIRead  Policy
}

// DefaultPolicies returns 5 logins per 15 minutes, 30 writes and 100 reads per minute
func DefaultPolicies() Policies {
	return Policies{
		Login:    LoginPolicy(15*time.Minute, 5),
		APIWrite: APIWritePolicy(time.Minute, 30),
		APIRead:  APIReadPolicy(time.Minute, 100),
	}
}
