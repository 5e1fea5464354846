package contextkeys

import (
	"context"
	"testing"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/stretchr/testify/assert"
)

func TestUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetUser(ctx))
	assert.Empty(t, GetUserID(ctx))

	user := &auth.User{ID: "u1", Role: auth.RoleAnalyst}
	ctx = WithUser(ctx, user)

	assert.Same(t, user, GetUser(ctx))
	assert.Equal(t, "u1", GetUserID(ctx))
}

func TestStringKeys(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSessionToken(ctx, "tok")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "tok", GetSessionToken(ctx))
}
