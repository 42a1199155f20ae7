package authlink_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-authlink"
)

func TestUserContext(t *testing.T) {
	_, ok := authlink.FromContext(context.Background())
	assert.False(t, ok)

	_, ok = authlink.FromContext(authlink.WithContext(context.Background(), nil))
	assert.False(t, ok)

	user := &authlink.User{ID: uuid.New()}
	got, ok := authlink.FromContext(authlink.WithContext(context.Background(), user))
	assert.True(t, ok)
	assert.Same(t, user, got)
}
