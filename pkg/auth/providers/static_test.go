package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAuthProvider(t *testing.T) {
	users := map[string]string{"secret": "alice"}
	p := NewStaticAuthProvider(users)
	users["other"] = "bob"

	claims, err := p.VerifyToken(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UID)

	_, err = p.VerifyToken(context.Background(), "other")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
