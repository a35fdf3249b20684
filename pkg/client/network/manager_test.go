package network

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/arcade/pkg/api/middleware"
	"github.com/cbodonnell/arcade/pkg/arcade"
	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/messages"
	servernetwork "github.com/cbodonnell/arcade/pkg/network"
	"github.com/cbodonnell/arcade/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, q queue.Queue, want messages.MessageType) *messages.Message {
	t.Helper()
	var found *messages.Message
	require.Eventually(t, func() bool {
		for {
			item, ok := q.Dequeue()
			if !ok {
				return false
			}
			if msg := item.(*messages.Message); msg.Type == want {
				found = msg
				return true
			}
		}
	}, 5*time.Second, 5*time.Millisecond)
	return found
}

func TestNetworkManager(t *testing.T) {
	m := arcade.NewManager(arcade.NewManagerOptions{})
	defer m.Shutdown(context.Background())
	auth := middleware.NewAuthMiddleware(middleware.NewAuthMiddlewareOptions{AnonymousUser: arcade.AnonymousUser})
	srv := httptest.NewServer(auth(servernetwork.NewNetworkManager(servernetwork.NewNetworkManagerOptions{Arcade: m})))
	defer srv.Close()

	q := queue.NewInMemoryQueue(0)
	client := NewNetworkManager(NewNetworkManagerOptions{
		ServerURL:    strings.Replace(srv.URL, "http", "ws", 1),
		Session:      "cli",
		MessageQueue: q,
	})
	ctx := context.Background()
	require.NoError(t, client.Start(ctx))
	assert.True(t, client.IsConnected())

	session := waitFor(t, q, messages.MessageTypeServerSession)
	var s messages.ServerSession
	require.NoError(t, messages.DecodePayload(session, &s))
	assert.Equal(t, "cli", s.SessionID)

	msg, err := messages.NewMessage(messages.MessageTypeClientCreate, "", &messages.ClientCreate{Kind: game.KindTypingTest})
	require.NoError(t, err)
	require.NoError(t, client.SendMessage(ctx, msg))
	created := waitFor(t, q, messages.MessageTypeServerCreated)
	assert.NotEmpty(t, created.Instance)

	require.NoError(t, client.Stop())
	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close")
	}
	assert.False(t, client.IsConnected())
	assert.Error(t, client.SendMessage(ctx, msg))
}
