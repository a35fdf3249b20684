package network

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/arcade/pkg/api/middleware"
	"github.com/cbodonnell/arcade/pkg/arcade"
	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/game/whack"
	"github.com/cbodonnell/arcade/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type zeroRand struct{}

func (zeroRand) Intn(int) int { return 0 }

type testNetwork struct {
	manager *arcade.Manager
	network *NetworkManager
	server  *httptest.Server
}

func newTestNetwork(t *testing.T) *testNetwork {
	t.Helper()
	m := arcade.NewManager(arcade.NewManagerOptions{
		NewRand: func() game.Rand { return zeroRand{} },
	})
	n := NewNetworkManager(NewNetworkManagerOptions{Arcade: m})
	auth := middleware.NewAuthMiddleware(middleware.NewAuthMiddlewareOptions{
		AnonymousUser: arcade.AnonymousUser,
	})
	srv := httptest.NewServer(auth(n))
	t.Cleanup(func() {
		srv.Close()
		m.Shutdown(context.Background())
	})
	return &testNetwork{manager: m, network: n, server: srv}
}

func (tn *testNetwork) dial(t *testing.T, session string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := strings.Replace(tn.server.URL, "http", "ws", 1) + "?session=" + session
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	msg := readUntil(t, conn, messages.MessageTypeServerSession)
	var s messages.ServerSession
	require.NoError(t, messages.DecodePayload(msg, &s))
	assert.Equal(t, session, s.SessionID)
	assert.Equal(t, arcade.AnonymousUser, s.UserID)
	return conn
}

func write(t *testing.T, conn *websocket.Conn, typ messages.MessageType, instance string, payload interface{}) {
	t.Helper()
	msg, err := messages.NewMessage(typ, instance, payload)
	require.NoError(t, err)
	require.NoError(t, WriteMessageToWS(context.Background(), conn, msg))
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want messages.MessageType) *messages.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		msg, err := ReadMessageFromWS(ctx, conn)
		require.NoError(t, err)
		if msg.Type == want {
			return msg
		}
	}
}

func create(t *testing.T, conn *websocket.Conn, kind game.Kind) string {
	t.Helper()
	write(t, conn, messages.MessageTypeClientCreate, "", &messages.ClientCreate{Kind: kind})
	msg := readUntil(t, conn, messages.MessageTypeServerCreated)
	require.NotEmpty(t, msg.Instance)
	return msg.Instance
}

// flush waits until every message sent before it has been handled.
func flush(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	write(t, conn, messages.MessageTypeClientPing, "", nil)
	readUntil(t, conn, messages.MessageTypeServerPong)
}

func TestNetwork_ActionsAreTrusted(t *testing.T) {
	tn := newTestNetwork(t)
	conn := tn.dial(t, "s1")
	id := create(t, conn, game.KindWhackAMole)

	write(t, conn, messages.MessageTypeClientAction, id, &messages.ClientAction{
		Action: game.Action{Type: game.ActionStart},
	})
	write(t, conn, messages.MessageTypeClientAction, id, &messages.ClientAction{
		Action: game.Action{Type: game.ActionHit, Target: 0},
	})
	flush(t, conn)

	owner := arcade.Owner{UserID: arcade.AnonymousUser, SessionID: "s1"}
	snapshot, err := tn.manager.Snapshot(context.Background(), owner, id)
	require.NoError(t, err)
	view := snapshot.State.(whack.View)
	assert.True(t, view.Active)
	assert.Equal(t, 1, view.Score)
}

func TestNetwork_Broadcast(t *testing.T) {
	tn := newTestNetwork(t)
	conn := tn.dial(t, "s1")
	id := create(t, conn, game.KindMemory)

	write(t, conn, messages.MessageTypeClientAction, id, &messages.ClientAction{
		Action: game.Action{Type: game.ActionStart},
	})
	flush(t, conn)

	published, err := tn.manager.Outbox().ReadAllMessages()
	require.NoError(t, err)
	require.NotEmpty(t, published)
	for _, p := range published {
		tn.network.Broadcast(context.Background(), p.(arcade.Publication))
	}

	msg := readUntil(t, conn, messages.MessageTypeServerUpdate)
	assert.Equal(t, id, msg.Instance)
	var update messages.ServerUpdate
	require.NoError(t, messages.DecodePayload(msg, &update))
	assert.Equal(t, game.KindMemory, update.Kind)

	var state struct {
		Phase string `json:"phase"`
	}
	require.NoError(t, json.Unmarshal(update.State, &state))
	assert.Equal(t, "playing", state.Phase)

	write(t, conn, messages.MessageTypeClientClose, id, nil)
	flush(t, conn)
	published, err = tn.manager.Outbox().ReadAllMessages()
	require.NoError(t, err)
	for _, p := range published {
		tn.network.Broadcast(context.Background(), p.(arcade.Publication))
	}
	msg = readUntil(t, conn, messages.MessageTypeServerClosed)
	assert.Equal(t, id, msg.Instance)
	assert.Empty(t, tn.network.ClientManager.GetSubscribers(id))
}

func TestNetwork_Errors(t *testing.T) {
	tn := newTestNetwork(t)
	conn := tn.dial(t, "s1")

	write(t, conn, messages.MessageTypeClientAction, "missing", &messages.ClientAction{
		Action: game.Action{Type: game.ActionStart},
	})
	msg := readUntil(t, conn, messages.MessageTypeServerError)
	assert.Equal(t, "missing", msg.Instance)

	write(t, conn, messages.MessageTypeClientCreate, "", &messages.ClientCreate{Kind: "snake"})
	msg = readUntil(t, conn, messages.MessageTypeServerError)
	var serverError messages.ServerError
	require.NoError(t, messages.DecodePayload(msg, &serverError))
	assert.Contains(t, serverError.Message, "snake")

	// malformed frames leave the connection open
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte("hello")))
	readUntil(t, conn, messages.MessageTypeServerError)
	flush(t, conn)
}

func TestNetwork_DisconnectEndsSession(t *testing.T) {
	tn := newTestNetwork(t)
	conn := tn.dial(t, "s1")
	create(t, conn, game.KindTypingTest)
	create(t, conn, game.KindWhackAMole)
	require.Equal(t, 2, tn.manager.Len())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	assert.Eventually(t, func() bool {
		return tn.manager.Len() == 0 && !tn.network.ClientManager.Exists("s1")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNetwork_DuplicateSession(t *testing.T) {
	tn := newTestNetwork(t)
	tn.dial(t, "s1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := strings.Replace(tn.server.URL, "http", "ws", 1) + "?session=s1"
	_, _, err := websocket.Dial(ctx, url, nil)
	assert.Error(t, err)
}
