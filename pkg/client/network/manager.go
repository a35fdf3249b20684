// Package network is the client side of the websocket transport.
package network

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/messages"
	servernetwork "github.com/cbodonnell/arcade/pkg/network"
	"github.com/cbodonnell/arcade/pkg/queue"
	"nhooyr.io/websocket"
)

const (
	DefaultServerURL = "ws://localhost:8081"
)

// NetworkManager represents a network manager. Received messages are
// pushed onto the message queue for the caller to drain.
type NetworkManager struct {
	serverURL    string
	token        string
	session      string
	messageQueue queue.Queue

	lock        sync.Mutex
	conn        *websocket.Conn
	isConnected bool
	done        chan struct{}
}

type NewNetworkManagerOptions struct {
	ServerURL string
	// Token is an optional ID token sent as the token query parameter.
	Token string
	// Session resumes an existing browser session id.
	Session      string
	MessageQueue queue.Queue
}

// NewNetworkManager creates a new network manager.
func NewNetworkManager(opts NewNetworkManagerOptions) *NetworkManager {
	if opts.ServerURL == "" {
		opts.ServerURL = DefaultServerURL
	}
	return &NetworkManager{
		serverURL:    opts.ServerURL,
		token:        opts.Token,
		session:      opts.Session,
		messageQueue: opts.MessageQueue,
		done:         make(chan struct{}),
	}
}

// Start connects to the server and starts receiving messages.
func (m *NetworkManager) Start(ctx context.Context) error {
	u, err := url.Parse(m.serverURL)
	if err != nil {
		return fmt.Errorf("failed to parse server url: %v", err)
	}
	q := u.Query()
	if m.token != "" {
		q.Set("token", m.token)
	}
	if m.session != "" {
		q.Set(servernetwork.SessionQueryParam, m.session)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", m.serverURL, err)
	}
	conn.SetReadLimit(messages.MessageBufferSize)

	m.lock.Lock()
	m.conn = conn
	m.isConnected = true
	m.lock.Unlock()

	go m.receive(ctx, conn)
	return nil
}

func (m *NetworkManager) receive(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		m.lock.Lock()
		m.isConnected = false
		m.lock.Unlock()
		close(m.done)
	}()

	for {
		msg, err := servernetwork.ReadMessageFromWS(ctx, conn)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				log.Debug("Connection closed by server")
				return
			}
			log.Error("Failed to read message: %v", err)
			return
		}
		if err := m.messageQueue.Enqueue(msg); err != nil {
			log.Warn("Dropped %s message: %v", msg.Type, err)
		}
	}
}

// SendMessage writes a message to the server.
func (m *NetworkManager) SendMessage(ctx context.Context, msg *messages.Message) error {
	m.lock.Lock()
	conn, connected := m.conn, m.isConnected
	m.lock.Unlock()
	if !connected {
		return fmt.Errorf("not connected")
	}
	return servernetwork.WriteMessageToWS(ctx, conn, msg)
}

// IsConnected reports whether the connection is open.
func (m *NetworkManager) IsConnected() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.isConnected
}

// Done is closed once the connection has been lost.
func (m *NetworkManager) Done() <-chan struct{} {
	return m.done
}

// Stop closes the connection.
func (m *NetworkManager) Stop() error {
	m.lock.Lock()
	conn := m.conn
	m.lock.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "")
}
