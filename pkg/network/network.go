// Package network serves game instances to browsers over websockets.
//
// Every connection is one browser session. Closing the connection ends the
// session: its instances are closed and its session-scoped records dropped.
package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/arcade/pkg/api/middleware"
	"github.com/cbodonnell/arcade/pkg/arcade"
	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/messages"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

const (
	// SessionQueryParam lets a client resume a browser session id it already
	// uses for REST calls.
	SessionQueryParam = "session"
	// DisconnectTimeout bounds the cleanup of a closed connection.
	DisconnectTimeout = 5 * time.Second
)

// Arcade is the part of the instance manager the network layer drives.
type Arcade interface {
	Create(ctx context.Context, owner arcade.Owner, kind game.Kind) (string, game.Update, error)
	Dispatch(ctx context.Context, owner arcade.Owner, id string, action game.Action) error
	Snapshot(ctx context.Context, owner arcade.Owner, id string) (game.Update, error)
	Close(ctx context.Context, owner arcade.Owner, id string) error
	AttachBrowserSession(owner arcade.Owner)
	EndBrowserSession(ctx context.Context, owner arcade.Owner)
}

type NetworkManager struct {
	Arcade        Arcade
	ClientManager *ClientManager
	// OriginPatterns restricts cross-origin upgrades. Empty allows any origin.
	OriginPatterns []string
}

type NewNetworkManagerOptions struct {
	Arcade         Arcade
	ClientManager  *ClientManager
	OriginPatterns []string
}

func NewNetworkManager(options NewNetworkManagerOptions) *NetworkManager {
	if options.ClientManager == nil {
		options.ClientManager = NewClientManager()
	}
	return &NetworkManager{
		Arcade:         options.Arcade,
		ClientManager:  options.ClientManager,
		OriginPatterns: options.OriginPatterns,
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (n *NetworkManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserFromContext(r.Context())
	if !ok || userID == "" {
		userID = arcade.AnonymousUser
	}
	sessionID := r.URL.Query().Get(SessionQueryParam)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if n.ClientManager.Exists(sessionID) {
		http.Error(w, "session is already connected", http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     n.OriginPatterns,
		InsecureSkipVerify: len(n.OriginPatterns) == 0,
	})
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(messages.MessageBufferSize)

	client, err := n.ClientManager.ConnectClient(sessionID, userID, conn)
	if err != nil {
		log.Warn("Rejected connection: %v", err)
		conn.Close(websocket.StatusPolicyViolation, "session is already connected")
		return
	}
	log.Debug("New WebSocket connection from %s for session %s", r.RemoteAddr, sessionID)
	n.Arcade.AttachBrowserSession(n.owner(client))

	n.handleWSConnection(r.Context(), client)
}

func (n *NetworkManager) handleWSConnection(ctx context.Context, client *Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		n.handleDisconnect(client)
		client.WSConn.Close(websocket.StatusNormalClosure, "")
	}()

	if err := n.send(ctx, client, messages.MessageTypeServerSession, "", &messages.ServerSession{
		SessionID: client.SessionID,
		UserID:    client.UserID,
	}); err != nil {
		log.Error("Failed to send session to %s: %v", client.SessionID, err)
		return
	}

	for {
		message, err := ReadMessageFromWS(ctx, client.WSConn)
		if err != nil {
			if errors.Is(err, ErrMalformedMessage) {
				n.sendError(ctx, client, "", err)
				continue
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				log.Debug("Error reading WebSocket message from %s: %v", client.SessionID, err)
			}
			log.Trace("Connection closed for %s", client.SessionID)
			return
		}

		// messages are handled in order so that inputs keep their sequence
		n.handleMessage(ctx, client, message)
	}
}

func (n *NetworkManager) handleDisconnect(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), DisconnectTimeout)
	defer cancel()

	n.ClientManager.DisconnectClient(client.SessionID)
	n.Arcade.EndBrowserSession(ctx, n.owner(client))
	log.Info("Session %s disconnected", client.SessionID)
}

func (n *NetworkManager) owner(client *Client) arcade.Owner {
	return arcade.Owner{UserID: client.UserID, SessionID: client.SessionID}
}

func (n *NetworkManager) handleMessage(ctx context.Context, client *Client, message *messages.Message) {
	var err error
	switch message.Type {
	case messages.MessageTypeClientPing:
		err = n.send(ctx, client, messages.MessageTypeServerPong, "", nil)
	case messages.MessageTypeClientCreate:
		err = n.handleClientCreate(ctx, client, message)
	case messages.MessageTypeClientAction:
		err = n.handleClientAction(ctx, client, message)
	case messages.MessageTypeClientSubscribe:
		err = n.handleClientSubscribe(ctx, client, message)
	case messages.MessageTypeClientClose:
		err = n.Arcade.Close(ctx, n.owner(client), message.Instance)
	default:
		err = fmt.Errorf("unsupported message type %s", message.Type)
	}

	if err != nil {
		log.Debug("Failed to handle %s message from %s: %v", message.Type, client.SessionID, err)
		n.sendError(ctx, client, message.Instance, err)
	}
}

func (n *NetworkManager) handleClientCreate(ctx context.Context, client *Client, message *messages.Message) error {
	clientCreate := &messages.ClientCreate{}
	if err := messages.DecodePayload(message, clientCreate); err != nil {
		return err
	}

	id, snapshot, err := n.Arcade.Create(ctx, n.owner(client), clientCreate.Kind)
	if err != nil {
		return err
	}
	if err := n.ClientManager.Subscribe(client.SessionID, id); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %v", id, err)
	}

	return n.send(ctx, client, messages.MessageTypeServerCreated, id, &messages.ServerCreated{
		Kind:   clientCreate.Kind,
		Update: snapshot,
	})
}

func (n *NetworkManager) handleClientAction(ctx context.Context, client *Client, message *messages.Message) error {
	clientAction := &messages.ClientAction{}
	if err := messages.DecodePayload(message, clientAction); err != nil {
		return err
	}

	// only input from a live connection counts as a genuine interaction
	action := clientAction.Action
	action.Trusted = true
	return n.Arcade.Dispatch(ctx, n.owner(client), message.Instance, action)
}

func (n *NetworkManager) handleClientSubscribe(ctx context.Context, client *Client, message *messages.Message) error {
	snapshot, err := n.Arcade.Snapshot(ctx, n.owner(client), message.Instance)
	if err != nil {
		return err
	}
	if err := n.ClientManager.Subscribe(client.SessionID, message.Instance); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %v", message.Instance, err)
	}
	return n.send(ctx, client, messages.MessageTypeServerUpdate, message.Instance, snapshot)
}

// Broadcast delivers a published update to every subscriber of its instance.
func (n *NetworkManager) Broadcast(ctx context.Context, publication arcade.Publication) {
	subscribers := n.ClientManager.GetSubscribers(publication.Instance)
	if publication.Closed {
		n.ClientManager.Unsubscribe(publication.Instance)
	}
	if len(subscribers) == 0 {
		return
	}

	var msg *messages.Message
	var err error
	if publication.Closed {
		msg, err = messages.NewMessage(messages.MessageTypeServerClosed, publication.Instance, nil)
	} else {
		msg, err = messages.NewMessage(messages.MessageTypeServerUpdate, publication.Instance, publication.Update)
	}
	if err != nil {
		log.Error("Failed to build update for %s: %v", publication.Instance, err)
		return
	}

	for _, client := range subscribers {
		if err := WriteMessageToWS(ctx, client.WSConn, msg); err != nil {
			log.Warn("Failed to send update to session %s: %v", client.SessionID, err)
		}
	}
}

func (n *NetworkManager) send(ctx context.Context, client *Client, t messages.MessageType, instance string, payload interface{}) error {
	msg, err := messages.NewMessage(t, instance, payload)
	if err != nil {
		return err
	}
	if err := WriteMessageToWS(ctx, client.WSConn, msg); err != nil {
		return fmt.Errorf("failed to send %s to session %s: %v", t, client.SessionID, err)
	}
	return nil
}

func (n *NetworkManager) sendError(ctx context.Context, client *Client, instance string, cause error) {
	if err := n.send(ctx, client, messages.MessageTypeServerError, instance, &messages.ServerError{
		Message: cause.Error(),
	}); err != nil {
		log.Warn("Failed to send error to session %s: %v", client.SessionID, err)
	}
}
