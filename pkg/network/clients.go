package network

import (
	"fmt"
	"sync"

	"nhooyr.io/websocket"
)

// Client is one connected browser session.
type Client struct {
	SessionID string
	UserID    string
	WSConn    *websocket.Conn
	// instances the client receives updates for
	subscriptions map[string]struct{}
}

// ClientManager tracks connected clients and their subscriptions.
type ClientManager struct {
	clients     map[string]*Client
	clientsLock sync.RWMutex
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*Client),
	}
}

// ConnectClient registers a client. A session can only be connected once.
func (cm *ClientManager) ConnectClient(sessionID string, userID string, conn *websocket.Conn) (*Client, error) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	if _, ok := cm.clients[sessionID]; ok {
		return nil, fmt.Errorf("session %s is already connected", sessionID)
	}
	client := &Client{
		SessionID:     sessionID,
		UserID:        userID,
		WSConn:        conn,
		subscriptions: make(map[string]struct{}),
	}
	cm.clients[sessionID] = client
	return client, nil
}

// DisconnectClient removes a client from the manager
func (cm *ClientManager) DisconnectClient(sessionID string) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	delete(cm.clients, sessionID)
}

// Subscribe makes a client receive the updates of an instance.
func (cm *ClientManager) Subscribe(sessionID string, instanceID string) error {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, ok := cm.clients[sessionID]
	if !ok {
		return fmt.Errorf("session %s is not connected", sessionID)
	}
	client.subscriptions[instanceID] = struct{}{}
	return nil
}

// Unsubscribe drops an instance from every client.
func (cm *ClientManager) Unsubscribe(instanceID string) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	for _, client := range cm.clients {
		delete(client.subscriptions, instanceID)
	}
}

// GetSubscribers returns a copy of every client subscribed to an instance.
func (cm *ClientManager) GetSubscribers(instanceID string) []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()

	var clients []*Client
	for _, client := range cm.clients {
		if _, ok := client.subscriptions[instanceID]; ok {
			clients = append(clients, &Client{
				SessionID: client.SessionID,
				UserID:    client.UserID,
				WSConn:    client.WSConn,
			})
		}
	}
	return clients
}

func (cm *ClientManager) Exists(sessionID string) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[sessionID]
	return ok
}

// Len returns the number of connected clients.
func (cm *ClientManager) Len() int {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return len(cm.clients)
}
