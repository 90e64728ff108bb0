package websocket

import (
	"sync"
	"time"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"

	log "github.com/sirupsen/logrus"
)

type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	maxConnPerUser int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	codec          codec.Codec
	messageHandler MessageHandler
	done           chan struct{}
}

type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
}

func NewManager(c codec.Codec, maxConnPerUser int, writeWait, pongWait, pingPeriod time.Duration) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		maxConnPerUser: maxConnPerUser,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
		codec:          c,
		done:           make(chan struct{}),
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

func (m *Manager) Codec() codec.Codec {
	return m.codec
}

// Run serves registrations until Stop is called.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case <-m.done:
			m.closeAll()
			return
		}
	}
}

func (m *Manager) Stop() {
	close(m.done)
}

// Add hands client to the Run loop. It reports false once the manager has
// stopped, in which case the caller owns the connection.
func (m *Manager) Add(client *Client) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// remove unregisters client, or gives up once the manager has stopped.
func (m *Manager) remove(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		log.WithField("user_id", client.UserID).Warn("max websocket connections reached")
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true

	log.WithFields(log.Fields{"client_id": client.ID, "user_id": client.UserID}).Info("websocket client registered")
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
		log.WithField("client_id", client.ID).Info("websocket client unregistered")
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		close(client.Send)
		delete(m.clients, id)
	}
	m.userIndex = make(map[string]map[string]bool)
}

// processMessage runs on the client's read goroutine, so one client's
// messages are handled in order without blocking the others.
func (m *Manager) processMessage(client *Client, data []byte) {
	var msg Message
	if err := m.codec.Parse(data, &msg); err != nil {
		log.WithError(err).WithField("client_id", client.ID).Warn("malformed websocket message")
		m.sendError(client, "malformed message")
		return
	}

	if m.messageHandler == nil {
		return
	}
	if err := m.messageHandler.HandleWebSocketMessage(client, &msg); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"client_id": client.ID,
			"type":      msg.Type,
		}).Warn("websocket message failed")
		m.sendError(client, err.Error())
	}
}

func (m *Manager) sendError(client *Client, reason string) {
	msg, err := NewMessage(m.codec, TypeError, &ErrorPayload{Error: reason})
	if err != nil {
		return
	}
	_ = m.SendToClient(client.ID, msg)
}

// BroadcastToUser sends message to every connection of userID except
// excludeClientID. Connections whose buffer is full are dropped.
func (m *Manager) BroadcastToUser(userID string, message *Message, excludeClientID string) error {
	messageBytes, err := m.codec.Stringify(message)
	if err != nil {
		return err
	}

	var stale []*Client

	m.clientsMutex.RLock()
	for clientID := range m.userIndex[userID] {
		client := m.clients[clientID]
		if client.ID == excludeClientID {
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			stale = append(stale, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range stale {
		log.WithField("client_id", client.ID).Warn("websocket send buffer full, closing connection")
		m.unregisterClient(client)
	}

	return nil
}

// NotifyChanges pushes a changes_available message to every connection of
// userIDs.
func (m *Manager) NotifyChanges(userIDs []string, records []*domain.ChangeRecord) error {
	if len(userIDs) == 0 || len(records) == 0 {
		return nil
	}

	msg, err := NewMessage(m.codec, TypeChangesAvailable, summarize(records))
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		if err := m.BroadcastToUser(userID, msg, ""); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	messageBytes, err := m.codec.Stringify(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	select {
	case client.Send <- messageBytes:
	default:
		log.WithField("client_id", clientID).Warn("websocket send buffer full")
	}

	return nil
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if clients, exists := m.userIndex[userID]; exists {
		return len(clients)
	}
	return 0
}
