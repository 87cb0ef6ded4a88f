package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"classpoll/internal/events"
	"classpoll/internal/services"
	"classpoll/pkg/logger"

	"go.uber.org/zap"
)

var ErrHubStopped = errors.New("hub stopped")

// Hub maintains the set of active clients and broadcasts events to all of
// them. It is the events.Publisher handed to the services.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	presence   *services.PresenceService
	dispatcher *Dispatcher
	rateLimits RateLimits
	logger     *WebSocketLogger
	mu         sync.RWMutex
	stopChan   chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
	started    atomic.Bool
}

func NewHub(presence *services.PresenceService, l *logger.Logger) *Hub {
	if presence == nil {
		presence = services.NewPresenceService()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan []byte, 256),
		presence:   presence,
		rateLimits: DefaultRateLimits,
		logger:     NewWebSocketLogger(l),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SetDispatcher wires the command handler. Must be called before Run.
func (h *Hub) SetDispatcher(d *Dispatcher) {
	h.dispatcher = d
}

func (h *Hub) Presence() *services.PresenceService {
	return h.presence
}

// Run starts the Hub loop and blocks until Stop.
func (h *Hub) Run() {
	h.started.Store(true)
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case data := <-h.broadcast:
			h.handleBroadcast(data)

		case <-h.stopChan:
			return
		}
	}
}

// Publish encodes event and fans it out to every connected client.
func (h *Hub) Publish(ctx context.Context, event events.Event) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}
	select {
	case <-h.stopChan:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.stopChan:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) registerClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopChan:
		client.conn.Close()
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopChan:
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client.clientID] = client
	h.mu.Unlock()

	h.logger.Info("client connected", client.clientID, "")

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.clientID]
	if ok {
		delete(h.clients, client.clientID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	name := client.name()
	client.closeSend()

	roster, removed := h.presence.Leave(client.clientID)
	h.logger.Info("client disconnected", client.clientID, name)
	if !removed {
		return
	}

	data, err := events.ParticipantsChanged(roster).Encode()
	if err != nil {
		h.logger.Error("encode roster failed", client.clientID, name, err)
		return
	}
	h.handleBroadcast(data)
}

func (h *Hub) handleBroadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.SendMessage(data)
	}
}

// Kick sends a final event to one client and closes it once the event is
// flushed. It reports false for unknown ids.
func (h *Hub) Kick(clientID string, final events.Event) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	client.SendEvent(final)
	client.closeSend()
	h.logger.Info("client removed", clientID, "", zap.String("msg_type", final.Name))
	return true
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop shuts down the Hub loop and closes every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	if h.started.Load() {
		<-h.done
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[string]*Client)
}
