package handlers

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/usecases"
	"github.com/gorilla/websocket"
)

// subscriber pairs a connection with its write lock. gorilla/websocket
// allows one concurrent writer per connection, and Publish is called from
// concurrent request goroutines.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Manager owns the websocket upgrade and the set of subscribers that receive
// order lifecycle events. It implements usecases.EventPublisher.
type Manager struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[*websocket.Conn]*subscriber
}

func NewWebSocketManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subscribers: make(map[*websocket.Conn]*subscriber),
	}
}

func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return m.upgrader.Upgrade(w, r, nil)
}

func (m *Manager) AddSubscriber(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[conn] = &subscriber{conn: conn}
}

func (m *Manager) RemoveSubscriber(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, conn)
}

// Publish fans an order event out to every subscriber. Writes to each
// connection are serialized through its subscriber lock. Dead connections
// are dropped from the set on write failure.
func (m *Manager) Publish(event usecases.OrderEvent) {
	m.mu.RLock()
	subs := make([]*subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.writeJSON(event); err != nil {
			m.logger.Error("Failed to write event to subscriber", "error", err)
			sub.conn.Close()
			m.RemoveSubscriber(sub.conn)
		}
	}
}
