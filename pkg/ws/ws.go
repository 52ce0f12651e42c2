package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/events"
)

// Connection wraps websocket.Conn with metadata. Writes go through the
// connection's mutex: gorilla allows one concurrent writer only. lastSeen
// shares the mutex because the read loop and Heartbeat touch it from
// different goroutines.
type Connection struct {
	Conn   *websocket.Conn
	ShopID string

	writeMu  sync.Mutex
	lastSeen time.Time
}

// Touch records read-loop activity for the heartbeat staleness check.
func (c *Connection) Touch() {
	c.writeMu.Lock()
	c.lastSeen = time.Now()
	c.writeMu.Unlock()
}

func (c *Connection) LastSeen() time.Time {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.lastSeen
}

func (c *Connection) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

func (c *Connection) Ping(deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteControl(websocket.PingMessage, []byte{}, deadline)
}

// Manager tracks dashboard sessions per shop. A shop may hold several
// connections (multiple tabs); events go to all of them.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{} // shopID -> set of connections
	logger      *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		connections: make(map[string]map[*Connection]struct{}),
		logger:      logger,
	}
}

// Add registers a connection for a shop.
func (m *Manager) Add(shopID string, conn *websocket.Conn) *Connection {
	c := &Connection{Conn: conn, ShopID: shopID, lastSeen: time.Now()}

	m.mu.Lock()
	if _, ok := m.connections[shopID]; !ok {
		m.connections[shopID] = make(map[*Connection]struct{})
	}
	m.connections[shopID][c] = struct{}{}
	total := len(m.connections[shopID])
	m.mu.Unlock()

	m.logger.Info("WS connected", zap.String("shop_id", shopID), zap.Int("total", total))
	return c
}

// Remove disconnects and removes a connection.
func (m *Manager) Remove(c *Connection) {
	m.mu.Lock()
	if conns, ok := m.connections[c.ShopID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(m.connections, c.ShopID)
		}
	}
	m.mu.Unlock()

	_ = c.Conn.Close()
	m.logger.Info("WS disconnected", zap.String("shop_id", c.ShopID))
}

// SendEvent pushes an event to every connection of one shop.
func (m *Manager) SendEvent(shopID string, evt events.Event) {
	m.mu.RLock()
	conns := make([]*Connection, 0, 4)
	for c := range m.connections[shopID] {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(evt); err != nil {
			m.logger.Warn("failed WS send", zap.String("shop_id", shopID), zap.Error(err))
			go m.Remove(c)
		}
	}
}

// Broadcast sends to all shops.
func (m *Manager) Broadcast(evt events.Event) {
	m.mu.RLock()
	var conns []*Connection
	for _, set := range m.connections {
		for c := range set {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(evt); err != nil {
			m.logger.Warn("failed WS broadcast", zap.Error(err))
			go m.Remove(c)
		}
	}
}

// Heartbeat pings all connections periodically and drops the stale ones.
func (m *Manager) Heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		m.mu.RLock()
		var conns []*Connection
		for _, set := range m.connections {
			for c := range set {
				conns = append(conns, c)
			}
		}
		m.mu.RUnlock()

		for _, c := range conns {
			if time.Since(c.LastSeen()) > 2*interval {
				go m.Remove(c)
				continue
			}
			_ = c.Ping(time.Now().Add(time.Second))
		}
	}
}
