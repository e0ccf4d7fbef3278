package handlers

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arnold/tribes-api/internal/logging"
	"github.com/arnold/tribes-api/internal/metrics"
	"github.com/arnold/tribes-api/internal/services"
)

// connection wraps a websocket connection with its user ID. Writes are
// serialized because broadcasts may come from several request goroutines.
type connection struct {
	conn   *websocket.Conn
	userID uuid.UUID
	mu     sync.Mutex
}

const writeWait = 5 * time.Second

func (c *connection) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.Close()
}

// Hub manages WebSocket connections per tribe
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*connection]bool // tribeID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uuid.UUID]map[*connection]bool)}
}

// register adds a connection to a tribe room
func (h *Hub) register(tribeID uuid.UUID, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[tribeID] == nil {
		h.rooms[tribeID] = make(map[*connection]bool)
	}
	h.rooms[tribeID][conn] = true
	metrics.WSConnections.Inc()
	logging.Logger.Debug("ws register",
		zap.String("user_id", conn.userID.String()),
		zap.String("tribe_id", tribeID.String()),
		zap.Int("total", len(h.rooms[tribeID])))
}

// unregister removes a connection from a tribe room
func (h *Hub) unregister(tribeID uuid.UUID, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[tribeID]; ok {
		if _, present := conns[conn]; !present {
			return
		}
		delete(conns, conn)
		metrics.WSConnections.Dec()
		if len(conns) == 0 {
			delete(h.rooms, tribeID)
		}
	}
}

// Publish sends an event to every connection in the tribe room, the sender's
// own tabs included, so each client can refetch the invalidated collections.
func (h *Hub) Publish(ev services.Event) {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.rooms[ev.TribeID]))
	for c := range h.rooms[ev.TribeID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		logging.Logger.Warn("ws broadcast marshal error", zap.Error(err))
		return
	}
	for _, c := range conns {
		if err := c.write(msg); err != nil {
			logging.Logger.Debug("ws write error", zap.String("user_id", c.userID.String()), zap.Error(err))
		}
	}

	switch ev.Type {
	case services.EventMemberLeft:
		h.drop(ev.TribeID, func(c *connection) bool { return c.userID == ev.UserID })
	case services.EventTribeDeleted:
		h.drop(ev.TribeID, func(*connection) bool { return true })
	}
}

// drop closes the matching connections of a room. Their read loops then end
// and unregister finds nothing left to remove.
func (h *Hub) drop(tribeID uuid.UUID, match func(*connection) bool) {
	var closing []*connection
	h.mu.Lock()
	for c := range h.rooms[tribeID] {
		if match(c) {
			closing = append(closing, c)
			delete(h.rooms[tribeID], c)
			metrics.WSConnections.Dec()
		}
	}
	if len(h.rooms[tribeID]) == 0 {
		delete(h.rooms, tribeID)
	}
	h.mu.Unlock()

	for _, c := range closing {
		c.close()
	}
}

// Connections reports how many clients are subscribed to a tribe.
func (h *Hub) Connections(tribeID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tribeID])
}

// WebSocketUpgrade checks the upgrade request and that the caller may watch
// the tribe. It runs after middleware.Protected.
func (h *Handler) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tribeID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid tribe ID")
	}
	a := actor(c)
	member, err := h.svc.Tribes.IsMember(c.UserContext(), a.UserID, tribeID)
	if err != nil {
		return respondError(c, err)
	}
	if !member {
		admin, err := h.svc.Admin.IsAdmin(c.UserContext(), a.UserID)
		if err != nil {
			return respondError(c, err)
		}
		if !admin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "not a member of this tribe",
			})
		}
	}
	c.Locals("tribeId", tribeID)
	return c.Next()
}

// HandleWebSocket handles a WebSocket connection for a specific tribe
func (h *Handler) HandleWebSocket(c *websocket.Conn) {
	tribeID, ok := c.Locals("tribeId").(uuid.UUID)
	if !ok {
		c.Close()
		return
	}
	userID, ok := c.Locals("userId").(uuid.UUID)
	if !ok {
		c.Close()
		return
	}

	conn := &connection{conn: c, userID: userID}
	h.hub.register(tribeID, conn)
	defer h.hub.unregister(tribeID, conn)

	// Keep connection alive; clients only send pings/keepalives
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
