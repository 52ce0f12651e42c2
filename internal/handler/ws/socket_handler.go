package wshandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/events"
	"github.com/Farkhat1984/leema-react-sub002/pkg/authctx"
	"github.com/Farkhat1984/leema-react-sub002/pkg/ws"
)

type WSHandler struct {
	manager    *ws.Manager
	dispatcher *events.Dispatcher
	logger     *zap.Logger
}

func NewWSHandler(manager *ws.Manager, dispatcher *events.Dispatcher, logger *zap.Logger) *WSHandler {
	return &WSHandler{manager: manager, dispatcher: dispatcher, logger: logger}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: tighten with allowed origins once the dashboard domain is fixed
		return true
	},
}

// HandleDashboard upgrades HTTP -> WebSocket, registers the session for its
// shop and reads inbound messages. Malformed or unknown inbound events are
// dropped silently: this channel is shared and bad input from one session
// must not disturb it.
func (h *WSHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	shopID := authctx.ShopID(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	c := h.manager.Add(shopID, conn)
	_ = c.WriteJSON(events.NewKeepalive(events.CatConnected))

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		c.Touch()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		c.Touch()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		evt, err := events.Validate(raw)
		if err != nil {
			if errors.Is(err, events.ErrRejected) {
				h.logger.Debug("dropped inbound event", zap.String("shop_id", shopID), zap.Error(err))
				continue
			}
			continue
		}

		switch evt.Type {
		case events.CatPing:
			_ = c.WriteJSON(events.NewKeepalive(events.CatPong))
		case events.CatPong, events.CatConnected:
			// keepalive noise
		default:
			// Inbound events from dashboards are scoped to their own shop.
			evt.ShopID = shopID
			h.dispatcher.Dispatch(evt)
		}
	}

	h.manager.Remove(c)
}
