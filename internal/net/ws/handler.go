package ws

import (
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"roomsync/server"
)

// Coordinator is the part of the hub a websocket session drives.
type Coordinator interface {
	Connect(transport server.Transport) server.ConnID
	HandleMessage(id server.ConnID, data []byte)
	Disconnect(id server.ConnID) bool
}

type HandlerConfig struct {
	Logger  *log.Logger
	Session SessionConfig
}

// Handler upgrades HTTP requests and runs one session per client.
type Handler struct {
	hub      Coordinator
	logger   *log.Logger
	session  SessionConfig
	upgrader websocket.Upgrader
}

func NewHandler(hub Coordinator, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		session:  cfg.Session.normalized(),
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	h.Serve(conn)
}

// Serve registers the connection with the hub, pumps frames until the client
// goes away and then runs the disconnect path.
func (h *Handler) Serve(conn *websocket.Conn) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}

	session := newSession(conn, h.session)
	id := h.hub.Connect(session)
	go session.writePump()

	err := session.readPump(func(payload []byte) {
		h.hub.HandleMessage(id, payload)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		h.logger.Printf("read from %s failed: %v", id, err)
	}

	h.hub.Disconnect(id)
	session.Close()
}
