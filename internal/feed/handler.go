package feed

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	myMiddleware "pm-relay/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // monitors authenticate with a token, not cookies
	},
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeWs upgrades an authenticated request to a monitor connection.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	subject, ok := r.Context().Value(myMiddleware.SubjectKey).(string)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := &Client{
		Hub:     h.hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Subject: subject,
	}
	if !h.hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	h.hub.log.Info("monitor connected", zap.String("subject", subject))

	go client.WritePump()
	go client.ReadPump()
}
