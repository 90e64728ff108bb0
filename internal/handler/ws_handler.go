package handler

import (
	"net/http"
	"strings"

	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/service"
	"taskflow-sync-server/internal/websocket"
	"taskflow-sync-server/pkg/jwt"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type WebSocketHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  ws.Upgrader
}

func NewWebSocketHandler(manager *websocket.Manager, jwtSecret string, readBufferSize, writeBufferSize int) *WebSocketHandler {
	return &WebSocketHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	claims, err := jwt.ValidateAccessToken(token, h.jwtSecret)
	if err != nil {
		log.WithError(err).Debug("websocket token rejected")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(uuid.New().String(), claims.UserID, conn, h.manager)

	if !h.manager.Add(client) {
		log.WithField("user_id", claims.UserID).Debug("websocket manager stopped, dropping connection")
		_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// WebSocketMessageHandler answers pings and runs delta syncs sent over the
// socket.
type WebSocketMessageHandler struct {
	manager      *websocket.Manager
	deltaService *service.DeltaSyncService
}

func NewWebSocketMessageHandler(manager *websocket.Manager, deltaService *service.DeltaSyncService) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		manager:      manager,
		deltaService: deltaService,
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeDeltaSync:
		return h.handleDeltaSync(client, msg)

	case websocket.TypePing:
		return h.reply(client, websocket.TypePong, nil)

	default:
		log.WithField("type", msg.Type).Debug("ignoring unknown websocket message")
	}

	return nil
}

func (h *WebSocketMessageHandler) handleDeltaSync(client *websocket.Client, msg *websocket.Message) error {
	var req domain.DeltaSyncRequest
	if err := msg.UnmarshalPayload(h.manager.Codec(), &req); err != nil {
		return err
	}

	resp := h.deltaService.ProcessDeltaSync(client.Context(), client.UserID, &req)
	return h.reply(client, websocket.TypeDeltaSyncResult, resp)
}

func (h *WebSocketMessageHandler) reply(client *websocket.Client, msgType websocket.MessageType, payload interface{}) error {
	out, err := websocket.NewMessage(h.manager.Codec(), msgType, payload)
	if err != nil {
		return err
	}
	return h.manager.SendToClient(client.ID, out)
}
