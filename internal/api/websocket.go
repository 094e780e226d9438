package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/drawing-checker/backend/internal/models"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebSocket message types for the progress protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// writeWait bounds a single frame write
const writeWait = 10 * time.Second

// WSMessage is the envelope of every WebSocket frame
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocketHandler streams session updates to the browser until the session
// finishes or the client goes away
type WebSocketHandler struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket progress handler
func NewWebSocketHandler(sessionMgr SessionManager, logger *slog.Logger) ProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		log: logger.With("component", "websocket"),
	}
}

// HandleProgress upgrades the connection and forwards session snapshots
func (wsh *WebSocketHandler) HandleProgress(c echo.Context) error {
	id := c.Param("id")
	updates, cancel, err := wsh.sessionMgr.Subscribe(id)
	if err != nil {
		return sessionError(id, err)
	}
	defer cancel()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	wsh.log.Debug("client connected", "session", id)
	wsh.sendMessage(ws, WSMessage{Type: MsgTypeConnected, ID: id, Timestamp: time.Now().UnixMilli()})

	// The read loop answers pings and notices the client going away
	closed := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(closed)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsh.log.Debug("connection error", "session", id, "error", err)
				}
				return
			}
			if msg.Type == MsgTypePing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-closed:
			return nil
		case <-pings:
			wsh.sendMessage(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case s, ok := <-updates:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"),
					time.Now().Add(writeWait))
				return nil
			}
			wsh.sendSession(ws, s)
		}
	}
}

func (wsh *WebSocketHandler) sendSession(ws *websocket.Conn, s models.ReviewSession) {
	msgType := MsgTypeProgress
	switch s.Status {
	case models.SessionStatusComplete:
		msgType = MsgTypeComplete
	case models.SessionStatusError:
		msgType = MsgTypeError
	}
	wsh.sendMessage(ws, WSMessage{
		Type:      msgType,
		ID:        s.ID,
		Payload:   mustJSON(s),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (wsh *WebSocketHandler) sendMessage(ws *websocket.Conn, msg WSMessage) {
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(msg); err != nil {
		wsh.log.Debug("write failed", "error", err)
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
