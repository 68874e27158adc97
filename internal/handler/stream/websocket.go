package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatHandler "github.com/zhouzirui/boundary-tools/backend/internal/handler/chat"
	"github.com/zhouzirui/boundary-tools/backend/internal/model/turn"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/governor"
	"github.com/zhouzirui/boundary-tools/backend/pkg/utils"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 64 << 10
)

// WebSocketHandler serves turns over a websocket. Cookies cannot be rewritten on an
// open socket, so the signed ledger travels in each frame's usageToken instead.
type WebSocketHandler struct {
	governor   *governor.Governor
	cookieName string
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(gov *governor.Governor, cookieName string) *WebSocketHandler {
	return &WebSocketHandler{
		governor:   gov,
		cookieName: cookieName,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/chat", h.handleWebSocket)
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Status    int         `json:"status,omitempty"`
	Data      *turn.Reply `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := utils.ReadCookie(r, h.cookieName)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}

		var req turn.Request
		if err := json.Unmarshal(data, &req); err != nil {
			if !h.write(conn, outgoingMessage{Type: "error", Status: http.StatusBadRequest, Error: "invalid request body"}) {
				return
			}
			continue
		}
		if req.UsageToken != "" {
			token = req.UsageToken
		}

		msg, next := h.serveTurn(ctx, req, token)
		token = next
		if !h.write(conn, msg) {
			return
		}
	}
}

// serveTurn governs one frame and returns the reply plus the token to carry forward.
func (h *WebSocketHandler) serveTurn(ctx context.Context, req turn.Request, token string) (outgoingMessage, string) {
	res, err := h.governor.Govern(ctx, req, token)
	if err != nil {
		status, message := chatHandler.ErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Printf("[ws] turn failed: %v", err)
		}
		return outgoingMessage{Type: "error", Status: status, Error: message}, token
	}

	if res.Token != "" {
		token = res.Token
	}
	res.Reply.UsageToken = token
	return outgoingMessage{Type: "reply", Data: &res.Reply}, token
}

func (h *WebSocketHandler) write(conn *websocket.Conn, msg outgoingMessage) bool {
	msg.Timestamp = time.Now().UnixMilli()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write failed: %v", err)
		return false
	}
	return true
}
