package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/realty-assistant/backend/internal/model/chat"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 * 1024
)

type inboundMessage struct {
	Message   *string `json:"message"`
	SessionID string  `json:"session_id"`
}

type outgoingMessage struct {
	Type string `json:"type"`
	*chat.Reply
	Detail string `json:"detail,omitempty"`
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// handleWebSocket 在单个连接上进行多轮对话
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writes := make(chan outgoingMessage, 4)
	done := make(chan struct{})
	go h.writeLoop(conn, writes, done)
	defer func() {
		close(writes)
		<-done
	}()

	send := func(msg outgoingMessage) bool {
		select {
		case writes <- msg:
			return true
		case <-done:
			return false
		}
	}

	inbound := make(chan inboundMessage)
	go readLoop(ctx, cancel, conn, inbound)

	// Later frames without a session id continue the session opened on this connection.
	sessionID := ""
	for msg := range inbound {
		if msg.Message == nil {
			if !send(outgoingMessage{Type: "error", Detail: "message is required"}) {
				return
			}
			continue
		}
		if msg.SessionID != "" {
			sessionID = msg.SessionID
		}

		reply, err := h.chatSvc.Exchange(ctx, *msg.Message, sessionID)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			_, detail := classifyError(err)
			if !send(outgoingMessage{Type: "error", Detail: detail}) {
				return
			}
			continue
		}

		sessionID = reply.SessionID
		if !send(outgoingMessage{Type: "reply", Reply: &reply}) {
			return
		}
	}
}

// readLoop feeds frames to the handler and cancels ctx once the peer goes away,
// which also aborts a generation in flight.
func readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, inbound chan<- inboundMessage) {
	defer close(inbound)
	defer cancel()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}

		select {
		case inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop owns every write on conn, as gorilla connections allow only one writer.
func (h *Handler) writeLoop(conn *websocket.Conn, writes <-chan outgoingMessage, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-writes:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[ws] write failed: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
