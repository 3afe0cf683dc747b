package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"kothmode/internal/koth"
	"kothmode/internal/protocol"
)

// Server feeds read-only hill state to UI observers. Sessions receive a
// WELCOME with the hill geometry, then change-only STATE messages.
type Server struct {
	engine *koth.Engine
	log    *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(engine *koth.Engine, logger *log.Logger) *Server {
	return &Server{
		engine: engine,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: HELLO with role observer.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello protocol.HelloMsg
		if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
				time.Now().Add(time.Second))
			return
		}
		if hello.ProtocolVersion != protocol.Version || hello.Role != protocol.RoleObserver {
			b, _ := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrProtoBadRequest})
			_ = conn.WriteMessage(websocket.TextMessage, b)
			return
		}

		id := fmt.Sprintf("obs_%d", s.nextID.Add(1))
		out := make(chan []byte, 64)
		welcome := s.engine.ObserverJoin(id, out)
		welcome.SessionID = id
		defer s.engine.ObserverLeave(id)

		b, _ := json.Marshal(welcome)
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}

		// Discard inbound traffic; only pings keep the session alive. The
		// out channel is never closed, the engine drops it on leave.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case b := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}
