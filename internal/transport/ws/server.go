package ws

import (
	"context"
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

// Server is the engine bridge: the host game's synced gadget connects here,
// streams frames and lifecycle events, and receives CMD/verdict messages.
type Server struct {
	engine *koth.Engine
	log    *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	attached atomic.Bool
}

func NewServer(engine *koth.Engine, logger *log.Logger) *Server {
	return &Server{
		engine: engine,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
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

		out, ok := s.handshake(conn)
		if !ok {
			return
		}
		defer func() {
			s.engine.DetachEngine()
			s.attached.Store(false)
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			s.dispatch(ctx, msg, out)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (out chan []byte, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return nil, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closePolicy(conn, "bad HELLO")
		return nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		sendError(conn, protocol.ErrProtoVersion, "unsupported protocol version")
		return nil, false
	}
	if hello.Role != protocol.RoleEngine {
		sendError(conn, protocol.ErrBadRequest, "role must be engine")
		return nil, false
	}
	if !s.attached.CompareAndSwap(false, true) {
		sendError(conn, protocol.ErrRoleTaken, "engine session already attached")
		return nil, false
	}

	welcome := s.engine.Configure(hello)
	welcome.SessionID = fmt.Sprintf("eng_%d", s.nextID.Add(1))

	out = make(chan []byte, 256)
	s.engine.AttachEngine(out)

	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.engine.DetachEngine()
		s.attached.Store(false)
		return nil, false
	}
	if s.log != nil {
		s.log.Printf("engine attached: game=%s map=%.0fx%.0f", hello.GameID, hello.MapSizeX, hello.MapSizeZ)
	}
	return out, true
}

func (s *Server) dispatch(ctx context.Context, msg []byte, out chan []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeFrame:
		var f protocol.FrameMsg
		if json.Unmarshal(msg, &f) == nil {
			s.engine.Frames() <- f
		}
	case protocol.TypeUnitFinished, protocol.TypeUnitGiven, protocol.TypeUnitDestroyed:
		var ev protocol.UnitEventMsg
		if json.Unmarshal(msg, &ev) == nil {
			s.engine.UnitEvents() <- ev
		}
	case protocol.TypeTeamDied:
		var td protocol.TeamDiedMsg
		if json.Unmarshal(msg, &td) == nil {
			s.engine.TeamDeaths() <- td
		}
	case protocol.TypeBuildCheck:
		var bc protocol.BuildCheckMsg
		if json.Unmarshal(msg, &bc) != nil {
			return
		}
		resp := make(chan protocol.BuildVerdictMsg, 1)
		s.engine.BuildChecks() <- koth.BuildCheckReq{Msg: bc, Resp: resp}
		if b, err := json.Marshal(<-resp); err == nil {
			s.reply(ctx, out, b)
		}
	case protocol.TypeDamageCheck:
		var dc protocol.DamageCheckMsg
		if json.Unmarshal(msg, &dc) != nil {
			return
		}
		resp := make(chan protocol.DamageVerdictMsg, 1)
		s.engine.DamageChecks() <- koth.DamageCheckReq{Msg: dc, Resp: resp}
		if b, err := json.Marshal(<-resp); err == nil {
			s.reply(ctx, out, b)
		}
	}
}

// reply queues a verdict for the writer goroutine. Bails out when the
// session is tearing down so the reader never wedges on a full channel.
func (s *Server) reply(ctx context.Context, out chan []byte, b []byte) {
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func sendError(conn *websocket.Conn, code, message string) {
	b, _ := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
