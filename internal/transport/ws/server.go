package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelspawn.ai/internal/protocol"
	"voxelspawn.ai/internal/sim/world"
	"voxelspawn.ai/internal/spawn/service"
)

const (
	outQueue = 16

	defaultPongWait  = 60 * time.Second
	defaultPingEvery = 25 * time.Second
)

type Server struct {
	world  *world.World
	spawns *service.Service
	log    *log.Logger

	upgrader websocket.Upgrader

	// A joined connection is dropped when nothing, pongs included, arrives
	// within pongWait. Pings go out every pingEvery.
	pongWait  time.Duration
	pingEvery time.Duration

	dropped atomic.Uint64
}

func NewServer(w *world.World, spawns *service.Service, logger *log.Logger) *Server {
	s := &Server{
		world:  w,
		spawns: spawns,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		pongWait:  defaultPongWait,
		pingEvery: defaultPingEvery,
	}
	return s
}

// Dropped counts outbound messages discarded because a client fell behind.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// session is one joined connection. send may be called from any worker.
type session struct {
	srv   *Server
	actor *world.Actor
	out   chan []byte
	done  chan struct{}
}

func (c *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.out <- b:
	default:
		c.srv.dropped.Add(1)
	}
}

func (c *session) sendError(requestID, code, message string, remaining int) {
	c.send(protocol.ErrorMsg{
		Type:             protocol.TypeError,
		ProtocolVersion:  protocol.Version,
		RequestID:        requestID,
		Code:             code,
		Message:          message,
		RemainingSeconds: remaining,
	})
}

// result builds the SPAWN_RESULT callback for one search.
func (c *session) result(cause, requestID string) func(ok bool) {
	return func(ok bool) {
		msg := protocol.SpawnResultMsg{
			Type:            protocol.TypeSpawnResult,
			ProtocolVersion: protocol.Version,
			RequestID:       requestID,
			Cause:           cause,
			OK:              ok,
		}
		if ok {
			p := c.actor.Pos()
			msg.Pos = [3]float64{p.X(), p.Y(), p.Z()}
		} else {
			msg.Message = service.MsgNoSafeSpot
		}
		c.send(msg)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		actor, firstJoin := s.handshake(conn)
		if actor == nil {
			return
		}
		defer s.world.Leave(actor)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := &session{srv: s, actor: actor, out: make(chan []byte, outQueue), done: make(chan struct{})}
		defer close(c.done)

		// Writer goroutine; also owns the keepalive pings.
		go func() {
			ping := time.NewTicker(s.pingEvery)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		s.spawns.OnJoin(actor, firstJoin, c.result(protocol.CauseJoin, ""))

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.pongWait))
		})

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.dispatch(c, msg)
		}
	}
}

func (s *Server) dispatch(c *session, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		c.sendError("", protocol.ErrBadRequest, "malformed json", 0)
		return
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		c.sendError("", protocol.ErrBadRequest, "bad protocol_version", 0)
		return
	}

	switch base.Type {
	case protocol.TypeSpawn:
		var m protocol.SpawnMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			c.sendError("", protocol.ErrBadRequest, "malformed SPAWN", 0)
			return
		}
		v := s.spawns.Spawn(c.actor, c.result(protocol.CauseCommand, m.RequestID))
		if !v.Allowed {
			c.sendError(m.RequestID, protocol.ErrCooldown, service.CooldownMessage(v.RemainingSeconds), v.RemainingSeconds)
		}

	case protocol.TypeRespawn:
		var m protocol.RespawnMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			c.sendError("", protocol.ErrBadRequest, "malformed RESPAWN", 0)
			return
		}
		s.spawns.OnRespawn(c.actor, m.BedSpawn, c.result(protocol.CauseRespawn, ""))

	case protocol.TypeHello:
		c.sendError("", protocol.ErrBadRequest, "already joined", 0)

	default:
		c.sendError("", protocol.ErrBadRequest, "unknown message type", 0)
	}
}

// handshake waits for HELLO, joins the actor and sends WELCOME. Any other
// first message is answered with E_NOT_JOINED and the connection is closed.
func (s *Server) handshake(conn *websocket.Conn) (*world.Actor, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil {
		reject(conn, protocol.ErrBadRequest, "malformed json")
		return nil, false
	}
	if base.Type != protocol.TypeHello {
		reject(conn, protocol.ErrNotJoined, "expected HELLO")
		return nil, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrBadRequest, "malformed HELLO")
		return nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrBadRequest, "bad protocol_version")
		return nil, false
	}

	actor, firstJoin, err := s.world.Join(hello.ActorName)
	switch {
	case errors.Is(err, world.ErrAlreadyOnline):
		reject(conn, protocol.ErrBadRequest, "actor already online")
		return nil, false
	case errors.Is(err, world.ErrClosed):
		reject(conn, protocol.ErrUnavailable, "world closed")
		return nil, false
	case err != nil:
		s.log.Printf("join %q: %v", hello.ActorName, err)
		reject(conn, protocol.ErrInternal, "join failed")
		return nil, false
	}

	cfg := s.spawns.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ActorID:         actor.ID().String(),
		World:           s.world.Name(),
		FirstJoin:       firstJoin,
		SpawnParams: protocol.SpawnParams{
			Radius:          cfg.Radius,
			MaxAttempts:     cfg.MaxAttempts,
			CooldownSeconds: cfg.CooldownSeconds,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.world.Leave(actor)
		return nil, false
	}
	return actor, firstJoin
}

func reject(conn *websocket.Conn, code, message string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
