package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"hivenet.ai/internal/protocol"
	"hivenet.ai/schemas"
)

// Submitter applies one command at the next tick boundary.
type Submitter interface {
	Submit(ctx context.Context, cmd protocol.CommandMsg) (protocol.CommandResultMsg, error)
}

// Limits caps how fast one connection may submit commands. A zero
// CommandsPerSecond disables the limit.
type Limits struct {
	CommandsPerSecond float64
	Burst             int
}

// Server accepts CMD messages over a websocket and answers each with a
// CMD_RESULT, in order.
type Server struct {
	world  Submitter
	log    *log.Logger
	schema *jsonschema.Schema
	limits Limits

	upgrader websocket.Upgrader
}

func NewServer(w Submitter, logger *log.Logger, limits Limits) (*Server, error) {
	sch, err := schemas.Compile(schemas.Command)
	if err != nil {
		return nil, err
	}
	if limits.Burst <= 0 {
		limits.Burst = 1
	}
	return &Server{
		world:  w,
		log:    logger,
		schema: sch,
		limits: limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}, nil
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 64)
		lim := rate.NewLimiter(rate.Inf, 0)
		if s.limits.CommandsPerSecond > 0 {
			lim = rate.NewLimiter(rate.Limit(s.limits.CommandsPerSecond), s.limits.Burst)
		}

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Commands from one connection are submitted one at a
		// time so results come back in send order.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			res := s.handle(ctx, msg, lim)
			b, err := json.Marshal(res)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, msg []byte, lim *rate.Limiter) protocol.CommandResultMsg {
	var cmd protocol.CommandMsg
	reject := func(message string) protocol.CommandResultMsg {
		return protocol.CommandResultMsg{
			Type:            protocol.TypeCommandResult,
			ProtocolVersion: protocol.Version,
			ReqID:           cmd.ReqID,
			Code:            protocol.ErrProtoBadRequest,
			Message:         message,
		}
	}

	if err := json.Unmarshal(msg, &cmd); err != nil {
		return reject("malformed json")
	}
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return reject("malformed json")
	}
	if err := s.schema.Validate(doc); err != nil {
		return reject(err.Error())
	}
	if cmd.ProtocolVersion != protocol.Version {
		return reject("bad protocol_version")
	}
	if !lim.Allow() {
		res := reject("rate limited")
		res.Code = protocol.ErrWorldBusy
		return res
	}

	res, err := s.world.Submit(ctx, cmd)
	if err != nil {
		if s.log != nil {
			s.log.Printf("ws: submit %s: %v", cmd.Op, err)
		}
		res = reject(err.Error())
		res.Code = protocol.ErrWorldBusy
	}
	return res
}
