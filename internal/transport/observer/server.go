package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"hivenet.ai/internal/protocol"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/world"
)

// maxFollow caps how many controllers one SUBSCRIBE may name.
const maxFollow = 64

// World is the read-only surface the bootstrap endpoint needs.
type World interface {
	ID() string
	CurrentTick() uint64
	TickRateHz() int
}

// Server streams NETWORK_VIEW and EVENT messages to read-only observers. The
// world loop feeds it through PublishViews and WriteEvent; neither blocks.
type Server struct {
	world World
	cats  *catalogs.Catalogs
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	// follow is nil when the session follows every controller.
	follow map[[3]int]struct{}
	// views keeps only the freshest batches; events queue up to their cap.
	views  chan []byte
	events chan []byte
	drops  atomic.Uint64
}

func NewServer(w World, cats *catalogs.Catalogs, logger *log.Logger) *Server {
	return &Server{
		world: w,
		cats:  cats,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*session{},
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// SetWorld attaches the world once it exists. Call it before serving.
func (s *Server) SetWorld(w World) { s.world = w }

// Sessions reports the number of connected observers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if s.world == nil {
			http.Error(rw, "world not ready", http.StatusServiceUnavailable)
			return
		}
		resp := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			WorldID:         s.world.ID(),
			Tick:            s.world.CurrentTick(),
			TickRateHz:      s.world.TickRateHz(),
		}
		if s.cats != nil {
			resp.BlockPalette = s.cats.Blocks.Palette
			resp.ItemPalette = s.cats.Items.Palette
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// PublishViews fans one tick's views out to every session that follows them.
func (s *Server) PublishViews(_ uint64, views []protocol.NetworkViewMsg) {
	if len(views) == 0 {
		return
	}
	encoded := make(map[[3]int][]byte, len(views))
	for _, v := range views {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		encoded[v.Controller] = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		for _, v := range views {
			if !sess.follows(v.Controller) {
				continue
			}
			if b := encoded[v.Controller]; b != nil {
				sendLatest(sess.views, b)
			}
		}
	}
}

// WriteEvent forwards a network event to sessions following its node.
func (s *Server) WriteEvent(e world.EventEntry) error {
	b, err := json.Marshal(protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		WorldID:         e.WorldID,
		Tick:            e.Tick,
		Kind:            e.Kind,
		Node:            e.Node,
		TaskID:          e.TaskID,
		RequestID:       e.RequestID,
		Item:            e.Item,
		Count:           e.Count,
		Detail:          e.Detail,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if !sess.follows(e.Node) {
			continue
		}
		select {
		case sess.events <- b:
		default:
			sess.drops.Add(1)
		}
	}
	return nil
}

func (sess *session) follows(p [3]int) bool {
	if sess.follow == nil {
		return true
	}
	_, ok := sess.follow[p]
	return ok
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		sess := &session{
			follow: followSet(sub),
			views:  make(chan []byte, 32),
			events: make(chan []byte, 1024),
		}
		s.mu.Lock()
		s.sessions[sid] = sess
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sid)
			s.mu.Unlock()
			if n := sess.drops.Load(); n > 0 {
				s.logf("observer %s dropped %d events", sid, n)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			write := func(b []byte) error {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				return conn.WriteMessage(websocket.TextMessage, b)
			}
			for {
				var b []byte
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b = <-sess.events:
				case b = <-sess.views:
				}
				if err := write(b); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := decodeSubscribe(msg)
			if !ok {
				continue
			}
			s.mu.Lock()
			sess.follow = followSet(sub)
			s.mu.Unlock()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	return sub, true
}

func followSet(sub protocol.SubscribeMsg) map[[3]int]struct{} {
	if len(sub.Controllers) == 0 {
		return nil
	}
	out := map[[3]int]struct{}{}
	for _, p := range sub.Controllers {
		if len(out) >= maxFollow {
			break
		}
		out[p] = struct{}{}
	}
	return out
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
