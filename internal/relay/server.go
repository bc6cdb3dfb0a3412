// Package relay streams captured frames to websocket viewers.
package relay

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/lanikai/alohacap/internal/frame"
	"github.com/lanikai/alohacap/internal/logging"
)

var log = logging.DefaultLogger.WithTag("relay")

// Defaults for NewServer.
const (
	DefaultMaxViewers = 8
	DefaultBacklog    = 2
)

// Server publishes frames to every viewer connected to /ws. Each viewer
// receives binary messages as produced by Encoder; a viewer that falls
// behind skips frames.
type Server struct {
	// Maximum concurrent connections.
	MaxViewers int

	// Messages buffered per viewer.
	Backlog int

	b      *Broadcaster
	enc    *Encoder
	server *http.Server

	published uint64
}

func NewServer(compress bool) (*Server, error) {
	enc, err := NewEncoder(compress)
	if err != nil {
		return nil, err
	}
	s := &Server{
		MaxViewers: DefaultMaxViewers,
		Backlog:    DefaultBacklog,
		b:          NewBroadcaster(),
		enc:        enc,
	}
	router := http.NewServeMux()
	router.HandleFunc("/ws", s.handleWebsocket)
	s.server = &http.Server{Handler: router}
	return s, nil
}

// Serve accepts viewers on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	log.Info("Relaying frames on ws://%s/ws", l.Addr())
	err := s.server.Serve(netutil.LimitListener(l, s.MaxViewers))
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "relay listen %s", addr)
	}
	return s.Serve(l)
}

// Shutdown disconnects every viewer and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.b.Close()
	err := s.server.Shutdown(ctx)
	s.enc.Close()
	return err
}

// Publish encodes f and queues it for every viewer. It does not block and
// does not take over the caller's reference.
func (s *Server) Publish(f *frame.Frame) error {
	if s.b.Subscribers() == 0 {
		return nil
	}
	msg, err := s.enc.Encode(f)
	if err != nil {
		return err
	}
	if _, err := s.b.Write(msg); err != nil {
		return err
	}
	atomic.AddUint64(&s.published, 1)
	return nil
}

// Viewers is the number of connected viewers.
func (s *Server) Viewers() int {
	return s.b.Subscribers()
}

// Published is the number of frames sent to at least one viewer.
func (s *Server) Published() uint64 {
	return atomic.LoadUint64(&s.published)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := new(websocket.Upgrader).Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}
	defer ws.Close()

	messages, err := s.b.Subscribe(s.Backlog)
	if err != nil {
		return
	}
	defer s.b.Unsubscribe(messages)
	log.Info("Viewer connected from %s", r.RemoteAddr)

	// Drain incoming control frames; a read error means the viewer left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			log.Info("Viewer %s disconnected", r.RemoteAddr)
			return
		case msg, ok := <-messages:
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				log.Verbose("write to %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}
