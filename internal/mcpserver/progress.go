package mcpserver

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/vibebridge/internal/logging"
)

// WebsocketProgressSink fans narrate_text progress events out to zero or
// more connected companion clients over a websocket. Connections are opened
// inbound by a local display process that wants to watch playback progress;
// the sink only ever writes.
type WebsocketProgressSink struct {
	logger logging.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWebsocketProgressSink returns an empty sink. logger defaults to a
// no-op logger when nil.
func NewWebsocketProgressSink(logger logging.Logger) *WebsocketProgressSink {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &WebsocketProgressSink{logger: logger, conns: make(map[*websocket.Conn]struct{})}
}

// Handler returns an http.HandlerFunc that upgrades incoming connections
// and registers them to receive future Publish calls until they disconnect.
func (s *WebsocketProgressSink) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Warn("mcpserver: progress websocket accept failed", "err", err)
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "")
		}()

		// Block until the client disconnects; this connection only ever
		// receives, so there is nothing to read but the close frame.
		ctx := r.Context()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}
}

// Publish writes event to every currently connected client. Write failures
// are logged and the connection is dropped on the next disconnect check;
// Publish itself never blocks the caller on a dead peer for long since
// wsjson.Write carries the connection's own write deadline.
func (s *WebsocketProgressSink) Publish(event ChunkEvent) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := wsjson.Write(context.Background(), c, event); err != nil {
			s.logger.Warn("mcpserver: progress publish failed", "err", err)
		}
	}
}
