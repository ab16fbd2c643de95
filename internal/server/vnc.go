package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

var vncUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 << 10,
	WriteBufferSize: 32 << 10,
	Subprotocols:    []string{"binary", "base64"},
	// The VNC viewer is served from a different origin than the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleVNC proxies a websocket connection to the session sandbox's VNC
// endpoint so browsers can watch and take over the agent's desktop.
func (s *Server) handleVNC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sb, err := s.sessionSandbox(ctx, r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	client, err := vncUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("vnc upgrade failed", "error", err)
		return
	}
	defer client.Close()

	header := http.Header{}
	if proto := client.Subprotocol(); proto != "" {
		header.Set("Sec-WebSocket-Protocol", proto)
	}
	upstream, _, err := websocket.DefaultDialer.DialContext(ctx, sb.VNCURL(), header)
	if err != nil {
		s.logger.Error("vnc dial failed", "sandbox_id", sb.ID(), "error", err)
		client.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "vnc unavailable"))
		return
	}
	defer upstream.Close()

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		relay(client, upstream)
	}()
	go func() {
		defer cancel()
		relay(upstream, client)
	}()
	<-ctx.Done()
}

// relay copies websocket messages in one direction until either side
// closes.
func relay(dst, src *websocket.Conn) {
	for {
		kind, payload, err := src.ReadMessage()
		if err != nil {
			return
		}
		if err := dst.WriteMessage(kind, payload); err != nil {
			return
		}
	}
}
