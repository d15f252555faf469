package apihandlers

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// socketRegistry tracks upgraded connections. http.Server.Shutdown stops
// seeing a connection once it is hijacked, so live sockets are closed here.
type socketRegistry struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]context.CancelFunc
	closing bool
	wg      sync.WaitGroup
}

// add registers conn and reports false once shutdown has begun.
func (r *socketRegistry) add(conn *websocket.Conn, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closing {
		return false
	}
	if r.conns == nil {
		r.conns = make(map[*websocket.Conn]context.CancelFunc)
	}
	r.conns[conn] = cancel
	r.wg.Add(1)
	return true
}

func (r *socketRegistry) remove(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn]; ok {
		delete(r.conns, conn)
		r.wg.Done()
	}
}

// Shutdown refuses new sockets, sends a going-away close frame to every
// live one and cancels its in-flight work, then waits for the handlers to
// return. Sockets still open when ctx ends are closed outright.
func (h *APIHandler) Shutdown(ctx context.Context) error {
	r := &h.sockets
	r.mu.Lock()
	r.closing = true
	live := make(map[*websocket.Conn]context.CancelFunc, len(r.conns))
	for conn, cancel := range r.conns {
		live[conn] = cancel
	}
	r.mu.Unlock()

	if len(live) > 0 {
		log.Infof("Closing %d live socket(s)", len(live))
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn, cancel := range live {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		for conn := range r.conns {
			_ = conn.Close()
		}
		r.mu.Unlock()
		return ctx.Err()
	}
}
