// Package server exposes the local status surface of a running peer: a
// websocket feed of call progress and an endpoint that hangs up the current
// call.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"lanrtc/common"
	"lanrtc/session"

	"github.com/cornelk/hashmap"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

const (
	DefaultMaxBodySize = 4 << 10

	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// Event kinds published on the feed.
const (
	KindPhase = "phase"
	KindState = "state"
	KindError = "error"
)

// Phases of the call loop.
const (
	PhaseProbing     = "probing"
	PhaseWaiting     = "waiting for peer"
	PhaseDiscovering = "discovering"
	PhaseConnected   = "connected"
	PhaseEnded       = "call ended"
)

// Event is one status update as sent to feed subscribers.
type Event struct {
	Kind      string    `json:"kind"`
	Phase     string    `json:"phase,omitempty"`
	SessionID string    `json:"session,omitempty"`
	Peer      string    `json:"peer,omitempty"`
	Role      string    `json:"role,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

type subscriber struct {
	conn *websocket.Conn
	out  chan Event
}

// Hub fans status events out to websocket subscribers and routes hang-up
// requests to the active session.
type Hub struct {
	subs   *hashmap.Map[string, *subscriber]
	last   *common.RWLock[Event]
	hangup *common.RWLock[func()]
}

func NewHub() *Hub {
	return &Hub{
		subs:   hashmap.New[string, *subscriber](),
		last:   common.NewRWLock(Event{}),
		hangup: common.NewRWLock[func()](nil),
	}
}

// Publish delivers ev to every subscriber without blocking. A subscriber
// whose buffer is full misses the event.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.last.Write(func(v *Event) { *v = ev })

	h.subs.Range(func(id string, s *subscriber) bool {
		select {
		case s.out <- ev:
		default:
			slog.Warn("status subscriber too slow, dropping event", "id", id, "kind", ev.Kind)
		}
		return true
	})
}

func (h *Hub) Phase(phase string) {
	h.Publish(Event{Kind: KindPhase, Phase: phase})
}

func (h *Hub) Error(err error) {
	h.Publish(Event{Kind: KindError, Message: err.Error()})
}

// Observe publishes a session state transition. It has the shape of a
// session.Observer.
func (h *Hub) Observe(tr session.Transition) {
	h.Publish(Event{
		Kind:      KindState,
		SessionID: tr.SessionID,
		Peer:      tr.Peer.Address.String(),
		Role:      tr.Peer.Role.String(),
		From:      tr.From.String(),
		To:        tr.To.String(),
		Message:   tr.Reason,
	})
}

// SetHangup installs the function run by POST /hangup. nil means no call is active.
func (h *Hub) SetHangup(f func()) {
	h.hangup.Write(func(v *func()) { *v = f })
}

// Subscribers returns the number of connected feed clients.
func (h *Hub) Subscribers() int {
	return h.subs.Len()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.subs.Range(func(id string, s *subscriber) bool {
		s.conn.Close()
		return true
	})
}

// Handler builds the HTTP surface. allowedOrigins applies to both CORS and
// the websocket origin check; empty allows any origin.
func (h *Hub) Handler(allowedOrigins []string, maxBodySize int64) http.Handler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return r.Header.Get("Origin") == "" || c.OriginAllowed(r)
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(Logger)
	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		h.serveEvents(&upgrader, w, r)
	})
	r.Get("/status", h.serveStatus)
	r.With(LimitRequestBodySize(maxBodySize)).Post("/hangup", h.serveHangup)

	return c.Handler(r)
}

func (h *Hub) serveEvents(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade error", "err", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	s := &subscriber{conn: conn, out: make(chan Event, sendBuffer)}
	h.subs.Set(id, s)
	defer h.subs.Del(id)
	slog.Info("status subscriber connected", "id", id, "remote", conn.RemoteAddr().String())

	if last := h.last.Load(); last.Kind != "" {
		s.out <- last
	}

	// The feed is write-only; reading detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			slog.Info("status subscriber gone", "id", id)
			return
		case ev := <-s.out:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				slog.Warn("write status event error", "id", id, "err", err)
				return
			}
		}
	}
}

func (h *Hub) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.last.Load()); err != nil {
		slog.Error("encode status error", "err", err)
	}
}

func (h *Hub) serveHangup(w http.ResponseWriter, r *http.Request) {
	end := h.hangup.Load()
	if end == nil {
		http.Error(w, "no active call", http.StatusConflict)
		return
	}
	slog.Info("hang up requested", "from", r.RemoteAddr, "reason", r.Form.Get("reason"))
	end()
	w.WriteHeader(http.StatusAccepted)
}

// Run serves hub on listenAddr until ctx is cancelled. The returned channel
// yields a serve error, if any, and is closed once the server has stopped.
func Run(ctx context.Context, listenAddr string, hub *Hub, handler http.Handler) <-chan error {
	ec := make(chan error, 1)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("status server shutdown error", "err", err)
		}
	}()

	go func() {
		defer close(ec)
		slog.Info("status server listening", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen and serve error", "err", err)
			ec <- err
		}
	}()

	return ec
}
