package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cognicore/recettes/internal/metrics"
	"github.com/cognicore/recettes/pkg/recettes/prefs"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// preferencesStream upgrades to a websocket and pushes the user's histogram
// once on connect and again on every change.
func (s *Server) preferencesStream(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("user", uid).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.PreferenceStreams.Inc()
	defer metrics.PreferenceStreams.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := newLatest()
	unsubscribe, err := s.engine.Preferences().Watch(ctx, uid, updates.offer)
	if err != nil {
		s.logger.Error().Err(err).Str("user", uid).Msg("watch preferences")
		return
	}
	defer unsubscribe()

	h, err := s.engine.Preferences().Load(ctx, uid)
	if err != nil {
		s.logger.Error().Err(err).Str("user", uid).Msg("load preferences")
		return
	}
	updates.seed(h)

	// The read loop only detects the client going away.
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case h := <-updates.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(preferencesResponse{Histogram: h, Top: h.Top(10)}); err != nil {
				return
			}
		}
	}
}

// latest holds at most one pending histogram. Offering never blocks: a
// newer histogram replaces one the writer has not picked up yet.
type latest struct {
	mu      sync.Mutex
	offered bool
	ch      chan prefs.Histogram
}

func newLatest() *latest {
	return &latest{ch: make(chan prefs.Histogram, 1)}
}

func (l *latest) offer(h prefs.Histogram) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offered = true
	select {
	case <-l.ch:
	default:
	}
	l.ch <- h
}

// seed queues the initial snapshot unless a change already arrived.
func (l *latest) seed(h prefs.Histogram) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.offered {
		return
	}
	l.ch <- h
}
