package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/metrics"
)

const (
	livePingInterval = 25 * time.Second
	liveWriteWait    = 10 * time.Second
	liveReadLimit    = 1024
)

// LiveHandler streams a household's domain events over a websocket.
type LiveHandler struct {
	bus          *events.Bus
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	log          zerolog.Logger
}

func NewLiveHandler(bus *events.Bus, allowedOrigins []string, log zerolog.Logger) *LiveHandler {
	return &LiveHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pingInterval: livePingInterval,
		log:          log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Serve GET /api/households/{householdId}/live
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	householdID := mux.Vars(r)["householdId"]
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn().Err(err).Str("household_id", householdID).Msg("live feed upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(householdID)
	defer sub.Close()
	metrics.LiveSubscribers.Inc()
	defer metrics.LiveSubscribers.Dec()

	h.log.Debug().Str("household_id", householdID).Msg("live feed connected")

	// Clients only send pongs and the close frame; the read loop surfaces disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(liveReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			h.log.Debug().Str("household_id", householdID).Int64("dropped", sub.Dropped()).Msg("live feed closed")
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				h.log.Debug().Err(err).Str("household_id", householdID).Msg("live feed write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}
