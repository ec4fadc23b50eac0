// Package api provides the HTTP API for observing the simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/engine"
	"github.com/talgya/npc-favor/internal/persistence"
	"github.com/talgya/npc-favor/internal/social"
)

const (
	maxStreamConns = 4
	streamCatchUp  = 50
	streamPoll     = 250 * time.Millisecond
	streamPing     = 15 * time.Second
)

// Server serves the simulation over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // optional
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// OnSave, when set, performs the admin snapshot instead of a direct
	// state save so the host can keep its own bookkeeping.
	OnSave func() error

	started     time.Time
	streamConns atomic.Int32
	upgrader    websocket.Upgrader
	srv         *http.Server
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return allowedOrigin(r.Header.Get("Origin")) },
	}
	giftLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentRoutes(giftLimiter))
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Close stops the listener.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

var defaultOrigins = map[string]bool{
	"http://localhost:5173": true,
	"http://localhost:4173": true,
	"http://localhost:3000": true,
}

// allowedOrigin accepts the local dev servers plus CORS_ORIGINS
// (comma-separated). Requests without an Origin are not browsers.
func allowedOrigin(origin string) bool {
	if origin == "" || defaultOrigins[origin] {
		return true
	}
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" && o == origin {
			return true
		}
	}
	return false
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no NPCSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var (
		stats engine.Stats
		now   string
		runID string
		ticks uint64
		speed float64
	)
	s.Eng.Locked(func(sim *engine.Simulation) {
		speed = s.Eng.Speed
		stats = sim.Stats()
		t := sim.Now()
		now = engine.SimTime(int64(t.Absolute()), t.Season)
		runID = sim.RunID()
		ticks = sim.Ticks
	})

	status := map[string]any{
		"name":     "npc-favor",
		"run_id":   runID,
		"sim_time": now,
		"ticks":    ticks,
		"ticks_h":  humanize.Comma(int64(ticks)),
		"speed":    speed,
		"running":  s.Eng.Running(),
		"started":  humanize.Time(s.started),
		"stats":    stats,
	}
	if s.DB != nil {
		if v, ok, err := s.DB.GetMeta("last_save_minute"); err == nil && ok {
			status["last_save_minute"] = v
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	type agentSummary struct {
		ID       agents.AgentID `json:"id"`
		Name     string         `json:"name"`
		Kind     string         `json:"personality"`
		State    string         `json:"state"`
		Action   string         `json:"action"`
		Mood     agents.Mood    `json:"mood"`
		Tier     social.Tier    `json:"tier"`
		Schedule string         `json:"schedule"`
		Asleep   bool           `json:"asleep"`
	}

	var snaps []engine.AgentSnapshot
	s.Eng.Locked(func(sim *engine.Simulation) { snaps = sim.Snapshots() })

	result := make([]agentSummary, 0, len(snaps))
	for _, a := range snaps {
		if state != "" && a.State != state {
			continue
		}
		result = append(result, agentSummary{
			ID:       a.ID,
			Name:     a.Name,
			Kind:     a.Kind,
			State:    a.State,
			Action:   a.Action,
			Mood:     a.Mood,
			Tier:     a.Tier,
			Schedule: a.Schedule,
			Asleep:   a.Asleep,
		})
	}
	writeJSON(w, result)
}

// handleAgentRoutes serves /api/v1/agent/:id and its admin commands
// /goto and /gift.
func (s *Server) handleAgentRoutes(giftLimiter *RateLimiter) http.HandlerFunc {
	gift := RateLimitMiddleware(giftLimiter, s.adminOnly(s.handleGift))
	gotoCmd := s.adminOnly(s.handleGoto)

	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 4 || parts[3] == "" {
			http.Error(w, "missing agent id", http.StatusBadRequest)
			return
		}
		if _, err := strconv.ParseUint(parts[3], 10, 64); err != nil {
			http.Error(w, "invalid agent id", http.StatusBadRequest)
			return
		}

		if len(parts) >= 5 {
			switch parts[4] {
			case "goto":
				gotoCmd(w, r)
			case "gift":
				gift(w, r)
			default:
				http.NotFound(w, r)
			}
			return
		}

		id := agentID(r)
		var (
			snap engine.AgentSnapshot
			err  error
		)
		s.Eng.Locked(func(sim *engine.Simulation) { snap, err = sim.Snapshot(id) })
		if err != nil {
			writeAgentError(w, err)
			return
		}
		writeJSON(w, snap)
	}
}

func agentID(r *http.Request) agents.AgentID {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	id, _ := strconv.ParseUint(parts[3], 10, 64)
	return agents.AgentID(id)
}

func writeAgentError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrUnknownAgent) {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	slog.Error("agent request failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		X *float64 `json:"x"`
		Z *float64 `json:"z"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.X == nil || req.Z == nil {
		http.Error(w, "x and z required", http.StatusBadRequest)
		return
	}

	id := agentID(r)
	var err error
	s.Eng.Locked(func(sim *engine.Simulation) { err = sim.Goto(id, *req.X, *req.Z) })
	if err != nil {
		writeAgentError(w, err)
		return
	}
	slog.Info("admin goto", "agent", id, "x", *req.X, "z", *req.Z)
	writeJSON(w, map[string]any{"success": true, "details": fmt.Sprintf("agent %d heading to (%.1f, %.1f)", id, *req.X, *req.Z)})
}

func (s *Server) handleGift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Category string  `json:"category"`
		Value    float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	cat, err := social.ParseGiftCategory(req.Category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Value < 0 {
		http.Error(w, "value must not be negative", http.StatusBadRequest)
		return
	}

	id := agentID(r)
	var res social.UpdateResult
	s.Eng.Locked(func(sim *engine.Simulation) { res, err = sim.GiveGift(id, cat, req.Value) })
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"applied":      res.Applied,
		"capped":       res.Capped,
		"delta":        res.Delta,
		"relationship": res.NewValue,
		"tier":         res.NewTier,
		"tier_changed": res.TierChanged,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 500)
	since := uint64(queryInt(r, "since", 0, 0, 1<<31-1))
	category := r.URL.Query().Get("category")

	var events []engine.Event
	s.Eng.Locked(func(sim *engine.Simulation) { events = sim.EventsSince(since) })

	if category != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	writeJSON(w, events)
}

// handleHistory reads the persisted event log, which outlives the in-memory ring.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := queryInt(r, "limit", 100, 1, 1000)

	var (
		events []engine.Event
		err    error
	)
	if a := r.URL.Query().Get("agent"); a != "" {
		id, perr := strconv.ParseUint(a, 10, 64)
		if perr != nil {
			http.Error(w, "invalid agent id", http.StatusBadRequest)
			return
		}
		events, err = s.DB.AgentEvents(agents.AgentID(id), limit)
	} else {
		events, err = s.DB.RecentEvents(limit)
	}
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	var speed float64
	s.Eng.Locked(func(*engine.Simulation) { speed = s.Eng.Speed })
	writeJSON(w, map[string]float64{"speed": speed})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var err error
	switch {
	case s.OnSave != nil:
		err = s.OnSave()
	case s.DB != nil:
		var (
			rec    engine.StateRecord
			events []engine.Event
		)
		s.Eng.Locked(func(sim *engine.Simulation) {
			rec = sim.SerializeState()
			events = sim.EventsSince(0)
		})
		err = s.DB.SaveWorldState(rec, events)
	default:
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"ticks":   s.Eng.Ticks(),
		"message": "snapshot saved",
	})
}

// handleStream upgrades to a websocket and pushes events as JSON text
// frames: the recent backlog first, then new events as they happen.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if current := s.streamConns.Add(1); current > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reader: only needed to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var (
		backlog []engine.Event
		last    uint64
	)
	s.Eng.Locked(func(sim *engine.Simulation) {
		backlog = sim.EventsSince(0)
		last = sim.LastSeq()
	})
	if len(backlog) > streamCatchUp {
		backlog = backlog[len(backlog)-streamCatchUp:]
	}
	for _, e := range backlog {
		if err := writeEvent(conn, e); err != nil {
			return
		}
	}
	slog.Info("stream client connected", "remote", r.RemoteAddr, "backlog", len(backlog))

	poll := time.NewTicker(streamPoll)
	defer poll.Stop()
	ping := time.NewTicker(streamPing)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-poll.C:
			var events []engine.Event
			s.Eng.Locked(func(sim *engine.Simulation) {
				events = sim.EventsSince(last)
				last = sim.LastSeq()
			})
			for _, e := range events {
				if err := writeEvent(conn, e); err != nil {
					return
				}
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e engine.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func queryInt(r *http.Request, key string, def, lo, hi int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
