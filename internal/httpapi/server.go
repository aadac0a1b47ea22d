// Package httpapi exposes the learning progress core over HTTP and a
// WebSocket reward feed.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sproutlearn/backend/internal/gamification"
	"github.com/sproutlearn/backend/internal/identity"
	"github.com/sproutlearn/backend/internal/plan"
)

// sessionCookie carries the anonymous session ID for requests without an
// authenticated user.
const sessionCookie = "sprout_session"

type Server struct {
	engine         *gamification.Engine
	planner        *plan.Builder
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
	now            func() time.Time
}

func NewServer(engine *gamification.Engine, planner *plan.Builder, broadcaster *Broadcaster, allowedOrigins []string, authToken string) *Server {
	s := &Server{
		engine:         engine,
		planner:        planner,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      authToken,
		now:            time.Now,
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetClock overrides the server's time source. Used by tests to pin "today".
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/progress/complete", s.handleComplete)
	mux.HandleFunc("/api/plans/today", s.handlePlanToday)
	mux.HandleFunc("/api/plans/today/items/", s.handlePlanItemRoutes)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/levels", s.handleLevels)
	mux.HandleFunc("/api/badges", s.handleBadges)
	mux.HandleFunc("/api/healthz", s.handleHealth)
}

// resolveIdentity yields exactly one identity per request: the authenticated
// user when the gateway set X-User-ID, otherwise the anonymous session from
// the cookie (or header), minting and setting a fresh one when absent.
func (s *Server) resolveIdentity(w http.ResponseWriter, r *http.Request) identity.Identity {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return identity.User(userID)
	}
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return identity.Anonymous(c.Value)
	}
	if sid := r.Header.Get("X-Session-ID"); sid != "" {
		return identity.Anonymous(sid)
	}

	id := identity.NewAnonymous()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

type completeRequest struct {
	ContentID string `json:"contentId"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id := s.resolveIdentity(w, r)
	summary, err := s.engine.CompleteContent(r.Context(), id, req.ContentID, s.now())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.publishReward(id, summary)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (s *Server) handlePlanToday(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := s.resolveIdentity(w, r)
	p, err := s.planner.Today(r.Context(), id, s.now())
	if err != nil {
		log.Printf("Failed to build daily plan for %s: %v", id, err)
		http.Error(w, "plan not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

type planItemResponse struct {
	Item   *plan.Item                  `json:"item"`
	Reward *gamification.RewardSummary `json:"reward,omitempty"`
}

func (s *Server) handlePlanItemRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Parse: /api/plans/today/items/{id}/complete
	path := strings.TrimPrefix(r.URL.Path, "/api/plans/today/items/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "complete" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	itemID, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	s.handlePlanItemComplete(w, r, itemID)
}

func (s *Server) handlePlanItemComplete(w http.ResponseWriter, r *http.Request, itemID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := s.resolveIdentity(w, r)
	now := s.now()

	item, err := s.planner.CompleteItem(r.Context(), id, now, itemID)
	if err != nil {
		if errors.Is(err, plan.ErrItemNotFound) {
			http.Error(w, "plan item not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to complete plan item for %s: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := planItemResponse{Item: item}

	// Content items flow through the reward engine; the engine's own
	// idempotency guard absorbs repeats.
	if item.Type == plan.TypeContent {
		summary, err := s.engine.CompleteContent(r.Context(), id, item.RefID, now)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		resp.Reward = &summary
		s.publishReward(id, summary)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := s.resolveIdentity(w, r)
	stats, err := s.engine.Stats(r.Context(), id, s.now())
	if err != nil {
		log.Printf("Failed to load stats for %s: %v", id, err)
		http.Error(w, "stats not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(gamification.Levels())
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(gamification.BadgeCatalog())
}

// publishReward fans a rewarding event out to the WebSocket feed. Duplicate
// completions produce no traffic.
func (s *Server) publishReward(id identity.Identity, summary gamification.RewardSummary) {
	if s.broadcaster == nil || summary.Duplicate || summary.XPEarned == 0 {
		return
	}
	s.broadcaster.Publish(MsgRewardGranted, RewardGrantedPayload{Identity: id.String(), Reward: summary})
	for _, b := range summary.BadgesEarned {
		s.broadcaster.Publish(MsgBadgeEarned, BadgeEarnedPayload{Identity: id.String(), Badge: b})
	}
	if summary.LevelUp && summary.NewLevel != nil {
		s.broadcaster.Publish(MsgLevelUp, LevelUpPayload{Identity: id.String(), Level: *summary.NewLevel})
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gamification.ErrMissingContent):
		http.Error(w, "missing content id", http.StatusBadRequest)
	case errors.Is(err, gamification.ErrInvalidIdentity):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		log.Printf("Completion failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Sprout-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
