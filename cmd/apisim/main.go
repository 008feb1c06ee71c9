package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	obs "load-tester/internal/infrastructure/observability"
)

// apisim is a fake game backend to point the load tester at. Endpoints
// respond with realistic latencies and failure rates; both are tunable at
// runtime through /sim/settings so demos and tests can speed things up.

type sim struct {
	mu          sync.Mutex
	activeUsers int
	lobbyUsers  int
	inGameUsers int
	serverLoad  float64
	sessions    map[string]string // session_id -> username
	startedAt   time.Time

	latencyScale float64
	failureScale float64
}

func newSim() *sim {
	return &sim{
		sessions:     make(map[string]string),
		startedAt:    time.Now(),
		latencyScale: 1.0,
		failureScale: 1.0,
	}
}

// sleep waits a random duration in [minMs, maxMs] scaled by the latency
// setting. Scale 0 makes every endpoint respond immediately.
func (s *sim) sleep(minMs, maxMs int) {
	s.mu.Lock()
	scale := s.latencyScale
	s.mu.Unlock()
	if scale <= 0 {
		return
	}
	ms := float64(minMs+rand.Intn(maxMs-minMs+1)) * scale
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (s *sim) chance(p float64) bool {
	s.mu.Lock()
	scale := s.failureScale
	s.mu.Unlock()
	return rand.Float64() < p*scale
}

func (s *sim) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "not found"})
		return
	}
	s.mu.Lock()
	stats := s.stateLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Game API Simulator - ready for load testing",
		"endpoints": []string{
			"POST /api/login - user login",
			"GET /api/lobby - lobby info",
			"POST /api/join_game - join a game session",
			"GET /api/game_status - game status",
			"POST /api/logout - user logout",
			"GET /api/server_stats - server statistics",
		},
		"current_stats": stats,
	})
}

func (s *sim) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Username == "" {
		body.Username = fmt.Sprintf("user_%d", 1000+rand.Intn(9000))
	}

	s.sleep(100, 500)

	if s.chance(0.05) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "Invalid credentials",
		})
		return
	}

	sessionID := fmt.Sprintf("session_%d_%d", time.Now().Unix(), 1000+rand.Intn(9000))
	s.mu.Lock()
	s.sessions[sessionID] = body.Username
	s.activeUsers++
	s.serverLoad = min(1.0, float64(s.activeUsers)/1000)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"session_id":  sessionID,
		"username":    body.Username,
		"server_time": time.Now().Format(time.RFC3339),
	})
}

func (s *sim) handleLobby(w http.ResponseWriter, r *http.Request) {
	s.sleep(200, 800)

	s.mu.Lock()
	overloaded := s.serverLoad > 0.8
	s.mu.Unlock()
	if overloaded && s.chance(0.1) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"error":   "Server overloaded, please try again",
		})
		return
	}

	s.mu.Lock()
	s.lobbyUsers = s.activeUsers
	if n := s.lobbyUsers + rand.Intn(16) - 5; n < s.activeUsers {
		s.lobbyUsers = max(0, n)
	}
	online, inLobby, load := s.activeUsers, s.lobbyUsers, s.serverLoad
	s.mu.Unlock()

	maps := []string{"Alpha", "Beta", "Gamma", "Delta"}
	modes := []string{"Battle Royale", "Team Deathmatch", "Capture Flag"}
	games := make([]map[string]any, 0, 8)
	for i := 0; i < 3+rand.Intn(6); i++ {
		games = append(games, map[string]any{
			"game_id":     fmt.Sprintf("game_%d", i+1),
			"players":     1 + rand.Intn(10),
			"max_players": 10,
			"map":         "Map_" + maps[rand.Intn(len(maps))],
			"mode":        modes[rand.Intn(len(modes))],
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"lobby_info": map[string]any{
			"online_players":  online,
			"lobby_players":   inLobby,
			"server_load":     load,
			"available_games": games,
		},
	})
}

func (s *sim) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GameID string `json:"game_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.GameID == "" {
		body.GameID = "game_1"
	}

	// matchmaking time
	s.sleep(1000, 3000)

	if s.chance(0.15) {
		reasons := []string{"Game is full", "Connection timeout", "Matchmaking failed"}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   reasons[rand.Intn(len(reasons))],
		})
		return
	}

	s.mu.Lock()
	s.inGameUsers++
	s.lobbyUsers = max(0, s.lobbyUsers-1)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"game_session": map[string]any{
			"game_id":         body.GameID,
			"session_id":      fmt.Sprintf("game_session_%d", time.Now().Unix()),
			"server_ip":       fmt.Sprintf("192.168.1.%d", 10+rand.Intn(91)),
			"port":            7000 + rand.Intn(1001),
			"players_in_game": 5 + rand.Intn(6),
		},
	})
}

func (s *sim) handleGameStatus(w http.ResponseWriter, r *http.Request) {
	s.sleep(100, 300)

	statuses := []string{"waiting", "in_progress", "ending"}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"game_status": map[string]any{
			"status":         statuses[rand.Intn(len(statuses))],
			"players_alive":  1 + rand.Intn(10),
			"time_remaining": 60 + rand.Intn(241),
			"your_stats": map[string]any{
				"kills":  rand.Intn(6),
				"deaths": rand.Intn(4),
				"score":  100 + rand.Intn(901),
			},
		},
	})
}

func (s *sim) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	delete(s.sessions, body.SessionID)
	s.activeUsers = max(0, s.activeUsers-1)
	s.serverLoad = float64(s.activeUsers) / 1000
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (s *sim) handleServerStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stats := s.stateLocked()
	s.mu.Unlock()
	stats["uptime"] = time.Since(s.startedAt).Truncate(time.Second).String()
	stats["memory_usage"] = fmt.Sprintf("%d%%", 60+rand.Intn(26))
	stats["cpu_usage"] = fmt.Sprintf("%d%%", 30+rand.Intn(41))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"server_stats": stats,
	})
}

func (s *sim) stateLocked() map[string]any {
	return map[string]any{
		"active_users":  s.activeUsers,
		"lobby_users":   s.lobbyUsers,
		"in_game_users": s.inGameUsers,
		"server_load":   s.serverLoad,
	}
}

type simSettings struct {
	LatencyScale *float64 `json:"latency_scale,omitempty"`
	FailureScale *float64 `json:"failure_scale,omitempty"`
}

// handleSettings reads or tunes latency and failure scaling at runtime.
func (s *sim) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var in simSettings
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json"})
			return
		}
		s.mu.Lock()
		if in.LatencyScale != nil && *in.LatencyScale >= 0 {
			s.latencyScale = *in.LatencyScale
		}
		if in.FailureScale != nil && *in.FailureScale >= 0 {
			s.failureScale = *in.FailureScale
		}
		s.mu.Unlock()
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	out := map[string]any{"latency_scale": s.latencyScale, "failure_scale": s.failureScale}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// backgroundActivity drifts user counts so lobby and stats responses look
// alive even without traffic, and expires stale sessions.
func (s *sim) backgroundActivity(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.activeUsers = max(0, s.activeUsers+rand.Intn(6)-2)
			s.serverLoad = min(1.0, float64(s.activeUsers)/1000)
			cutoff := time.Now().Add(-time.Hour).Unix()
			for id := range s.sessions {
				var ts int64
				if _, err := fmt.Sscanf(id, "session_%d_", &ts); err == nil && ts < cutoff {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "method not allowed"})
			return
		}
		h(w, r)
	}
}

func main() {
	addr := os.Getenv("SIM_ADDR")
	if addr == "" {
		addr = ":3000"
	}
	logger := obs.NewLogger(os.Getenv("LOG_LEVEL"))
	logger.Info().Str("addr", addr).Msg("starting apisim")

	s := newSim()
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go s.backgroundActivity(bgCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/api/login", requireMethod(http.MethodPost, s.handleLogin))
	mux.HandleFunc("/api/lobby", requireMethod(http.MethodGet, s.handleLobby))
	mux.HandleFunc("/api/join_game", requireMethod(http.MethodPost, s.handleJoinGame))
	mux.HandleFunc("/api/game_status", requireMethod(http.MethodGet, s.handleGameStatus))
	mux.HandleFunc("/api/logout", requireMethod(http.MethodPost, s.handleLogout))
	mux.HandleFunc("/api/server_stats", requireMethod(http.MethodGet, s.handleServerStats))
	mux.HandleFunc("/sim/settings", s.handleSettings)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("apisim stopped")
}
