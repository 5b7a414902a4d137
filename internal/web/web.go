// Package web exposes the desk's local HTTP surface: the derived calendar
// grid, the schedule and conversation views, and the actions behind them.
// It is the Go-side stand-in for the portal screens; every handler is a
// thin adapter over a view-model.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"hiredesk/internal/api"
	"hiredesk/internal/config"
	appLog "hiredesk/internal/log"
	"hiredesk/internal/messaging"
	"hiredesk/internal/schedule"
	"hiredesk/internal/session"
)

// Server provides the local HTTP API for the desk.
type Server struct {
	cfg      *config.Config
	store    *session.Store
	watchdog *session.Watchdog
	client   *api.Client
	sched    *schedule.ViewModel
	msgs     *messaging.ViewModel
	loc      *time.Location
	mux      *http.ServeMux
}

// NewServer constructs a new Server over the given view-models.
func NewServer(cfg *config.Config, store *session.Store, watchdog *session.Watchdog,
	client *api.Client, sched *schedule.ViewModel, msgs *messaging.ViewModel,
	loc *time.Location) *Server {

	s := &Server{
		cfg:      cfg,
		store:    store,
		watchdog: watchdog,
		client:   client,
		sched:    sched,
		msgs:     msgs,
		loc:      loc,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return s.activityMiddleware(h)
}

// activityMiddleware counts every local request as user activity for the
// inactivity watchdog, the desk-side analog of mouse-move/key-press.
func (s *Server) activityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.watchdog != nil && r.URL.Path != "/health" {
			s.watchdog.Touch()
		}
		next.ServeHTTP(w, r)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="HireDesk", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/session", s.handleSession)

	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/schedules", s.handleSchedules)
	s.mux.HandleFunc("POST /api/schedules/cancel", s.handleCancel)
	s.mux.HandleFunc("GET /api/export/ics", s.handleExportICS)
	s.mux.HandleFunc("GET /api/export/csv", s.handleExportCSV)

	s.mux.HandleFunc("GET /api/conversations", s.handleConversations)
	s.mux.HandleFunc("POST /api/conversations/select", s.handleSelect)
	s.mux.HandleFunc("POST /api/conversations/deselect", s.handleDeselect)
	s.mux.HandleFunc("GET /api/messages", s.handleMessages)
	s.mux.HandleFunc("POST /api/messages/send", s.handleSend)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		// Validation failures never reach the backend.
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ident, err := s.client.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		appLog.Error("login failed", err)
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		appLog.Error("logout failed to clear session", err)
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"logged_in": s.store.LoggedIn(),
		"identity":  s.store.Identity(),
		"role":      s.client.Role(),
	}
	if exp, ok := session.TokenExpiry(s.store.Token()); ok {
		resp["token_expires"] = exp
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar returns the month grid. Optional year/month query params
// reposition the view first; otherwise the current reference month is
// used. The snapshot is refreshed before deriving the grid.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if y, m := q.Get("year"), q.Get("month"); y != "" && m != "" {
		year, yerr := strconv.Atoi(y)
		month, merr := strconv.Atoi(m)
		if yerr != nil || merr != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "invalid year/month")
			return
		}
		s.sched.SetMonth(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc))
	}

	if err := s.sched.Load(r.Context()); err != nil {
		if handledSessionExpiry(w, err) {
			return
		}
		// Degrade to the held snapshot rather than blanking the screen.
		appLog.Error("schedule refresh failed, serving held snapshot", err)
	}

	ref := s.sched.Month()
	writeJSON(w, http.StatusOK, map[string]any{
		"year":  ref.Year(),
		"month": int(ref.Month()),
		"days":  s.sched.Grid(),
	})
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.Load(r.Context()); err != nil {
		if handledSessionExpiry(w, err) {
			return
		}
		appLog.Error("schedule fetch failed, serving held snapshot", err)
	}
	writeJSON(w, http.StatusOK, s.sched.Events())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MeetingID string `json:"meeting_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MeetingID == "" {
		writeError(w, http.StatusBadRequest, "meeting_id is required")
		return
	}

	if err := s.sched.Cancel(r.Context(), req.MeetingID); err != nil {
		if handledSessionExpiry(w, err) {
			return
		}
		if errors.Is(err, schedule.ErrUnknownMeeting) {
			writeError(w, http.StatusNotFound, "unknown meeting id")
			return
		}
		appLog.Error("cancellation failed", err, "meeting_id", req.MeetingID)
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.Load(r.Context()); err != nil {
		if handledSessionExpiry(w, err) {
			return
		}
		// Other failures degrade to the held snapshot.
		appLog.Error("export refresh failed", err)
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="interviews.ics"`)
	if err := schedule.WriteICS(w, s.sched.Events(), s.loc); err != nil {
		appLog.Error("ics export failed", err)
	}
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.Load(r.Context()); err != nil {
		if handledSessionExpiry(w, err) {
			return
		}
		appLog.Error("export refresh failed", err)
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="interviews.csv"`)
	if err := schedule.WriteCSV(w, s.sched.Events()); err != nil {
		appLog.Error("csv export failed", err)
	}
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if err := s.msgs.LoadConversations(r.Context()); err != nil {
		if handledSessionExpiry(w, err) {
			return
		}
		// Non-fatal: the screen shows whatever list it has.
	}
	writeJSON(w, http.StatusOK, s.msgs.Conversations())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := s.msgs.Select(r.Context(), req.ID); err != nil {
		if handledSessionExpiry(w, err) {
			return
		}
		// Selection sticks even when the history fetch fails; respond
		// with whatever is held.
	}
	writeJSON(w, http.StatusOK, s.msgs.Messages())
}

func (s *Server) handleDeselect(w http.ResponseWriter, _ *http.Request) {
	s.msgs.Deselect()
	writeJSON(w, http.StatusOK, map[string]bool{"deselected": true})
}

func (s *Server) handleMessages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.msgs.Messages())
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.msgs.Send(r.Context(), req.Text); err != nil {
		if handledSessionExpiry(w, err) {
			return
		}
		switch {
		case errors.Is(err, messaging.ErrNoSelection):
			writeError(w, http.StatusConflict, "no conversation selected")
		case errors.Is(err, messaging.ErrSendInFlight):
			writeError(w, http.StatusConflict, "a send is already in flight")
		default:
			writeBackendError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, s.msgs.Messages())
}

// handledSessionExpiry writes the 401 for a backend session-expiry signal
// and reports whether it did so. The session store has already been
// cleared by the API client at this point.
func handledSessionExpiry(w http.ResponseWriter, err error) bool {
	if errors.Is(err, api.ErrSessionExpired) {
		writeError(w, http.StatusUnauthorized, "session expired, log in again")
		return true
	}
	return false
}

// writeBackendError maps an upstream failure onto the local response.
func writeBackendError(w http.ResponseWriter, err error) {
	var be *api.BackendError
	if errors.As(err, &be) {
		writeError(w, http.StatusBadGateway, be.Error())
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "backend timed out")
		return
	}
	writeError(w, http.StatusBadGateway, "backend request failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
