// Package server implements the nagi HTTP daemon: event ingestion,
// magic-link login, session management, and the day-view API consumed by
// the renderer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/nagi-app/nagi/internal/config"
	"github.com/nagi-app/nagi/internal/storage"
	"github.com/nagi-app/nagi/internal/timeline"
)

const sessionCookieName = "session_id"

// Mailer delivers magic-link login mails. Actual email delivery is
// deployment-specific; the daemon only needs somewhere to hand the link.
type Mailer interface {
	SendLoginLink(ctx context.Context, email, link string) error
}

// LogMailer writes login links to the process log instead of sending
// mail. Useful for development and as the default when no provider is
// configured.
type LogMailer struct{}

func (LogMailer) SendLoginLink(_ context.Context, email, link string) error {
	log.Printf("login link for %s: %s", email, link)
	return nil
}

// Server is the nagi HTTP daemon.
type Server struct {
	store    storage.Store
	timeline *timeline.Service
	cfg      *config.Config
	mailer   Mailer

	// now is injectable for tests.
	now func() time.Time
}

// New creates a Server. A nil mailer falls back to LogMailer.
func New(store storage.Store, tl *timeline.Service, cfg *config.Config, mailer Mailer) *Server {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Server{
		store:    store,
		timeline: tl,
		cfg:      cfg,
		mailer:   mailer,
		now:      time.Now,
	}
}

// Handler returns the daemon's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/log", s.handleLog)
	mux.HandleFunc("/api/day", s.handleDay)
	mux.HandleFunc("/api/apps", s.handleApps)
	mux.HandleFunc("/api/apps/toggle", s.handleAppsToggle)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/callback", s.handleCallback)
	mux.HandleFunc("/api/auth/logout", s.handleLogout)
	return mux
}

// ListenAndServe runs the daemon on the configured host and port.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Daemon.Host, s.cfg.Daemon.Port)
	log.Printf("nagi daemon listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLog is the ingestion endpoint: the desktop agent POSTs
// {"app": "..."} with its API token whenever the foreground app changes.
// The event timestamp is the server's receipt time.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := s.store.UserByAPIToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	var body struct {
		App string `json:"app"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	app := strings.TrimSpace(body.App)
	if app == "" {
		writeError(w, http.StatusBadRequest, "app name is required")
		return
	}

	event := &storage.Event{UserID: user.ID, Timestamp: s.now(), App: app}
	if err := s.store.AppendEvent(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "event recorded"})
}

// handleDay returns the reconstructed day view for the session user.
// Without ?date= it shows today at the configured offset.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	now := s.now()
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.timeline.Resolver().Today(now)
	}

	view, err := s.timeline.Day(r.Context(), user.ID, date, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type appEntry struct {
	App      string `json:"app"`
	Selected bool   `json:"selected"`
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	apps, err := s.store.ListApps(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list apps")
		return
	}
	targets, err := s.store.TargetApps(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read selection")
		return
	}

	selected := make(map[string]bool, len(targets))
	for _, app := range targets {
		selected[app] = true
	}

	entries := make([]appEntry, len(apps))
	for i, app := range apps {
		entries[i] = appEntry{App: app, Selected: selected[app]}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleAppsToggle flips one app in or out of the target selection.
func (s *Server) handleAppsToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := s.sessionUser(w, r)
	if !ok {
		return
	}

	var body struct {
		App string `json:"app"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.App) == "" {
		writeError(w, http.StatusBadRequest, "app name is required")
		return
	}
	app := strings.TrimSpace(body.App)

	targets, err := s.store.TargetApps(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read selection")
		return
	}
	isTarget := false
	for _, t := range targets {
		if t == app {
			isTarget = true
			break
		}
	}

	if err := s.store.SetTargetApp(r.Context(), user.ID, app, !isTarget); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update selection")
		return
	}
	writeJSON(w, http.StatusOK, appEntry{App: app, Selected: !isTarget})
}

// handleLogin issues a magic-link token and hands it to the mailer.
// The response does not reveal whether the address is known.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	ttl := time.Duration(s.cfg.Auth.LoginTokenTTLMinutes) * time.Minute
	token, err := s.store.CreateLoginToken(r.Context(), body.Email, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create login token")
		return
	}

	link := fmt.Sprintf("%s/api/auth/callback?token=%s", strings.TrimRight(s.cfg.Daemon.BaseURL, "/"), token)
	if err := s.mailer.SendLoginLink(r.Context(), body.Email, link); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to send login mail")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleCallback redeems a magic-link token, creating the account on
// first login, and opens a cookie session.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	email, err := s.store.ConsumeLoginToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid or expired token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify token")
		return
	}

	user, err := s.store.EnsureUser(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve account")
		return
	}

	ttl := time.Duration(s.cfg.Auth.SessionTTLDays) * 24 * time.Hour
	sessionID, err := s.store.CreateSession(r.Context(), user.ID, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete session")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// sessionUser resolves the session cookie to a user, writing the error
// response itself when authentication fails.
func (s *Server) sessionUser(w http.ResponseWriter, r *http.Request) (*storage.User, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	user, err := s.store.UserBySession(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "session expired")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return nil, false
	}
	return user, true
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
