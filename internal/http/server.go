package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"myauth/internal/auth"
	"myauth/internal/config"
	"myauth/internal/model"
	"myauth/internal/repository"
)

// Store is the slice of the repository the HTTP layer needs.
type Store interface {
	auth.SessionResolver
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error)
	DeleteSession(ctx context.Context, token string) error
	ListSessionsByUser(ctx context.Context, userID string) ([]model.Session, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserActive(ctx context.Context, userID string, active bool) (model.User, error)
}

// UserDirectory records a verified email and returns the user id.
type UserDirectory interface {
	UpsertUser(ctx context.Context, email string) (string, error)
}

// LoginCodes issues and consumes short-lived login verification codes.
type LoginCodes interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) (bool, error)
}

// Kicker triggers an opportunistic maintenance pass.
type Kicker interface {
	Kick()
}

type Server struct {
	cfg         config.Config
	store       Store
	gate        *auth.Gate
	directory   UserDirectory
	codes       LoginCodes
	maintenance Kicker
}

func NewServer(cfg config.Config, store Store, directory UserDirectory, codes LoginCodes, maintenance Kicker) *Server {
	return &Server{
		cfg:         cfg,
		store:       store,
		gate:        auth.NewGate(store),
		directory:   directory,
		codes:       codes,
		maintenance: maintenance,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.maintenanceMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/code", s.handleRequestCode)
	r.Post("/auth/verify", s.handleVerifyCode)

	r.Post("/api/logout", s.handleLogout)
	r.Get("/api/sessions", s.handleListSessions)
	r.Get("/api/users", s.handleListUsers)
	r.Patch("/api/users/{userID}/active", s.handleSetUserActive)
	r.Get("/api/me", s.handleMe)

	r.Get("/", s.handleHomePage)
	r.Get("/dashboard", s.handleDashboardPage)
	r.Get("/profile", s.handleProfilePage)
	r.Get("/admin", s.handleAdminPage)
	r.Get("/unauthorized", s.handleUnauthorizedPage)
	r.Get("/setup", s.handleSetupPage)

	return r
}

// maintenanceMiddleware kicks the sweep/bootstrap tasks on every request.
// The kick is fire-and-forget and never delays or fails the request.
func (s *Server) maintenanceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.maintenance != nil {
			s.maintenance.Kick()
		}
		next.ServeHTTP(w, r)
	})
}

type requestCodeRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	code, err := s.codes.Issue(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	// Stand-in for a mail delivery hook; the code shows up in the logs.
	log.Printf("sending code %s to %s", code, email)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyCodeResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

// handleVerifyCode is the successful-login callback: a matching code
// proves control of the email, which is then upserted into the directory
// and given a fresh session.
func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ok, err := s.codes.Verify(r.Context(), email, req.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	userID, err := s.directory.UpsertUser(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	token, err := s.store.CreateSession(r.Context(), userID, s.cfg.SessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	user, err := s.store.ResolveSession(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, verifyCodeResponse{Token: token, User: toUserPayload(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if err := s.store.DeleteSession(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type sessionPayload struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user, denial := s.gate.Authorize(r, model.RoleUser)
	if denial != nil {
		writeDenial(w, denial)
		return
	}

	sessions, err := s.store.ListSessionsByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	payload := make([]sessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payload = append(payload, sessionPayload{
			ID:        session.ID,
			Token:     session.Token,
			ExpiresAt: session.ExpiresAt,
			CreatedAt: session.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, denial := s.gate.Authorize(r, model.RoleAdmin); denial != nil {
		writeDenial(w, denial)
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	payload := make([]userPayload, 0, len(users))
	for _, user := range users {
		payload = append(payload, toUserPayload(user))
	}
	writeJSON(w, http.StatusOK, payload)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	if _, denial := s.gate.Authorize(r, model.RoleAdmin); denial != nil {
		writeDenial(w, denial)
		return
	}

	userID := chi.URLParam(r, "userID")
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := s.store.SetUserActive(r.Context(), userID, req.Active)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, toUserPayload(user))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, denial := s.gate.Authorize(r, model.RoleUser)
	if denial != nil {
		writeDenial(w, denial)
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(user))
}

type userPayload struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	FirstName *string    `json:"first_name,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toUserPayload(user model.User) userPayload {
	return userPayload{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		LastLogin: user.LastLogin,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDenial(w http.ResponseWriter, denial *auth.Denial) {
	writeError(w, denial.Status, denial.Message)
}
