package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bjaus/httpkit"
)

func newApp(cfg *Config, logger *slog.Logger) (*httpkit.Router, error) {
	metrics, err := httpkit.NewMetrics(nil, cfg.Metrics.Namespace)
	if err != nil {
		return nil, err
	}

	r := httpkit.NewRouter()

	// Global middleware.
	r.Use(httpkit.Recovery())
	r.Use(httpkit.RequestID())
	r.Use(httpkit.Logger(logger))
	r.Use(metrics.Middleware())
	r.Use(httpkit.Secure())
	r.Use(httpkit.CORS())
	r.Use(httpkit.Compress())
	if cfg.RateLimit.Rate > 0 {
		r.Use(httpkit.RateLimit(httpkit.RateLimitConfig{
			Rate:  cfg.RateLimit.Rate,
			Burst: cfg.RateLimit.Burst,
		}))
	}
	if cfg.BodyLimit > 0 {
		r.Use(httpkit.BodyLimit(cfg.BodyLimit))
	}
	if cfg.Timeout > 0 {
		r.Use(httpkit.Timeout(cfg.Timeout))
	}

	httpkit.Handle[httpkit.Empty](r, "/metrics", metrics.Handler())

	// ---------- v1 group ----------

	users := &userService{store: newUserStore()}
	v1 := r.Group("/v1")

	httpkit.HandleFunc[httpkit.Empty](v1, "/health", handleHealth)
	httpkit.HandleFunc[httpkit.Text](v1, "/echo", handleEcho)
	httpkit.HandleFunc[httpkit.Empty](v1, "/events", handleEvents)

	// "/users" lists and creates; "/users/" addresses one user by the rest
	// of the path.
	httpkit.Handle[httpkit.Bytes](v1, "/users",
		httpkit.WithErrorHandling(httpkit.WithContext(users, (*userService).collection), httpkit.Problem))
	httpkit.Handle[httpkit.Empty](v1, "/users/",
		httpkit.WithErrorHandling(httpkit.WithContext(users, (*userService).item), httpkit.Problem))

	if cfg.StaticDir != "" {
		static, err := httpkit.StaticFiles(cfg.StaticDir)
		if err != nil {
			return nil, err
		}
		httpkit.Handle[httpkit.Empty](r, "/", static)
	}

	return r, nil
}

// ---------------------------------------------------------------------------
// In-memory store
// ---------------------------------------------------------------------------

type userStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	nextID int
}

func newUserStore() *userStore {
	return &userStore{
		users: map[string]*User{
			"1": {ID: "1", Name: "Alice", Email: "alice@example.com", Role: "admin", CreatedAt: time.Now()},
			"2": {ID: "2", Name: "Bob", Email: "bob@example.com", Role: "member", CreatedAt: time.Now()},
		},
		nextID: 3,
	}
}

func (s *userStore) list(role string) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b User) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *userStore) get(id string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (s *userStore) create(name, email, role string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{
		ID:        strconv.Itoa(s.nextID),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now(),
	}
	s.nextID++
	s.users[u.ID] = u
	cp := *u
	return &cp
}

func (s *userStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// User is the core domain entity.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type healthResp struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type listUsersResp struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

type createUserReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *createUserReq) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return httpkit.Error(http.StatusBadRequest, "name is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		return httpkit.Error(http.StatusBadRequest, "email is required")
	}
	if !strings.Contains(r.Email, "@") {
		return httpkit.Error(http.StatusBadRequest, "email must contain @")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func handleHealth(_ context.Context, _ *httpkit.Request[httpkit.Empty], resp *httpkit.ResponseBuilder) httpkit.Responder {
	return resp.ContentType("application/json").Body(httpkit.JSON[healthResp]{Value: healthResp{
		Status: "ok",
		Time:   time.Now(),
	}})
}

func handleEcho(_ context.Context, req *httpkit.Request[httpkit.Text], resp *httpkit.ResponseBuilder) httpkit.Responder {
	return resp.ContentType("text/plain; charset=utf-8").Body(req.Body)
}

// handleEvents emits a tick every second, five times.
func handleEvents(ctx context.Context, _ *httpkit.Request[httpkit.Empty], resp *httpkit.ResponseBuilder) httpkit.Responder {
	events := make(chan httpkit.Event)
	go func() {
		defer close(events)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for i := range 5 {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				event := httpkit.Event{
					Event: "tick",
					ID:    strconv.Itoa(i + 1),
					Data:  map[string]any{"time": t.Format(time.RFC3339)},
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return httpkit.SSE(resp, events)
}

type userService struct {
	store *userStore
}

func (s *userService) collection(
	ctx context.Context,
	req *httpkit.Request[httpkit.Bytes],
	resp *httpkit.ResponseBuilder,
) httpkit.Responder {
	switch req.Method {
	case http.MethodGet:
		users := s.store.list(req.Query().Get("role"))
		return httpkit.Negotiate(resp, req.Header.Get("Accept"), listUsersResp{Users: users, Total: len(users)})
	case http.MethodPost:
		decoded, err := httpkit.Convert[httpkit.JSON[createUserReq]](ctx, req.Body)
		if err != nil {
			return httpkit.Fail(httpkit.Error(http.StatusBadRequest, err.Error()))
		}
		body := decoded.Value
		if err := body.validate(); err != nil {
			return httpkit.Fail(err)
		}
		if body.Role == "" {
			body.Role = "member"
		}
		user := s.store.create(body.Name, body.Email, body.Role)
		return resp.Status(http.StatusCreated).
			SetHeader("Location", "/v1/users/"+user.ID).
			ContentType("application/json").
			Body(httpkit.JSON[*User]{Value: user})
	default:
		return methodNotAllowed(resp, http.MethodGet, http.MethodPost)
	}
}

func (s *userService) item(
	_ context.Context,
	req *httpkit.Request[httpkit.Empty],
	resp *httpkit.ResponseBuilder,
) httpkit.Responder {
	id := strings.TrimPrefix(req.Path(), "/v1/users/")
	switch req.Method {
	case http.MethodGet:
		user, ok := s.store.get(id)
		if !ok {
			return httpkit.Fail(httpkit.Errorf(http.StatusNotFound, "user %s not found", id))
		}
		return resp.ContentType("application/json").Body(httpkit.JSON[*User]{Value: user})
	case http.MethodDelete:
		if !s.store.delete(id) {
			return httpkit.Fail(httpkit.Errorf(http.StatusNotFound, "user %s not found", id))
		}
		return resp.Status(http.StatusNoContent).Empty()
	default:
		return methodNotAllowed(resp, http.MethodGet, http.MethodDelete)
	}
}

func methodNotAllowed(resp *httpkit.ResponseBuilder, allowed ...string) httpkit.Responder {
	return resp.Status(http.StatusMethodNotAllowed).
		SetHeader("Allow", strings.Join(allowed, ", ")).
		Body(httpkit.Text(fmt.Sprintf("allowed methods: %s", strings.Join(allowed, ", "))))
}
