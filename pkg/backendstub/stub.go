// Package backendstub serves the user/friendship REST contract from memory.
// It exists so the dashboard can be developed and tested without the real
// backend; nothing it holds survives a restart.
package backendstub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ha1tch/friendgraph/pkg/apiclient"
	"github.com/ha1tch/friendgraph/pkg/models"
)

// Options controls stub behaviour
type Options struct {
	// Codes attaches structured error codes to error responses. When false
	// only the human-readable detail is sent.
	Codes bool
	// SequentialIDs assigns "1", "2", ... instead of UUIDs
	SequentialIDs bool
	Logger        zerolog.Logger
}

type record struct {
	user    models.User
	friends map[string]bool
}

// Stub is an in-memory backend
type Stub struct {
	opts     Options
	mu       sync.RWMutex
	order    []string
	users    map[string]*record
	nextID   int
	validate *validator.Validate
	router   *chi.Mux
	calls    atomic.Int64
	failing  atomic.Bool
}

// New creates a stub backend. It panics if the payload rules cannot be
// registered.
func New(opts Options) *Stub {
	s := &Stub{
		opts:     opts,
		users:    make(map[string]*record),
		nextID:   1,
		validate: validator.New(),
		router:   chi.NewRouter(),
	}
	if err := s.validate.RegisterValidation("username", validUsername); err != nil {
		panic(fmt.Sprintf("backendstub: register username validation: %v", err))
	}
	s.setupRoutes()
	return s
}

func (s *Stub) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.countCalls)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/users/", s.handleList)
		r.Post("/users/", s.handleCreate)
		r.Put("/users/{id}", s.handleUpdate)
		r.Delete("/users/{id}", s.handleDelete)
		r.Post("/users/{id}/link", s.handleLink)
		r.Delete("/users/{id}/unlink", s.handleUnlink)
		r.Get("/graph", s.handleGraph)
	})
}

// Handler returns the HTTP handler
func (s *Stub) Handler() http.Handler {
	return s.router
}

// Calls returns how many requests the stub has received
func (s *Stub) Calls() int64 {
	return s.calls.Load()
}

// SetFailing makes every request answer 503 until switched off
func (s *Stub) SetFailing(failing bool) {
	s.failing.Store(failing)
}

func (s *Stub) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if s.failing.Load() {
			s.writeError(w, http.StatusServiceUnavailable, "", "Backend temporarily unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userInput mirrors the backend's create payload rules
type userInput struct {
	Username string   `json:"username" validate:"required,min=1,max=50,username"`
	Age      int      `json:"age" validate:"gt=0,lt=150"`
	Hobbies  []string `json:"hobbies" validate:"required,min=1"`
}

func (s *Stub) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.snapshot(s.users[id]))
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Stub) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeValidation(w, []string{"body: invalid JSON"})
		return
	}
	if problems := s.check(in); len(problems) > 0 {
		s.writeValidation(w, problems)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usernameTaken(in.Username, "") {
		s.writeError(w, http.StatusConflict, apiclient.CodeUsernameTaken,
			fmt.Sprintf("User with username %s already exists", in.Username))
		return
	}

	id := s.newID()
	rec := &record{
		user: models.User{
			ID:        id,
			Username:  in.Username,
			Age:       in.Age,
			Hobbies:   append([]string(nil), in.Hobbies...),
			CreatedAt: time.Now().UTC(),
		},
		friends: make(map[string]bool),
	}
	s.users[id] = rec
	s.order = append(s.order, id)

	s.opts.Logger.Debug().Str("id", id).Str("username", in.Username).Msg("Created user")
	s.writeJSON(w, http.StatusCreated, s.snapshot(rec))
}

func (s *Stub) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in struct {
		Username *string  `json:"username"`
		Age      *int     `json:"age"`
		Hobbies  []string `json:"hobbies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeValidation(w, []string{"body: invalid JSON"})
		return
	}

	var problems []string
	if in.Username != nil {
		if err := s.validate.Var(*in.Username, "min=1,max=50"); err != nil {
			problems = append(problems, "username: String should have between 1 and 50 characters")
		}
	}
	if in.Age != nil && (*in.Age <= 0 || *in.Age >= 150) {
		problems = append(problems, "age: Input should be greater than 0 and less than 150")
	}
	if len(problems) > 0 {
		s.writeValidation(w, problems)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		s.writeNotFound(w, id)
		return
	}
	if in.Username != nil && *in.Username != rec.user.Username {
		if s.usernameTaken(*in.Username, id) {
			s.writeError(w, http.StatusConflict, apiclient.CodeUsernameTaken,
				fmt.Sprintf("User with username %s already exists", *in.Username))
			return
		}
		rec.user.Username = *in.Username
	}
	if in.Age != nil {
		rec.user.Age = *in.Age
	}
	if in.Hobbies != nil {
		rec.user.Hobbies = append([]string(nil), in.Hobbies...)
	}

	s.writeJSON(w, http.StatusOK, s.snapshot(rec))
}

func (s *Stub) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		s.writeNotFound(w, id)
		return
	}
	if len(rec.friends) > 0 {
		s.writeError(w, http.StatusConflict, apiclient.CodeUserHasFriends,
			"Cannot delete user with existing friendships. Unlink all friends first")
		return
	}

	delete(s.users, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Stub) handleLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in models.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeValidation(w, []string{"body: invalid JSON"})
		return
	}
	if id == in.FriendID {
		s.writeError(w, http.StatusBadRequest, apiclient.CodeSelfLink, "Cannot link user to themselves")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, friend, ok := s.pair(w, id, in.FriendID)
	if !ok {
		return
	}
	if user.friends[friend.user.ID] {
		s.writeError(w, http.StatusConflict, apiclient.CodeRelationshipExists, "Friendship already exists")
		return
	}
	user.friends[friend.user.ID] = true
	friend.friends[user.user.ID] = true

	s.writeJSON(w, http.StatusOK, models.SuccessResponse{Message: "Users linked successfully"})
}

func (s *Stub) handleUnlink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in models.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeValidation(w, []string{"body: invalid JSON"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, friend, ok := s.pair(w, id, in.FriendID)
	if !ok {
		return
	}
	if !user.friends[friend.user.ID] {
		s.writeError(w, http.StatusNotFound, apiclient.CodeRelationshipAbsent, "Friendship not found")
		return
	}
	delete(user.friends, friend.user.ID)
	delete(friend.friends, user.user.ID)

	s.writeJSON(w, http.StatusOK, models.SuccessResponse{Message: "Users unlinked successfully"})
}

func (s *Stub) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := models.GraphData{
		Nodes: make([]models.UserGraph, 0, len(s.order)),
		Edges: []models.EdgeGraph{},
	}
	seen := make(map[[2]string]bool)
	for _, id := range s.order {
		rec := s.users[id]
		data.Nodes = append(data.Nodes, models.UserGraph{
			ID:              rec.user.ID,
			Username:        rec.user.Username,
			Age:             rec.user.Age,
			Hobbies:         append([]string(nil), rec.user.Hobbies...),
			PopularityScore: rec.user.PopularityScore,
		})
		for _, friendID := range sortedKeys(rec.friends) {
			key := [2]string{id, friendID}
			if friendID < id {
				key = [2]string{friendID, id}
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			data.Edges = append(data.Edges, models.EdgeGraph{
				ID:     id + "-" + friendID,
				Source: id,
				Target: friendID,
			})
		}
	}
	s.writeJSON(w, http.StatusOK, data)
}

// pair resolves both ends of a link request, writing 404 when either is missing
func (s *Stub) pair(w http.ResponseWriter, id, friendID string) (*record, *record, bool) {
	user, ok := s.users[id]
	if !ok {
		s.writeNotFound(w, id)
		return nil, nil, false
	}
	friend, ok := s.users[friendID]
	if !ok {
		s.writeNotFound(w, friendID)
		return nil, nil, false
	}
	return user, friend, true
}

func (s *Stub) snapshot(rec *record) models.User {
	u := rec.user.Clone()
	u.Friends = sortedKeys(rec.friends)
	return u
}

func (s *Stub) usernameTaken(username, exceptID string) bool {
	for id, rec := range s.users {
		if id != exceptID && rec.user.Username == username {
			return true
		}
	}
	return false
}

func (s *Stub) newID() string {
	if s.opts.SequentialIDs {
		id := strconv.Itoa(s.nextID)
		s.nextID++
		return id
	}
	return uuid.NewString()
}

// validUsername accepts letters and digits with '_' and '-' separators
func validUsername(fl validator.FieldLevel) bool {
	v := strings.NewReplacer("_", "", "-", "").Replace(fl.Field().String())
	for _, r := range v {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return v != ""
}

func (s *Stub) check(in userInput) []string {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s: failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return problems
}

func (s *Stub) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Stub) writeError(w http.ResponseWriter, status int, code, detail string) {
	body := models.BackendError{Detail: detail}
	if s.opts.Codes {
		body.Code = code
	}
	s.writeJSON(w, status, body)
}

func (s *Stub) writeNotFound(w http.ResponseWriter, id string) {
	s.writeError(w, http.StatusNotFound, apiclient.CodeUserNotFound, fmt.Sprintf("User with id %s not found", id))
}

// writeValidation answers 422 with a list-shaped detail
func (s *Stub) writeValidation(w http.ResponseWriter, problems []string) {
	items := make([]map[string]interface{}, 0, len(problems))
	for _, p := range problems {
		field, msg := "body", p
		if i := strings.Index(p, ": "); i > 0 {
			field, msg = p[:i], p[i+2:]
		}
		items = append(items, map[string]interface{}{
			"loc":  []string{"body", field},
			"msg":  msg,
			"type": "value_error",
		})
	}
	body := models.BackendError{Detail: items}
	if s.opts.Codes {
		body.Code = apiclient.CodeValidation
	}
	s.writeJSON(w, http.StatusUnprocessableEntity, body)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
