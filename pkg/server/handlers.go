package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ha1tch/friendgraph/pkg/dashboard"
	"github.com/ha1tch/friendgraph/pkg/models"
	"github.com/ha1tch/friendgraph/pkg/notify"
	"github.com/ha1tch/friendgraph/pkg/validation"
)

const maxBodySize = 1 << 20

// userForm is the create form. Hobbies may be given as a list or as the
// comma separated text typed into the form.
type userForm struct {
	Username    string   `json:"username"`
	Age         int      `json:"age"`
	Hobbies     []string `json:"hobbies"`
	HobbiesText string   `json:"hobbies_text"`
}

// updateForm is the edit form. Absent fields are left unchanged.
type updateForm struct {
	Username    *string  `json:"username"`
	Age         *int     `json:"age"`
	Hobbies     []string `json:"hobbies"`
	HobbiesText *string  `json:"hobbies_text"`
}

type linkForm struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type selectForm struct {
	ID string `json:"id"`
}

type tagForm struct {
	Tag string `json:"tag"`
}

type positionForm struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// mutationResponse carries the notice of an operation and the state after it
type mutationResponse struct {
	Notice *notify.Notice `json:"notice"`
	User   *models.User   `json:"user,omitempty"`
	Error  *errorBody     `json:"error,omitempty"`
	State  dashboard.View `json:"state"`
}

// handleState returns the full dashboard view
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dashboard.View())
}

// handleRefresh refetches users and the graph
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	out, err := s.dashboard.Refresh(r.Context())
	s.respond(w, out, err)
}

// handleCreateUser validates the create form and creates the user
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var form userForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	hobbies := form.Hobbies
	if len(hobbies) == 0 && form.HobbiesText != "" {
		hobbies = validation.ParseHobbies(form.HobbiesText)
	}
	in := validation.NormalizeCreate(models.UserCreate{
		Username: form.Username,
		Age:      form.Age,
		Hobbies:  hobbies,
	})
	if !s.validate(w, in) {
		return
	}

	out, err := s.dashboard.CreateUser(r.Context(), in)
	s.respond(w, out, err)
}

// handleUpdateUser validates the edit form and updates the user
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var form updateForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	hobbies := form.Hobbies
	if hobbies == nil && form.HobbiesText != nil {
		hobbies = validation.ParseHobbies(*form.HobbiesText)
	}
	in := validation.NormalizeUpdate(models.UserUpdate{
		Username: form.Username,
		Age:      form.Age,
		Hobbies:  hobbies,
	})
	if in.Hobbies != nil && len(in.Hobbies) == 0 {
		s.writeValidation(w, []string{"hobbies: at least 1 required"})
		return
	}
	if !s.validate(w, in) {
		return
	}

	out, err := s.dashboard.UpdateUser(r.Context(), id, in)
	s.respond(w, out, err)
}

// handleDeleteUser deletes a user
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	out, err := s.dashboard.DeleteUser(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, out, err)
}

// handleLink connects two users
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeLink(w, r)
	if !ok {
		return
	}
	out, err := s.dashboard.Link(r.Context(), form.Source, form.Target)
	s.respond(w, out, err)
}

// handleUnlink removes a friendship
func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeLink(w, r)
	if !ok {
		return
	}
	out, err := s.dashboard.Unlink(r.Context(), form.Source, form.Target)
	s.respond(w, out, err)
}

func (s *Server) decodeLink(w http.ResponseWriter, r *http.Request) (linkForm, bool) {
	var form linkForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return form, false
	}
	form.Source = strings.TrimSpace(form.Source)
	form.Target = strings.TrimSpace(form.Target)
	if form.Source == "" || form.Target == "" {
		s.writeError(w, http.StatusBadRequest, "source and target are required")
		return form, false
	}
	return form, true
}

// handleSelect focuses a user
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var form selectForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, ok := s.dashboard.Select(form.ID)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("User with id %s not found", form.ID))
		return
	}
	s.writeJSON(w, http.StatusOK, mutationResponse{
		User:  &user,
		State: s.dashboard.View(),
	})
}

// handleClearSelection empties the selection
func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.dashboard.ClearSelection()
	s.respond(w, dashboard.Outcome{}, nil)
}

// handleAddSelectedTag gives the selected user a hobby
func (s *Server) handleAddSelectedTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := s.decodeTag(w, r)
	if !ok {
		return
	}
	out, err := s.dashboard.AddTagToSelected(r.Context(), tag)
	s.respond(w, out, err)
}

// handleRemoveSelectedTag takes a hobby away from the selected user
func (s *Server) handleRemoveSelectedTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := s.tagParam(w, r)
	if !ok {
		return
	}
	out, err := s.dashboard.RemoveTagFromSelected(r.Context(), tag)
	s.respond(w, out, err)
}

// handleListTags lists registered hobby tags, optionally filtered
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tags": s.dashboard.SearchTags(r.URL.Query().Get("search")),
	})
}

// handleAddTag registers a hobby tag
func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := s.decodeTag(w, r)
	if !ok {
		return
	}
	out, _ := s.dashboard.AddTag(tag)
	s.respond(w, out, nil)
}

// handleRemoveTag drops a hobby tag from the registry
func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := s.tagParam(w, r)
	if !ok {
		return
	}
	out, _ := s.dashboard.RemoveTag(tag)
	s.respond(w, out, nil)
}

func (s *Server) decodeTag(w http.ResponseWriter, r *http.Request) (string, bool) {
	var form tagForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return "", false
	}
	tag := strings.TrimSpace(form.Tag)
	if tag == "" {
		s.writeError(w, http.StatusBadRequest, "tag is required")
		return "", false
	}
	return tag, true
}

// tagParam reads the {tag} segment. chi matches on RawPath only when the
// request carried a non-canonical escaping; otherwise the segment is
// already decoded.
func (s *Server) tagParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	tag := chi.URLParam(r, "tag")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(tag)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid tag")
			return "", false
		}
		tag = unescaped
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid tag")
		return "", false
	}
	return tag, true
}

// handleMoveNode drags a node on the canvas
func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var form positionForm
	if err := s.decode(w, r, &form); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if form.X == nil || form.Y == nil {
		s.writeError(w, http.StatusBadRequest, "x and y are required")
		return
	}

	if !s.dashboard.MoveNode(id, *form.X, *form.Y) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Node %s not found", id))
		return
	}
	s.respond(w, dashboard.Outcome{}, nil)
}

// handleListNotices returns active notices, oldest first
func (s *Server) handleListNotices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"notices": s.dashboard.Notices().List(),
	})
}

// handleGetNotice returns one active notice
func (s *Server) handleGetNotice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, ok := s.dashboard.Notices().Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Notice %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

// handleDismissNotice removes a notice before it expires
func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.dashboard.Notices().Dismiss(id) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Notice %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, models.SuccessResponse{Message: "Notice dismissed"})
}

// Helper functions

// respond writes the outcome of an operation together with the new state
func (s *Server) respond(w http.ResponseWriter, out dashboard.Outcome, err error) {
	resp := mutationResponse{
		Notice: out.Notice,
		User:   out.User,
	}

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		e := dashboard.Classify("", err)
		resp.Error = &errorBody{
			Kind:    e.Kind.String(),
			Message: e.Message,
			Status:  status,
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Int("status", status).Msg("Operation failed")
		}
	}

	resp.State = s.dashboard.View()
	s.writeJSON(w, status, resp)
}

// statusFor maps an error category onto an HTTP status
func statusFor(err error) int {
	kind, ok := dashboard.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case dashboard.ConflictRejected:
		return http.StatusOK
	case dashboard.ValidationRejected:
		return http.StatusBadRequest
	case dashboard.NotFound:
		return http.StatusNotFound
	case dashboard.ConstraintRejected:
		return http.StatusConflict
	case dashboard.FetchError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}

func (s *Server) validate(w http.ResponseWriter, form interface{}) bool {
	if valid, problems := s.validator.Validate(form); !valid {
		s.writeValidation(w, problems)
		return false
	}
	return true
}

func (s *Server) writeValidation(w http.ResponseWriter, problems []string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":   "Validation failed",
		"details": problems,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, models.ErrorResponse{
		Error: struct {
			Message string `json:"message"`
			Status  int    `json:"status"`
		}{
			Message: message,
			Status:  status,
		},
	})
}
