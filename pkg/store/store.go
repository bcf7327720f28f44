// Package store holds the canonical user list and the hobby tag registry.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ha1tch/friendgraph/pkg/models"
)

var (
	// ErrFetch is wrapped by every FetchError
	ErrFetch = errors.New("failed to fetch users")
)

// FetchError is returned when a refresh could not load the user list. The
// store keeps its previous contents.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v: %v", ErrFetch, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// Lister loads the full user list from the backend
type Lister interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

// EntityStore is the canonical list of users plus the tag registry
type EntityStore struct {
	lister Lister

	mu        sync.RWMutex
	users     []models.User
	index     map[string]int
	tags      []string
	tagSet    map[string]bool
	localTags map[string]bool // added locally, kept across refreshes
}

// New creates an empty store backed by lister
func New(lister Lister) *EntityStore {
	return &EntityStore{
		lister:    lister,
		index:     make(map[string]int),
		tagSet:    make(map[string]bool),
		localTags: make(map[string]bool),
	}
}

// Refresh replaces the canonical list with the backend's current list and
// rebuilds the tag registry. On failure nothing changes.
func (s *EntityStore) Refresh(ctx context.Context) error {
	users, err := s.lister.ListUsers(ctx)
	if err != nil {
		return &FetchError{Err: err}
	}
	s.Replace(users)
	return nil
}

// Replace installs users as the canonical list in one step
func (s *EntityStore) Replace(users []models.User) {
	list := make([]models.User, len(users))
	index := make(map[string]int, len(users))
	for i, u := range users {
		list[i] = u.Clone()
		index[u.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = list
	s.index = index
	s.rebuildTagsLocked()
}

// rebuildTagsLocked derives the registry from users in first-seen order,
// then appends local-only tags that are still registered
func (s *EntityStore) rebuildTagsLocked() {
	previous := s.tags
	s.tags = nil
	s.tagSet = make(map[string]bool)

	for _, u := range s.users {
		for _, h := range u.Hobbies {
			s.addTagLocked(h)
		}
	}
	for _, t := range previous {
		if s.localTags[t] {
			s.addTagLocked(t)
		}
	}
}

func (s *EntityStore) addTagLocked(tag string) bool {
	if s.tagSet[tag] {
		return false
	}
	s.tagSet[tag] = true
	s.tags = append(s.tags, tag)
	return true
}

// FindByID looks a user up by id. Absence is reported through the bool.
func (s *EntityStore) FindByID(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.User{}, false
	}
	return s.users[i].Clone(), true
}

// Users returns a copy of the canonical list in backend order
func (s *EntityStore) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, len(s.users))
	for i, u := range s.users {
		out[i] = u.Clone()
	}
	return out
}

// Len returns the number of users
func (s *EntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Relations derives relation pairs from the users' friend lists. Pairs are
// emitted in list order; the reverse direction is left for the consumer to
// deduplicate.
func (s *EntityStore) Relations() []models.RelationPair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pairs []models.RelationPair
	for _, u := range s.users {
		for _, f := range u.Friends {
			pairs = append(pairs, models.RelationPair{A: u.ID, B: f})
		}
	}
	return pairs
}

// Tags returns the registry in order
func (s *EntityStore) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.tags...)
}

// HasTag reports whether tag is registered
func (s *EntityStore) HasTag(tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tagSet[strings.TrimSpace(tag)]
}

// SearchTags returns registered tags containing term, case-insensitively
func (s *EntityStore) SearchTags(term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{}
	for _, t := range s.tags {
		if strings.Contains(strings.ToLower(t), term) {
			out = append(out, t)
		}
	}
	return out
}

// AddLocalTag registers a tag that no user may hold yet. It reports whether
// the registry changed; adding a known tag is a no-op.
func (s *EntityStore) AddLocalTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.addTagLocked(tag) {
		return false
	}
	s.localTags[tag] = true
	return true
}

// RemoveLocalTag drops a tag from the registry. It reports whether the
// registry changed; removing an unknown tag is a no-op. A tag still held by a
// user comes back on the next refresh.
func (s *EntityStore) RemoveLocalTag(tag string) bool {
	tag = strings.TrimSpace(tag)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.localTags, tag)
	if !s.tagSet[tag] {
		return false
	}
	delete(s.tagSet, tag)
	for i, t := range s.tags {
		if t == tag {
			s.tags = append(s.tags[:i], s.tags[i+1:]...)
			break
		}
	}
	return true
}
