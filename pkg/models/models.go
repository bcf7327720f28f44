package models

import (
	"time"
)

// User is a user record as returned by the backend
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Age             int       `json:"age"`
	Hobbies         []string  `json:"hobbies"`
	Friends         []string  `json:"friends"`
	CreatedAt       time.Time `json:"created_at"`
	PopularityScore float64   `json:"popularity_score"`
}

// Clone returns a deep copy of the user
func (u User) Clone() User {
	c := u
	c.Hobbies = append([]string(nil), u.Hobbies...)
	c.Friends = append([]string(nil), u.Friends...)
	return c
}

// HasHobby reports whether the user holds the given hobby tag
func (u User) HasHobby(hobby string) bool {
	for _, h := range u.Hobbies {
		if h == hobby {
			return true
		}
	}
	return false
}

// UserCreate is the payload for creating a user
type UserCreate struct {
	Username string   `json:"username" validate:"required,min=2,max=50"`
	Age      int      `json:"age" validate:"required,min=1,max=150"`
	Hobbies  []string `json:"hobbies" validate:"required,min=1,dive,required"`
}

// UserUpdate is a partial update. Nil fields are left untouched by the
// backend; a non-nil empty Hobbies clears the user's hobbies.
type UserUpdate struct {
	Username *string  `json:"username,omitempty" validate:"omitempty,min=2,max=50"`
	Age      *int     `json:"age,omitempty" validate:"omitempty,min=1,max=150"`
	Hobbies  []string `json:"hobbies" validate:"omitempty,dive,required"`
}

// LinkRequest is the body of link and unlink calls
type LinkRequest struct {
	FriendID string `json:"friend_id"`
}

// UserGraph is a node summary in the backend graph response
type UserGraph struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	Age             int      `json:"age"`
	Hobbies         []string `json:"hobbies"`
	PopularityScore float64  `json:"popularity_score"`
}

// EdgeGraph is a relation pair in the backend graph response
type EdgeGraph struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphData is the backend graph response
type GraphData struct {
	Nodes []UserGraph `json:"nodes"`
	Edges []EdgeGraph `json:"edges"`
}

// RelationPair is an unordered friendship between two users
type RelationPair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Pairs converts graph edges to relation pairs, keeping order
func (g *GraphData) Pairs() []RelationPair {
	pairs := make([]RelationPair, 0, len(g.Edges))
	for _, e := range g.Edges {
		pairs = append(pairs, RelationPair{A: e.Source, B: e.Target})
	}
	return pairs
}

// Position is a canvas coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the payload rendered inside a canvas node
type NodeData struct {
	Username        string   `json:"username"`
	Age             int      `json:"age"`
	PopularityScore float64  `json:"popularity_score"`
	Hobbies         []string `json:"hobbies"`
}

// FlowNode is a positioned node of the projected graph
type FlowNode struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// FlowEdge is an undirected edge of the projected graph
type FlowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// BackendError is the error envelope returned by the backend
type BackendError struct {
	Detail interface{} `json:"detail"`
	Code   string      `json:"code,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
