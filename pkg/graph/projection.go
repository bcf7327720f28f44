package graph

import (
	"github.com/ha1tch/friendgraph/pkg/models"
)

// NodeType is the canvas node renderer every projected node uses
const NodeType = "custom"

// Layout places nodes on a fixed grid by their ordinal index
type Layout struct {
	Columns     int
	ColumnWidth float64
	RowHeight   float64
}

// DefaultLayout is a 4 column grid with 250x200 cells
func DefaultLayout() Layout {
	return Layout{Columns: 4, ColumnWidth: 250, RowHeight: 200}
}

// Position returns the grid cell origin for the node at index
func (l Layout) Position(index int) models.Position {
	cols := l.Columns
	if cols < 1 {
		cols = 1
	}
	return models.Position{
		X: float64(index%cols) * l.ColumnWidth,
		Y: float64(index/cols) * l.RowHeight,
	}
}

// Projection is the renderable graph derived from the user list and the
// relation pairs
type Projection struct {
	Nodes []models.FlowNode `json:"nodes"`
	Edges []models.FlowEdge `json:"edges"`

	index    *Index
	position map[string]int // node id -> index into Nodes
}

// Project builds the node/edge graph. Nodes keep the order of users. Edges
// keep the first-seen order of pairs, one per unordered pair, with source
// and target in canonical order. Self pairs and pairs naming an unknown user
// are dropped. Project does not modify its inputs.
func Project(users []models.User, pairs []models.RelationPair, layout Layout) *Projection {
	p := &Projection{
		Nodes:    make([]models.FlowNode, 0, len(users)),
		Edges:    make([]models.FlowEdge, 0, len(pairs)),
		index:    NewIndex(),
		position: make(map[string]int, len(users)),
	}

	for i, u := range users {
		hobbies := make([]string, len(u.Hobbies))
		copy(hobbies, u.Hobbies)

		p.Nodes = append(p.Nodes, models.FlowNode{
			ID:       u.ID,
			Type:     NodeType,
			Position: layout.Position(i),
			Data: models.NodeData{
				Username:        u.Username,
				Age:             u.Age,
				PopularityScore: u.PopularityScore,
				Hobbies:         hobbies,
			},
		})
		p.position[u.ID] = i
		p.index.AddNode(u.ID)
	}

	for _, pair := range pairs {
		if !p.index.HasNode(pair.A) || !p.index.HasNode(pair.B) {
			continue
		}
		id, added := p.index.AddEdge(pair.A, pair.B)
		if !added {
			continue
		}
		source, target := Canonical(pair.A, pair.B)
		p.Edges = append(p.Edges, models.FlowEdge{
			ID:     id,
			Source: source,
			Target: target,
		})
	}

	return p
}

// Connected reports whether an edge joins a and b
func (p *Projection) Connected(a, b string) bool {
	return p.index.Connected(a, b)
}

// Neighbors returns the ids linked to id
func (p *Projection) Neighbors(id string) []string {
	return p.index.Neighbors(id)
}

// Degree returns the number of edges touching id
func (p *Projection) Degree(id string) int {
	return p.index.Degree(id)
}

// Node returns the projected node for id
func (p *Projection) Node(id string) (models.FlowNode, bool) {
	i, ok := p.position[id]
	if !ok {
		return models.FlowNode{}, false
	}
	return p.Nodes[i], true
}

// Move overrides a node position on this projection only. The next Project
// call starts again from the grid.
func (p *Projection) Move(id string, x, y float64) bool {
	i, ok := p.position[id]
	if !ok {
		return false
	}
	p.Nodes[i].Position = models.Position{X: x, Y: y}
	return true
}

// Empty returns a projection with no nodes
func Empty(layout Layout) *Projection {
	return Project(nil, nil, layout)
}
