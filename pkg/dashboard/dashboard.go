// Package dashboard orchestrates user and friendship mutations against the
// backend and keeps the derived views (store, graph, selection, notices)
// consistent after each one.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ha1tch/friendgraph/pkg/apiclient"
	"github.com/ha1tch/friendgraph/pkg/graph"
	"github.com/ha1tch/friendgraph/pkg/metrics"
	"github.com/ha1tch/friendgraph/pkg/models"
	"github.com/ha1tch/friendgraph/pkg/notify"
	"github.com/ha1tch/friendgraph/pkg/selection"
	"github.com/ha1tch/friendgraph/pkg/store"
)

// Options configures a Dashboard
type Options struct {
	Layout  graph.Layout
	Notices *notify.Center
	Logger  zerolog.Logger
}

// Outcome is what an operation reports back. Notice is the notice pushed
// for the operation itself, if any. User is the record returned by a create
// or update.
type Outcome struct {
	Notice *notify.Notice `json:"notice,omitempty"`
	User   *models.User   `json:"user,omitempty"`
}

// View is a consistent snapshot of everything the dashboard renders
type View struct {
	Users    []models.User     `json:"users"`
	Tags     []string          `json:"tags"`
	Nodes    []models.FlowNode `json:"nodes"`
	Edges    []models.FlowEdge `json:"edges"`
	Selected *models.User      `json:"selected"`
	Notices  []notify.Notice   `json:"notices"`
}

// Dashboard owns the client-side state of the friendship graph UI
type Dashboard struct {
	backend   apiclient.Backend
	store     *store.EntityStore
	selection *selection.Tracker
	notices   *notify.Center
	layout    graph.Layout
	logger    zerolog.Logger

	mu sync.Mutex // serializes operations

	viewMu     sync.RWMutex
	projection *graph.Projection
}

// New creates a dashboard over backend. Nothing is fetched until Load.
func New(backend apiclient.Backend, opts Options) *Dashboard {
	layout := opts.Layout
	if layout.Columns <= 0 {
		layout = graph.DefaultLayout()
	}
	notices := opts.Notices
	if notices == nil {
		notices = notify.NewCenter(64, 5*time.Second)
	}

	return &Dashboard{
		backend:    backend,
		store:      store.New(backend),
		selection:  selection.New(),
		notices:    notices,
		layout:     layout,
		logger:     opts.Logger,
		projection: graph.Empty(layout),
	}
}

// Notices returns the notice center
func (d *Dashboard) Notices() *notify.Center {
	return d.notices
}

// Load performs the initial fetch
func (d *Dashboard) Load(ctx context.Context) error {
	_, err := d.reload(ctx, OpLoad)
	return err
}

// Refresh refetches users and the graph. On failure the previous views
// stay in place and the outcome carries the failure notice.
func (d *Dashboard) Refresh(ctx context.Context) (Outcome, error) {
	return d.reload(ctx, OpRefresh)
}

func (d *Dashboard) reload(ctx context.Context, op string) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.refreshLocked(ctx); err != nil {
		n, cerr := d.fail(op, err)
		return Outcome{Notice: n}, cerr
	}
	d.reconcile()
	d.logger.Debug().Str("op", op).Int("users", d.store.Len()).Msg("Views refreshed")
	return Outcome{}, nil
}

// refreshLocked reloads the store, then the projection. A failed user fetch
// leaves everything untouched. A failed graph fetch falls back to the
// store's friend lists.
func (d *Dashboard) refreshLocked(ctx context.Context) error {
	if err := d.store.Refresh(ctx); err != nil {
		metrics.RefreshTotal.WithLabelValues("users", "error").Inc()
		return err
	}
	metrics.RefreshTotal.WithLabelValues("users", "ok").Inc()

	var pairs []models.RelationPair
	data, err := d.backend.GetGraph(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("graph", "error").Inc()
		d.logger.Warn().Err(err).Msg("Graph refresh failed, using friend lists")
		pairs = d.store.Relations()
	} else {
		metrics.RefreshTotal.WithLabelValues("graph", "ok").Inc()
		pairs = data.Pairs()
	}

	p := graph.Project(d.store.Users(), pairs, d.layout)

	d.viewMu.Lock()
	d.projection = p
	d.viewMu.Unlock()

	metrics.Users.Set(float64(len(p.Nodes)))
	metrics.Edges.Set(float64(len(p.Edges)))
	return nil
}

// settleLocked runs after a successful mutation: refresh, apply the
// selection policy, push the success notice. A failed refresh follows as its
// own notice; the mutation itself stays successful.
func (d *Dashboard) settleLocked(ctx context.Context, op, message string, reselect func()) *notify.Notice {
	err := d.refreshLocked(ctx)
	reselect()
	n := d.succeed(op, message)
	if err != nil {
		d.fail(OpRefresh, err)
	}
	return n
}

func (d *Dashboard) reconcile() {
	d.selection.Reconcile(d.store)
}

// succeed records a successful mutation
func (d *Dashboard) succeed(op, message string) *notify.Notice {
	metrics.MutationsTotal.WithLabelValues(op, "success").Inc()
	d.logger.Info().Str("op", op).Msg(message)
	n := d.notices.Success(message)
	return &n
}

// fail classifies err, pushes its notice and returns both
func (d *Dashboard) fail(op string, err error) (*notify.Notice, error) {
	e := Classify(op, err)
	metrics.MutationsTotal.WithLabelValues(op, e.Kind.String()).Inc()

	level := notify.LevelError
	if e.Kind == ConflictRejected {
		level = notify.LevelInfo
		d.logger.Info().Str("op", op).Str("kind", e.Kind.String()).Msg(e.Message)
	} else {
		d.logger.Warn().Str("op", op).Str("kind", e.Kind.String()).Err(e.Err).Msg(e.Message)
	}

	n := d.notices.Push(level, e.Message, e.Kind.String())
	return &n, e
}

// CreateUser creates a user. in is assumed to be validated.
func (d *Dashboard) CreateUser(ctx context.Context, in models.UserCreate) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, err := d.backend.CreateUser(ctx, in)
	if err != nil {
		n, cerr := d.fail(OpCreate, err)
		return Outcome{Notice: n}, cerr
	}

	n := d.settleLocked(ctx, OpCreate, fmt.Sprintf("User %s created successfully!", user.Username), d.reconcile)
	return Outcome{Notice: n, User: user}, nil
}

// UpdateUser applies a partial update to user id
func (d *Dashboard) UpdateUser(ctx context.Context, id string, in models.UserUpdate) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.updateLocked(ctx, id, in)
}

func (d *Dashboard) updateLocked(ctx context.Context, id string, in models.UserUpdate) (Outcome, error) {
	user, err := d.backend.UpdateUser(ctx, id, in)
	if err != nil {
		n, cerr := d.fail(OpUpdate, err)
		return Outcome{Notice: n}, cerr
	}

	n := d.settleLocked(ctx, OpUpdate, fmt.Sprintf("User %s updated successfully!", user.Username), d.reconcile)
	return Outcome{Notice: n, User: user}, nil
}

// DeleteUser deletes user id. The backend refuses while the user still has
// friends.
func (d *Dashboard) DeleteUser(ctx context.Context, id string) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := id
	if u, ok := d.store.FindByID(id); ok {
		name = u.Username
	}

	if err := d.backend.DeleteUser(ctx, id); err != nil {
		n, cerr := d.fail(OpDelete, err)
		return Outcome{Notice: n}, cerr
	}

	n := d.settleLocked(ctx, OpDelete, fmt.Sprintf("User %s deleted successfully!", name), func() {
		if d.selection.Is(id) {
			d.selection.Clear()
		}
		d.reconcile()
	})
	return Outcome{Notice: n}, nil
}

// Link connects source and target. A pair that is already linked in the
// current graph is rejected without calling the backend.
func (d *Dashboard) Link(ctx context.Context, source, target string) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if source == target {
		n, err := d.fail(OpLink, &Error{
			Kind:    ValidationRejected,
			Op:      OpLink,
			Message: "Cannot link user to themselves",
			Err:     ErrSelfLink,
		})
		return Outcome{Notice: n}, err
	}
	if d.currentProjection().Connected(source, target) {
		n, err := d.fail(OpLink, &Error{
			Kind:    ConflictRejected,
			Op:      OpLink,
			Message: msgAlreadyFriends,
			Err:     ErrAlreadyLinked,
		})
		return Outcome{Notice: n}, err
	}

	if err := d.backend.LinkUsers(ctx, source, target); err != nil {
		n, cerr := d.fail(OpLink, err)
		return Outcome{Notice: n}, cerr
	}

	message := fmt.Sprintf("%s and %s are now friends!", d.name(source), d.name(target))
	n := d.settleLocked(ctx, OpLink, message, d.reconcile)
	return Outcome{Notice: n}, nil
}

// Unlink removes the friendship between source and target. If either side
// was selected, selection moves to source.
func (d *Dashboard) Unlink(ctx context.Context, source, target string) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.backend.UnlinkUsers(ctx, source, target); err != nil {
		n, cerr := d.fail(OpUnlink, err)
		return Outcome{Notice: n}, cerr
	}

	touched := d.selection.Is(source) || d.selection.Is(target)
	message := fmt.Sprintf("%s and %s are no longer friends", d.name(source), d.name(target))
	n := d.settleLocked(ctx, OpUnlink, message, func() {
		if touched {
			d.selection.Select(source, d.store)
			return
		}
		d.reconcile()
	})
	return Outcome{Notice: n}, nil
}

// Select focuses user id. Unknown ids empty the selection.
func (d *Dashboard) Select(id string) (models.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection.Select(id, d.store)
}

// ClearSelection empties the selection
func (d *Dashboard) ClearSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection.Clear()
}

// Selected returns the live record of the selected user
func (d *Dashboard) Selected() (models.User, bool) {
	return d.selection.Current(d.store)
}

// AddTag registers a hobby tag that no user needs to hold yet
func (d *Dashboard) AddTag(tag string) (Outcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.store.AddLocalTag(tag) {
		return Outcome{}, false
	}
	n := d.notices.Info(fmt.Sprintf("Hobby %q added!", tag))
	return Outcome{Notice: &n}, true
}

// RemoveTag drops a hobby tag from the registry
func (d *Dashboard) RemoveTag(tag string) (Outcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.store.RemoveLocalTag(tag) {
		return Outcome{}, false
	}
	n := d.notices.Info(fmt.Sprintf("Hobby %q removed!", tag))
	return Outcome{Notice: &n}, true
}

// AddTagToSelected gives the selected user a hobby. It does nothing when no
// user is selected or the user already has it.
func (d *Dashboard) AddTagToSelected(ctx context.Context, tag string) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.selection.Current(d.store)
	if !ok || tag == "" || cur.HasHobby(tag) {
		return Outcome{}, nil
	}
	hobbies := append(cur.Hobbies, tag)
	return d.updateLocked(ctx, cur.ID, models.UserUpdate{Hobbies: hobbies})
}

// RemoveTagFromSelected takes a hobby away from the selected user. It does
// nothing when no user is selected or the user does not have it.
func (d *Dashboard) RemoveTagFromSelected(ctx context.Context, tag string) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.selection.Current(d.store)
	if !ok || !cur.HasHobby(tag) {
		return Outcome{}, nil
	}
	hobbies := make([]string, 0, len(cur.Hobbies))
	for _, h := range cur.Hobbies {
		if h != tag {
			hobbies = append(hobbies, h)
		}
	}
	return d.updateLocked(ctx, cur.ID, models.UserUpdate{Hobbies: hobbies})
}

// MoveNode drags a node. The position is lost on the next refresh.
func (d *Dashboard) MoveNode(id string, x, y float64) bool {
	d.viewMu.Lock()
	defer d.viewMu.Unlock()
	return d.projection.Move(id, x, y)
}

// SearchTags returns registered tags matching term
func (d *Dashboard) SearchTags(term string) []string {
	return d.store.SearchTags(term)
}

// Connected reports whether a and b are linked in the current graph
func (d *Dashboard) Connected(a, b string) bool {
	return d.currentProjection().Connected(a, b)
}

// View returns a snapshot of the current state
func (d *Dashboard) View() View {
	d.viewMu.RLock()
	nodes := append([]models.FlowNode{}, d.projection.Nodes...)
	edges := append([]models.FlowEdge{}, d.projection.Edges...)
	d.viewMu.RUnlock()

	v := View{
		Users:   d.store.Users(),
		Tags:    d.store.Tags(),
		Nodes:   nodes,
		Edges:   edges,
		Notices: d.notices.List(),
	}
	if u, ok := d.selection.Current(d.store); ok {
		v.Selected = &u
	}
	return v
}

func (d *Dashboard) currentProjection() *graph.Projection {
	d.viewMu.RLock()
	defer d.viewMu.RUnlock()
	return d.projection
}

func (d *Dashboard) name(id string) string {
	if u, ok := d.store.FindByID(id); ok {
		return u.Username
	}
	return id
}
