package selection

import (
	"testing"

	"github.com/ha1tch/friendgraph/pkg/models"
)

type mapResolver map[string]models.User

func (m mapResolver) FindByID(id string) (models.User, bool) {
	u, ok := m[id]
	return u, ok
}

func TestSelect(t *testing.T) {
	r := mapResolver{"1": {ID: "1", Username: "Ann"}}

	t.Run("known id focuses", func(t *testing.T) {
		tr := New()
		u, ok := tr.Select("1", r)
		if !ok || u.Username != "Ann" {
			t.Fatalf("expected Ann, got %+v (ok=%v)", u, ok)
		}
		if tr.State() != Focused {
			t.Errorf("expected focused, got %s", tr.State())
		}
	})

	t.Run("unknown id empties", func(t *testing.T) {
		tr := New()
		tr.Select("1", r)
		if _, ok := tr.Select("2", r); ok {
			t.Fatal("expected unknown id not to resolve")
		}
		if tr.State() != Empty {
			t.Errorf("expected empty, got %s", tr.State())
		}
	})

	t.Run("blank id empties", func(t *testing.T) {
		tr := New()
		tr.Select("", mapResolver{"": {}})
		if tr.State() != Empty {
			t.Errorf("expected empty, got %s", tr.State())
		}
	})
}

func TestClear(t *testing.T) {
	tr := New()
	tr.Select("1", mapResolver{"1": {ID: "1"}})
	tr.Clear()
	if tr.State() != Empty || tr.ID() != "" {
		t.Errorf("expected empty after clear, got %s %q", tr.State(), tr.ID())
	}
}

func TestReconcile(t *testing.T) {
	t.Run("removed entity empties selection", func(t *testing.T) {
		tr := New()
		tr.Select("1", mapResolver{"1": {ID: "1"}})

		if _, ok := tr.Reconcile(mapResolver{"2": {ID: "2"}}); ok {
			t.Fatal("expected reconcile to report no selection")
		}
		if tr.State() != Empty {
			t.Errorf("expected empty, got %s", tr.State())
		}
	})

	t.Run("changed attributes are picked up", func(t *testing.T) {
		tr := New()
		tr.Select("1", mapResolver{"1": {ID: "1", Username: "Ann", Age: 30}})

		u, ok := tr.Reconcile(mapResolver{"1": {ID: "1", Username: "Annie", Age: 31}})
		if !ok {
			t.Fatal("expected selection to survive")
		}
		if u.Username != "Annie" || u.Age != 31 {
			t.Errorf("expected refreshed record, got %+v", u)
		}
		cur, _ := tr.Current(mapResolver{"1": {ID: "1", Username: "Annie"}})
		if cur.Username != "Annie" {
			t.Errorf("expected current to resolve live record, got %+v", cur)
		}
	})

	t.Run("empty stays empty", func(t *testing.T) {
		tr := New()
		if _, ok := tr.Reconcile(mapResolver{"1": {ID: "1"}}); ok {
			t.Fatal("expected empty tracker to stay empty")
		}
	})
}
