package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ha1tch/friendgraph/pkg/apiclient"
	"github.com/ha1tch/friendgraph/pkg/backendstub"
	"github.com/ha1tch/friendgraph/pkg/config"
	"github.com/ha1tch/friendgraph/pkg/dashboard"
	"github.com/ha1tch/friendgraph/pkg/graph"
	"github.com/ha1tch/friendgraph/pkg/models"
	"github.com/ha1tch/friendgraph/pkg/notify"
	"github.com/ha1tch/friendgraph/pkg/server"
	"github.com/ha1tch/friendgraph/pkg/validation"
)

// TestServer holds test server instance and helpers
type TestServer struct {
	server  *server.Server
	ts      *httptest.Server
	backend *httptest.Server
	stub    *backendstub.Stub
	dash    *dashboard.Dashboard
	cfg     *config.Config
	t       *testing.T
}

// mutationResult mirrors the body of every mutation response
type mutationResult struct {
	Notice *notify.Notice `json:"notice"`
	User   *models.User   `json:"user"`
	Error  *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
	State dashboard.View `json:"state"`
}

// setupTestServer starts a backend stub and a dashboard server in front of it
func setupTestServer(t *testing.T) *TestServer {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	stub := backendstub.New(backendstub.Options{
		Codes:         true,
		SequentialIDs: true,
		Logger:        logger,
	})
	backend := httptest.NewServer(stub.Handler())

	cfg := config.Default()
	cfg.Host = "localhost"
	cfg.Port = 0
	cfg.BackendURL = backend.URL
	cfg.NoticeTTL = time.Minute
	cfg.BreakerMaxFailures = 100

	client := apiclient.New(apiclient.Options{
		BaseURL:     cfg.BackendURL,
		Timeout:     cfg.RequestTimeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
		Interval:    cfg.BreakerInterval,
		Logger:      logger,
	})
	dash := dashboard.New(client, dashboard.Options{
		Layout: graph.Layout{
			Columns:     cfg.GridColumns,
			ColumnWidth: cfg.ColumnWidth,
			RowHeight:   cfg.RowHeight,
		},
		Notices: notify.NewCenter(cfg.NoticeCapacity, cfg.NoticeTTL),
		Logger:  logger,
	})
	if err := dash.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv := server.New(cfg, dash, validation.New(), logger)
	ts := httptest.NewServer(srv.Handler())

	return &TestServer{
		server:  srv,
		ts:      ts,
		backend: backend,
		stub:    stub,
		dash:    dash,
		cfg:     cfg,
		t:       t,
	}
}

// cleanup stops both servers
func (ts *TestServer) cleanup() {
	ts.ts.Close()
	ts.backend.Close()
	ts.dash.Notices().Close()
}

// doRequest makes HTTP request and returns response
func (ts *TestServer) doRequest(method, path string, body interface{}) (*http.Response, []byte) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, ts.ts.URL+path, bytes.NewBuffer(bodyBytes))
	if err != nil {
		ts.t.Fatal(err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatal(err)
	}
	defer resp.Body.Close()

	respBody := &bytes.Buffer{}
	respBody.ReadFrom(resp.Body)

	return resp, respBody.Bytes()
}

// mutate makes a request and decodes a mutation response
func (ts *TestServer) mutate(method, path string, body interface{}, wantStatus int) mutationResult {
	ts.t.Helper()

	resp, raw := ts.doRequest(method, path, body)
	if resp.StatusCode != wantStatus {
		ts.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, wantStatus, resp.StatusCode, raw)
	}

	var result mutationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	return result
}

func (ts *TestServer) createUser(username string, hobbies ...string) string {
	ts.t.Helper()
	if len(hobbies) == 0 {
		hobbies = []string{"chess"}
	}
	result := ts.mutate("POST", "/api/v1/users", map[string]interface{}{
		"username": username,
		"age":      30,
		"hobbies":  hobbies,
	}, http.StatusOK)
	if result.User == nil {
		ts.t.Fatal("Expected user in response")
	}
	return result.User.ID
}

// TestHealthEndpoints tests health, version and metrics endpoints
func TestHealthEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	t.Run("GET /health", func(t *testing.T) {
		resp, body := ts.doRequest("GET", "/health", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}

		var result map[string]interface{}
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatal(err)
		}

		if result["status"] != "ok" {
			t.Errorf("Expected status ok, got %v", result["status"])
		}
	})

	t.Run("GET /version", func(t *testing.T) {
		resp, body := ts.doRequest("GET", "/version", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}

		var result map[string]interface{}
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatal(err)
		}

		if result["version"] != config.Version {
			t.Errorf("Expected version %s, got %v", config.Version, result["version"])
		}
	})

	t.Run("GET /metrics", func(t *testing.T) {
		resp, body := ts.doRequest("GET", "/metrics", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}
		if !strings.Contains(string(body), "friendgraph_http_requests_total") {
			t.Error("Expected request counter in metrics output")
		}
	})
}

// TestUserLifecycle tests create, update and delete through the dashboard
func TestUserLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	var id string

	t.Run("POST /api/v1/users - Create", func(t *testing.T) {
		result := ts.mutate("POST", "/api/v1/users", map[string]interface{}{
			"username": "ann",
			"age":      31,
			"hobbies":  []string{"chess", "go"},
		}, http.StatusOK)

		if result.Notice == nil || result.Notice.Level != notify.LevelSuccess {
			t.Fatalf("Expected success notice, got %+v", result.Notice)
		}
		if len(result.State.Users) != 1 || len(result.State.Nodes) != 1 {
			t.Fatalf("Expected one user and one node, got %+v", result.State)
		}
		id = result.User.ID
	})

	t.Run("POST /api/v1/users - Hobbies as text", func(t *testing.T) {
		result := ts.mutate("POST", "/api/v1/users", map[string]interface{}{
			"username":     "bob",
			"age":          40,
			"hobbies_text": "climbing, chess ,",
		}, http.StatusOK)

		hobbies := result.User.Hobbies
		if len(hobbies) != 2 || hobbies[0] != "climbing" || hobbies[1] != "chess" {
			t.Errorf("Expected parsed hobbies, got %v", hobbies)
		}
	})

	t.Run("PUT /api/v1/users/{id} - Update", func(t *testing.T) {
		result := ts.mutate("PUT", "/api/v1/users/"+id, map[string]interface{}{
			"age": 32,
		}, http.StatusOK)

		if result.User.Age != 32 {
			t.Errorf("Expected age 32, got %d", result.User.Age)
		}
		if result.User.Username != "ann" {
			t.Errorf("Expected username to be kept, got %s", result.User.Username)
		}
	})

	t.Run("PUT /api/v1/users/{id} - Unknown user", func(t *testing.T) {
		result := ts.mutate("PUT", "/api/v1/users/999", map[string]interface{}{
			"age": 32,
		}, http.StatusNotFound)

		if result.Error == nil || result.Error.Kind != "not_found" {
			t.Errorf("Expected not_found error, got %+v", result.Error)
		}
	})

	t.Run("DELETE /api/v1/users/{id} - Delete", func(t *testing.T) {
		result := ts.mutate("DELETE", "/api/v1/users/"+id, nil, http.StatusOK)

		for _, u := range result.State.Users {
			if u.ID == id {
				t.Error("Expected user to be gone")
			}
		}
	})
}

// TestFormValidation tests that invalid forms never reach the backend
func TestFormValidation(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"short username", map[string]interface{}{"username": "a", "age": 30, "hobbies": []string{"x"}}},
		{"age out of range", map[string]interface{}{"username": "ann", "age": 151, "hobbies": []string{"x"}}},
		{"no hobbies", map[string]interface{}{"username": "ann", "age": 30, "hobbies": []string{}}},
		{"blank hobbies text", map[string]interface{}{"username": "ann", "age": 30, "hobbies_text": " , "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ts.stub.Calls()
			resp, body := ts.doRequest("POST", "/api/v1/users", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d: %s", resp.StatusCode, body)
			}

			var result map[string]interface{}
			if err := json.Unmarshal(body, &result); err != nil {
				t.Fatal(err)
			}
			if result["error"] != "Validation failed" {
				t.Errorf("Expected validation failure, got %v", result)
			}
			if ts.stub.Calls() != calls {
				t.Error("Expected no backend call")
			}
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		req, _ := http.NewRequest("POST", ts.ts.URL+"/api/v1/users", strings.NewReader("{nope"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		ts.createUser("carol")
		result := ts.mutate("POST", "/api/v1/users", map[string]interface{}{
			"username": "carol",
			"age":      20,
			"hobbies":  []string{"x"},
		}, http.StatusBadRequest)
		if result.Error == nil || result.Error.Kind != "validation_rejected" {
			t.Errorf("Expected validation_rejected, got %+v", result.Error)
		}
	})
}

// TestFriendshipFlow tests link, relink, constrained delete and unlink
func TestFriendshipFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	a := ts.createUser("ann")
	b := ts.createUser("bob")
	link := map[string]string{"source": a, "target": b}

	t.Run("link", func(t *testing.T) {
		result := ts.mutate("POST", "/api/v1/links", link, http.StatusOK)
		if len(result.State.Edges) != 1 {
			t.Fatalf("Expected 1 edge, got %d", len(result.State.Edges))
		}
		e := result.State.Edges[0]
		if e.Source != "1" || e.Target != "2" {
			t.Errorf("Expected edge 1-2, got %s-%s", e.Source, e.Target)
		}
	})

	t.Run("relink is informational", func(t *testing.T) {
		calls := ts.stub.Calls()
		result := ts.mutate("POST", "/api/v1/links", map[string]string{"source": b, "target": a}, http.StatusOK)

		if result.Error == nil || result.Error.Kind != "conflict_rejected" {
			t.Fatalf("Expected conflict_rejected, got %+v", result.Error)
		}
		if result.Notice == nil || result.Notice.Level != notify.LevelInfo {
			t.Errorf("Expected info notice, got %+v", result.Notice)
		}
		if ts.stub.Calls() != calls {
			t.Error("Expected no backend call")
		}
		if len(result.State.Edges) != 1 {
			t.Errorf("Expected 1 edge, got %d", len(result.State.Edges))
		}
	})

	t.Run("self link", func(t *testing.T) {
		result := ts.mutate("POST", "/api/v1/links", map[string]string{"source": a, "target": a}, http.StatusBadRequest)
		if result.Error == nil || result.Error.Kind != "validation_rejected" {
			t.Errorf("Expected validation_rejected, got %+v", result.Error)
		}
	})

	t.Run("missing target", func(t *testing.T) {
		resp, _ := ts.doRequest("POST", "/api/v1/links", map[string]string{"source": a})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("delete linked user", func(t *testing.T) {
		result := ts.mutate("DELETE", "/api/v1/users/"+a, nil, http.StatusConflict)
		if result.Error == nil || result.Error.Kind != "constraint_rejected" {
			t.Fatalf("Expected constraint_rejected, got %+v", result.Error)
		}
		if len(result.State.Users) != 2 {
			t.Errorf("Expected both users to remain, got %d", len(result.State.Users))
		}
	})

	t.Run("unlink", func(t *testing.T) {
		result := ts.mutate("DELETE", "/api/v1/links", link, http.StatusOK)
		if len(result.State.Edges) != 0 {
			t.Errorf("Expected no edges, got %d", len(result.State.Edges))
		}
	})

	t.Run("unlink again", func(t *testing.T) {
		result := ts.mutate("DELETE", "/api/v1/links", link, http.StatusNotFound)
		if result.Error == nil || result.Error.Kind != "not_found" {
			t.Errorf("Expected not_found, got %+v", result.Error)
		}
	})

	t.Run("delete after unlink", func(t *testing.T) {
		ts.mutate("DELETE", "/api/v1/users/"+a, nil, http.StatusOK)
	})
}

// TestSelection tests focusing a user and editing its hobbies
func TestSelection(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	a := ts.createUser("ann", "chess")

	t.Run("select unknown", func(t *testing.T) {
		resp, _ := ts.doRequest("PUT", "/api/v1/selection", map[string]string{"id": "999"})
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("select", func(t *testing.T) {
		result := ts.mutate("PUT", "/api/v1/selection", map[string]string{"id": a}, http.StatusOK)
		if result.State.Selected == nil || result.State.Selected.ID != a {
			t.Fatalf("Expected %s selected, got %+v", a, result.State.Selected)
		}
	})

	t.Run("add tag to selected", func(t *testing.T) {
		result := ts.mutate("POST", "/api/v1/selection/tags", map[string]string{"tag": "go"}, http.StatusOK)
		hobbies := result.State.Selected.Hobbies
		if len(hobbies) != 2 || hobbies[1] != "go" {
			t.Errorf("Expected go added, got %v", hobbies)
		}
	})

	t.Run("remove tag from selected", func(t *testing.T) {
		result := ts.mutate("DELETE", "/api/v1/selection/tags/chess", nil, http.StatusOK)
		hobbies := result.State.Selected.Hobbies
		if len(hobbies) != 1 || hobbies[0] != "go" {
			t.Errorf("Expected only go, got %v", hobbies)
		}
	})

	t.Run("clear", func(t *testing.T) {
		result := ts.mutate("DELETE", "/api/v1/selection", nil, http.StatusOK)
		if result.State.Selected != nil {
			t.Errorf("Expected empty selection, got %+v", result.State.Selected)
		}
	})
}

// TestTags tests the hobby tag registry endpoints
func TestTags(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.createUser("ann", "chess")

	t.Run("add", func(t *testing.T) {
		result := ts.mutate("POST", "/api/v1/tags", map[string]string{"tag": "board games"}, http.StatusOK)
		if result.Notice == nil || result.Notice.Message != `Hobby "board games" added!` {
			t.Errorf("Expected add notice, got %+v", result.Notice)
		}
	})

	t.Run("add known is a no-op", func(t *testing.T) {
		result := ts.mutate("POST", "/api/v1/tags", map[string]string{"tag": "chess"}, http.StatusOK)
		if result.Notice != nil {
			t.Errorf("Expected no notice, got %+v", result.Notice)
		}
	})

	t.Run("search", func(t *testing.T) {
		resp, body := ts.doRequest("GET", "/api/v1/tags?search=BOARD", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		var result struct {
			Tags []string `json:"tags"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatal(err)
		}
		if len(result.Tags) != 1 || result.Tags[0] != "board games" {
			t.Errorf("Expected [board games], got %v", result.Tags)
		}
	})

	t.Run("remove", func(t *testing.T) {
		result := ts.mutate("DELETE", "/api/v1/tags/board%20games", nil, http.StatusOK)
		for _, tag := range result.State.Tags {
			if tag == "board games" {
				t.Error("Expected tag to be removed")
			}
		}
	})

	t.Run("remove tag containing percent", func(t *testing.T) {
		ts.mutate("POST", "/api/v1/tags", map[string]string{"tag": "100%"}, http.StatusOK)

		result := ts.mutate("DELETE", "/api/v1/tags/100%25", nil, http.StatusOK)
		if result.Notice == nil || result.Notice.Message != `Hobby "100%" removed!` {
			t.Errorf("Expected remove notice, got %+v", result.Notice)
		}
		for _, tag := range result.State.Tags {
			if tag == "100%" {
				t.Error("Expected 100% to be removed")
			}
		}
	})

	t.Run("remove removes only the named tag", func(t *testing.T) {
		ts.mutate("POST", "/api/v1/tags", map[string]string{"tag": "x%41"}, http.StatusOK)
		ts.mutate("POST", "/api/v1/tags", map[string]string{"tag": "xA"}, http.StatusOK)

		result := ts.mutate("DELETE", "/api/v1/tags/x%2541", nil, http.StatusOK)
		has := make(map[string]bool)
		for _, tag := range result.State.Tags {
			has[tag] = true
		}
		if has["x%41"] {
			t.Error("Expected x%41 to be removed")
		}
		if !has["xA"] {
			t.Errorf("Expected xA to be kept, got %v", result.State.Tags)
		}

		result = ts.mutate("DELETE", "/api/v1/tags/x%41", nil, http.StatusOK)
		for _, tag := range result.State.Tags {
			if tag == "xA" {
				t.Error("Expected xA to be removed")
			}
		}
	})

	t.Run("remove escaped slash", func(t *testing.T) {
		ts.mutate("POST", "/api/v1/tags", map[string]string{"tag": "arts/crafts"}, http.StatusOK)

		result := ts.mutate("DELETE", "/api/v1/tags/arts%2Fcrafts", nil, http.StatusOK)
		for _, tag := range result.State.Tags {
			if tag == "arts/crafts" {
				t.Error("Expected arts/crafts to be removed")
			}
		}
	})

	t.Run("remove selected user's tag containing percent", func(t *testing.T) {
		id := ts.createUser("pat", "chess", "50%")
		ts.mutate("PUT", "/api/v1/selection", map[string]string{"id": id}, http.StatusOK)

		result := ts.mutate("DELETE", "/api/v1/selection/tags/50%25", nil, http.StatusOK)
		if result.State.Selected == nil {
			t.Fatal("Expected a selected user")
		}
		if got := result.State.Selected.Hobbies; len(got) != 1 || got[0] != "chess" {
			t.Errorf("Expected [chess], got %v", got)
		}
	})

	t.Run("empty tag", func(t *testing.T) {
		resp, _ := ts.doRequest("POST", "/api/v1/tags", map[string]string{"tag": "  "})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})
}

// TestMoveNode tests dragging nodes on the canvas
func TestMoveNode(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	a := ts.createUser("ann")

	result := ts.mutate("PUT", "/api/v1/nodes/"+a+"/position", map[string]float64{"x": 12, "y": 34}, http.StatusOK)
	if p := result.State.Nodes[0].Position; p.X != 12 || p.Y != 34 {
		t.Errorf("Expected (12,34), got %+v", p)
	}

	resp, _ := ts.doRequest("PUT", "/api/v1/nodes/999/position", map[string]float64{"x": 1, "y": 1})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}

	resp, _ = ts.doRequest("PUT", "/api/v1/nodes/"+a+"/position", map[string]float64{"x": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}

	result = ts.mutate("POST", "/api/v1/refresh", nil, http.StatusOK)
	if p := result.State.Nodes[0].Position; p.X != 0 || p.Y != 0 {
		t.Errorf("Expected grid position after refresh, got %+v", p)
	}
}

// TestNotices tests listing and dismissing notices
func TestNotices(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.createUser("ann")

	resp, body := ts.doRequest("GET", "/api/v1/notices", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Notices []notify.Notice `json:"notices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Notices) != 1 {
		t.Fatalf("Expected 1 notice, got %d", len(result.Notices))
	}

	id := result.Notices[0].ID
	resp, body = ts.doRequest("GET", "/api/v1/notices/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var notice notify.Notice
	if err := json.Unmarshal(body, &notice); err != nil {
		t.Fatal(err)
	}
	if notice.ID != id || notice.Level != notify.LevelSuccess {
		t.Errorf("Expected success notice %s, got %+v", id, notice)
	}

	resp, _ = ts.doRequest("DELETE", "/api/v1/notices/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	resp, _ = ts.doRequest("DELETE", "/api/v1/notices/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
	resp, _ = ts.doRequest("GET", "/api/v1/notices/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for dismissed notice, got %d", resp.StatusCode)
	}
}

// TestBackendUnavailable tests that a failing backend keeps the last state
func TestBackendUnavailable(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ts.createUser("ann")
	ts.stub.SetFailing(true)

	result := ts.mutate("POST", "/api/v1/refresh", nil, http.StatusBadGateway)
	if result.Error == nil || result.Error.Kind != "fetch_error" {
		t.Fatalf("Expected fetch_error, got %+v", result.Error)
	}
	if result.Notice == nil || result.Notice.Message != "Failed to fetch users" {
		t.Errorf("Expected fetch notice, got %+v", result.Notice)
	}
	if len(result.State.Users) != 1 {
		t.Errorf("Expected previous users to be kept, got %d", len(result.State.Users))
	}

	result = ts.mutate("POST", "/api/v1/users", map[string]interface{}{
		"username": "bob",
		"age":      30,
		"hobbies":  []string{"x"},
	}, http.StatusBadGateway)
	if result.Error.Message != "Failed to create user" {
		t.Errorf("Expected create failure message, got %s", result.Error.Message)
	}

	// a successful refresh reports no notice even with older ones active
	ts.stub.SetFailing(false)
	result = ts.mutate("POST", "/api/v1/refresh", nil, http.StatusOK)
	if result.Notice != nil {
		t.Errorf("Expected no notice, got %+v", result.Notice)
	}
	if len(result.State.Notices) == 0 {
		t.Error("Expected earlier failure notices to remain active")
	}
}

// TestCORS tests that configured origins pass preflight
func TestCORS(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	req, _ := http.NewRequest("OPTIONS", ts.ts.URL+"/api/v1/users", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Expected allowed origin, got %q", got)
	}
}
