package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getstubd/stubd/pkg/config"
	"github.com/getstubd/stubd/pkg/execution"
	"github.com/getstubd/stubd/pkg/scenario"
)

func adminRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	srv.adminHandler().ServeHTTP(rr, req)
	return rr
}

func starterScenario(name string, params ...scenario.Param) *scenario.Definition {
	return scenario.NewStarter(name, scenario.Func(func(r *scenario.Runner) error {
		return nil
	}), params...)
}

func TestAdmin_Status(t *testing.T) {
	srv := newTestServer(t, nil, echoScenario("echo"), starterScenario("heartbeat"))

	rr := adminRequest(t, srv, http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got statusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad status body: %v", err)
	}
	if got.Running {
		t.Error("server reported running before Start")
	}
	if got.Scenarios != 2 {
		t.Errorf("Scenarios = %d, want 2", got.Scenarios)
	}
}

func TestAdmin_Scenarios(t *testing.T) {
	srv := newTestServer(t, nil, echoScenario("echo"), starterScenario("heartbeat"))

	rr := adminRequest(t, srv, http.MethodGet, "/api/scenarios", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var names []string
	if err := json.Unmarshal(rr.Body.Bytes(), &names); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("names = %v, want both scenarios", names)
	}

	rr = adminRequest(t, srv, http.MethodGet, "/api/scenarios?kind=starter", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &names); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(names) != 1 || names[0] != "heartbeat" {
		t.Errorf("starter names = %v, want [heartbeat]", names)
	}
}

func TestAdmin_ScenarioParameters(t *testing.T) {
	srv := newTestServer(t, nil,
		starterScenario("heartbeat", scenario.Param{Name: "region", Value: "eu"}),
		echoScenario("echo"))

	rr := adminRequest(t, srv, http.MethodGet, "/api/scenarios/heartbeat/parameters", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var params []scenario.Param
	if err := json.Unmarshal(rr.Body.Bytes(), &params); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(params) != 1 || params[0].Name != "region" {
		t.Errorf("params = %+v", params)
	}

	// A scenario without parameters yields an empty array, not null.
	rr = adminRequest(t, srv, http.MethodGet, "/api/scenarios/echo/parameters", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}

	rr = adminRequest(t, srv, http.MethodGet, "/api/scenarios/ghost/parameters", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestAdmin_Launch(t *testing.T) {
	srv := newTestServer(t, nil,
		starterScenario("heartbeat", scenario.Param{Name: "region", Value: "eu"}),
		echoScenario("echo"))

	t.Run("accepted with empty body", func(t *testing.T) {
		rr := adminRequest(t, srv, http.MethodPost, "/api/scenarios/heartbeat/launch", "")
		if rr.Code != http.StatusAccepted {
			t.Fatalf("status = %d (body %s)", rr.Code, rr.Body.String())
		}
		var got launchResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if got.ExecutionID == 0 {
			t.Error("missing execution id")
		}
	})

	t.Run("accepted with parameters", func(t *testing.T) {
		rr := adminRequest(t, srv, http.MethodPost, "/api/scenarios/heartbeat/launch",
			`{"parameters":{"region":"us"}}`)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("status = %d (body %s)", rr.Code, rr.Body.String())
		}
	})

	t.Run("unknown scenario", func(t *testing.T) {
		rr := adminRequest(t, srv, http.MethodPost, "/api/scenarios/ghost/launch", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("reactive rejected", func(t *testing.T) {
		rr := adminRequest(t, srv, http.MethodPost, "/api/scenarios/echo/launch", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := adminRequest(t, srv, http.MethodPost, "/api/scenarios/heartbeat/launch", `{not json`)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})
}

func TestAdmin_Executions(t *testing.T) {
	srv := newTestServer(t, nil, starterScenario("heartbeat"))
	ctx := context.Background()

	id, err := srv.Launch(ctx, "heartbeat", nil)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	// Wait for the run to settle so the listing is deterministic.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := srv.Executions().Get(ctx, id)
		if err == nil && rec.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	rr := adminRequest(t, srv, http.MethodGet, "/api/executions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var records []*execution.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &records); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Errorf("records = %+v", records)
	}

	rr = adminRequest(t, srv, http.MethodGet, "/api/executions?scenario=other", "")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("filtered body = %q, want []", got)
	}

	rr = adminRequest(t, srv, http.MethodGet, "/api/executions?limit=nope", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a bad limit", rr.Code)
	}
}

func TestAdmin_Execution(t *testing.T) {
	srv := newTestServer(t, nil, starterScenario("heartbeat"))

	id, err := srv.Launch(context.Background(), "heartbeat", nil)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	rr := adminRequest(t, srv, http.MethodGet, "/api/executions/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var rec execution.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if rec.ID != id {
		t.Errorf("ID = %d, want %d", rec.ID, id)
	}

	rr = adminRequest(t, srv, http.MethodGet, "/api/executions/999", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}

	rr = adminRequest(t, srv, http.MethodGet, "/api/executions/abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAdmin_ExecutionReset(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		srv := newTestServer(t, nil, starterScenario("heartbeat"))
		rr := adminRequest(t, srv, http.MethodDelete, "/api/executions", "")
		if rr.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rr.Code)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.AllowExecutionReset = true
		srv := newTestServer(t, cfg, starterScenario("heartbeat"))

		if _, err := srv.Launch(context.Background(), "heartbeat", nil); err != nil {
			t.Fatalf("Launch failed: %v", err)
		}
		rr := adminRequest(t, srv, http.MethodDelete, "/api/executions", "")
		if rr.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rr.Code)
		}

		rr = adminRequest(t, srv, http.MethodGet, "/api/executions", "")
		if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
			t.Errorf("body after reset = %q, want []", got)
		}
	})
}
