package cli

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminClient_Get(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/scenarios" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["echo","orders"]`))
	}))
	defer ts.Close()

	var names []string
	if err := newAdminClient(ts.URL).get("/api/scenarios", &names); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(names) != 2 || names[0] != "echo" {
		t.Errorf("names = %v", names)
	}
}

func TestAdminClient_Post(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"executionId":7}`))
	}))
	defer ts.Close()

	var out struct {
		ExecutionID int64 `json:"executionId"`
	}
	err := newAdminClient(ts.URL).post("/api/scenarios/heartbeat/launch",
		map[string]any{"parameters": map[string]string{}}, &out)
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if out.ExecutionID != 7 {
		t.Errorf("ExecutionID = %d, want 7", out.ExecutionID)
	}
}

func TestAdminClient_ErrorBodies(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{
			name:    "structured error with detail",
			status:  http.StatusNotFound,
			body:    `{"error":"scenario not found","detail":"no scenario named ghost"}`,
			wantSub: "no scenario named ghost",
		},
		{
			name:    "structured error without detail",
			status:  http.StatusForbidden,
			body:    `{"error":"execution reset disabled"}`,
			wantSub: "execution reset disabled",
		},
		{
			name:    "unstructured error",
			status:  http.StatusBadGateway,
			body:    "gateway exploded",
			wantSub: "502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			err := newAdminClient(ts.URL).get("/anything", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestAdminClient_Unreachable(t *testing.T) {
	err := newAdminClient("http://127.0.0.1:1").get("/api/status", nil)
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("error = %v, want unreachable", err)
	}
}
