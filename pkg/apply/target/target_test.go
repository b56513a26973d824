package target

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensase/upo/pkg/adapters"
)

func TestCanonicalContent_KeyOrderIndependent(t *testing.T) {
	a, err := CanonicalContent(map[string]any{"tag": 10, "parent": "eth2"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := CanonicalContent(map[string]any{"parent": "eth2", "tag": 10})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("canonical forms differ: %s vs %s", a, b)
	}
}

func TestStateFromItems(t *testing.T) {
	s, err := StateFromItems([]adapters.Item{
		{Resource: "vlan", Name: "hq", Content: map[string]any{"tag": 10}},
	})
	if err != nil {
		t.Fatalf("StateFromItems() error = %v", err)
	}
	if _, ok := s.Items["vlan/hq"]; !ok {
		t.Errorf("expected key vlan/hq, got %v", s.Items)
	}
}

func TestNewHTTPClient_Validation(t *testing.T) {
	if _, err := NewHTTPClient(HTTPClientConfig{BaseURL: "http://x"}); err == nil {
		t.Error("empty name must fail")
	}
	if _, err := NewHTTPClient(HTTPClientConfig{Name: "opnsense"}); err == nil {
		t.Error("empty base URL must fail")
	}
}

func TestHTTPClient_ReadState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config/state" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fw-key" {
			t.Errorf("authorization header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": map[string]string{"vlan/hq": `{"tag":10}`},
		})
	}))
	defer srv.Close()

	client, err := NewHTTPClient(HTTPClientConfig{Name: "opnsense", BaseURL: srv.URL, APIKey: "fw-key"})
	if err != nil {
		t.Fatal(err)
	}

	state, err := client.ReadState(context.Background())
	if err != nil {
		t.Fatalf("ReadState() error = %v", err)
	}
	if state.Items["vlan/hq"] != `{"tag":10}` {
		t.Errorf("state = %v", state.Items)
	}
}

func TestHTTPClient_ReadStateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := NewHTTPClient(HTTPClientConfig{Name: "ziti", BaseURL: srv.URL})
	if _, err := client.ReadState(context.Background()); err == nil {
		t.Fatal("non-200 status must fail the read")
	}
}

func TestHTTPClient_ApplyMethods(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, _ := NewHTTPClient(HTTPClientConfig{Name: "ziti", BaseURL: srv.URL})

	tests := []struct {
		kind       adapters.OpKind
		wantMethod string
	}{
		{adapters.OpAdd, http.MethodPost},
		{adapters.OpModify, http.MethodPut},
		{adapters.OpRemove, http.MethodDelete},
	}
	for _, tt := range tests {
		op := Operation{Kind: tt.kind, Resource: "service", Name: "saas-crm"}
		if err := client.Apply(context.Background(), op); err != nil {
			t.Fatalf("Apply(%s) error = %v", tt.kind, err)
		}
		if gotMethod != tt.wantMethod {
			t.Errorf("Apply(%s) method = %s, want %s", tt.kind, gotMethod, tt.wantMethod)
		}
		if gotPath != "/config/items/service/saas-crm" {
			t.Errorf("Apply(%s) path = %s", tt.kind, gotPath)
		}
	}

	if err := client.Apply(context.Background(), Operation{Kind: "replace"}); err == nil {
		t.Error("unknown kind must fail")
	}
}

func TestMemoryClient_FailOn(t *testing.T) {
	m := NewMemoryClient("opnsense")
	m.FailOn["vlan/hq"] = context.DeadlineExceeded

	err := m.Apply(context.Background(), Operation{
		Kind: adapters.OpAdd, Resource: "vlan", Name: "hq", Content: map[string]any{"tag": 10},
	})
	if err == nil {
		t.Fatal("expected injected failure")
	}
	if len(m.Applied()) != 0 {
		t.Error("failed operation must not be recorded as applied")
	}
}
