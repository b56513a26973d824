package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewCollector_Disabled(t *testing.T) {
	c := NewCollector(Config{Enabled: false}, nil)
	if c.Compiler() != nil || c.Apply() != nil {
		t.Error("disabled collector must not create metric sets")
	}
}

func TestNewCollector_Defaults(t *testing.T) {
	c := NewCollector(Config{Enabled: true}, nil)
	if c.config.Namespace != "upo" {
		t.Errorf("namespace default = %q", c.config.Namespace)
	}
	if c.Compiler() == nil || c.Apply() == nil {
		t.Fatal("enabled collector must create metric sets")
	}
}

func TestMetrics_Exposition(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(Config{Enabled: true}, registry)

	c.Compiler().RecordCompile("opnsense", "success", 3*time.Millisecond)
	c.Compiler().RecordGap("ziti", "basic")
	c.Compiler().SetResolvedRules(7)
	c.Apply().CountOperation("flexiwan", "add", "applied")
	c.Apply().ObserveDuration("flexiwan", 120*time.Millisecond)
	c.Apply().RecordRun("partial")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"upo_compile_total",
		"upo_capability_gaps_total",
		"upo_compile_rules 7",
		"upo_apply_operations_total",
		"upo_apply_runs_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Two collectors on fresh registries must not collide.
	a := NewCollector(Config{Enabled: true}, nil)
	b := NewCollector(Config{Enabled: true}, nil)
	if a.Registry() == b.Registry() {
		t.Error("collectors share a registry")
	}
}
