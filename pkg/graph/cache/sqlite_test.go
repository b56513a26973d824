package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensase/upo/pkg/adapters"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testConfig(fingerprint, target string) *adapters.CompiledConfig {
	return &adapters.CompiledConfig{
		Target:        target,
		PolicyName:    "branch-baseline",
		PolicyVersion: "1.0",
		Fingerprint:   fingerprint,
		Documents: []adapters.Document{
			{Name: "main", Kind: "ruleset", Items: []adapters.Item{
				{Resource: "vlan", Name: "hq", Content: map[string]any{"tag": float64(10)}},
			}},
		},
	}
}

func TestCache_MissThenHit(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "fp1", "opnsense"); ok {
		t.Fatal("empty cache must miss")
	}

	want := testConfig("fp1", "opnsense")
	if err := c.Put(ctx, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(ctx, "fp1", "opnsense")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got.Target != "opnsense" || got.Fingerprint != "fp1" {
		t.Errorf("got %+v", got)
	}
	if len(got.Items()) != 1 || got.Items()[0].Name != "hq" {
		t.Errorf("items not round-tripped: %+v", got.Items())
	}
}

func TestCache_KeyedByFingerprintAndTarget(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, testConfig("fp1", "opnsense")); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(ctx, "fp1", "ziti"); ok {
		t.Error("different target must miss")
	}
	if _, ok := c.Get(ctx, "fp2", "opnsense"); ok {
		t.Error("different fingerprint must miss")
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	first := testConfig("fp1", "opnsense")
	if err := c.Put(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := testConfig("fp1", "opnsense")
	second.PolicyVersion = "2.0"
	if err := c.Put(ctx, second); err != nil {
		t.Fatalf("overwrite must not error: %v", err)
	}

	got, ok := c.Get(ctx, "fp1", "opnsense")
	if !ok || got.PolicyVersion != "2.0" {
		t.Errorf("expected overwritten entry, got %+v", got)
	}
}

func TestCache_Purge(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, testConfig("fp1", "opnsense")); err != nil {
		t.Fatal(err)
	}

	n, err := c.Purge(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged entry, got %d", n)
	}
	if _, ok := c.Get(ctx, "fp1", "opnsense"); ok {
		t.Error("purged entry must miss")
	}
}
