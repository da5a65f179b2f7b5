package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vietddude/partners/internal/core/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *MemoryBackend, *fakeClock) {
	t.Helper()
	backend := NewMemoryBackend(0)
	t.Cleanup(func() { _ = backend.Close() })
	clock := newFakeClock()
	c := New(backend, Config{TTL: ttl, Tier: "test", Clock: clock.Now})
	return c, backend, clock
}

func exists(t *testing.T, b Backend, key string) bool {
	t.Helper()
	_, ok, err := b.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("backend get: %v", err)
	}
	return ok
}

func TestCache_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	c, backend, clock := newTestCache(t, 60*time.Second)

	if _, err := Put(ctx, c, "k", map[string]int{"v": 1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	clock.Advance(59999 * time.Millisecond)
	if _, _, ok := Get[map[string]int](ctx, c, "k"); !ok {
		t.Fatal("expected hit at t=59999ms")
	}

	clock.Advance(1 * time.Millisecond)
	if _, _, ok := Get[map[string]int](ctx, c, "k"); !ok {
		t.Fatal("expected hit at t=60000ms (not yet past expiresAt)")
	}

	clock.Advance(1 * time.Millisecond)
	if _, _, ok := Get[map[string]int](ctx, c, "k"); ok {
		t.Fatal("expected miss at t=60001ms")
	}
	if exists(t, backend, "k") {
		t.Error("expired key still present in storage")
	}
}

func TestCache_ExpiredOneMillisecondPastTTL(t *testing.T) {
	ctx := context.Background()
	ttl := 5 * time.Minute
	c, backend, clock := newTestCache(t, ttl)

	if _, err := c.Store(ctx, "sheets_meta:s1", domain.SheetMeta{Sheets: []domain.SheetTab{{ID: 1, Title: "A"}}}); err != nil {
		t.Fatalf("store: %v", err)
	}
	clock.Advance(ttl + time.Millisecond)

	if _, ok := c.Lookup(ctx, "sheets_meta:s1"); ok {
		t.Fatal("expected miss after TTL")
	}
	if exists(t, backend, "sheets_meta:s1") {
		t.Error("expired key not deleted on read")
	}
}

func TestCache_OverwriteDoesNotMerge(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCache(t, time.Minute)

	first := map[string]string{"a": "1", "b": "2"}
	second := map[string]string{"c": "3"}

	if _, err := Put(ctx, c, "k", first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	clock.Advance(time.Second)
	env2, err := Put(ctx, c, "k", second)
	if err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, env, ok := Get[map[string]string](ctx, c, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if env.UpdatedAt != env2.UpdatedAt {
		t.Errorf("expected updatedAt of second write, got %d want %d", env.UpdatedAt, env2.UpdatedAt)
	}
	if env.ExpiresAt-env.UpdatedAt != time.Minute.Milliseconds() {
		t.Errorf("expiresAt must be updatedAt + TTL, got %d", env.ExpiresAt-env.UpdatedAt)
	}
}

func TestCache_CorruptEntriesAreMisses(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestCache(t, time.Minute)

	tests := map[string][]byte{
		"not-json":    []byte("{{{"),
		"no-data":     []byte(`{"updatedAt":1,"expiresAt":2}`),
		"null-data":   []byte(`{"data":null,"updatedAt":1,"expiresAt":2}`),
		"no-times":    []byte(`{"data":{"x":1}}`),
		"inverted":    []byte(`{"data":{"x":1},"updatedAt":10,"expiresAt":5}`),
		"wrong-shape": []byte(`[1,2,3]`),
	}
	for key, raw := range tests {
		t.Run(key, func(t *testing.T) {
			if err := backend.Set(ctx, key, raw, 0); err != nil {
				t.Fatalf("seed: %v", err)
			}
			if _, ok := c.Lookup(ctx, key); ok {
				t.Fatal("expected miss")
			}
			if exists(t, backend, key) {
				t.Error("corrupt entry not deleted")
			}
		})
	}
}

func TestCache_InvalidPayloadShape(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestCache(t, time.Minute)

	// A valid envelope whose payload lacks the fields a SheetData needs.
	if _, err := c.Store(ctx, "sheet_data:s1:Tab", map[string]any{"headers": []string{"A"}}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, _, ok := Get[domain.SheetData](ctx, c, "sheet_data:s1:Tab"); ok {
		t.Fatal("expected miss for shape-invalid payload")
	}
	if exists(t, backend, "sheet_data:s1:Tab") {
		t.Error("shape-invalid entry not deleted")
	}
}

func TestCache_InvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestCache(t, time.Minute)

	for _, k := range []string{"sheet_data:s1:A", "sheet_data:s1:B", "sheet_data:s10:A", "sheets_meta:s1"} {
		if _, err := c.Store(ctx, k, []string{k}); err != nil {
			t.Fatalf("store %s: %v", k, err)
		}
	}

	n, err := c.InvalidatePrefix(ctx, "sheet_data:s1:")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 keys removed, got %d", n)
	}

	keys, _ := backend.Keys(ctx, "")
	want := []string{"sheet_data:s10:A", "sheets_meta:s1"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("remaining keys mismatch (-want +got):\n%s", diff)
	}

	if err := c.Invalidate(ctx, "sheets_meta:s1"); err != nil {
		t.Fatalf("invalidate key: %v", err)
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if backend.Len() != 0 {
		t.Errorf("expected empty backend after reset, got %d", backend.Len())
	}
}

func TestCache_RemoveReportsPresence(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestCache(t, time.Minute)

	if _, err := Put(ctx, c, "sheets_meta:s1", "meta"); err != nil {
		t.Fatalf("put: %v", err)
	}
	removed, err := c.Remove(ctx, "sheets_meta:s1")
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v, want true", removed, err)
	}
	if exists(t, backend, "sheets_meta:s1") {
		t.Error("key still stored after Remove")
	}

	removed, err = c.Remove(ctx, "sheets_meta:s1")
	if err != nil || removed {
		t.Errorf("second Remove() = %v, %v, want false", removed, err)
	}
}

func TestCache_EnvelopeFormat(t *testing.T) {
	ctx := context.Background()
	c, backend, clock := newTestCache(t, time.Minute)

	if _, err := c.Store(ctx, "k", "v"); err != nil {
		t.Fatalf("store: %v", err)
	}
	raw, _, _ := backend.Get(ctx, "k")

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"data":      "v",
		"updatedAt": float64(clock.Now().UnixMilli()),
		"expiresAt": float64(clock.Now().Add(time.Minute).UnixMilli()),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
}
