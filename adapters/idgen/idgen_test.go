package idgen_test

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/artpar/crossbridge/adapters/idgen"
)

func TestUUID_New(t *testing.T) {
	g := idgen.UUID{Prefix: idgen.DeliveryPrefix}

	id := g.New()
	if !strings.HasPrefix(id, "dlv_") {
		t.Fatalf("ID %s lacks the delivery prefix", id)
	}

	// UUID v7 format: 8-4-4-4-12 hex chars with version nibble 7
	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if raw := strings.TrimPrefix(id, "dlv_"); !uuidRegex.MatchString(raw) {
		t.Errorf("ID %s doesn't match UUID v7 format", raw)
	}
}

func TestUUID_Unique(t *testing.T) {
	g := idgen.UUID{}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.New()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

// v7 IDs generated in sequence sort in generation order.
func TestUUID_TimeOrdered(t *testing.T) {
	g := idgen.UUID{}

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = g.New()
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("sequentially generated IDs should be sorted")
	}
}

func TestSequential(t *testing.T) {
	g := idgen.NewSequential("test_")

	for _, want := range []string{"test_1", "test_2", "test_3"} {
		if got := g.New(); got != want {
			t.Errorf("New() = %s, want %s", got, want)
		}
	}

	g.Reset()
	if got := g.New(); got != "test_1" {
		t.Errorf("after Reset: New() = %s, want test_1", got)
	}
}

func TestSequential_Concurrent(t *testing.T) {
	g := idgen.NewSequential("")

	const n = 200
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.New()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("unique IDs = %d, want %d", len(seen), n)
	}
}
