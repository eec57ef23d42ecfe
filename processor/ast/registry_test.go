package ast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/c360studio/testtag/recipe"
)

// mockHost implements Host for testing
type mockHost struct {
	name string
}

func (m *mockHost) Parse(ctx context.Context, path string, src []byte) (recipe.CompilationUnit, error) {
	return nil, nil
}

func (m *mockHost) Apply(cu recipe.CompilationUnit, plan *recipe.Plan) ([]byte, error) {
	return nil, nil
}

func newMockFactory() Host {
	return &mockHost{name: "mock"}
}

func TestHostRegistry_Register(t *testing.T) {
	registry := NewHostRegistry()

	registry.Register("test", []string{".test", ".tst"}, newMockFactory)

	if !registry.HasHost("test") {
		t.Error("expected host 'test' to be registered")
	}

	hosts := registry.ListHosts()
	if len(hosts) != 1 || hosts[0] != "test" {
		t.Errorf("expected [test], got %v", hosts)
	}
}

func TestHostRegistry_HostName(t *testing.T) {
	registry := NewHostRegistry()
	registry.Register("test", []string{".test", ".tst"}, newMockFactory)

	tests := []struct {
		ext      string
		wantName string
		wantOK   bool
	}{
		{".test", "test", true},
		{".tst", "test", true},
		{".unknown", "", false},
	}

	for _, tc := range tests {
		name, ok := registry.HostName(tc.ext)
		if ok != tc.wantOK {
			t.Errorf("HostName(%q): got ok=%v, want ok=%v", tc.ext, ok, tc.wantOK)
		}
		if name != tc.wantName {
			t.Errorf("HostName(%q): got name=%q, want name=%q", tc.ext, name, tc.wantName)
		}
	}
}

func TestHostRegistry_CreateHost(t *testing.T) {
	registry := NewHostRegistry()
	registry.Register("test", []string{".test"}, newMockFactory)

	host, err := registry.CreateHost("test")
	if err != nil {
		t.Fatalf("CreateHost failed: %v", err)
	}

	if _, ok := host.(*mockHost); !ok {
		t.Fatal("expected *mockHost")
	}

	_, err = registry.CreateHost("nonexistent")
	if !errors.Is(err, ErrHostNotRegistered) {
		t.Errorf("expected ErrHostNotRegistered, got %v", err)
	}
}

func TestHostRegistry_CreateHostForExtension(t *testing.T) {
	registry := NewHostRegistry()
	registry.Register("test", []string{".test"}, newMockFactory)

	host, err := registry.CreateHostForExtension(".test")
	if err != nil {
		t.Fatalf("CreateHostForExtension failed: %v", err)
	}
	if host == nil {
		t.Error("expected non-nil host")
	}

	_, err = registry.CreateHostForExtension(".unknown")
	if !errors.Is(err, ErrHostNotRegistered) {
		t.Errorf("expected ErrHostNotRegistered for unknown extension, got %v", err)
	}
}

func TestHostRegistry_FirstRegistrationWins(t *testing.T) {
	registry := NewHostRegistry()

	registry.Register("first", []string{".ext"}, func() Host { return &mockHost{name: "first"} })
	registry.Register("second", []string{".ext"}, func() Host { return &mockHost{name: "second"} })

	name, _ := registry.HostName(".ext")
	if name != "first" {
		t.Errorf("expected extension to map to 'first', got %q", name)
	}

	if !registry.HasHost("first") || !registry.HasHost("second") {
		t.Error("both hosts should be registered")
	}
}

func TestHostRegistry_ListExtensions(t *testing.T) {
	registry := NewHostRegistry()
	registry.Register("host1", []string{".b", ".a"}, newMockFactory)
	registry.Register("host2", []string{".c"}, newMockFactory)

	exts := registry.ListExtensions()
	want := []string{".a", ".b", ".c"}
	if len(exts) != len(want) {
		t.Fatalf("expected %v, got %v", want, exts)
	}
	for i := range want {
		if exts[i] != want[i] {
			t.Errorf("extension %d: got %q, want %q", i, exts[i], want[i])
		}
	}
}

func TestHostRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewHostRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			registry.Register("host"+string(rune('A'+i)), []string{"." + string(rune('a'+i))}, newMockFactory)
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.ListHosts()
			registry.ListExtensions()
		}()
	}

	wg.Wait()

	if hosts := registry.ListHosts(); len(hosts) != 10 {
		t.Errorf("expected 10 hosts, got %d", len(hosts))
	}
}
