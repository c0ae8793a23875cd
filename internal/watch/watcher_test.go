package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mattmok/idea-spring-boot-assistant/internal/locator"
)

// fakeInvalidator maps every path below root to its modules
type fakeInvalidator struct {
	mu          sync.Mutex
	modules     map[string][]string
	invalidated []string
	fail        map[string]bool
}

func (f *fakeInvalidator) ModulesFor(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for root, ids := range f.modules {
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && (rel == "." || rel[0] != '.') {
			return ids
		}
	}
	return nil
}

func (f *fakeInvalidator) Invalidate(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("closed")
	}
	f.invalidated = append(f.invalidated, id)
	return nil
}

func (f *fakeInvalidator) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

func TestFileWatcher_InvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	libs := filepath.Join(dir, "libs")
	if err := os.MkdirAll(libs, 0o755); err != nil {
		t.Fatalf("Failed to create libs dir: %v", err)
	}
	descriptor := filepath.Join(libs, "boot.json")
	if err := os.WriteFile(descriptor, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("Failed to write descriptor: %v", err)
	}

	target := &fakeInvalidator{modules: map[string][]string{libs: {"app", "worker"}}}
	watcher, err := NewFileWatcher(target, 30*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	dep := locator.Dependency{ID: "boot", Path: descriptor, Kind: locator.KindLibrary}
	if err := watcher.Watch([]locator.Dependency{dep, dep}); err != nil {
		t.Fatalf("Failed to watch: %v", err)
	}
	if got := watcher.Watched(); len(got) != 1 || got[0] != libs {
		t.Fatalf("Watched() = %v, expected [%s]", got, libs)
	}
	watcher.Start()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(descriptor, []byte(`{"properties":[]}`), 0o644); err != nil {
		t.Fatalf("Failed to modify descriptor: %v", err)
	}
	// unrelated files are ignored
	if err := os.WriteFile(filepath.Join(libs, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write notes: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(target.calls()) < 2 {
		time.Sleep(20 * time.Millisecond)
	}
	calls := target.calls()
	if len(calls) < 2 || calls[0] != "app" || calls[1] != "worker" {
		t.Errorf("Expected app and worker to be invalidated, got %v", calls)
	}
}

func TestFileWatcher_PicksUpNewMetaInf(t *testing.T) {
	project := t.TempDir()

	target := &fakeInvalidator{modules: map[string][]string{project: {"app"}}}
	watcher, err := NewFileWatcher(target, 30*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	dep := locator.Dependency{ID: "app", Path: project, Kind: locator.KindProject}
	if err := watcher.Watch([]locator.Dependency{dep}); err != nil {
		t.Fatalf("Failed to watch: %v", err)
	}
	if got := watcher.Watched(); len(got) != 1 || got[0] != project {
		t.Fatalf("Watched() = %v, expected [%s]", got, project)
	}
	watcher.Start()

	time.Sleep(100 * time.Millisecond)
	metaInf := filepath.Join(project, "target", "classes", "META-INF")
	if err := os.MkdirAll(metaInf, 0o755); err != nil {
		t.Fatalf("Failed to create META-INF: %v", err)
	}
	descriptor := filepath.Join(metaInf, "additional-spring-configuration-metadata.json")
	if err := os.WriteFile(descriptor, []byte(`{"properties":[]}`), 0o644); err != nil {
		t.Fatalf("Failed to write descriptor: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !contains(watcher.Watched(), metaInf) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := watcher.Watched(); !contains(got, metaInf) {
		t.Fatalf("Expected %s to be watched, got %v", metaInf, got)
	}
	for time.Now().Before(deadline) && len(target.calls()) == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	if calls := target.calls(); len(calls) == 0 || calls[0] != "app" {
		t.Fatalf("Expected app to be invalidated, got %v", calls)
	}

	// later edits inside the new directory are seen directly
	time.Sleep(100 * time.Millisecond)
	before := len(target.calls())
	if err := os.WriteFile(descriptor, []byte(`{"properties":[{"name":"app.name"}]}`), 0o644); err != nil {
		t.Fatalf("Failed to modify descriptor: %v", err)
	}
	for time.Now().Before(deadline) && len(target.calls()) == before {
		time.Sleep(20 * time.Millisecond)
	}
	if len(target.calls()) == before {
		t.Error("Expected a change in the new META-INF to invalidate app")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestInvalidate_DeduplicatesModules(t *testing.T) {
	target := &fakeInvalidator{
		modules: map[string][]string{"/deps": {"app", "gone"}},
		fail:    map[string]bool{"gone": true},
	}
	Invalidate(target, []string{"/deps/a.jar", "/deps/b.jar", "/elsewhere/c.jar"}, nil)

	calls := target.calls()
	if len(calls) != 1 || calls[0] != "app" {
		t.Errorf("Expected [app], got %v", calls)
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/deps/spring-boot-3.2.0.jar", true},
		{"/deps/LIB.ZIP", true},
		{"/project/target/classes/META-INF/spring-configuration-metadata.json", true},
		{"/project/target/classes/META-INF", true},
		{"/deps/.boot.jar.swp", false},
		{"/deps/readme.txt", false},
	}

	for _, tt := range tests {
		if got := Relevant(tt.path); got != tt.expected {
			t.Errorf("Relevant(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestDebouncer_Add(t *testing.T) {
	var mu sync.Mutex
	var called bool
	var paths []string

	debouncer := NewDebouncer(50 * time.Millisecond)
	debouncer.SetCallback(func(p []string) {
		mu.Lock()
		defer mu.Unlock()
		called = true
		paths = p
	})

	debouncer.Add("b.jar")
	debouncer.Add("a.jar")
	debouncer.Add("b.jar")

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !called {
		t.Fatal("Expected callback to be called")
	}
	if len(paths) != 2 || paths[0] != "a.jar" || paths[1] != "b.jar" {
		t.Errorf("Expected sorted unique paths, got %v", paths)
	}
}

func TestDebouncer_MultipleFlushes(t *testing.T) {
	var mu sync.Mutex
	var callCount int

	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func([]string) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
	})

	debouncer.Add("a.jar")
	time.Sleep(80 * time.Millisecond)
	debouncer.Add("b.jar")
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if callCount != 2 {
		t.Errorf("Expected 2 callback calls, got %d", callCount)
	}
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	var mu sync.Mutex
	called := false

	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func([]string) {
		mu.Lock()
		defer mu.Unlock()
		called = true
	})
	debouncer.Add("a.jar")
	debouncer.Stop()
	debouncer.Add("b.jar")
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if called {
		t.Error("Expected no callback after Stop")
	}
}

func TestFileWatcher_Stop(t *testing.T) {
	watcher, err := NewFileWatcher(&fakeInvalidator{}, 0, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	watcher.Start()

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("second Stop() returned error: %v", err)
	}
}

func BenchmarkDebouncer_Add(b *testing.B) {
	debouncer := NewDebouncer(100 * time.Millisecond)
	debouncer.SetCallback(func([]string) {})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		debouncer.Add("boot.jar")
	}
}
