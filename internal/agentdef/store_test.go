package agentdef

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAgentFile(t *testing.T, dir, name, agentType, tools string) {
	t.Helper()
	content := "---\nagent-type: " + agentType + "\nwhen-to-use: Testing " + agentType + "\n"
	if tools != "" {
		content += "allowed-tools: " + tools + "\n"
	}
	content += "---\nYou are " + agentType + "."
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestStore_BuiltinAlwaysPresent(t *testing.T) {
	s := NewStore()

	def, err := s.Get(GeneralPurposeType)
	if err != nil {
		t.Fatalf("Get(general-purpose) error = %v", err)
	}
	if def.Source != "built-in" {
		t.Errorf("expected built-in source, got %q", def.Source)
	}
	if !def.Allows("bash") || !def.Allows("agent") {
		t.Error("general-purpose should allow all tools")
	}
}

func TestStore_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "reviewer.md", "code-reviewer", "bash")
	writeAgentFile(t, dir, "searcher.md", "searcher", "")

	s := NewStore()
	if err := s.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def, err := s.Get("code-reviewer")
	if err != nil {
		t.Fatalf("Get(code-reviewer) error = %v", err)
	}
	if def.Source != filepath.Join(dir, "reviewer.md") {
		t.Errorf("unexpected source: %q", def.Source)
	}

	if len(s.List()) != 3 { // built-in + two files
		t.Errorf("expected 3 definitions, got %d", len(s.List()))
	}
}

func TestStore_MissingDirectory(t *testing.T) {
	s := NewStore()
	if err := s.Load(filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Errorf("missing directory should not fail Load: %v", err)
	}
	if len(s.List()) != 1 {
		t.Errorf("expected only built-in, got %d definitions", len(s.List()))
	}
}

func TestStore_MalformedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "good.md", "good-agent", "")
	if err := os.WriteFile(filepath.Join(dir, "bad.md"), []byte("no frontmatter here"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore()
	if err := s.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := s.Get("good-agent"); err != nil {
		t.Errorf("good file should load despite bad sibling: %v", err)
	}
	if len(s.List()) != 2 {
		t.Errorf("expected 2 definitions, got %d", len(s.List()))
	}
}

func TestStore_DuplicateFirstLoadedWins(t *testing.T) {
	dir := t.TempDir()
	// WalkDir visits in lexical order, so a.md loads before b.md
	writeAgentFile(t, dir, "a.md", "dup-agent", "bash")
	writeAgentFile(t, dir, "b.md", "dup-agent", "agent")

	s := NewStore()
	if err := s.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def, err := s.Get("dup-agent")
	if err != nil {
		t.Fatal(err)
	}
	if def.Source != filepath.Join(dir, "a.md") {
		t.Errorf("expected first-loaded file to win, got %q", def.Source)
	}
}

func TestStore_BuiltinShadowsUserFile(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "override.md", GeneralPurposeType, "bash")

	s := NewStore()
	if err := s.Load(dir); err != nil {
		t.Fatal(err)
	}

	def, _ := s.Get(GeneralPurposeType)
	if def.Source != "built-in" {
		t.Errorf("user file must not shadow the built-in, got source %q", def.Source)
	}
}

func TestStore_GetUnknown(t *testing.T) {
	s := NewStore()
	_, err := s.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SkipsHiddenDirsAndNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".git")
	if err := os.MkdirAll(hidden, 0755); err != nil {
		t.Fatal(err)
	}
	writeAgentFile(t, hidden, "sneaky.md", "hidden-agent", "")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an agent"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore()
	if err := s.Load(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("hidden-agent"); !errors.Is(err, ErrNotFound) {
		t.Error("hidden directory should be skipped")
	}
}

func TestStore_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	if err := s.Load(dir); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeAgentFile(t, dir, "late.md", "late-agent", "")

	deadline := time.After(3 * time.Second)
	for {
		if _, err := s.Get("late-agent"); err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("new agent file was not picked up by watch")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestStore_WatchCoversSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "team")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	s := NewStore()
	if err := s.Load(dir); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeAgentFile(t, sub, "nested.md", "nested-agent", "")

	deadline := time.After(3 * time.Second)
	for {
		if _, err := s.Get("nested-agent"); err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("agent file in subdirectory was not picked up by watch")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestStore_WatchRequiresLoad(t *testing.T) {
	s := NewStore()
	if err := s.Watch(context.Background()); err == nil {
		t.Error("Watch without Load should fail")
	}
}
