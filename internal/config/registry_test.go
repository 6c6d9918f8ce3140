package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got, want := RegistryPath(), filepath.Join(home, registryFileName); got != want {
		t.Errorf("RegistryPath() = %q, want %q", got, want)
	}
	if entries := ListProjects(); len(entries) != 0 {
		t.Errorf("ListProjects() = %d entries, want 0", len(entries))
	}

	if err := RegisterProject("vault", "/work/vault", "/work/vault"); err != nil {
		t.Fatalf("RegisterProject: %v", err)
	}
	if err := RegisterProject("", "/work/amm", "/work/amm/config"); err != nil {
		t.Fatalf("RegisterProject: %v", err)
	}

	entries := ListProjects()
	if len(entries) != 2 {
		t.Fatalf("ListProjects() = %d entries, want 2", len(entries))
	}
	if entries[1].Name != "amm" {
		t.Errorf("empty name should default to base of root, got %q", entries[1].Name)
	}

	// Re-registering the same root replaces the entry.
	if err := RegisterProject("vault-v2", "/work/vault", "/work/vault"); err != nil {
		t.Fatalf("RegisterProject: %v", err)
	}
	entries = ListProjects()
	if len(entries) != 2 {
		t.Fatalf("ListProjects() = %d entries after re-register, want 2", len(entries))
	}
	if entries[1].Name != "vault-v2" {
		t.Errorf("re-registered entry = %+v", entries[1])
	}
}

func TestLookupProject(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	for _, p := range []struct{ name, root string }{
		{"mono", "/work/mono"},
		{"core", "/work/mono/packages/core"},
		{"other", "/work/monorepo"},
	} {
		if err := RegisterProject(p.name, p.root, p.root); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		path string
		want string
	}{
		{"/work/mono", "mono"},
		{"/work/mono/src/Token.sol", "mono"},
		{"/work/mono/packages/core/src", "core"},
		{"/work/monorepo/src", "other"},
		{"/elsewhere", ""},
	}
	for _, tt := range tests {
		entry, ok := LookupProject(tt.path)
		if tt.want == "" {
			if ok {
				t.Errorf("LookupProject(%q) = %+v, want none", tt.path, entry)
			}
			continue
		}
		if !ok || entry.Name != tt.want {
			t.Errorf("LookupProject(%q) = %+v, %v; want %s", tt.path, entry, ok, tt.want)
		}
	}
}

func TestLoadUsesRegisteredProject(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	configDir := filepath.Join(root, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, ConfigFileName), []byte("project:\n  name: registered\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RegisterProject("registered", root, configDir); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "src", "tokens")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := load("", sub)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Project.Name != "registered" {
		t.Errorf("Name = %q, want config from registered project", cfg.Project.Name)
	}
}
