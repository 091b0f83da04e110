package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}

	ws := cfg.Workspace
	if ws.BooksManifest != "META-INF/books.xml" {
		t.Errorf("BooksManifest = %q", ws.BooksManifest)
	}
	if ws.CollectionsDir != "collections" || ws.ModulesDir != "modules" || ws.AncillariesDir != "ancillaries" {
		t.Errorf("unexpected default layout %+v", ws)
	}
	if ws.Indent != 2 || !ws.NaturalSortOrphans {
		t.Errorf("unexpected default formatting %+v", ws)
	}
	if cfg.Tokens.Persist {
		t.Error("tokens should not be persisted by default")
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" || cfg.Logging.FileLogger.Level != "none" {
		t.Errorf("unexpected default logging %+v", cfg.Logging)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	path := writeConfig(t, `version: 1
workspace:
  modules_dir: pages
  indent: 4
  natural_sort_orphans: false
tokens:
  persist: true
  database: tokens.sqlite
logging:
  console:
    level: debug
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Workspace.ModulesDir != "pages" || cfg.Workspace.Indent != 4 || cfg.Workspace.NaturalSortOrphans {
		t.Errorf("file values not applied: %+v", cfg.Workspace)
	}
	// values absent from the file keep defaults
	if cfg.Workspace.BooksManifest != "META-INF/books.xml" {
		t.Errorf("BooksManifest = %q, want default", cfg.Workspace.BooksManifest)
	}
	if !cfg.Tokens.Persist || cfg.Tokens.Database != "tokens.sqlite" {
		t.Errorf("unexpected tokens %+v", cfg.Tokens)
	}
	if cfg.Logging.ConsoleLogger.Level != "debug" {
		t.Errorf("console level = %q, want debug", cfg.Logging.ConsoleLogger.Level)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\nworkspace:\n  indent: 2\n  invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"wrong version", "version: 2\n"},
		{"indent out of range", "version: 1\nworkspace:\n  indent: 9\n"},
		{"empty layout", "version: 1\nworkspace:\n  modules_dir: \"\"\n"},
		{"persist without database", "version: 1\ntokens:\n  persist: true\n  database: \"\"\n"},
		{"bad console level", "version: 1\nlogging:\n  console:\n    level: verbose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestPrepareAndDump(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if !strings.Contains(string(data), "books_manifest") {
		t.Errorf("prepared template misses workspace section:\n%s", data)
	}

	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	out, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	var back Config
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("dumped config is not valid yaml: %v", err)
	}
	if back.Workspace != cfg.Workspace || back.Tokens != cfg.Tokens {
		t.Errorf("dump changed values: %+v vs %+v", back, *cfg)
	}
}

func TestWorkspaceResolve(t *testing.T) {
	var ws WorkspaceConfig
	root := filepath.FromSlash("/books/osbooks-physics")

	if got, want := ws.Resolve(root, "META-INF/books.xml"), filepath.Join(root, "META-INF", "books.xml"); got != want {
		t.Errorf("Resolve(relative) = %q, want %q", got, want)
	}
	abs := filepath.Join(t.TempDir(), "modules")
	if got := ws.Resolve(root, abs); got != abs {
		t.Errorf("Resolve(absolute) = %q, want %q", got, abs)
	}
}
