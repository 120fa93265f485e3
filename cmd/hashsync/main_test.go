package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/hashsync/internal/config"
	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/store"
)

// run executes the CLI in an empty temporary directory.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())
	return runHere(t, stdin, args...)
}

// runHere executes the CLI in the current directory.
func runHere(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"path is the default", "", []string{"format", "path=docs", "q=a b"}, "docs?q=a+b\n"},
		{"bare arguments are flags", "", []string{"format", "--format", "query", "page=home", "debug"}, "page=home&debug\n"},
		{"template", "", []string{"format", "--template", "{section}/{id}", "section=docs", "id=intro"}, "docs/intro\n"},
		{"template with query keys", "", []string{"format", "-t", "{section}", "-q", "tab", "section=docs", "tab=2", "x=1"}, "docs?tab=2&x=1\n"},
		{"hash prefix", "", []string{"format", "--hash", "path=docs"}, "#docs\n"},
		{"tile from stdin", `{"z": 4, "x": 1.5, "y": -2}`, []string{"format", "--format", "tile", "--data", "-"}, "4/-2.00/1.50\n"},
		{"yaml data flag", "", []string{"format", "-f", "query", "-d", "b: 2\na: x"}, "b=2&a=x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	got, err := run(t, "", "parse", "--template", "{section}/{id}", "https://example.com/app#docs/intro")
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"section\": \"docs\",\n  \"id\": \"intro\"\n}\n"
	if got != want {
		t.Errorf("json output = %q, want %q", got, want)
	}

	got, err = run(t, "", "parse", "-o", "yaml", "--format", "query", "#page=home&zoom")
	if err != nil {
		t.Fatal(err)
	}
	if want := "page: home\nzoom: true\n"; got != want {
		t.Errorf("yaml output = %q, want %q", got, want)
	}

	_, err = run(t, "", "parse", "--template", "{section}/{id}", "#docs")
	if errors.Code(err) != "H400" {
		t.Errorf("mismatch error = %v, want H400", err)
	}
}

func TestDiffCommand(t *testing.T) {
	got, err := run(t, "", "diff", "--format", "query", "#a=1&b=2", "#a=1&c=3")
	if err != nil {
		t.Fatal(err)
	}
	var d map[string]struct {
		Op    string `json:"op"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal([]byte(got), &d); err != nil {
		t.Fatalf("output %q: %v", got, err)
	}
	if len(d) != 2 || d["b"].Op != "remove" || d["c"].Op != "add" || d["c"].Value != "3" {
		t.Errorf("diff = %s", got)
	}

	got, err = run(t, "", "diff", "-o", "yaml", "--objects", `{"page": "home"}`, `{"page": "about"}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"page:", "op: change", "- home", "- about"} {
		if !strings.Contains(got, want) {
			t.Errorf("yaml diff %q missing %q", got, want)
		}
	}

	got, err = run(t, "", "diff", "--objects", `{"x": "1"}`, `{"x": 1}`)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(got) != "{}" {
		t.Errorf("loosely equal objects diff = %q, want {}", got)
	}
}

func TestProjectConfig(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "web", "src")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	yamlConfig := "format:\n  kind: template\n  template: \"{page}\"\n  query: all\n"
	if err := os.WriteFile(filepath.Join(dir, config.YAMLConfigFileName), []byte(yamlConfig), 0644); err != nil {
		t.Fatal(err)
	}
	chdir(t, sub)

	got, err := runHere(t, "", "format", "page=home", "tab=2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "home?tab=2\n" {
		t.Errorf("output = %q, want the project template", got)
	}

	got, err = runHere(t, "", "format", "--format", "query", "page=home")
	if err != nil {
		t.Fatal(err)
	}
	if got != "page=home\n" {
		t.Errorf("flag override output = %q", got)
	}

	_, err = runHere(t, "", "format", "--config", filepath.Join(dir, "missing.json"), "a=1")
	if errors.Code(err) != "H200" {
		t.Errorf("missing --config error = %v, want H200", err)
	}
}

func TestInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"format", "--format", "xml", "a=1"}},
		{"bad template", []string{"format", "--template", "{a b}", "a=1"}},
		{"bad output", []string{"parse", "-o", "toml", "-f", "query", "a=1"}},
		{"bad log level", []string{"--log-level", "loud", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, "", tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	out, err := runHere(t, "", "init", "--yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, config.YAMLConfigFileName) {
		t.Errorf("output = %q", out)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated config is invalid: %v", err)
	}

	if _, err := runHere(t, "", "init"); errors.Code(err) != "H200" {
		t.Errorf("second init = %v, want H200", err)
	}
	if _, err := runHere(t, "", "init", "--force"); err != nil {
		t.Errorf("init --force = %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	got, err := run(t, "", "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if got != version+"\n" {
		t.Errorf("version = %q", got)
	}
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name  string
		store config.StoreConfig
		check func(t *testing.T, st store.Store)
	}{
		{"memory", config.StoreConfig{Kind: config.StoreMemory}, func(t *testing.T, st store.Store) {
			if _, ok := st.(*store.MemoryStore); !ok {
				t.Errorf("store = %T", st)
			}
		}},
		{"file", config.StoreConfig{Kind: config.StoreFile, Dir: t.TempDir()}, func(t *testing.T, st store.Store) {
			if _, ok := st.(*store.FileStore); !ok {
				t.Errorf("store = %T", st)
			}
		}},
		{"s3", config.StoreConfig{Kind: config.StoreS3, Bucket: "b", Endpoint: "http://localhost:9000", UsePathStyle: true}, func(t *testing.T, st store.Store) {
			if _, ok := st.(*store.S3Store); !ok {
				t.Errorf("store = %T", st)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			cfg.Store = tt.store
			cfg.Metrics.Enabled = tt.name == "memory"
			sc, err := serverConfig(cfg)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, sc.Store)
			if (sc.Metrics != nil) != cfg.Metrics.Enabled {
				t.Errorf("Metrics = %v, enabled %v", sc.Metrics, cfg.Metrics.Enabled)
			}
			if sc.Default == nil || !sc.Default.Enabled() {
				t.Error("the default policy should be set")
			}
		})
	}
}

// chdir changes the working directory for the rest of the test and restores
// it on cleanup (testing.T.Chdir is not available before Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
