package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tgrelay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TGRELAY_TEST_TOKEN", "123:abc")

	path := writeConfig(t, `version: "1"
modules:
  channel.telegram:
    token: ${TGRELAY_TEST_TOKEN}
    mode: ${TGRELAY_TEST_MODE:-webhook}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	node, ok := cfg.Modules["channel.telegram"]
	if !ok {
		t.Fatal("channel.telegram section missing")
	}
	var section struct {
		Token string `yaml:"token"`
		Mode  string `yaml:"mode"`
	}
	if err := node.Decode(&section); err != nil {
		t.Fatal(err)
	}
	if section.Token != "123:abc" || section.Mode != "webhook" {
		t.Errorf("section = %+v", section)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	path := writeConfig(t, `version: "1"
modules:
  provider.gemini:
    api_key: ${TGRELAY_TEST_DEFINITELY_UNSET}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "TGRELAY_TEST_DEFINITELY_UNSET") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolve_Sorted(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `version: "1"
modules:
  provider.gemini: {}
  audit.sqlite: {}
  channel.telegram: {}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	got := Resolve(cfg)
	want := []string{"audit.sqlite", "channel.telegram", "provider.gemini"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestEnsureModule(t *testing.T) {
	t.Parallel()

	cfg := &Config{Version: "1"}
	cfg.EnsureModule("relay.chat")

	node, ok := cfg.Modules["relay.chat"]
	if !ok || node.Kind == 0 || node.Tag != "!!map" {
		t.Fatalf("section = %+v, %v", node, ok)
	}

	var decoded struct {
		Welcome string `yaml:"welcome"`
	}
	if err := node.Decode(&decoded); err != nil {
		t.Fatalf("decode empty section: %v", err)
	}

	custom := cfg.Modules["relay.chat"]
	custom.Value = "kept"
	cfg.Modules["relay.chat"] = custom
	cfg.EnsureModule("relay.chat")
	if cfg.Modules["relay.chat"].Value != "kept" {
		t.Error("EnsureModule replaced an existing section")
	}
}
