package weave

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Verify {
		t.Error("verification should be on by default")
	}
	if cfg.Matching != MatchStructural || cfg.BindMarker != il.TypeBindInstance {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weaver.toml")
	data := `
matching = "exact"
handlers = ["demo.Trace", "demo.Audit"]
bind_marker = "demo.Self"
search_paths = ["lib", "vendor"]
verify = false
output = "out.ilm"

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Matching != MatchExact || !reflect.DeepEqual(cfg.Handlers, []string{"demo.Trace", "demo.Audit"}) {
		t.Errorf("matching = %q handlers = %v", cfg.Matching, cfg.Handlers)
	}
	if cfg.BindMarker != "demo.Self" || cfg.Output != "out.ilm" || cfg.Log.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Verify {
		t.Error("verify = true, want false from file")
	}
	if !reflect.DeepEqual(cfg.SearchPaths, []string{"lib", "vendor"}) {
		t.Errorf("search paths = %v", cfg.SearchPaths)
	}
	// keys absent from the file keep their defaults
	if cfg.Capability != il.TypeAspect {
		t.Errorf("capability = %q", cfg.Capability)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("matching = [unterminated"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	for _, path := range []string{bad, filepath.Join(dir, "missing.toml")} {
		_, err := LoadConfig(path)
		if !stderrors.Is(err, errors.New(errors.PhaseConfig, errors.KindInvalidData).Build()) {
			t.Errorf("LoadConfig(%s) error = %v", filepath.Base(path), err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{
		"WEAVER_SEARCH_PATH": "a" + string(os.PathListSeparator) + "b",
		"WEAVER_MATCHING":    MatchBaseType,
		"WEAVER_CAPABILITY":  "demo.Base",
		"WEAVER_BIND_MARKER": "demo.Self",
		"WEAVER_VERIFY":      "false",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	want := DefaultConfig()
	want.SearchPaths = []string{"a", "b"}
	want.Matching = MatchBaseType
	want.Capability = "demo.Base"
	want.BindMarker = "demo.Self"
	want.Verify = false
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("cfg = %+v\nwant %+v", cfg, want)
	}
}

func TestApplyEnvEmptyValuesIgnored(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(env(map[string]string{"WEAVER_MATCHING": "", "WEAVER_VERIFY": ""})); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("cfg changed: %+v", cfg)
	}
}

func TestApplyEnvBadVerify(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{"WEAVER_VERIFY": "maybe"}))
	if !stderrors.Is(err, errors.New(errors.PhaseConfig, errors.KindInvalidInput).Build()) {
		t.Errorf("error = %v", err)
	}
}
