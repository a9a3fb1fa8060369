package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	t.Parallel()
	c := Defaults()
	if c.Format != FormatFreeform {
		t.Errorf("Format = %q, want freeform", c.Format)
	}
	if c.HistoryDepth != 5 {
		t.Errorf("HistoryDepth = %d, want 5", c.HistoryDepth)
	}
	if c.Timeout != 30 {
		t.Errorf("Timeout = %d, want 30", c.Timeout)
	}
	if c.MaxDiffBytes != 20000 {
		t.Errorf("MaxDiffBytes = %d, want 20000", c.MaxDiffBytes)
	}
	if c.MaxMessageLength != 1000 {
		t.Errorf("MaxMessageLength = %d, want 1000", c.MaxMessageLength)
	}
	if c.MaxChars != nil {
		t.Errorf("MaxChars = %v, want nil", *c.MaxChars)
	}
	if c.Model != "" || c.Provider != "" {
		t.Errorf("Model/Provider should default empty, got %q/%q", c.Model, c.Provider)
	}
}

func TestResolve_precedence(t *testing.T) {
	t.Parallel()
	cli := map[string]any{"model": "cli-model"}
	file := map[string]any{"model": "file-model", "format": "conventional"}
	env := map[string]any{"model": "env-model", "format": "gitmoji", "timeout": "60"}
	cfg, err := Resolve(cli, file, env)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Model != "cli-model" {
		t.Errorf("Model = %q, want cli-model (cli wins over file and env)", cfg.Model)
	}
	if cfg.Format != FormatConventional {
		t.Errorf("Format = %q, want conventional (file wins over env)", cfg.Format)
	}
	if cfg.Timeout != 60 {
		t.Errorf("Timeout = %d, want 60 (env wins over default)", cfg.Timeout)
	}
	if cfg.HistoryDepth != 5 {
		t.Errorf("HistoryDepth = %d, want default 5", cfg.HistoryDepth)
	}
}

func TestResolve_nilValueFallsThrough(t *testing.T) {
	t.Parallel()
	cli := map[string]any{"model": nil}
	file := map[string]any{"model": "file-model"}
	cfg, err := Resolve(cli, file, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Model != "file-model" {
		t.Errorf("Model = %q, want file-model (nil cli value is absent)", cfg.Model)
	}
}

func TestResolve_unknownKey(t *testing.T) {
	t.Parallel()
	_, err := Resolve(nil, map[string]any{"mdoel": "gpt-4"}, nil)
	if err == nil {
		t.Fatal("Resolve should fail on unknown key")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("error should wrap ErrInvalid: %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "mdoel") {
		t.Errorf("error should name the key: %q", msg)
	}
	// The valid key list is sorted, so branch_max_length comes before model.
	if !strings.Contains(msg, "branch_max_length") || !strings.Contains(msg, "timeout") {
		t.Errorf("error should list valid keys: %q", msg)
	}
	bi := strings.Index(msg, "branch_max_length")
	ti := strings.Index(msg, "timeout")
	if bi > ti {
		t.Errorf("valid keys should be sorted: %q", msg)
	}
}

func TestResolve_boolCoercion(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw  any
		want bool
		ok   bool
	}{
		{"true", true, true},
		{"1", true, true},
		{"YES", true, true},
		{"false", false, true},
		{"0", false, true},
		{"No", false, true},
		{true, true, true},
		{"maybe", false, false},
		{"on", false, false},
	}
	for _, tc := range cases {
		cfg, err := Resolve(map[string]any{"copy_to_clipboard": tc.raw}, nil, nil)
		if tc.ok {
			if err != nil {
				t.Errorf("Resolve(copy_to_clipboard=%v): %v", tc.raw, err)
				continue
			}
			if cfg.CopyToClipboard != tc.want {
				t.Errorf("copy_to_clipboard=%v resolved to %v, want %v", tc.raw, cfg.CopyToClipboard, tc.want)
			}
		} else if err == nil {
			t.Errorf("Resolve(copy_to_clipboard=%v) should fail", tc.raw)
		}
	}
}

func TestResolve_intTypeError(t *testing.T) {
	t.Parallel()
	_, err := Resolve(nil, nil, map[string]any{"max_chars": "abc"})
	if err == nil {
		t.Fatal("Resolve should fail on non-numeric max_chars")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("error should wrap ErrInvalid: %v", err)
	}
	if !strings.Contains(err.Error(), "max_chars") || !strings.Contains(err.Error(), "abc") {
		t.Errorf("error should cite key and raw value: %v", err)
	}
}

func TestResolve_maxCharsRange(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"0", "700"} {
		_, err := Resolve(nil, nil, map[string]any{"max_chars": raw})
		if err == nil {
			t.Fatalf("Resolve(max_chars=%s) should fail", raw)
		}
		if !strings.Contains(err.Error(), "between 1 and 500") {
			t.Errorf("error should cite the 1-500 range, got: %v", err)
		}
	}
	cfg, err := Resolve(nil, nil, map[string]any{"max_chars": "72"})
	if err != nil {
		t.Fatalf("Resolve(max_chars=72): %v", err)
	}
	if cfg.MaxChars == nil || *cfg.MaxChars != 72 {
		t.Errorf("MaxChars = %v, want 72", cfg.MaxChars)
	}
	if cfg.EffectiveMaxLength() != 72 {
		t.Errorf("EffectiveMaxLength = %d, want 72", cfg.EffectiveMaxLength())
	}
}

func TestResolve_effectiveMaxLengthFallback(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(nil, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.EffectiveMaxLength() != 1000 {
		t.Errorf("EffectiveMaxLength = %d, want max_message_length 1000", cfg.EffectiveMaxLength())
	}
}

func TestResolve_ranges(t *testing.T) {
	t.Parallel()
	cases := []struct {
		key  string
		raw  any
		want string
	}{
		{"history_depth", "51", "between 0 and 50"},
		{"history_depth", "-1", "between 0 and 50"},
		{"timeout", "4", "between 5 and 300"},
		{"timeout", "301", "between 5 and 300"},
		{"temperature", "2.5", "between 0.0 and 2.0"},
		{"branch_max_length", "19", "between 20 and 200"},
		{"format", "fancy", "must be one of"},
		{"provider", "skynet", "must be one of"},
	}
	for _, tc := range cases {
		_, err := Resolve(map[string]any{tc.key: tc.raw}, nil, nil)
		if err == nil {
			t.Errorf("Resolve(%s=%v) should fail", tc.key, tc.raw)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("Resolve(%s=%v) error %q should contain %q", tc.key, tc.raw, err, tc.want)
		}
	}
}

func TestResolve_nullTokensClearOptionalKeys(t *testing.T) {
	t.Parallel()
	file := map[string]any{"model": "gpt-4", "provider": "openai"}
	cli := map[string]any{"model": "null", "provider": "NONE", "max_chars": "null"}
	cfg, err := Resolve(cli, file, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Model != "" {
		t.Errorf("Model = %q, want cleared", cfg.Model)
	}
	if cfg.Provider != "" {
		t.Errorf("Provider = %q, want cleared", cfg.Provider)
	}
	if cfg.MaxChars != nil {
		t.Errorf("MaxChars = %v, want nil", *cfg.MaxChars)
	}
}

func TestResolve_tomlNativeTypes(t *testing.T) {
	t.Parallel()
	// BurntSushi decodes TOML integers to int64 and booleans to bool.
	file := map[string]any{
		"history_depth":     int64(10),
		"temperature":       0.2,
		"copy_to_clipboard": true,
	}
	cfg, err := Resolve(nil, file, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.HistoryDepth != 10 || cfg.Temperature != 0.2 || !cfg.CopyToClipboard {
		t.Errorf("native TOML types mishandled: %+v", cfg)
	}
}

func TestEnvValues(t *testing.T) {
	t.Parallel()
	env := []string{
		"GMUSE_MODEL=gpt-4o-mini",
		"GMUSE_MAX_CHARS=72",
		"GMUSE_FORMAT=",
		"PATH=/usr/bin",
		"GMUSE_UNRELATED=ignored",
	}
	vals := EnvValues(env)
	if vals["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want gpt-4o-mini", vals["model"])
	}
	if vals["max_chars"] != "72" {
		t.Errorf("max_chars = %v, want 72", vals["max_chars"])
	}
	if _, ok := vals["format"]; ok {
		t.Error("empty GMUSE_FORMAT should be skipped")
	}
	if len(vals) != 2 {
		t.Errorf("EnvValues = %v, want exactly model and max_chars", vals)
	}
}

func TestEnvName(t *testing.T) {
	t.Parallel()
	if got := EnvName("max_chars"); got != "GMUSE_MAX_CHARS" {
		t.Errorf("EnvName(max_chars) = %q", got)
	}
}

func TestLoadFile_missingIsEmpty(t *testing.T) {
	t.Parallel()
	vals, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(vals) != 0 {
		t.Errorf("missing file should yield empty map, got %v", vals)
	}
}

func TestLoadFile_invalidTOML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("model = \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile should fail on invalid TOML")
	}
}

func TestLoadFile_roundTripThroughResolve(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "model = \"claude-haiku-4-5\"\nformat = \"gitmoji\"\nhistory_depth = 12\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	vals, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg, err := Resolve(nil, vals, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Model != "claude-haiku-4-5" || cfg.Format != FormatGitmoji || cfg.HistoryDepth != 12 {
		t.Errorf("resolved config = %+v", cfg)
	}
}

func TestWriteKey_setAndRemove(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "gmuse", "config.toml")
	if err := WriteKey(path, "format", "conventional"); err != nil {
		t.Fatalf("WriteKey: %v", err)
	}
	if err := WriteKey(path, "max_chars", 72); err != nil {
		t.Fatalf("WriteKey: %v", err)
	}
	vals, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if vals["format"] != "conventional" {
		t.Errorf("format = %v", vals["format"])
	}
	if vals["max_chars"] != int64(72) {
		t.Errorf("max_chars = %v (%T)", vals["max_chars"], vals["max_chars"])
	}
	if err := WriteKey(path, "max_chars", nil); err != nil {
		t.Fatalf("WriteKey remove: %v", err)
	}
	vals, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, ok := vals["max_chars"]; ok {
		t.Error("nil value should remove the key")
	}
	if vals["format"] != "conventional" {
		t.Error("other keys should survive WriteKey")
	}
}

func TestParseValue(t *testing.T) {
	t.Parallel()
	if v, err := ParseValue("history_depth", "10"); err != nil || v != 10 {
		t.Errorf("ParseValue(history_depth, 10) = %v, %v", v, err)
	}
	if v, err := ParseValue("copy_to_clipboard", "yes"); err != nil || v != true {
		t.Errorf("ParseValue(copy_to_clipboard, yes) = %v, %v", v, err)
	}
	if v, err := ParseValue("model", "null"); err != nil || v != nil {
		t.Errorf("ParseValue(model, null) = %v, %v", v, err)
	}
	if _, err := ParseValue("history_depth", "abc"); err == nil {
		t.Error("ParseValue(history_depth, abc) should fail")
	}
	if _, err := ParseValue("bogus", "1"); err == nil {
		t.Error("ParseValue(bogus) should fail")
	}
}

func TestValue(t *testing.T) {
	t.Parallel()
	cfg, err := Resolve(map[string]any{"max_chars": "72", "model": "gpt-4"}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := cfg.Value("max_chars"); got != "72" {
		t.Errorf("Value(max_chars) = %q", got)
	}
	if got := cfg.Value("provider"); got != "none" {
		t.Errorf("Value(provider) = %q, want none", got)
	}
	if got := cfg.Value("model"); got != "gpt-4" {
		t.Errorf("Value(model) = %q", got)
	}
}
