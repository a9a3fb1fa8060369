// Package config resolves gmuse configuration from four sources with a
// defined precedence: CLI flags > config file > environment variables >
// defaults. Each key is resolved independently; a key absent from a
// higher-precedence source falls through to the next.
//
// File: one global TOML file, $XDG_CONFIG_HOME/gmuse/config.toml (see
// os.UserConfigDir). Environment: one GMUSE_<KEY> variable per key, e.g.
// GMUSE_MAX_CHARS for max_chars, parsed with the same coercion rules as
// every other source.
//
// Raw source maps never leave this package: Resolve returns a fully typed,
// range-checked Config or an error naming the offending key and value.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"gmuse/cli/internal/erruser"
)

// ErrInvalid tags every configuration error so the CLI can map the whole
// class to one exit status with errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Format is the commit-message style contract. It selects both the prompt
// task template and the validator's structural rule.
type Format string

const (
	FormatFreeform     Format = "freeform"
	FormatConventional Format = "conventional"
	FormatGitmoji      Format = "gitmoji"
)

// Config holds the fully merged and validated settings consumed by every
// other component. Immutable after Resolve; out-of-range values never reach
// this type.
type Config struct {
	// Model is the model identifier, or empty for provider auto-detection.
	Model string
	// Provider is an explicit provider override, or empty for auto-detection.
	Provider string
	Format   Format
	// HistoryDepth is the number of recent commits fetched for style context.
	HistoryDepth int
	// Timeout bounds the provider call, in seconds.
	Timeout     int
	Temperature float64
	MaxTokens   int
	// MaxDiffBytes is the byte budget for the staged diff before truncation.
	MaxDiffBytes int
	// MaxMessageLength bounds generated messages when MaxChars is unset.
	MaxMessageLength int
	// MaxChars, when set, is the effective length limit for both the prompt
	// constraint and validation. Nil means unset.
	MaxChars        *int
	CopyToClipboard bool
	IncludeBranch   bool
	BranchMaxLength int
}

// EffectiveMaxLength returns the length bound actually enforced on generated
// messages: MaxChars when set, otherwise MaxMessageLength.
func (c *Config) EffectiveMaxLength() int {
	if c.MaxChars != nil {
		return *c.MaxChars
	}
	return c.MaxMessageLength
}

const (
	_defaultFormat           = FormatFreeform
	_defaultHistoryDepth     = 5
	_defaultTimeout          = 30
	_defaultTemperature      = 0.7
	_defaultMaxTokens        = 500
	_defaultMaxDiffBytes     = 20000
	_defaultMaxMessageLength = 1000
	_defaultBranchMaxLength  = 60
)

// Defaults returns the built-in configuration (no I/O). Model and Provider
// default to empty, meaning auto-detect from the environment at call time.
func Defaults() Config {
	return Config{
		Model:            "",
		Provider:         "",
		Format:           _defaultFormat,
		HistoryDepth:     _defaultHistoryDepth,
		Timeout:          _defaultTimeout,
		Temperature:      _defaultTemperature,
		MaxTokens:        _defaultMaxTokens,
		MaxDiffBytes:     _defaultMaxDiffBytes,
		MaxMessageLength: _defaultMaxMessageLength,
		MaxChars:         nil,
		CopyToClipboard:  false,
		IncludeBranch:    false,
		BranchMaxLength:  _defaultBranchMaxLength,
	}
}

// validProviders are the accepted values for the provider key.
var validProviders = []string{"anthropic", "azure", "bedrock", "cohere", "gemini", "huggingface", "openai"}

// validFormats are the accepted values for the format key.
var validFormats = []string{string(FormatConventional), string(FormatFreeform), string(FormatGitmoji)}

// kind is the declared type of a configuration key, driving coercion.
type kind int

const (
	kindString kind = iota // optional string; "null"/"none" clear it
	kindEnum
	kindInt
	kindFloat
	kindBool
)

// field declares one configuration key: its type, enum set for kindEnum, and
// inclusive range for kindInt/kindFloat. optional marks keys that may be
// absent after resolution (model, provider, max_chars).
type field struct {
	kind       kind
	enum       []string
	min, max   int
	fmin, fmax float64
	optional   bool
}

// schema is the fixed allow-list of configuration keys. Unknown keys in any
// source fail resolution.
var schema = map[string]field{
	"model":              {kind: kindString, optional: true},
	"provider":           {kind: kindEnum, enum: validProviders, optional: true},
	"format":             {kind: kindEnum, enum: validFormats},
	"history_depth":      {kind: kindInt, min: 0, max: 50},
	"timeout":            {kind: kindInt, min: 5, max: 300},
	"temperature":        {kind: kindFloat, fmin: 0.0, fmax: 2.0},
	"max_tokens":         {kind: kindInt, min: 1, max: math.MaxInt},
	"max_diff_bytes":     {kind: kindInt, min: 1, max: math.MaxInt},
	"max_message_length": {kind: kindInt, min: 1, max: math.MaxInt},
	"max_chars":          {kind: kindInt, min: 1, max: 500, optional: true},
	"copy_to_clipboard":  {kind: kindBool},
	"include_branch":     {kind: kindBool},
	"branch_max_length":  {kind: kindInt, min: 20, max: 200},
}

// Keys returns the sorted allow-list of configuration keys.
func Keys() []string {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Known reports whether key is in the allow-list.
func Known(key string) bool {
	_, ok := schema[key]
	return ok
}

// EnvName returns the environment variable for a configuration key, e.g.
// "GMUSE_MAX_CHARS" for "max_chars".
func EnvName(key string) string {
	return "GMUSE_" + strings.ToUpper(key)
}

// Resolve merges the three raw sources over the defaults and returns the
// typed configuration. Precedence per key: cli > file > env > default.
// Any unknown key, coercion failure, or out-of-range value returns an error
// wrapping ErrInvalid; resolution never partially succeeds.
func Resolve(cli, file, env map[string]any) (*Config, error) {
	for _, src := range []map[string]any{cli, file, env} {
		for key := range src {
			if !Known(key) {
				return nil, fmt.Errorf("%w: unknown key %q (valid keys: %s)",
					ErrInvalid, key, strings.Join(Keys(), ", "))
			}
		}
	}

	cfg := Defaults()
	for _, key := range Keys() {
		v, ok := firstPresent(key, cli, file, env)
		if !ok {
			continue
		}
		if err := assign(&cfg, key, v); err != nil {
			return nil, err
		}
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// firstPresent returns the highest-precedence value for key. A nil value in a
// source counts as absent, so sources built from optional flags can include
// every key unconditionally.
func firstPresent(key string, sources ...map[string]any) (any, bool) {
	for _, src := range sources {
		if v, ok := src[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// assign coerces v per the key's declared type and stores it in cfg.
// Range and enum checks happen later in validate, after all keys are set.
func assign(cfg *Config, key string, v any) error {
	switch key {
	case "model":
		s, cleared, err := coerceOptionalString(key, v)
		if err != nil {
			return err
		}
		if cleared {
			cfg.Model = ""
		} else {
			cfg.Model = s
		}
	case "provider":
		s, cleared, err := coerceOptionalString(key, v)
		if err != nil {
			return err
		}
		if cleared {
			cfg.Provider = ""
		} else {
			cfg.Provider = s
		}
	case "format":
		s, _, err := coerceOptionalString(key, v)
		if err != nil {
			return err
		}
		cfg.Format = Format(s)
	case "history_depth":
		n, err := coerceInt(key, v)
		if err != nil {
			return err
		}
		cfg.HistoryDepth = n
	case "timeout":
		n, err := coerceInt(key, v)
		if err != nil {
			return err
		}
		cfg.Timeout = n
	case "temperature":
		x, err := coerceFloat(key, v)
		if err != nil {
			return err
		}
		cfg.Temperature = x
	case "max_tokens":
		n, err := coerceInt(key, v)
		if err != nil {
			return err
		}
		cfg.MaxTokens = n
	case "max_diff_bytes":
		n, err := coerceInt(key, v)
		if err != nil {
			return err
		}
		cfg.MaxDiffBytes = n
	case "max_message_length":
		n, err := coerceInt(key, v)
		if err != nil {
			return err
		}
		cfg.MaxMessageLength = n
	case "max_chars":
		if s, ok := v.(string); ok && isNullToken(s) {
			cfg.MaxChars = nil
			return nil
		}
		n, err := coerceInt(key, v)
		if err != nil {
			return err
		}
		cfg.MaxChars = &n
	case "copy_to_clipboard":
		b, err := coerceBool(key, v)
		if err != nil {
			return err
		}
		cfg.CopyToClipboard = b
	case "include_branch":
		b, err := coerceBool(key, v)
		if err != nil {
			return err
		}
		cfg.IncludeBranch = b
	case "branch_max_length":
		n, err := coerceInt(key, v)
		if err != nil {
			return err
		}
		cfg.BranchMaxLength = n
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
	}
	return nil
}

// validate applies range and enum checks to a fully assigned Config.
func validate(cfg *Config) error {
	if cfg.Provider != "" {
		if err := checkEnum("provider", cfg.Provider, validProviders); err != nil {
			return err
		}
	}
	if err := checkEnum("format", string(cfg.Format), validFormats); err != nil {
		return err
	}
	if err := checkIntRange("history_depth", cfg.HistoryDepth); err != nil {
		return err
	}
	if err := checkIntRange("timeout", cfg.Timeout); err != nil {
		return err
	}
	if err := checkIntRange("max_tokens", cfg.MaxTokens); err != nil {
		return err
	}
	if err := checkIntRange("max_diff_bytes", cfg.MaxDiffBytes); err != nil {
		return err
	}
	if err := checkIntRange("max_message_length", cfg.MaxMessageLength); err != nil {
		return err
	}
	if cfg.MaxChars != nil {
		if err := checkIntRange("max_chars", *cfg.MaxChars); err != nil {
			return err
		}
	}
	if err := checkIntRange("branch_max_length", cfg.BranchMaxLength); err != nil {
		return err
	}
	f := schema["temperature"]
	if cfg.Temperature < f.fmin || cfg.Temperature > f.fmax {
		return fmt.Errorf("%w: temperature must be between %.1f and %.1f, got %v",
			ErrInvalid, f.fmin, f.fmax, cfg.Temperature)
	}
	return nil
}

func checkEnum(key, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s, got %q",
		ErrInvalid, key, strings.Join(valid, ", "), value)
}

func checkIntRange(key string, n int) error {
	f := schema[key]
	if n >= f.min && n <= f.max {
		return nil
	}
	if f.max == math.MaxInt {
		return fmt.Errorf("%w: %s must be at least %d, got %d", ErrInvalid, key, f.min, n)
	}
	return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalid, key, f.min, f.max, n)
}

// isNullToken reports whether s is a literal null token ("null"/"none",
// case-insensitive), which clears an optional key.
func isNullToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "none":
		return true
	}
	return false
}

// coerceOptionalString returns the string value of v, or cleared=true when v
// is a null token. Non-string values are a type error.
func coerceOptionalString(key string, v any) (s string, cleared bool, err error) {
	str, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s must be a string, got %v", ErrInvalid, key, v)
	}
	if isNullToken(str) {
		return "", true, nil
	}
	return str, false, nil
}

// coerceBool accepts native booleans and the case-insensitive string tokens
// true/1/yes and false/0/no. Anything else is a type error.
func coerceBool(key string, v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("%w: %s must be a boolean (true/1/yes or false/0/no), got %q", ErrInvalid, key, t)
	}
	return false, fmt.Errorf("%w: %s must be a boolean, got %v", ErrInvalid, key, v)
}

// coerceInt accepts native integers (TOML decodes to int64) and decimal
// strings. Parse failure is a type error naming the key and raw value.
func coerceInt(key string, v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		if t < int64(math.MinInt) || t > int64(math.MaxInt) {
			return 0, fmt.Errorf("%w: %s value out of range: %d", ErrInvalid, key, t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalid, key, t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalid, key, v)
}

// coerceFloat accepts native floats and integers plus decimal strings.
func coerceFloat(key string, v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalid, key, t)
		}
		return x, nil
	}
	return 0, fmt.Errorf("%w: %s must be a number, got %v", ErrInvalid, key, v)
}

// ParseValue coerces a raw string for key per its declared type, returning a
// value suitable for storing in the config file. A null token on an optional
// key returns nil, meaning "remove the key". Range checks are the caller's
// concern (run the result through Resolve).
func ParseValue(key, raw string) (any, error) {
	f, ok := schema[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key %q (valid keys: %s)",
			ErrInvalid, key, strings.Join(Keys(), ", "))
	}
	if f.optional && isNullToken(raw) {
		return nil, nil
	}
	switch f.kind {
	case kindBool:
		return coerceBool(key, raw)
	case kindInt:
		return coerceInt(key, raw)
	case kindFloat:
		return coerceFloat(key, raw)
	default:
		return raw, nil
	}
}

// Value returns the resolved value of key formatted for display ("none" for
// unset optional keys). Used by the info and config view commands.
func (c *Config) Value(key string) string {
	switch key {
	case "model":
		return orNone(c.Model)
	case "provider":
		return orNone(c.Provider)
	case "format":
		return string(c.Format)
	case "history_depth":
		return strconv.Itoa(c.HistoryDepth)
	case "timeout":
		return strconv.Itoa(c.Timeout)
	case "temperature":
		return strconv.FormatFloat(c.Temperature, 'g', -1, 64)
	case "max_tokens":
		return strconv.Itoa(c.MaxTokens)
	case "max_diff_bytes":
		return strconv.Itoa(c.MaxDiffBytes)
	case "max_message_length":
		return strconv.Itoa(c.MaxMessageLength)
	case "max_chars":
		if c.MaxChars == nil {
			return "none"
		}
		return strconv.Itoa(*c.MaxChars)
	case "copy_to_clipboard":
		return strconv.FormatBool(c.CopyToClipboard)
	case "include_branch":
		return strconv.FormatBool(c.IncludeBranch)
	case "branch_max_length":
		return strconv.Itoa(c.BranchMaxLength)
	}
	return ""
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Path returns the global config file location, e.g.
// ~/.config/gmuse/config.toml.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", erruser.New("Could not determine config directory.", err)
	}
	return filepath.Join(dir, "gmuse", "config.toml"), nil
}

// LoadFile reads a TOML config file into a raw source map for Resolve.
// A missing file is not an error; it yields an empty map.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, erruser.New("Could not read configuration file.", err)
	}
	values := map[string]any{}
	if _, err := toml.Decode(string(data), &values); err != nil {
		return nil, fmt.Errorf("%w: invalid TOML in %s: %v", ErrInvalid, path, err)
	}
	return values, nil
}

// EnvValues collects the GMUSE_* variables for every allow-listed key from an
// environment in os.Environ() form. Values stay raw strings; coercion happens
// in Resolve. Empty values are skipped, so `GMUSE_MODEL= gmuse msg` does not
// clear a file-configured model.
func EnvValues(environ []string) map[string]any {
	byName := make(map[string]string, len(environ))
	for _, kv := range environ {
		idx := strings.Index(kv, "=")
		if idx <= 0 {
			continue
		}
		byName[kv[:idx]] = kv[idx+1:]
	}
	values := map[string]any{}
	for _, key := range Keys() {
		if v, ok := byName[EnvName(key)]; ok && strings.TrimSpace(v) != "" {
			values[key] = strings.TrimSpace(v)
		}
	}
	return values
}

// WriteKey persists one key into the config file at path, creating the file
// and its directory if needed. A nil value removes the key. The rest of the
// file's keys are preserved; comments are not.
func WriteKey(path, key string, value any) error {
	values, err := LoadFile(path)
	if err != nil {
		return err
	}
	if value == nil {
		delete(values, key)
	} else {
		values[key] = value
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return erruser.New("Could not create config directory.", err)
	}
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(values); err != nil {
		return erruser.New("Could not encode configuration.", err)
	}
	if err := os.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return erruser.New("Could not write configuration file.", err)
	}
	return nil
}
