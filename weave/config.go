package weave

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// ConfigFile is the file name the command line tool looks for in the
// working directory.
const ConfigFile = "weaver.toml"

// Matching strategies accepted by Config.Matching.
const (
	MatchStructural = "structural"
	MatchBaseType   = "base-type"
	MatchExact      = "exact"
)

// Config configures a weaving run.
//
// The zero value weaves with the structural matcher and without stack
// verification. DefaultConfig enables verification.
type Config struct {
	// Matcher overrides Matching when set.
	Matcher CapabilityMatcher `toml:"-"`

	// Resolver overrides SearchPaths when set. It is reused across runs,
	// so modules it loaded stay cached.
	Resolver *il.Resolver `toml:"-"`

	// Literals adds or replaces the loaders for annotation argument kinds.
	Literals map[il.LiteralKind]LiteralLoader `toml:"-"`

	Matching    string    `toml:"matching"`     // structural, base-type or exact
	Capability  string    `toml:"capability"`   // base type for base-type matching
	Handlers    []string  `toml:"handlers"`     // type names for exact matching
	BindMarker  string    `toml:"bind_marker"`  // property annotation for self-binding
	SearchPaths []string  `toml:"search_paths"` // directories holding referenced modules
	Output      string    `toml:"output"`       // Weave writes here instead of the input path
	Log         LogConfig `toml:"log"`
	Verify      bool      `toml:"verify"`
}

// LiteralLoader returns the instructions that push one annotation argument
// before the handler constructor is called. The sequence must leave exactly
// one value on the stack.
type LiteralLoader func(lit il.Literal) ([]*il.Instruction, error)

// LogConfig holds logging settings used by the command line tools.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() Config {
	return Config{
		Matching:   MatchStructural,
		Capability: il.TypeAspect,
		BindMarker: il.TypeBindInstance,
		Verify:     true,
		Log:        LogConfig{Level: "info"},
	}
}

// LoadConfig reads a TOML file over the defaults and applies environment
// overrides. An empty path skips the file.
// Priority: env vars > TOML file > defaults
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Cause(err).
				Detail("load %s", path).
				Build()
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv applies WEAVER_* environment overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("WEAVER_SEARCH_PATH"); ok && v != "" {
		c.SearchPaths = filepath.SplitList(v)
	}
	if v, ok := lookup("WEAVER_MATCHING"); ok && v != "" {
		c.Matching = v
	}
	if v, ok := lookup("WEAVER_CAPABILITY"); ok && v != "" {
		c.Capability = v
	}
	if v, ok := lookup("WEAVER_BIND_MARKER"); ok && v != "" {
		c.BindMarker = v
	}
	if v, ok := lookup("WEAVER_VERIFY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Value(v).
				Cause(err).
				Detail("WEAVER_VERIFY").
				Build()
		}
		c.Verify = b
	}
	return nil
}

// matcher builds the capability matcher the config selects.
func (c *Config) matcher() (CapabilityMatcher, error) {
	if c.Matcher != nil {
		return c.Matcher, nil
	}
	switch strings.ToLower(c.Matching) {
	case "", MatchStructural:
		return StructuralMatcher{}, nil
	case MatchBaseType:
		base := c.Capability
		if base == "" {
			base = il.TypeAspect
		}
		return NewBaseTypeMatcher(base), nil
	case MatchExact:
		if len(c.Handlers) == 0 {
			return nil, errors.InvalidInput(errors.PhaseConfig, "exact matching needs at least one handler")
		}
		return NewExactMatcher(c.Handlers), nil
	}
	return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Value(c.Matching).
		Detail("unknown matching strategy %q", c.Matching).
		Build()
}
