// Package config loads and validates the client configuration file.
//
// The file is YAML; its shape is validated by unifying the decoded document
// with the embedded CUE schema before anything touches the network. A config
// that fails the schema never produces a half-initialized client.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Defaults applied when the file omits optional fields.
const (
	DefaultDebounceMS       = 300
	DefaultWishlistCapacity = 20
	DefaultCurrency         = "PHP"
	DefaultSelectionDBName  = "animomart.db"
)

// Config is the decoded client configuration.
type Config struct {
	BaseURL          string `yaml:"base_url"`
	Token            string `yaml:"token"`
	OwnerID          string `yaml:"owner_id"`
	DebounceMS       int    `yaml:"debounce_ms"`
	WishlistCapacity int    `yaml:"wishlist_capacity"`
	SelectionDB      string `yaml:"selection_db"`
	Currency         string `yaml:"currency"`
}

// DebounceWindow returns the debounce setting as a duration.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Default returns the configuration used when no file is given. The selection
// database lands in the user cache directory, falling back to the working
// directory when none is available.
func Default() *Config {
	cfg := &Config{
		BaseURL:          "http://localhost:4000/api",
		DebounceMS:       DefaultDebounceMS,
		WishlistCapacity: DefaultWishlistCapacity,
		Currency:         DefaultCurrency,
		SelectionDB:      DefaultSelectionDBName,
	}
	if dir, err := os.UserCacheDir(); err == nil {
		cfg.SelectionDB = filepath.Join(dir, "animomart", DefaultSelectionDBName)
	}
	return cfg
}

// Load reads, schema-validates, and decodes the YAML config at path.
// Omitted optional fields take their defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse validates and decodes raw YAML config bytes.
func Parse(raw []byte) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// validate unifies the decoded document with #Config from the embedded
// schema. CUE reports every constraint violation with its path.
func validate(doc map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("compile config schema: #Config not found")
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
