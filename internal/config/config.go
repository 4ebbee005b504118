// Package config loads cardest settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cardest/internal/predicate"
)

// SearchPaths are tried in order when no config file is given.
var SearchPaths = []string{"cardest.yaml", "configs/cardest.yaml"}

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Parser     ParserConfig     `yaml:"parser"`
	Registry   RegistryConfig   `yaml:"registry"`
	Vectorizer VectorizerConfig `yaml:"vectorizer"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file holding the workload tables
}

type ParserConfig struct {
	Format       string `yaml:"format"`    // "cp" or "jo"
	Separator    string `yaml:"separator"` // FROM-list delimiter, one character
	RequireWhere bool   `yaml:"require_where"`

	// Workload csv blocks.
	InnerSeparator string `yaml:"inner_separator"`
	OuterSeparator string `yaml:"outer_separator"`
}

type RegistryConfig struct {
	KeepMaterialized bool `yaml:"keep_materialized"`
}

type VectorizerConfig struct {
	MaxPredicates        int  `yaml:"max_predicates"`
	IncludeMaxCard       bool `yaml:"include_max_card"`
	IncludeCardinalities bool `yaml:"include_cardinalities"`
	Strict               bool `yaml:"strict"`
	Workers              int  `yaml:"workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "imdb.db"},
		Parser: ParserConfig{
			Format:         string(predicate.FormatCrossProduct),
			Separator:      ",",
			RequireWhere:   true,
			OuterSeparator: "#",
		},
		Vectorizer: VectorizerConfig{
			MaxPredicates: 8,
			Workers:       4,
		},
	}
}

// Load reads configPath, or the first existing search path when configPath
// is empty. Fields missing from the file keep their defaults. With no file
// at all the defaults are returned.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range SearchPaths {
			data, err := os.ReadFile(p)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return cfg, fmt.Errorf("read config %s: %w", p, err)
			}
			return decode(cfg, p, data)
		}
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return decode(cfg, configPath, data)
}

func decode(cfg *Config, path string, data []byte) (*Config, error) {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Parser.Format == "" {
		cfg.Parser.Format = string(predicate.FormatCrossProduct)
	}
	if cfg.Parser.Separator == "" {
		cfg.Parser.Separator = ","
	}
	if cfg.Parser.OuterSeparator == "" {
		cfg.Parser.OuterSeparator = "#"
	}
	if cfg.Vectorizer.Workers <= 0 {
		cfg.Vectorizer.Workers = 4
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := predicate.ParseFormat(c.Parser.Format); err != nil {
		return err
	}
	if n := len([]rune(c.Parser.Separator)); n != 1 {
		return fmt.Errorf("parser.separator must be a single character, got %q", c.Parser.Separator)
	}
	if strings.ContainsAny(c.Parser.Separator, " \t\n'\"") {
		return fmt.Errorf("parser.separator %q collides with query syntax", c.Parser.Separator)
	}
	if c.Vectorizer.MaxPredicates < 1 {
		return fmt.Errorf("vectorizer.max_predicates must be at least 1, got %d", c.Vectorizer.MaxPredicates)
	}
	if c.Vectorizer.Workers < 1 {
		return fmt.Errorf("vectorizer.workers must be at least 1, got %d", c.Vectorizer.Workers)
	}
	return nil
}

// ParserOptions converts the parser section into predicate options.
func (c *Config) ParserOptions() predicate.Options {
	format, _ := predicate.ParseFormat(c.Parser.Format)
	return predicate.Options{
		Format:       format,
		Separator:    []rune(c.Parser.Separator)[0],
		RequireWhere: c.Parser.RequireWhere,
	}
}
