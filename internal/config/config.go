// Package config loads typekey configuration files and builds the codec,
// serializer and store they describe.
//
// A configuration names the naming strategy, the wire encoding, the
// document format, the types known to the descriptor codec, the alias
// table used by lookup naming, and the storage backend. Files may be
// YAML, JSON or CUE; the format is chosen by extension.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/typekey/internal/store"
)

// Naming strategies.
const (
	NamingDescriptor = "descriptor"
	NamingQualified  = "qualified"
	NamingLookup     = "lookup"
)

// Document formats.
const (
	DocumentsJSON    = "json"
	DocumentsMsgPack = "msgpack"
)

// Valid values for the enumerated fields.
var (
	ValidNamings   = []string{NamingDescriptor, NamingQualified, NamingLookup}
	ValidEncodings = []string{"segmented", "plain"}
	ValidDocuments = []string{DocumentsJSON, DocumentsMsgPack}
)

// Config is a parsed configuration file.
type Config struct {
	Naming    string  `yaml:"naming" json:"naming"`
	Encoding  string  `yaml:"encoding" json:"encoding"`
	Documents string  `yaml:"documents" json:"documents"`
	Types     []Type  `yaml:"types" json:"types"`
	Aliases   []Alias `yaml:"aliases" json:"aliases"`
	Storage   Storage `yaml:"storage" json:"storage"`
}

// Type declares a type the descriptor codec can resolve. Generic types
// declare their arity.
type Type struct {
	Module string `yaml:"module" json:"module"`
	Name   string `yaml:"name" json:"name"`
	Arity  int    `yaml:"arity,omitempty" json:"arity,omitempty"`
}

// Alias maps a short wire name to a descriptor string. Used only by
// lookup naming.
type Alias struct {
	Alias string `yaml:"alias" json:"alias"`
	Type  string `yaml:"type" json:"type"`
}

// Storage selects a store backend. See store.Open for DSN forms.
type Storage struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// Default returns the configuration used when no file is given: descriptor
// naming, segmented encoding, JSON documents and an in-memory store.
func Default() *Config {
	return &Config{
		Naming:    NamingDescriptor,
		Encoding:  "segmented",
		Documents: DocumentsJSON,
		Storage:   Storage{Driver: "memory"},
	}
}

// Load reads and validates the file at path. Fields the file leaves empty
// take their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg *Config
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".json":
		cfg, err = ParseJSON(data)
	case ".cue":
		cfg, err = ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("config: %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ParseYAML decodes a YAML configuration. Unknown fields are rejected.
func ParseYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ParseJSON decodes a JSON configuration. Unknown fields are rejected.
func ParseJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ParseCUE evaluates a CUE configuration. The value must be concrete;
// constraints written alongside the fields are checked by CUE itself.
func ParseCUE(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile cue: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate cue: %w", err)
	}
	cfg := &Config{}
	if err := v.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode cue: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults sets empty enumerated fields to their Default values.
func (c *Config) ApplyDefaults() {
	def := Default()
	if c.Naming == "" {
		c.Naming = def.Naming
	}
	if c.Encoding == "" {
		c.Encoding = def.Encoding
	}
	if c.Documents == "" {
		c.Documents = def.Documents
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = def.Storage.Driver
	}
}

// Validate checks the enumerated fields, type declarations and aliases.
// Alias targets are only checked for presence here; Build resolves them.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(ValidNamings, c.Naming) {
		errs = append(errs, fmt.Errorf("naming %q: must be one of %v", c.Naming, ValidNamings))
	}
	if !slices.Contains(ValidEncodings, c.Encoding) {
		errs = append(errs, fmt.Errorf("encoding %q: must be one of %v", c.Encoding, ValidEncodings))
	}
	if !slices.Contains(ValidDocuments, c.Documents) {
		errs = append(errs, fmt.Errorf("documents %q: must be one of %v", c.Documents, ValidDocuments))
	}
	if !slices.Contains(store.Drivers, c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver %q: must be one of %v", c.Storage.Driver, store.Drivers))
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("storage.dsn: required for driver %q", c.Storage.Driver))
	}

	for i, t := range c.Types {
		if t.Module == "" || t.Name == "" {
			errs = append(errs, fmt.Errorf("types[%d]: module and name are required", i))
		}
		if t.Arity < 0 {
			errs = append(errs, fmt.Errorf("types[%d]: negative arity %d", i, t.Arity))
		}
	}

	if c.Naming == NamingLookup && len(c.Aliases) == 0 {
		errs = append(errs, errors.New("aliases: lookup naming needs at least one alias"))
	}
	seen := make(map[string]bool, len(c.Aliases))
	for i, a := range c.Aliases {
		switch {
		case a.Alias == "":
			errs = append(errs, fmt.Errorf("aliases[%d]: empty alias", i))
		case a.Type == "":
			errs = append(errs, fmt.Errorf("aliases[%d]: alias %q has no type", i, a.Alias))
		case seen[a.Alias]:
			errs = append(errs, fmt.Errorf("aliases[%d]: duplicate alias %q", i, a.Alias))
		}
		seen[a.Alias] = true
	}
	return errors.Join(errs...)
}
