// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// RuntimeVersion is the plugin API revision this host implements.
// Descriptors declaring a higher min-runtime are refused.
const RuntimeVersion = 1

// ReservedID may never be used as a plugin id.
const ReservedID = "_global"

// Descriptor file names, in lookup order.
const (
	YAMLDescriptor = "plugin.yaml"
	TOMLDescriptor = "plugin.toml"
)

// Type identifies the isolation backend of a plugin.
type Type string

// Plugin types.
const (
	TypeStatic Type = "static"
	TypeLua    Type = "lua"
	TypeBinary Type = "binary"
)

const maxIDLength = 64

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Descriptor is the immutable identity of a plugin, read once when the
// plugin is loaded.
type Descriptor struct {
	ID           string        `yaml:"id" toml:"id" json:"id" jsonschema:"pattern=^[a-z][a-z0-9_-]*$,maxLength=64"`
	Name         string        `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	Version      string        `yaml:"version" toml:"version" json:"version"`
	Author       string        `yaml:"author,omitempty" toml:"author,omitempty" json:"author,omitempty"`
	Dependencies []string      `yaml:"dependencies,omitempty" toml:"dependencies,omitempty" json:"dependencies,omitempty"`
	MinRuntime   int           `yaml:"min-runtime,omitempty" toml:"min-runtime,omitempty" json:"min-runtime,omitempty" jsonschema:"minimum=1"`
	Debug        bool          `yaml:"debug,omitempty" toml:"debug,omitempty" json:"debug,omitempty"`
	Type         Type          `yaml:"type" toml:"type" json:"type" jsonschema:"enum=lua,enum=binary"`
	Lua          *LuaConfig    `yaml:"lua,omitempty" toml:"lua,omitempty" json:"lua,omitempty"`
	Binary       *BinaryConfig `yaml:"binary,omitempty" toml:"binary,omitempty" json:"binary,omitempty"`
}

// LuaConfig holds Lua plugin settings.
type LuaConfig struct {
	Entry string `yaml:"entry" toml:"entry" json:"entry"`
}

// BinaryConfig holds binary plugin settings.
type BinaryConfig struct {
	Executable string `yaml:"executable" toml:"executable" json:"executable"`
}

// DisplayName returns the name used in logs and messages.
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Runtime returns the minimum runtime revision, defaulting to the current one.
func (d *Descriptor) Runtime() int {
	if d.MinRuntime == 0 {
		return RuntimeVersion
	}
	return d.MinRuntime
}

// DependsOn reports whether id is a declared dependency.
func (d *Descriptor) DependsOn(id string) bool {
	for _, dep := range d.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Validate checks field constraints. It does not check runtime
// compatibility; see CheckRuntime.
func (d *Descriptor) Validate() error {
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	errb := oops.In("descriptor").With("plugin", d.ID)
	if d.Version == "" {
		return errb.With("field", "version").Errorf("version is required")
	}
	if _, err := semver.NewVersion(d.Version); err != nil {
		return errb.With("field", "version").With("version", d.Version).Wrapf(err, "version is not semver")
	}
	if d.MinRuntime < 0 {
		return errb.With("field", "min-runtime").Errorf("min-runtime must be positive, got %d", d.MinRuntime)
	}
	for _, dep := range d.Dependencies {
		if err := ValidateID(dep); err != nil {
			return errb.With("field", "dependencies").Wrap(err)
		}
	}

	switch d.Type {
	case TypeStatic:
	case TypeLua:
		if d.Lua == nil || d.Lua.Entry == "" {
			return errb.With("field", "lua.entry").Errorf("lua.entry is required when type is lua")
		}
	case TypeBinary:
		if d.Binary == nil || d.Binary.Executable == "" {
			return errb.With("field", "binary.executable").Errorf("binary.executable is required when type is binary")
		}
	default:
		return errb.With("field", "type").Errorf("type must be lua or binary, got %q", d.Type)
	}
	return nil
}

// CheckRuntime fails when the plugin needs a newer host.
func (d *Descriptor) CheckRuntime() error {
	if d.Runtime() > RuntimeVersion {
		return oops.Code(CodeIncompatibleRuntime).
			With("plugin", d.ID).
			With("min_runtime", d.Runtime()).
			With("runtime", RuntimeVersion).
			Errorf("plugin %s requires runtime %d, host provides %d", d.DisplayName(), d.Runtime(), RuntimeVersion)
	}
	return nil
}

// ValidateID checks a plugin id.
func ValidateID(id string) error {
	errb := oops.In("descriptor").With("field", "id").With("id", id)
	switch {
	case id == "":
		return errb.Errorf("id is required")
	case id == ReservedID:
		return errb.Errorf("id %q is reserved", ReservedID)
	case len(id) > maxIDLength:
		return errb.Errorf("id must be %d characters or less, got %d", maxIDLength, len(id))
	case !idPattern.MatchString(id):
		return errb.Errorf("id %q must start with a-z and contain only a-z, 0-9, '-' and '_'", id)
	}
	return nil
}

// ParseYAML parses and validates a plugin.yaml document.
func ParseYAML(data []byte) (*Descriptor, error) {
	if err := ValidateSchema(data, FormatYAML); err != nil {
		return nil, err
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, oops.In("descriptor").With("format", "yaml").Wrapf(err, "invalid YAML")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseTOML parses and validates a plugin.toml document.
func ParseTOML(data []byte) (*Descriptor, error) {
	if err := ValidateSchema(data, FormatTOML); err != nil {
		return nil, err
	}
	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, oops.In("descriptor").With("format", "toml").Wrapf(err, "invalid TOML")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ReadDescriptor reads plugin.yaml, or plugin.toml when there is no YAML
// descriptor, from dir.
func ReadDescriptor(dir string) (*Descriptor, error) {
	for _, name := range []string{YAMLDescriptor, TOMLDescriptor} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path) //nolint:gosec // path is built from the plugin directory
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, oops.In("descriptor").With("path", path).Wrap(err)
		}
		var d *Descriptor
		if name == YAMLDescriptor {
			d, err = ParseYAML(data)
		} else {
			d, err = ParseTOML(data)
		}
		if err != nil {
			return nil, oops.In("descriptor").With("path", path).Wrap(err)
		}
		return d, nil
	}
	return nil, oops.In("descriptor").
		With("dir", dir).
		Errorf("no %s or %s in %s", YAMLDescriptor, TOMLDescriptor, dir)
}

// HasDescriptor reports whether dir contains a descriptor file.
func HasDescriptor(dir string) bool {
	for _, name := range []string{YAMLDescriptor, TOMLDescriptor} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}
