// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pelletier/go-toml"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Format is a descriptor file format.
type Format string

// Descriptor formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// SchemaID is the $id of the descriptor schema.
const SchemaID = "https://holomush.dev/schemas/pluginhost/plugin.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jschema.Schema
	schemaErr      error
)

// GenerateSchema renders the JSON Schema for descriptor files.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Descriptor{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "pluginhost plugin descriptor"
	schema.Description = "Schema for plugin.yaml and plugin.toml descriptor files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("schema").Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateSchema checks a descriptor document against the generated schema.
func ValidateSchema(data []byte, format Format) error {
	errb := oops.In("schema").With("format", string(format))
	if len(data) == 0 {
		return errb.Errorf("descriptor is empty")
	}

	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return errb.Wrapf(err, "invalid YAML")
		}
	case FormatTOML:
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return errb.Wrapf(err, "invalid TOML")
		}
		doc = tree.ToMap()
	default:
		return errb.Errorf("unknown descriptor format %q", format)
	}

	sch, err := descriptorSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(jsonTypes(doc)); err != nil {
		return errb.Wrapf(err, "schema validation failed")
	}
	return nil
}

func descriptorSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			schemaErr = oops.In("schema").Wrapf(err, "parse schema")
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("plugin.schema.json", doc); err != nil {
			schemaErr = oops.In("schema").Wrapf(err, "add schema resource")
			return
		}
		compiledSchema, schemaErr = c.Compile("plugin.schema.json")
		if schemaErr != nil {
			schemaErr = oops.In("schema").Wrapf(schemaErr, "compile schema")
		}
	})
	return compiledSchema, schemaErr
}

// jsonTypes normalizes decoded YAML and TOML values to the types the
// validator accepts.
func jsonTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = jsonTypes(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = jsonTypes(v)
		}
		return out
	case int:
		return json.Number(strconv.Itoa(val))
	case int64:
		return json.Number(strconv.FormatInt(val, 10))
	case uint64:
		return json.Number(strconv.FormatUint(val, 10))
	case nil, string, bool, float64:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return val
		}
		return out
	}
}

// FormatSchemaError trims the wrapper text from a schema error.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, "schema validation failed: "); ok {
		return rest
	}
	return msg
}
