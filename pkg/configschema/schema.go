// Package configschema derives a JSON Schema from the service configuration so
// config files can be checked by editors and CI before the service starts.
package configschema

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/nimburion/taskmanager/pkg/config"
)

var durationType = reflect.TypeFor[time.Duration]()

// BuildSchema returns the JSON Schema of config.Config. Property names follow
// the mapstructure keys read by the loader and defaults come from cfg, or from
// config.DefaultConfig when cfg is nil.
func BuildSchema(cfg *config.Config) (*jsonschema.Schema, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	opts := &jsonschema.ForOptions{
		IgnoreInvalidTypes: true,
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			durationType: {Type: "string", Description: "Go duration such as 500ms or 30s"},
		},
	}
	schema, err := jsonschema.For[config.Config](opts)
	if err != nil {
		return nil, fmt.Errorf("build config schema: %w", err)
	}
	schema = cloneSchema(schema)
	annotate(schema, reflect.ValueOf(cfg))
	clearRequired(schema)
	applyConstraints(schema)

	name := cmp.Or(strings.TrimSpace(cfg.Service.Name), "taskmanager")
	schema.Title = name + " configuration"
	schema.Description = "Configuration file of the " + name + " service."
	schema.Schema = "https://json-schema.org/draft/2020-12/schema"
	return schema, nil
}

// Marshal renders the schema as indented JSON.
func Marshal(schema *jsonschema.Schema) ([]byte, error) {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config schema: %w", err)
	}
	return append(data, '\n'), nil
}

// constraint narrows one property beyond what its Go type says.
type constraint struct {
	enum     []any
	min, max *float64
}

var constraints = map[string]constraint{
	"http.port":                             {min: ptr(1), max: ptr(65535)},
	"management.port":                       {min: ptr(1), max: ptr(65535)},
	"observability.log_level":               {enum: []any{"debug", "info", "warn", "error"}},
	"observability.log_format":              {enum: []any{"json", "text"}},
	"observability.tracing_sample_rate":     {min: ptr(0), max: ptr(1)},
	"openapi_validation.mode":               {enum: []any{"strict", "warn-only"}},
	"database.circuit_breaker.max_failures": {min: ptr(1)},
}

func ptr(v float64) *float64 { return &v }

func applyConstraints(schema *jsonschema.Schema) {
	for path, c := range constraints {
		prop := lookup(schema, path)
		if prop == nil {
			continue
		}
		if len(c.enum) > 0 {
			prop.Enum = c.enum
		}
		if c.min != nil {
			prop.Minimum = c.min
		}
		if c.max != nil {
			prop.Maximum = c.max
		}
	}
}

func lookup(schema *jsonschema.Schema, path string) *jsonschema.Schema {
	for _, key := range strings.Split(path, ".") {
		if schema == nil {
			return nil
		}
		schema = schema.Properties[key]
	}
	return schema
}

// annotate walks the schema alongside cfg, renaming properties from Go field
// names to mapstructure keys and recording each leaf value as its default.
func annotate(schema *jsonschema.Schema, value reflect.Value) {
	if schema == nil {
		return
	}
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		if raw, ok := defaultOf(schema, value); ok {
			schema.Default = raw
		}
		return
	}

	renamed := make(map[string]string)
	t := value.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		key := keyOf(field)
		prop, ok := schema.Properties[field.Name]
		if !ok {
			continue
		}
		delete(schema.Properties, field.Name)
		schema.Properties[key] = prop
		renamed[field.Name] = key
		annotate(prop, value.Field(i))
	}
	for i, name := range schema.PropertyOrder {
		if key, ok := renamed[name]; ok {
			schema.PropertyOrder[i] = key
		}
	}
}

// cloneSchema copies the tree so nodes shared between fields of the same
// type, such as every time.Duration, can take their own default.
func cloneSchema(schema *jsonschema.Schema) *jsonschema.Schema {
	if schema == nil {
		return nil
	}
	cp := *schema
	if schema.Properties != nil {
		cp.Properties = make(map[string]*jsonschema.Schema, len(schema.Properties))
		for key, prop := range schema.Properties {
			cp.Properties[key] = cloneSchema(prop)
		}
	}
	cp.PropertyOrder = append([]string(nil), schema.PropertyOrder...)
	cp.Items = cloneSchema(schema.Items)
	cp.AdditionalProperties = cloneSchema(schema.AdditionalProperties)
	return &cp
}

// clearRequired makes every key optional; the loader fills what a file omits.
func clearRequired(schema *jsonschema.Schema) {
	if schema == nil {
		return
	}
	schema.Required = nil
	for _, prop := range schema.Properties {
		clearRequired(prop)
	}
	clearRequired(schema.Items)
	clearRequired(schema.AdditionalProperties)
}

func defaultOf(schema *jsonschema.Schema, value reflect.Value) (json.RawMessage, bool) {
	var v any = value.Interface()
	switch {
	case value.Type() == durationType && schema.Type == "string":
		v = value.Interface().(time.Duration).String()
	case value.Kind() == reflect.Slice && value.IsNil():
		return nil, false
	}
	raw, err := json.Marshal(v)
	return raw, err == nil
}

// keyOf returns the key the config loader reads field from. Every config
// field carries a mapstructure tag.
func keyOf(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
	if name == "" {
		return strings.ToLower(field.Name)
	}
	return name
}
