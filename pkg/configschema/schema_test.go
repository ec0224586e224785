package configschema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nimburion/taskmanager/pkg/config"
)

func TestBuildSchema_UsesConfigKeys(t *testing.T) {
	schema, err := BuildSchema(nil)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}

	for _, key := range []string{"service", "http", "management", "database", "observability", "openapi_validation", "migration"} {
		if _, ok := schema.Properties[key]; !ok {
			t.Errorf("expected root key %q", key)
		}
	}
	if _, ok := schema.Properties["OpenAPIValidation"]; ok {
		t.Error("did not expect Go field names in the schema")
	}
	database := schema.Properties["database"]
	if database == nil || database.Properties["circuit_breaker"] == nil {
		t.Fatal("expected database.circuit_breaker section")
	}
	if _, ok := database.Properties["database_name"]; !ok {
		t.Error("expected database.database_name property")
	}
}

func TestBuildSchema_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.Name = "tasks-eu"
	cfg.HTTP.Port = 8181

	schema, err := BuildSchema(cfg)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	if !strings.Contains(schema.Title, "tasks-eu") {
		t.Errorf("expected title to name the service, got %q", schema.Title)
	}

	tests := []struct {
		path string
		want string
	}{
		{"http.port", "8181"},
		{"database.query_timeout", `"5s"`},
		{"database.transactions", "false"},
		{"observability.log_level", `"info"`},
	}
	for _, tt := range tests {
		prop := lookup(schema, tt.path)
		if prop == nil {
			t.Fatalf("missing %s", tt.path)
		}
		if string(prop.Default) != tt.want {
			t.Errorf("%s default = %s, want %s", tt.path, prop.Default, tt.want)
		}
	}
}

func TestBuildSchema_Constraints(t *testing.T) {
	schema, err := BuildSchema(nil)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}

	port := lookup(schema, "http.port")
	if port.Minimum == nil || *port.Minimum != 1 || port.Maximum == nil || *port.Maximum != 65535 {
		t.Errorf("unexpected port bounds %+v", port)
	}
	mode := lookup(schema, "openapi_validation.mode")
	if len(mode.Enum) != 2 {
		t.Errorf("expected validation modes enum, got %v", mode.Enum)
	}
	if len(schema.Required) != 0 || len(lookup(schema, "database").Required) != 0 {
		t.Error("expected every key to be optional")
	}
}

func TestMarshal(t *testing.T) {
	schema, err := BuildSchema(nil)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	data, err := Marshal(schema)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if decoded["$schema"] != "https://json-schema.org/draft/2020-12/schema" {
		t.Errorf("unexpected $schema %v", decoded["$schema"])
	}
}
