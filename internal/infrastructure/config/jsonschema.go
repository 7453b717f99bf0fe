package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the Config struct into a JSON schema
// document, used by `vistagrid config schema` for editor integration.
func GenerateSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "vistagrid configuration"
	schema.Description = "Workstation viewport coordination settings"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config schema: %w", err)
	}
	return out, nil
}
