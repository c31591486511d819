// Command generate-schema writes the JSON schema of the httpmemfs
// configuration file, for editor completion and validation.
//
//	generate-schema [output]    (default: config.schema.json)
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/httpmemfs/pkg/config"
)

const defaultOutput = "config.schema.json"

func main() {
	out := defaultOutput
	if len(os.Args) > 1 {
		out = os.Args[1]
	}

	if err := writeSchema(out); err != nil {
		fmt.Fprintf(os.Stderr, "generate-schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("schema written to %s\n", out)
}

func writeSchema(path string) error {
	// Property names must match the keys config.Load accepts, which are
	// the mapstructure tags.
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
	}
	schema := r.Reflect(&config.Config{})
	schema.Title = "httpmemfs configuration"
	schema.Description = "Mount, origin, download pool, filesystem and metrics settings for httpmemfs"
	schema.Version = "1.0.0"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
