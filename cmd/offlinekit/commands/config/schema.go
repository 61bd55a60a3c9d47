package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/marmos91/offlinekit/internal/bytesize"
	"github.com/marmos91/offlinekit/pkg/config"
)

const schemaID = "https://github.com/marmos91/offlinekit/config.schema.json"

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	Long: `Print the JSON schema of the configuration file, for editor
completion and CI validation of config.yaml.

Examples:
  offlinekit config schema
  offlinekit config schema --output config.schema.json`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write the schema to a file instead of stdout")
}

var (
	byteSizeType = reflect.TypeOf(bytesize.ByteSize(0))
	durationType = reflect.TypeOf(time.Duration(0))
)

// mapType describes the types that YAML accepts as strings.
func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case byteSizeType:
		return &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				{Type: "integer", Minimum: json.Number("0")},
				{Type: "string", Pattern: `^\d+(\.\d+)?\s*([KMGTkmgt]i?[Bb]?|[Bb])?$`},
			},
			Description: "Size in bytes, or with a unit such as 512MiB or 10GB",
		}
	case durationType:
		return &jsonschema.Schema{
			Type:        "string",
			Pattern:     `^(\d+(\.\d+)?(ns|us|µs|ms|s|m|h))+$`,
			Description: "Go duration such as 500ms, 30s or 1h30m",
		}
	}
	return nil
}

func generateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
		Mapper:                    mapType,
	}

	schema := r.Reflect(&config.Config{})
	schema.ID = schemaID
	schema.Version = jsonschema.Version
	schema.Title = "offlinekit Configuration"
	schema.Description = "Configuration file of the offlinekit daemon"
	return json.MarshalIndent(schema, "", "  ")
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := generateSchema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if schemaOutput == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(schemaOutput, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
	return nil
}
