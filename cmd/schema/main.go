// Command schema writes a JSON schema describing the websocket wire
// protocol, for client authors.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/Rayyan-Shk/Gamitar/server/internal/net/proto"
)

// wireCatalog groups every frame the protocol can carry so a single
// reflected schema covers the full surface.
type wireCatalog struct {
	Client            proto.ClientMessage     `json:"client"`
	GridUpdate        proto.GridUpdate        `json:"gridUpdate"`
	PlayerCount       proto.PlayerCount       `json:"playerCount"`
	HistoricalUpdates proto.HistoricalUpdates `json:"historicalUpdates"`
	HistoricalState   proto.HistoricalState   `json:"historicalState"`
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath, buildSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(wireCatalog))
	schema.Title = "Gamitar Wire Protocol"
	schema.Description = "Frames exchanged over the collaborative grid websocket"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
