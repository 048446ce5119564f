// schema exports the JSON Schema for every event the debugger engine
// emits, for client codegen and payload validation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/emucore/debugsock/src/protocol"
)

// emittedEvents gathers the wire shapes clients can receive. The
// schema keys mirror the event names.
type emittedEvents struct {
	Error     protocol.ErrorEvent     `json:"error"`
	Log       protocol.LogEvent       `json:"log"`
	GameStart protocol.GameStartEvent `json:"game.start"`
	GameQuit  protocol.GameQuitEvent  `json:"game.quit"`
	Stepping  protocol.SteppingEvent  `json:"cpu.stepping"`
	Resume    protocol.ResumeEvent    `json:"cpu.resume"`
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(new(emittedEvents))
	schema.Title = "Debugger Engine Events"
	schema.Description = "Events the debugger engine sends over the WebSocket protocol."
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
