// Command schema-generator writes the JSON schemas of the target definition
// and the logging config section to schema/definitions.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/wsync/logging"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/schema"
)

func main() {
	outputDir := "schema/definitions"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	targetSchema, err := target.DefinitionSchema()
	if err != nil {
		log.Fatalf("Error generating target schema: %v", err)
	}
	write(filepath.Join(outputDir, "target.schema.json"), targetSchema)

	loggingSchema, err := schema.Generate(&logging.Config{}, "wsync Logging Configuration",
		"Schema for the 'logging' section of wsync.yml.")
	if err != nil {
		log.Fatalf("Error generating logging schema: %v", err)
	}
	write(filepath.Join(outputDir, "logging.schema.json"), loggingSchema)
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}
	log.Printf("Successfully generated schema at %s", path)
}
