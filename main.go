package main

import (
	"context"
	"flag"
	"log"

	"github.com/looksrare/ord-indexer/internal/config"
	"github.com/looksrare/ord-indexer/internal/supervisor"
)

func main() {
	blocksQueue := flag.String("blocks-queue", "", "RMQ queue to consume block-committed events")
	inscriptionsQueue := flag.String("inscriptions-queue", "", "RMQ queue to consume inscription events")
	databaseURL := flag.String("database-url", "", "database connection url")
	ordAPIURL := flag.String("ord-api-url", "", "base URL of the ordinals inscription API")
	settingsPath := flag.String("settings", "", "optional YAML settings file")
	schemaPath := flag.String("schema", "schema.sql", "path to the bootstrap schema file")
	flag.Parse()

	if *blocksQueue == "" || *inscriptionsQueue == "" || *databaseURL == "" || *ordAPIURL == "" {
		log.Fatal("--blocks-queue, --inscriptions-queue, --database-url and --ord-api-url are required")
	}

	settings, err := config.Load(*settingsPath)
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	cfg := supervisor.Config{
		BlocksQueue:       *blocksQueue,
		InscriptionsQueue: *inscriptionsQueue,
		DatabaseURL:       *databaseURL,
		OrdAPIURL:         *ordAPIURL,
		SchemaPath:        *schemaPath,
		Settings:          settings,
	}

	if err := supervisor.Run(context.Background(), cfg); err != nil {
		log.Fatalf("supervisor exited with error: %v", err)
	}
}
