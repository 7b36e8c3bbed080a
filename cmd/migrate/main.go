// Command migrate applies the database schema. The statements in
// migrations/schema.sql are idempotent, so running this repeatedly is safe.
package main

import (
	"flag"
	"os"

	"github.com/abhishekyadav2000/fpm/internal/adapter/repository/postgres"
	"github.com/abhishekyadav2000/fpm/internal/config"
	"github.com/abhishekyadav2000/fpm/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	schemaPath := flag.String("schema", "migrations/schema.sql", "path to the schema file")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *schemaPath).Msg("Failed to read schema file")
	}

	db, err := postgres.NewDB(cfg.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if _, err := db.Exec(string(schema)); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	log.Info().Str("database", cfg.Database.Name).Msg("Schema applied")
}
