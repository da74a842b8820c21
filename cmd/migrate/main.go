package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/pageza/recipe-assistant/backend/config"
	"github.com/pageza/recipe-assistant/backend/internal/database"
	"github.com/pageza/recipe-assistant/backend/internal/logging"
)

// migrate creates or updates the schema without starting the API
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	db, err := database.OpenGorm(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	logger.Info("schema up to date", "tables", len(database.Models))
}
