package main

import (
	"context"
	"log"
	"time"

	"research-agent-be/internal/config"
	"research-agent-be/internal/repository/implementation"
	"research-agent-be/pkg/database"

	"github.com/spf13/cobra"
)

var prune bool

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the pgvector extension and the chunk_embeddings table",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVar(&prune, "prune", false, "delete embeddings of every earlier index generation")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal("Error: ", err)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// 1. Load Environment Variables
	cfg := config.Load()
	if cfg.Storage.DBConnection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(cfg.Storage.DBConnection)
	if err != nil {
		return err
	}

	// 3. Extension and tables
	log.Println("Migrating pgvector extension and chunk_embeddings...")
	if err := database.Migrate(db); err != nil {
		return err
	}

	// 4. Optional cleanup of generations left by stopped servers
	if prune {
		repo := implementation.NewChunkEmbeddingRepository(db)
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := repo.DeleteStale(ctx, time.Now().UnixNano()); err != nil {
			return err
		}
		log.Println("Stale embeddings removed")
	}

	log.Println("Migration completed")
	return nil
}
