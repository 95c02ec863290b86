package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/vncsmyrnk/awards/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/awards/internal/config"
	"github.com/vncsmyrnk/awards/internal/core/services"
)

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	provider, err := cfg.ConnectionProvider(nil)
	if err != nil {
		log.Fatal(err)
	}

	resultsService := services.NewResultsService(provider, postgres.NewStandingsRepository())

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Println("Computing award standings...")

	standings, err := resultsService.Standings(ctx)
	if err != nil {
		log.Fatalf("Error computing standings: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(standings); err != nil {
		log.Fatalf("Error writing standings: %v", err)
	}

	log.Printf("Standings computed for %d categories.", len(standings))
}
