package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/idea2impact/grantpilot/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system env vars")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var total, enriched, embedded, unprocessed int
	err = pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(deadline_date_iso),
			count(embedding),
			count(*) FILTER (WHERE NOT is_processed)
		FROM opportunities
	`).Scan(&total, &enriched, &embedded, &unprocessed)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	var proposals, profiles int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM proposals").Scan(&proposals); err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM user_profiles").Scan(&profiles); err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Total opportunities: %d\n", total)
	fmt.Printf("With parsed deadline: %d\n", enriched)
	fmt.Printf("With embedding: %d\n", embedded)
	fmt.Printf("Unprocessed: %d\n", unprocessed)
	fmt.Printf("Proposals: %d\n", proposals)
	fmt.Printf("Profiles: %d\n", profiles)
}
