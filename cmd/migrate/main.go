package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"classpoll/config"
	"classpoll/internal/repository"
	"classpoll/pkg/database"

	"gorm.io/gorm"
)

const usage = `
Classpoll - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create tables and indexes
  down        Drop all tables (DANGEROUS)
  status      Show database connection status and table counts
  seed        Insert sample ended polls with responses
  reset       Drop all tables and re-run migrations (DANGEROUS)

Flags:
  -polls int       Number of polls to seed (default 3)
  -students int    Responses per seeded poll (default 8)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed -polls 5
  go run cmd/migrate/main.go reset
`

func main() {
	pollCount := flag.Int("polls", 3, "Number of polls to seed")
	students := flag.Int("students", 8, "Responses per seeded poll")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	if flag.NArg() > 1 {
		// allow flags after the command
		_ = flag.CommandLine.Parse(flag.Args()[1:])
	}

	// Load config and connect to database
	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp(db)
	case "down":
		runMigrationsDown(db)
	case "status":
		showStatus(db)
	case "seed":
		runSeed(db, *pollCount, *students)
	case "reset":
		runReset(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("🚀 Running migrations UP...")

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func runMigrationsDown(db *gorm.DB) {
	log.Println("⬇️  Dropping tables...")

	if err := repository.DropSchema(db); err != nil {
		log.Fatalf("❌ Rollback failed: %v", err)
	}

	log.Println("✅ Rollback completed successfully!")
}

func showStatus(db *gorm.DB) {
	log.Println("🔍 Checking database status...")

	if err := database.HealthCheck(); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, table := range []string{"polls", "poll_options", "responses"} {
		if !database.TableExists(db, table) {
			log.Printf("❌ Table %-15s does not exist", table)
			continue
		}
		count, err := database.GetTableCount(db, table)
		if err != nil {
			log.Printf("⚠️  Error counting table %s: %v", table, err)
			continue
		}
		log.Printf("✅ Table %-15s exists (%d rows)", table, count)
	}
}

func runSeed(db *gorm.DB, polls, students int) {
	log.Println("🌱 Seeding database...")

	seedCfg := database.DefaultSeedConfig()
	seedCfg.PollCount = polls
	seedCfg.StudentsPerPoll = students

	result, err := database.Seed(db, seedCfg)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("📊 Seed Summary:")
	log.Printf("   - Polls: %d", len(result.Polls))
	log.Printf("   - Responses: %d", result.Responses)
	log.Println("✅ Seeding completed!")
}

func runReset(db *gorm.DB) {
	log.Println("⚠️  WARNING: This will DROP all tables and re-run migrations!")
	log.Println("⚠️  Press Ctrl+C within 5 seconds to cancel...")

	fmt.Print("Proceeding in: ")
	for i := 5; i > 0; i-- {
		fmt.Printf("%d... ", i)
		time.Sleep(time.Second)
	}
	fmt.Println()

	runMigrationsDown(db)
	runMigrationsUp(db)

	log.Println("✅ Database reset completed!")
}
