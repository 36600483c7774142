package main

import (
	"flag"
	"log"
	"os"

	"github.com/darecoin/backend/internal/admin"
	"github.com/darecoin/backend/internal/config"
	"github.com/darecoin/backend/internal/database"
	"github.com/joho/godotenv"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	username := flag.String("username", envOr("ADMIN_USERNAME", "admin"), "admin username")
	email := flag.String("email", envOr("ADMIN_EMAIL", "admin@darecoin.local"), "admin email")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (or ADMIN_PASSWORD)")
	flag.Parse()

	if *password == "" {
		*password = "change-me-in-production"
		log.Printf("WARNING: Using default admin password. Set ADMIN_PASSWORD in production!")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	id, err := admin.CreateAdminUser(db, *username, *email, *password)
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	log.Printf("✓ Admin user created/updated successfully")
	log.Printf("  ID: %d", id)
	log.Printf("  Username: %s", *username)
	log.Printf("  Email: %s", *email)
	log.Println("\nLog in through /api/auth/login with the email and password above.")
}
