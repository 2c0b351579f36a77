package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/parkspot/payment-reconciler/internal/config"
	"github.com/parkspot/payment-reconciler/internal/database"
	"github.com/parkspot/payment-reconciler/internal/models"
	"github.com/parkspot/payment-reconciler/internal/utils"
	"github.com/parkspot/payment-reconciler/pkg/validator"
)

func main() {
	var (
		dbURLFlag     string
		adminEmail    string
		adminPassword string
		adminName     string
		bcryptCost    int
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&adminEmail, "seed-admin-email", "", "create an admin user with this email after migrating up")
	flag.StringVar(&adminPassword, "seed-admin-password", "", "password for the seeded admin (or ADMIN_PASSWORD)")
	flag.StringVar(&adminName, "seed-admin-name", "Operations", "full name for the seeded admin")
	flag.IntVar(&bcryptCost, "bcrypt-cost", 12, "bcrypt cost for the seeded admin password")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: migrate [flags] up|down|status\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	command := database.MigrationCommand(flag.Arg(0))
	if command == "" {
		command = database.MigrateUp
	}

	// Optional .env in the working directory keeps secrets off the command line
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db.DB.DB, command); err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Printf("Migration %s completed.\n", command)

	if adminEmail == "" {
		return
	}
	if command != database.MigrateUp {
		log.Fatal("-seed-admin-email can only be used with up")
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("ADMIN_PASSWORD")
	}

	emailValidator := validator.NewEmailValidator()
	email := emailValidator.Sanitize(adminEmail)
	if err := emailValidator.Validate(email); err != nil {
		log.Fatalf("invalid admin email: %v", err)
	}
	hash, err := utils.HashPassword(adminPassword, bcryptCost)
	if err != nil {
		log.Fatalf("invalid admin password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin := &models.AdminUser{
		Email:        email,
		PasswordHash: hash,
		FullName:     adminName,
		IsActive:     true,
	}
	err = database.NewAdminUserRepository(db.DB).Create(ctx, admin)
	switch {
	case errors.Is(err, database.ErrAdminEmailTaken):
		fmt.Printf("Admin %s already exists, skipping.\n", email)
	case err != nil:
		log.Fatalf("failed to seed admin: %v", err)
	default:
		fmt.Printf("Admin %s created (id %s).\n", email, admin.ID)
	}
}
