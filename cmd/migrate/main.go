package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"ms-demo-booking/internal/auth"
	"ms-demo-booking/internal/config"
	"ms-demo-booking/internal/database"
	"ms-demo-booking/internal/database/migrations"
	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/logger"
)

const usage = "usage: migrate up | down [steps] | seed"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger("demo-booking-migrate", cfg.App.LogDir)
	defer log.Close()

	if len(os.Args) < 2 {
		log.Fatal("APP", usage)
	}

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	switch os.Args[1] {
	case "up":
		if cfg.Database.Driver == config.DriverSQLite {
			err = database.CreateSchema(ctx, bunDB)
		} else {
			err = migrations.NewRunner(bunDB, log).Up()
		}
		if err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
		log.Info("DATABASE", "✅ Schema is up to date")

	case "down":
		if cfg.Database.Driver == config.DriverSQLite {
			log.Fatal("DATABASE", "down migrations require postgres")
		}
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil || steps < 1 {
				log.Fatal("APP", usage)
			}
		}
		if err := migrations.NewRunner(bunDB, log).Down(steps); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Rollback failed: %v", err))
		}
		log.Info("DATABASE", fmt.Sprintf("✅ Rolled back %d migration(s)", steps))

	case "seed":
		if err := seedAdmin(ctx, &auth.AdminStore{Bun: bunDB}, log); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Seeding failed: %v", err))
		}

	default:
		log.Fatal("APP", usage)
	}
}

// seedAdmin creates the first admin from ADMIN_EMAIL and ADMIN_PASSWORD.
// An existing account with that email is left untouched.
func seedAdmin(ctx context.Context, store *auth.AdminStore, log *logger.Logger) error {
	email := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}
	name := os.Getenv("ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}

	admin, err := store.Create(ctx, name, email, password)
	if errors.Is(err, ledger.ErrConflict) {
		log.Info("AUTH", fmt.Sprintf("Admin %s already exists, skipping", email))
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("AUTH", fmt.Sprintf("✅ Seeded admin %s", admin.Email))
	return nil
}
