// seed-admin creates or resets the back-office admin user. The admin has no comp_cd,
// so it may act on every tenant.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	SEED_ADMIN_PASSWORD=... go run ./cmd/seed-admin [-name admin]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
)

const defaultAdminName = "admin"

func main() {
	name := flag.String("name", defaultAdminName, "admin user name")
	flag.Parse()

	password := strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD"))
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	db, err := config.ConnectDatabaseWithRetry(ctx, config.DatabaseConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}
	defer config.CloseDatabase(db)

	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	// Without redis, sessions of an existing admin are left to expire on their own.
	var rdb *config.Redis
	if os.Getenv("REDIS_ADDRESS") != "" {
		rdb, err = config.ConnectRedisWithRetry(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis unavailable, skipping session cleanup: %v\n", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	user, created, err := models.NewUserService(db, rdb).UpsertAdmin(ctx, *name, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upsert admin: %v\n", err)
		os.Exit(1)
	}
	if created {
		fmt.Printf("Created admin user: name=%q id=%d\n", user.Name, user.ID)
		return
	}
	fmt.Printf("Updated admin user: name=%q id=%d\n", user.Name, user.ID)
}
