// menu-import loads the menu catalog from an .xlsx workbook.
//
// The first sheet needs a header row with at least the category and name columns
// (카테고리/category, 메뉴명/name); unit, price and note are optional.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/menu-import -file menus.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/sirupsen/logrus"
)

func main() {
	path := flag.String("file", "", "path to the menu workbook (.xlsx)")
	dryRun := flag.Bool("dry-run", false, "parse and print the rows without writing")
	flag.Parse()
	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := config.GetLogger()
	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *path, err)
		os.Exit(1)
	}
	defer f.Close()

	if *dryRun {
		inputs, err := models.ReadMenusFromXlsx(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse %s: %v\n", *path, err)
			os.Exit(1)
		}
		for _, m := range inputs {
			fmt.Printf("%s\t%s\t%s\n", m.ID, m.Category, m.Name)
		}
		fmt.Printf("%d rows\n", len(inputs))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := config.ConnectDatabaseWithRetry(ctx, config.DatabaseConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}
	defer config.CloseDatabase(db)

	var rdb *config.Redis
	if os.Getenv("REDIS_ADDRESS") != "" {
		rdb, err = config.ConnectRedisWithRetry(ctx)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).Warn("importing without lock: " + err.Error())
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	menus, err := models.NewMenuService(db).ImportMenusFromXlsx(ctx, f, rdb)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{"file": *path, "count": len(menus)}).Info("menu import finished")
}
