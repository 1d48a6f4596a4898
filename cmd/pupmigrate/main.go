// Command pupmigrate applies semver-ordered SQL migrations to a database.
//
// Usage:
//
//	pupmigrate -driver postgres -dsn "postgres://localhost/app?sslmode=disable" -dir migrations
//
// Apply nothing, only verify the database against the catalog:
//
//	pupmigrate -driver sqlite3 -dsn app.db -dir migrations -migrate=false
//
// Rehearse a run without persisting anything:
//
//	pupmigrate -driver mysql -dsn "user:pass@/app" -dir migrations -dry-run
//
// Reset bookkeeping and reapply everything, then load fixture data:
//
//	pupmigrate -driver sqlite3 -dsn app.db -dir migrations -reset -load fixtures/seed.sql
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/getpup/pupmigrate"
	"github.com/getpup/pupmigrate/engine"
	"github.com/getpup/pupmigrate/pkg/version"
)

func main() {
	var (
		driver  = flag.String("driver", "sqlite3", "Database driver: postgres, mysql, or sqlite3")
		dsn     = flag.String("dsn", "", "Driver-specific data source name")
		dir     = flag.String("dir", "migrations", "Migration directory")
		reset   = flag.Bool("reset", false, "Clear bookkeeping before migrating")
		migrate = flag.Bool("migrate", true, "Apply pending migrations")
		dryRun  = flag.Bool("dry-run", false, "Roll back instead of committing")
		load    = flag.String("load", "", "Comma-separated extra scripts to run after migrations")
		table   = flag.String("table", "schema_version", "Bookkeeping table name")
		quiet   = flag.Bool("quiet", false, "Suppress progress output")
	)

	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "Error: -dsn is required")
		os.Exit(1)
	}

	var reporter pupmigrate.Reporter = pupmigrate.NewConsoleReporter(os.Stdout)
	if *quiet {
		reporter = pupmigrate.SilentReporter{}
	} else {
		log.Printf("pupmigrate v%s", version.Version)
	}

	opts := []engine.Option{
		engine.WithTarget(*driver, *dsn),
		engine.WithDirectory(*dir),
		engine.WithReset(*reset),
		engine.WithMigrate(*migrate),
		engine.WithDryRun(*dryRun),
		engine.WithReporter(reporter),
		engine.WithTableName(*table),
	}
	if *load != "" {
		for _, path := range strings.Split(*load, ",") {
			opts = append(opts, engine.WithLoad(strings.TrimSpace(path)))
		}
	}

	eng, err := engine.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := eng.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
