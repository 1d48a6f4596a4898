// Command migrate-new scaffolds the next migration in a catalog directory.
//
// Usage:
//
//	migrate-new -dir migrations -title add_users
//	migrate-new -dir migrations -title split_orders -bump minor -group
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getpup/pupmigrate/scaffold"
)

func main() {
	var (
		dir   = flag.String("dir", "migrations", "Migration directory")
		title = flag.String("title", "", "Migration title (letters, numbers, underscores)")
		level = flag.String("bump", "patch", "Version component to increment: major, minor, or patch")
		group = flag.Bool("group", false, "Create a grouped migration directory")
	)

	flag.Parse()

	path, err := scaffold.Generate(&scaffold.Config{
		Directory: *dir,
		Title:     *title,
		Bump:      scaffold.Bump(*level),
		Group:     *group,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created migration: %s\n", path)
}
