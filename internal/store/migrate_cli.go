package store

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand runs one 'affectd migrate' action against the
// database at dbPath and exits on failure. The schema is managed
// entirely by the migration files, so the store is opened without the
// usual init step.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]

	fsys, err := getMigrationsFS()
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}

	s, err := OpenStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	switch action {
	case "up":
		handleMigrateUp(s, fsys)

	case "down":
		handleMigrateDown(s, fsys)

	case "status":
		handleMigrateStatus(s, fsys)

	case "version":
		handleMigrateVersion(s, fsys, versionArg(action, args))

	case "force":
		handleMigrateForce(s, fsys, versionArg(action, args))

	case "baseline":
		handleMigrateBaseline(s, versionArg(action, args))

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

// versionArg extracts and parses the numeric argument that the version,
// force and baseline actions require.
func versionArg(action string, args []string) uint {
	if len(args) < 2 {
		log.Fatalf("Usage: affectd migrate %s <version_number>", action)
	}
	v, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		log.Fatalf("Invalid version number: %s", args[1])
	}
	return uint(v)
}

func handleMigrateUp(s *Store, fsys fs.FS) {
	log.Printf("Applying migrations...")
	if err := s.MigrateUp(fsys); err != nil {
		log.Fatalf("Migration up failed: %v", err)
	}
	log.Println("All migrations applied")

	version, dirty, _ := s.MigrateVersion(fsys)
	log.Printf("Now at version %d (dirty: %v)", version, dirty)
}

func handleMigrateDown(s *Store, fsys fs.FS) {
	log.Printf("Rolling back one migration...")
	if err := s.MigrateDown(fsys); err != nil {
		log.Fatalf("Migration down failed: %v", err)
	}
	log.Println("Rolled back one migration")

	version, dirty, _ := s.MigrateVersion(fsys)
	log.Printf("Now at version %d (dirty: %v)", version, dirty)
}

func handleMigrateStatus(s *Store, fsys fs.FS) {
	version, dirty, err := s.MigrateVersion(fsys)
	if err != nil {
		log.Fatalf("Failed to read migration version: %v", err)
	}

	status, err := s.GetMigrationStatus(fsys)
	if err != nil {
		log.Fatalf("Failed to read migration status: %v", err)
	}

	latest, err := GetLatestMigrationVersion(fsys)
	if err != nil {
		log.Fatalf("Failed to determine latest migration: %v", err)
	}

	fmt.Printf("Schema version:   %d\n", version)
	fmt.Printf("Latest available: %d\n", latest)
	fmt.Printf("Dirty:            %v\n", dirty)
	fmt.Printf("Tracking table:   %v\n", status["schema_migrations_exists"])

	if dirty {
		fmt.Println("\nWARNING: a migration failed partway through.")
		fmt.Println("Inspect the database, repair it by hand, then stamp the")
		fmt.Println("known-good version with: affectd migrate force <version>")
	}
}

func handleMigrateVersion(s *Store, fsys fs.FS, target uint) {
	log.Printf("Migrating to version %d...", target)
	if err := s.MigrateTo(fsys, target); err != nil {
		log.Fatalf("Migration to version %d failed: %v", target, err)
	}
	log.Printf("Now at version %d", target)
}

// handleMigrateForce stamps the version without running anything, after
// an interactive confirmation. Recovery path for a dirty state.
func handleMigrateForce(s *Store, fsys fs.FS, target uint) {
	fmt.Printf("WARNING: this stamps the schema as version %d without running any SQL.\n", target)
	fmt.Println("Only use it to recover from a dirty migration state.")
	fmt.Print("Continue? [y/N]: ")

	var response string
	fmt.Scanln(&response)
	if response != "y" && response != "Y" {
		log.Println("Aborted")
		os.Exit(0)
	}

	if err := s.MigrateForce(fsys, int(target)); err != nil {
		log.Fatalf("Force migration failed: %v", err)
	}
	log.Printf("Schema stamped at version %d", target)
}

func handleMigrateBaseline(s *Store, version uint) {
	log.Printf("Baselining database at version %d...", version)
	if err := s.BaselineAtVersion(version); err != nil {
		log.Fatalf("Baseline failed: %v", err)
	}
}

// PrintMigrateHelp writes usage for the migrate subcommand to stdout.
func PrintMigrateHelp() {
	fmt.Println("Usage: affectd migrate <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              Apply all pending migrations")
	fmt.Println("  down            Roll back the most recent migration")
	fmt.Println("  status          Show schema version and dirty state")
	fmt.Println("  version <N>     Migrate up or down to version N")
	fmt.Println("  force <N>       Stamp version N without running SQL (recovery only)")
	fmt.Println("  baseline <N>    Record version N for a pre-existing schema")
	fmt.Println("  help            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  affectd migrate up")
	fmt.Println("  affectd migrate status")
	fmt.Println("  affectd -db /data/affect.db migrate version 2")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -db <path>    Path to database file (default: affect.db)")
}
