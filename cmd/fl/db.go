package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/farmlink/farmlink/internal/config"
	"github.com/farmlink/farmlink/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd(g))
	cmd.AddCommand(newDBSeedCmd(g))
	cmd.AddCommand(newDBResetCmd(g))
	return cmd
}

func newDBInitCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the FarmLink database",
		Long:  "Creates the MySQL database when needed and migrates all marketplace tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, g)
		},
	}
}

func runDBInit(cmd *cobra.Command, g *globals) error {
	out := cmd.OutOrStdout()

	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "mysql" {
		if err := createMySQL(cmd, cfg.Database, false); err != nil {
			return err
		}
	}

	if err := migrate(cmd, cfg.Database); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nFarmLink database initialized successfully.")
	return nil
}

func newDBSeedCmd(g *globals) *cobra.Command {
	var fixturesPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, listings and negotiations from a fixtures file",
		Long: `Upserts users and listings and creates missing negotiations with their
opening messages. Running it twice with the same file does not duplicate messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSeed(cmd, g, fixturesPath)
		},
	}

	cmd.Flags().StringVarP(&fixturesPath, "fixtures", "f", "fixtures.yaml", "path to fixtures file")
	return cmd
}

func runDBSeed(cmd *cobra.Command, g *globals, fixturesPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}
	fixtures, err := config.LoadFixtures(fixturesPath)
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	counts, err := db.SeedFixtures(gormDB, fixtures)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d users, %d offers, %d demands\n", counts.Users, counts.Offers, counts.Demands)
	fmt.Fprintf(out, "Created %d negotiations with %d messages\n", counts.Negotiations, counts.Messages)
	return nil
}

func newDBResetCmd(g *globals) *cobra.Command {
	var yes, force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the FarmLink database",
		Long: `Drops every marketplace table (or the whole MySQL database) and migrates
a fresh schema. All negotiations and idempotency keys are lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, g, yes || force)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt (alias for --yes)")
	return cmd
}

func runDBReset(cmd *cobra.Command, g *globals, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}
	target := cfg.Database.Path
	if cfg.Database.Driver == "mysql" {
		target = cfg.Database.Database
	}

	if !skipConfirm && !confirmReset(cmd, target) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	switch cfg.Database.Driver {
	case "mysql":
		if err := createMySQL(cmd, cfg.Database, true); err != nil {
			return err
		}
	default:
		gormDB, err := db.Open(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.DropTables(gormDB); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped %d tables from %s\n", len(db.AllModels()), target)
	}

	if err := migrate(cmd, cfg.Database); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nFarmLink database reset successfully.")
	return nil
}

// createMySQL ensures the configured database exists, dropping it first
// when drop is set.
func createMySQL(cmd *cobra.Command, cfg config.DatabaseConfig, drop bool) error {
	out := cmd.OutOrStdout()

	adminDB, err := db.ConnectAdmin(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to MySQL at %s:%d\n", cfg.Host, cfg.Port)

	if drop {
		if err := db.DropDatabase(adminDB, cfg.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped database %s\n", cfg.Database)
	}
	if err := db.CreateDatabase(adminDB, cfg.Database); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %s ready\n", cfg.Database)
	return nil
}

func migrate(cmd *cobra.Command, cfg config.DatabaseConfig) error {
	gormDB, err := db.Open(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
