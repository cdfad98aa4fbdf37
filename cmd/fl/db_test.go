package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/farmlink/farmlink/internal/db"
	"github.com/farmlink/farmlink/internal/models"
)

const fixturesYAML = `
users:
  - id: u-awa
    name: Awa Traoré
  - id: u-moussa
    name: Moussa Keita
offers:
  - id: off-mil
    user_id: u-awa
    title: Mil de Ségou
    price: 500
    quantity: 120
    unit: kg
    location: Ségou
demands:
  - id: dem-riz
    user_id: u-moussa
    title: Riz paddy
    max_price: 350
    quantity: 2
    unit: tonne
negotiations:
  - id: neg-1
    offer_id: off-mil
    initiator_id: u-moussa
    messages:
      - user_id: u-moussa
        content: Bonjour, le mil est disponible ?
  - id: neg-2
    demand_id: dem-riz
    initiator_id: u-awa
`

// seededConfig initializes and seeds a sqlite database through the CLI.
func seededConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	cfgPath, dbPath = writeSQLiteConfig(t, "")
	fixturesPath := filepath.Join(filepath.Dir(cfgPath), "fixtures.yaml")
	writeTestFile(t, fixturesPath, fixturesYAML)

	if out, err := runCLI(t, "", "db", "init", "--config", cfgPath); err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	if out, err := runCLI(t, "", "db", "seed", "--config", cfgPath, "--fixtures", fixturesPath); err != nil {
		t.Fatalf("db seed: %v\n%s", err, out)
	}
	return cfgPath, dbPath
}

func countRows(t *testing.T, dbPath string, model interface{}) int64 {
	t.Helper()
	gormDB, err := db.ConnectSQLite(dbPath)
	if err != nil {
		t.Fatalf("open %s: %v", dbPath, err)
	}
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	var n int64
	if err := gormDB.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func TestDBCmd_Help(t *testing.T) {
	out, err := runCLI(t, "", "db", "--help")
	if err != nil {
		t.Fatalf("db --help failed: %v", err)
	}
	for _, want := range []string{"Database management", "init", "seed", "reset"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help to contain %q, got: %s", want, out)
		}
	}
}

func TestDBInitCmd_SQLite(t *testing.T) {
	cfgPath, dbPath := writeSQLiteConfig(t, "")

	out, err := runCLI(t, "", "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init: %v", err)
	}
	if !strings.Contains(out, "Migrated 6 tables") {
		t.Errorf("expected migration summary, got: %s", out)
	}
	if strings.Contains(out, "MySQL") {
		t.Errorf("sqlite init should not touch MySQL, got: %s", out)
	}
	if n := countRows(t, dbPath, &models.Negotiation{}); n != 0 {
		t.Errorf("negotiations = %d, want 0", n)
	}
}

func TestDBSeedCmd(t *testing.T) {
	cfgPath, dbPath := writeSQLiteConfig(t, "")
	fixturesPath := filepath.Join(filepath.Dir(cfgPath), "fixtures.yaml")
	writeTestFile(t, fixturesPath, fixturesYAML)

	if _, err := runCLI(t, "", "db", "init", "--config", cfgPath); err != nil {
		t.Fatalf("db init: %v", err)
	}
	out, err := runCLI(t, "", "db", "seed", "--config", cfgPath, "--fixtures", fixturesPath)
	if err != nil {
		t.Fatalf("db seed: %v", err)
	}
	if !strings.Contains(out, "Seeded 2 users, 1 offers, 1 demands") {
		t.Errorf("unexpected seed summary: %s", out)
	}
	if !strings.Contains(out, "Created 2 negotiations with 1 messages") {
		t.Errorf("unexpected negotiation summary: %s", out)
	}

	// Second run creates nothing new.
	out, err = runCLI(t, "", "db", "seed", "--config", cfgPath, "--fixtures", fixturesPath)
	if err != nil {
		t.Fatalf("db seed rerun: %v", err)
	}
	if !strings.Contains(out, "Created 0 negotiations with 0 messages") {
		t.Errorf("rerun should not create negotiations: %s", out)
	}
	if n := countRows(t, dbPath, &models.NegotiationMessage{}); n != 1 {
		t.Errorf("messages = %d, want 1", n)
	}
}

func TestDBSeedCmd_MissingFixtures(t *testing.T) {
	cfgPath, _ := writeSQLiteConfig(t, "")
	_, err := runCLI(t, "", "db", "seed", "--config", cfgPath, "--fixtures", "/nonexistent/fixtures.yaml")
	if err == nil {
		t.Fatal("expected error for missing fixtures")
	}
	if !strings.Contains(err.Error(), "load fixtures") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load fixtures")
	}
}

func TestDBResetCmd_Aborted(t *testing.T) {
	cfgPath, dbPath := seededConfig(t)

	out, err := runCLI(t, "no\n", "db", "reset", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(out, "Type \"yes\" to confirm") {
		t.Errorf("expected confirmation prompt, got: %s", out)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Errorf("expected abort, got: %s", out)
	}
	if n := countRows(t, dbPath, &models.Negotiation{}); n != 2 {
		t.Errorf("negotiations = %d, want 2 after abort", n)
	}
}

func TestDBResetCmd_Confirmed(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "typed yes", stdin: "yes\n"},
		{name: "yes flag", args: []string{"--yes"}},
		{name: "force flag", args: []string{"--force"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath, dbPath := seededConfig(t)

			args := append([]string{"db", "reset", "--config", cfgPath}, tt.args...)
			out, err := runCLI(t, tt.stdin, args...)
			if err != nil {
				t.Fatalf("db reset: %v", err)
			}
			if !strings.Contains(out, "Dropped 6 tables") || !strings.Contains(out, "reset successfully") {
				t.Errorf("unexpected reset output: %s", out)
			}
			if n := countRows(t, dbPath, &models.Negotiation{}); n != 0 {
				t.Errorf("negotiations = %d, want 0 after reset", n)
			}
		})
	}
}
