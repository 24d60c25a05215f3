package migrate_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/supplylink/groupbuy-backend/pkg/migrate"
)

func TestGroupOrderMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_group_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no group order migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS group_orders",
		"CHECK (status IN ('open', 'confirmed', 'closed', 'delivered'))",
		"CHECK (max_participants >= min_participants)",
		"FOREIGN KEY (order_id) REFERENCES group_orders(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_participants_order_vendor",
		"FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS group_orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationContainsPartialIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_outbox_events.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no outbox migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"WHERE published_at IS NULL",
		"CHECK (attempt_count >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate",
		"ON outbox_events (event_type, aggregate_type, aggregate_id)",
		"WHERE event_type IN ('group_order_confirmed', 'group_order_closed', 'group_order_expired', 'group_order_delivered')",
		"DROP TABLE IF EXISTS outbox_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

// Earlier migrations must not pre-create a table a later CREATE ... IF NOT
// EXISTS expects to own: the later statement would silently no-op and the
// effective schema would diverge from the models.
func TestEachTableCreatedByExactlyOneMigration(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no migration files found")
	}

	createRe := regexp.MustCompile(`CREATE TABLE(?: IF NOT EXISTS)? (\w+)`)
	owners := map[string][]string{}
	contents := map[string]string{}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		contents[file] = string(data)
		for _, m := range createRe.FindAllStringSubmatch(string(data), -1) {
			table := m[1]
			owners[table] = append(owners[table], file)
		}
	}

	for table, files := range owners {
		if len(files) != 1 {
			t.Errorf("table %s created by %d migrations: %v", table, len(files), files)
		}
	}

	for _, table := range []string{"group_orders", "material_lines", "participants", "participant_items", "outbox_events"} {
		if len(owners[table]) == 0 {
			t.Errorf("no migration creates table %s", table)
		}
	}

	// The participants model maps created_at; the owning migration must
	// define the column or every join INSERT fails against Postgres.
	if files := owners["participants"]; len(files) == 1 {
		if !strings.Contains(contents[files[0]], "created_at") {
			t.Errorf("participants migration %s missing created_at column", files[0])
		}
	}
}
