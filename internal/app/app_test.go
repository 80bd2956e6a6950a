package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"igarchive/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig(base)
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Media.Type = "filesystem"
	return cfg
}

func writeExportZip(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"export/personal_information/personal_information.json": `{
			"profile_user": [{"string_map_data": {"Username": {"value": "testuser"}}}]
		}`,
		"export/connections/followers_and_following/followers_1.json": `[
			{"string_list_data": [{"value": "alice", "timestamp": 1700000000}]}
		]`,
	}
	for path, data := range files {
		w, err := zw.Create(path)
		if err != nil {
			t.Fatalf("creating zip entry: %v", err)
		}
		if _, err := w.Write([]byte(data)); err != nil {
			t.Fatalf("writing zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	path := filepath.Join(t.TempDir(), "export.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing zip file: %v", err)
	}
	return path
}

func TestAppImportAndHistory(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	ctx := context.Background()

	summary, err := a.Import(ctx, writeExportZip(t), nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.Stats.Users != 1 {
		t.Errorf("stats = %+v", summary.Stats)
	}

	runs, err := a.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID {
		t.Errorf("runs = %+v", runs)
	}
}

func TestAppReopensMigratedDatabase(t *testing.T) {
	base := t.TempDir()
	cfg := config.NewConfig(base)
	cfg.Media.Type = "filesystem"

	// First open runs the migrations from scratch.
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Second open finds the schema current and must not fail.
	a, err = New(cfg)
	if err != nil {
		t.Fatalf("reopening migrated database: %v", err)
	}
	defer a.Close()

	if _, err := a.Stats(context.Background()); err != nil {
		t.Errorf("Stats after reopen: %v", err)
	}
}

func TestAppUnknownDatabaseType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Type = "postgres"
	if _, err := New(cfg); err == nil {
		t.Fatal("New should reject unknown database types")
	}
}
