package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/realty-assistant/backend/internal/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:           "127.0.0.1",
		Port:           5432,
		Name:           "realty_dev",
		User:           "postgres",
		Password:       "p@ss word",
		SSLMode:        "disable",
		ConnectTimeout: 500 * time.Millisecond,
	})

	for _, want := range []string{"host=127.0.0.1", "port=5432", "dbname=realty_dev", "password='p@ss word'", "connect_timeout=1"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected %q in %q", want, dsn)
		}
	}
}

func TestPostgresDSNEmptyPassword(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{Host: "db", Port: 5432, Name: "n", User: "u", SSLMode: "disable", ConnectTimeout: 3 * time.Second})
	if !strings.Contains(dsn, "password=''") || !strings.Contains(dsn, "connect_timeout=3") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestOpenSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db"), ConnectTimeout: time.Second}

	db, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if err := Close(db); err != nil {
		t.Fatalf("Close err: %v", err)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestPostgresDSNQuotesWhitespace(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:           "db",
		Port:           5432,
		Name:           "realty_dev",
		User:           "postgres",
		Password:       "tab\there\nnext",
		SSLMode:        "disable",
		ConnectTimeout: time.Second,
	})

	if !strings.Contains(dsn, "password='tab\there\nnext'") {
		t.Fatalf("expected whitespace password to be quoted, got %q", dsn)
	}
	if !strings.Contains(dsn, "user=postgres ") {
		t.Fatalf("plain values must stay unquoted, got %q", dsn)
	}
}
