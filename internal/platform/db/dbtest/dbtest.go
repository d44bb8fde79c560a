// Package dbtest はテスト用の SQLite データベースを用意する。
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"LIBRA-backend/internal/platform/db"
)

// Open は t.TempDir() 配下にマイグレーション済みの DB を作り、テスト終了時に閉じる
func Open(t testing.TB) *sql.DB {
	t.Helper()

	cfg := db.DatabaseConfig{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
	conn, err := db.Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(conn, cfg.Driver); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
