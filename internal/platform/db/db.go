package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql | sqlite3
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	// sqlite3 のときのみ使用
	Path string `yaml:"path"`
}

// DSN は driver ごとの接続文字列を返す
func (c DatabaseConfig) DSN() string {
	if c.Driver == DriverSQLite {
		// busy_timeout と外部キー、書き込みTxは即時ロック
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", c.Path)
	}
	// マイグレーションファイルが複数文を含むので multiStatements を有効にする
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC&multiStatements=true",
		c.Username, c.Password, c.Host, c.Port, c.DBName)
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.Driver == DriverSQLite {
		if dir := filepath.Dir(c.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open(c.Driver, c.DSN())
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	if c.Driver == DriverSQLite {
		// SQLite は書き込みが直列なので接続は1本に絞る
		db.SetMaxOpenConns(1)
		return db, nil
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	db.SetMaxOpenConns(80)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
