package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

// OpenDB connects to MySQL with parseTime on, in the clinic timezone.
func OpenDB(ctx context.Context, loc *time.Location) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = GetEnv("DB_USER", "root")
	cfg.Passwd = GetEnv("DB_PASSWORD", "")
	cfg.Net = "tcp"
	cfg.Addr = GetEnv("DB_HOST", "127.0.0.1") + ":" + GetEnv("DB_PORT", "3306")
	cfg.DBName = GetEnv("DB_NAME", "clinic_queue")
	cfg.ParseTime = true
	cfg.Loc = loc

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Str("db", cfg.DBName).Msg("mysql connected")
	return db, nil
}
