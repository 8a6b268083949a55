package mysql

import (
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Config bundles the DSN-building parameters the teacher's NewMysqlClient
// hard-coded inline.
type Config struct {
	DBName   string
	User     string
	Passwd   string
	Addr     string
	Loc      *time.Location
	MaxOpen  int
	MaxIdle  int
	ConnTTL  time.Duration
}

// DefaultConfig matches the teacher's original hard-coded values.
func DefaultConfig() Config {
	jst, _ := time.LoadLocation("Asia/Tokyo")
	return Config{
		DBName:  "sample",
		User:    "root",
		Passwd:  "pass",
		Addr:    "db:3306",
		Loc:     jst,
		MaxOpen: 10,
		MaxIdle: 10,
		ConnTTL: 10 * time.Minute,
	}
}

// NewClient opens an sqlx-wrapped MySQL connection pool, so the query
// builders in this package (which all take *sqlx.DB) can run against it
// directly.
func NewClient(cfg Config) (*sqlx.DB, error) {
	dsn := mysql.Config{
		DBName:               cfg.DBName,
		User:                 cfg.User,
		Passwd:               cfg.Passwd,
		Addr:                 cfg.Addr,
		Net:                  "tcp",
		ParseTime:            true,
		Collation:            "utf8mb4_unicode_ci",
		AllowNativePasswords: true,
		Loc:                  cfg.Loc,
	}

	db, err := sqlx.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnTTL)

	return db, nil
}
