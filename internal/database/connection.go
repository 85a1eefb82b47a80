package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Capstone-E1/climasense/config"
)

// Supported ledger drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB holds the database connection and the dialect it speaks
type DB struct {
	*sql.DB
	Driver string
}

// Connect opens the run ledger described by cfg
func Connect(cfg config.LedgerConfig) (*DB, error) {
	var driver, connStr string

	switch cfg.Driver {
	case DriverSQLite:
		driver = DriverSQLite
		connStr = cfg.Path
		log.Printf("Opening SQLite ledger at %s", cfg.Path)
	case DriverPostgres:
		driver = DriverPostgres
		// Check if DATABASE_URL is provided (e.g., from Render.com)
		if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
			log.Println("Using DATABASE_URL from environment")
			connStr = databaseURL
		} else {
			connStr = BuildConnectionString(cfg)
			log.Printf("Connecting to database at %s:%s/%s", cfg.Host, cfg.Port, cfg.DBName)
		}
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
	}

	log.Printf("Successfully connected to %s ledger", driver)

	return &DB{DB: db, Driver: driver}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// Rebind rewrites ? placeholders into the driver's bind syntax
func (db *DB) Rebind(query string) string {
	if db.Driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BuildConnectionString builds a PostgreSQL connection string
func BuildConnectionString(cfg config.LedgerConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}
