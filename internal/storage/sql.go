package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"latexcv/internal/models"
)

// OpenSQL connects to a sqlite3 or mysql database and pings it.
func OpenSQL(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn must be provided", driver)
	}
	var (
		db  *sql.DB
		err error
	)
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			// each pooled connection would otherwise see its own empty database
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		parsed, perr := mysql.ParseDSN(dsn)
		if perr != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", perr)
		}
		parsed.ParseTime = true
		parsed.Loc = time.UTC
		db, err = sql.Open("mysql", parsed.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the records table is present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS latex_cvs (
				id TEXT PRIMARY KEY,
				cv_text TEXT NOT NULL,
				latex TEXT NOT NULL,
				template TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_latex_cvs_created_at ON latex_cvs(created_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS latex_cvs (
				id CHAR(24) NOT NULL,
				cv_text MEDIUMTEXT NOT NULL,
				latex MEDIUMTEXT NOT NULL,
				template VARCHAR(32) NOT NULL,
				created_at DATETIME(3) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_latex_cvs_created_at (created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

// SQLStore keeps records in the latex_cvs table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, rec models.ConversionRecord) (string, error) {
	rec = normalize(rec)
	id := NewID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO latex_cvs (id, cv_text, latex, template, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, rec.OriginalText, rec.GeneratedLaTeX, string(rec.TemplateID), rec.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.ConversionRecord, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var (
		rec      models.ConversionRecord
		template string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, cv_text, latex, template, created_at FROM latex_cvs WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.OriginalText, &rec.GeneratedLaTeX, &template, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	rec.TemplateID = models.TemplateID(template)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close(context.Context) error {
	return s.db.Close()
}
