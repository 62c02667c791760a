// Package storage persists conversion records.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"latexcv/internal/config"
	"latexcv/internal/models"
)

var (
	// ErrInvalidID is returned before any lookup when an id is not 24 hex characters.
	ErrInvalidID = errors.New("invalid document id")
	ErrNotFound  = errors.New("document not found")
)

// Store is the document store gateway. Records are created once and never updated.
type Store interface {
	Create(ctx context.Context, rec models.ConversionRecord) (string, error)
	Get(ctx context.Context, id string) (*models.ConversionRecord, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open connects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Driver) {
	case "mongo", "mongodb":
		return NewMongoStore(ctx, cfg, logger)
	case "sqlite", "sqlite3", "mysql":
		db, err := OpenSQL(cfg.Driver, cfg.URI)
		if err != nil {
			return nil, err
		}
		if err := Migrate(db, cfg.Driver); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("sql store ready", "driver", cfg.Driver)
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// ParseID validates id and returns its canonical lower-case form.
func ParseID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if len(id) != 24 {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := hex.DecodeString(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return strings.ToLower(id), nil
}

// NewID returns a fresh 24-hex identifier in the same format for every backend.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// normalize fills CreatedAt and drops precision no backend keeps.
func normalize(rec models.ConversionRecord) models.ConversionRecord {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Millisecond)
	return rec
}
