package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"latexcv/internal/config"
	"latexcv/internal/models"
)

type mongoRecord struct {
	ID        primitive.ObjectID `bson:"_id"`
	CVText    string             `bson:"cv_text"`
	Latex     string             `bson:"latex"`
	Template  string             `bson:"template"`
	CreatedAt time.Time          `bson:"created_at"`
}

// MongoStore keeps one document per record in a single collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

func NewMongoStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("mongo store ready", "database", cfg.Database, "collection", cfg.Collection)
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		logger: logger,
	}, nil
}

func (s *MongoStore) Create(ctx context.Context, rec models.ConversionRecord) (string, error) {
	rec = normalize(rec)
	doc := mongoRecord{
		ID:        primitive.NewObjectID(),
		CVText:    rec.OriginalText,
		Latex:     rec.GeneratedLaTeX,
		Template:  string(rec.TemplateID),
		CreatedAt: rec.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return doc.ID.Hex(), nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.ConversionRecord, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	var doc mongoRecord
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return &models.ConversionRecord{
		ID:             doc.ID.Hex(),
		OriginalText:   doc.CVText,
		GeneratedLaTeX: doc.Latex,
		TemplateID:     models.TemplateID(doc.Template),
		CreatedAt:      doc.CreatedAt.UTC(),
	}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
