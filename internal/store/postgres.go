package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/activityserve/activityserve/internal/domain"
)

type documentModel struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     []byte    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (documentModel) TableName() string { return "documents" }

// PostgresStore persists documents in a single jsonb-valued table.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresFromDB wraps an existing connection; used by tests.
func NewPostgresFromDB(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate() error {
	return s.db.AutoMigrate(&documentModel{})
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Document, error) {
	var row documentModel
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError{Resource: key}
		}
		return nil, domain.StorageError{Op: "get", Err: err}
	}

	var doc Document
	if err := json.Unmarshal(row.Value, &doc); err != nil {
		return nil, domain.StorageError{Op: "get", Err: err}
	}
	return doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.StorageError{Op: "put", Err: err}
	}

	row := documentModel{Key: key, Value: raw}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return domain.StorageError{Op: "put", Err: err}
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&documentModel{}, "key = ?", key).Error
	if err != nil {
		return domain.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// ConditionalCreate relies on the primary key plus ON CONFLICT DO NOTHING so
// that exactly one of any number of racing writers claims the key. When the
// insert is a no-op the current winner row is read back.
func (s *PostgresStore) ConditionalCreate(ctx context.Context, key string, doc Document) (bool, Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, nil, domain.StorageError{Op: "conditionalCreate", Err: err}
	}

	row := documentModel{Key: key, Value: raw}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, nil, domain.StorageError{Op: "conditionalCreate", Err: result.Error}
	}

	if result.RowsAffected > 0 {
		return true, doc, nil
	}

	existing, err := s.Get(ctx, key)
	if err != nil {
		return false, nil, domain.StorageError{Op: "conditionalCreate", Err: err}
	}
	return false, existing, nil
}

func (s *PostgresStore) QueryByFields(ctx context.Context, fields map[string]any, limit int) ([]Document, error) {
	predicate, err := json.Marshal(fields)
	if err != nil {
		return nil, domain.StorageError{Op: "queryByFields", Err: err}
	}

	query := s.db.WithContext(ctx).Model(&documentModel{}).Where("value @> ?", string(predicate))
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []documentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, domain.StorageError{Op: "queryByFields", Err: err}
	}

	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		var doc Document
		if err := json.Unmarshal(row.Value, &doc); err != nil {
			return nil, domain.StorageError{Op: "queryByFields", Err: err}
		}
		out = append(out, doc)
	}
	return out, nil
}

var _ ObjectStore = (*PostgresStore)(nil)
