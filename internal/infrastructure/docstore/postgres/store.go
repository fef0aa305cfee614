// internal/infrastructure/docstore/postgres/store.go
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JSONMap is a jsonb column decoded into plain Go values
type JSONMap map[string]any

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Document is one stored document, keyed by its full path
type Document struct {
	Path       string    `gorm:"primaryKey;type:text"`
	Collection string    `gorm:"type:text;not null;index"`
	Data       JSONMap   `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName sets the table name
func (Document) TableName() string {
	return "documents"
}

// Postgres error codes that mean a concurrent batch won
const (
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"
)

// Store is the PostgreSQL remote backend. Documents live in one jsonb table.
type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewStore creates a new PostgreSQL document store
func NewStore(db *gorm.DB, log *logrus.Logger) *Store {
	return &Store{
		db:  db,
		log: log.WithField("component", "postgres"),
	}
}

// GetDocument reads the document at path
func (s *Store) GetDocument(ctx context.Context, path string) (docstore.Document, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return docstore.Document{}, err
	}

	var row Document
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	return toDocument(row), nil
}

// SetDocumentMerge merges patch into the document at path, creating it when missing
func (s *Store) SetDocumentMerge(ctx context.Context, path string, patch map[string]any) error {
	if err := docstore.ValidatePath(path); err != nil {
		return err
	}

	row := Document{
		Path:       path,
		Collection: docstore.Collection(path),
		Data:       JSONMap(patch),
		UpdatedAt:  time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.Assignments(map[string]any{
			"data":       gorm.Expr("documents.data || EXCLUDED.data"),
			"updated_at": gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to set document %s: %w", path, err)
	}
	return nil
}

// QueryByField returns the documents directly inside collection whose field equals value
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	var rows []Document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND data @> ?::jsonb", collection, JSONMap{field: value}).
		Order("path").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}

	out := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDocument(row))
	}
	return out, nil
}

// RunAtomicBatch locks the touched rows in a serializable transaction, plans the
// batch against them and upserts the results. Serialization failures surface as
// docstore.ErrConflict.
func (s *Store) RunAtomicBatch(ctx context.Context, ops []docstore.Op) error {
	if err := docstore.Validate(ops); err != nil {
		return err
	}
	paths := docstore.Paths(ops)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("path IN ?", paths).
			Find(&rows).Error; err != nil {
			return fmt.Errorf("failed to lock documents: %w", err)
		}

		current := make(map[string]map[string]any, len(rows))
		for _, row := range rows {
			current[row.Path] = row.Data
		}

		writes, err := docstore.Plan(current, ops)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, w := range writes {
			row := Document{
				Path:       w.Path,
				Collection: docstore.Collection(w.Path),
				Data:       JSONMap(w.Result),
				UpdatedAt:  now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "path"}},
				DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("failed to write %s: %w", w.Path, err)
			}
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeSerializationFailure || pgErr.Code == codeUniqueViolation) {
		s.log.WithError(err).Info("Batch transaction conflicted")
		return docstore.ErrConflict
	}
	return err
}

func toDocument(row Document) docstore.Document {
	data := map[string]any(row.Data)
	if data == nil {
		data = map[string]any{}
	}
	return docstore.Document{Path: row.Path, Data: data}
}
