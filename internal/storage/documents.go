package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
)

// PutDocument stores data under collection/id, replacing any previous version.
func (s *SQLiteStorage) PutDocument(ctx context.Context, collection, id string, data map[string]any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	if err := validateString(collection, "collection"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, collection, id, string(encoded))
	if err != nil {
		return fmt.Errorf("failed to save document %s/%s: %w", collection, id, err)
	}
	return nil
}

// GetDocument returns the document stored under collection/id, or
// common.ErrNotFound when there is none.
func (s *SQLiteStorage) GetDocument(ctx context.Context, collection, id string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s/%s: %w", collection, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s/%s: %w", collection, id, err)
	}

	doc := &model.Document{Collection: collection, ID: id}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}
