package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/tachyon/internal/model"
)

// SaveExpenseRecords inserts or replaces records in a single transaction.
func (s *SQLiteStorage) SaveExpenseRecords(ctx context.Context, records []model.ExpenseRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	if err := validateRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO expense_records (id, uid, geo_info, fields, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, record := range records {
		var fields sql.NullString
		if len(record.Fields) > 0 {
			encoded, marshalErr := json.Marshal(record.Fields)
			if marshalErr != nil {
				return fmt.Errorf("failed to encode fields for record %s: %w", record.ID, marshalErr)
			}
			fields = sql.NullString{String: string(encoded), Valid: true}
		}

		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		if _, err := stmt.ExecContext(ctx, record.ID, record.UserID, record.GeoInfo, fields, createdAt.UTC()); err != nil {
			return fmt.Errorf("failed to save record %s: %w", record.ID, err)
		}
	}

	return tx.Commit()
}

// CountUserRecords returns the number of records stored for uid.
func (s *SQLiteStorage) CountUserRecords(ctx context.Context, uid string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expense_records WHERE uid = ?`, uid,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// CountUserRecordsAt returns the number of uid's records whose geo field
// contains location as a literal, case-insensitive substring.
func (s *SQLiteStorage) CountUserRecordsAt(ctx context.Context, uid, location string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expense_records WHERE uid = ? AND contains_fold(geo_info, ?)`,
		uid, location,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records at location: %w", err)
	}
	return count, nil
}

// GetUserRecords returns uid's most recent records, newest first.
// A non-positive limit returns every record.
func (s *SQLiteStorage) GetUserRecords(ctx context.Context, uid string, limit int) ([]model.ExpenseRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	if err := validateString(uid, "uid"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uid, geo_info, fields, created_at
		FROM expense_records
		WHERE uid = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.ExpenseRecord
	for rows.Next() {
		var (
			record model.ExpenseRecord
			fields sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.UserID, &record.GeoInfo, &fields, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &record.Fields); err != nil {
				return nil, fmt.Errorf("failed to decode fields for record %s: %w", record.ID, err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}

// DeleteUserRecords removes every record stored for uid.
func (s *SQLiteStorage) DeleteUserRecords(ctx context.Context, uid string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	if err := validateString(uid, "uid"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM expense_records WHERE uid = ?`, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	return result.RowsAffected()
}
