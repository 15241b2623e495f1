package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tachyon/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrEmptySlice    = errors.New("slice cannot be empty")
	ErrInvalidRecord = errors.New("invalid expense record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRecords(records []model.ExpenseRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: records", ErrEmptySlice)
	}
	for i := range records {
		if err := validateRecord(&records[i]); err != nil {
			return fmt.Errorf("record at index %d: %w", i, err)
		}
	}
	return nil
}

func validateRecord(record *model.ExpenseRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if strings.TrimSpace(record.UserID) == "" {
		return fmt.Errorf("%w: missing uid", ErrInvalidRecord)
	}
	return nil
}
