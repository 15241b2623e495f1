package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/google/uuid"
)

// SettingsFile holds the store settings inside the invoice directory.
const SettingsFile = "settings.json"

// ErrInvoiceExists is returned when an invoice id is reused.
var ErrInvoiceExists = fmt.Errorf("invoice already exists: %w", common.ErrDuplicateEntry)

// FileStore keeps one JSON file per invoice plus the store settings.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create invoice directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the invoice directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file an invoice id is stored in.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, "invoice_"+id+".json")
}

func marshalIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// SaveInvoice writes a new invoice. Existing invoices are never overwritten.
func (s *FileStore) SaveInvoice(inv *model.Invoice) error {
	if _, err := uuid.Parse(inv.ID); err != nil {
		return fmt.Errorf("invalid invoice id %q: %w", inv.ID, err)
	}
	data, err := marshalIndent(inv)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.Path(inv.ID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrInvoiceExists, inv.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create invoice file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write invoice: %w", err)
	}
	return f.Close()
}

// GetInvoice reads an invoice by id.
func (s *FileStore) GetInvoice(id string) (*model.Invoice, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invoice %q", common.ErrNotFound, id)
	}
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: invoice %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice: %w", err)
	}

	var inv model.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to decode invoice %s: %w", id, err)
	}
	return &inv, nil
}

// ListInvoiceIDs returns the ids of every stored invoice, sorted.
func (s *FileStore) ListInvoiceIDs() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "invoice_*.json"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "invoice_"), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadSettings returns the saved settings, or zero settings if none were saved.
func (s *FileStore) LoadSettings() (model.StoreSettings, error) {
	var settings model.StoreSettings
	data, err := os.ReadFile(filepath.Join(s.dir, SettingsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

// SaveSettings replaces the saved settings.
func (s *FileStore) SaveSettings(settings model.StoreSettings) error {
	data, err := marshalIndent(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, SettingsFile))
}
