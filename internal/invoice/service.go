// Package invoice creates and serves store invoices and issues a wallet
// receipt pass for each new invoice.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/wallet"
	"github.com/google/uuid"
)

// TimestampLayout matches the naive ISO timestamps invoices carry.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// ErrInvalidInvoice is returned for malformed invoice requests.
var ErrInvalidInvoice = errors.New("invalid invoice")

// PassIssuer issues a wallet pass for a new invoice.
type PassIssuer interface {
	IssueInvoice(ctx context.Context, inv *model.Invoice) (*wallet.Pass, error)
}

// CreateRequest is the form data for a new invoice. GST applies to both
// the central and the state tax.
type CreateRequest struct {
	IssuerName string
	Items      []model.InvoiceItem
	GST        float64
}

// Result is a created invoice and, when issued, its wallet pass.
type Result struct {
	Invoice *model.Invoice `json:"invoice"`
	Pass    *wallet.Pass   `json:"pass,omitempty"`
	PassErr string         `json:"passError,omitempty"`
}

// Service creates invoices.
type Service struct {
	store   *FileStore
	passes  PassIssuer
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
	geo     model.GeoCoordinates
}

// NewService creates an invoice service. passes may be nil to skip
// wallet passes.
func NewService(store *FileStore, passes PassIssuer, geo model.GeoCoordinates, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		passes:  passes,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
		geo:     geo,
	}
}

// Store returns the backing file store.
func (s *Service) Store() *FileStore {
	return s.store
}

func validate(req CreateRequest) error {
	if strings.TrimSpace(req.IssuerName) == "" {
		return fmt.Errorf("%w: issuer name is required", ErrInvalidInvoice)
	}
	if req.GST < 0 || math.IsNaN(req.GST) || math.IsInf(req.GST, 0) {
		return fmt.Errorf("%w: gst must be a non-negative number", ErrInvalidInvoice)
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidInvoice, i+1)
		}
		if item.Cost < 0 || math.IsNaN(item.Cost) || math.IsInf(item.Cost, 0) {
			return fmt.Errorf("%w: item %q has an invalid cost", ErrInvalidInvoice, item.Name)
		}
	}
	return nil
}

// Create writes a new invoice and issues its wallet pass. A pass failure
// is reported in the result without failing the invoice.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	settings, err := s.store.LoadSettings()
	if err != nil {
		return nil, err
	}

	items := make([]model.InvoiceItem, len(req.Items))
	copy(items, req.Items)
	inv := &model.Invoice{
		ID:             s.newID(),
		IssuerName:     strings.TrimSpace(req.IssuerName),
		StoreName:      settings.StoreName,
		StoreAddress:   settings.StoreAddress,
		IssuerID:       settings.IssuerID,
		Items:          items,
		CGST:           req.GST,
		SGST:           req.GST,
		GrossAmount:    model.GrossAmount(items, req.GST, req.GST),
		Timestamp:      s.now().Format(TimestampLayout),
		GeoCoordinates: s.geo,
	}

	if err := s.store.SaveInvoice(inv); err != nil {
		return nil, err
	}
	s.metrics.IncrementInvoiceCreated()
	s.logger.Info("invoice created", "id", inv.ID, "items", len(inv.Items), "gross_amount", inv.GrossAmount)

	result := &Result{Invoice: inv}
	if s.passes == nil {
		return result, nil
	}

	pass, err := s.passes.IssueInvoice(ctx, inv)
	if err != nil {
		s.logger.Warn("wallet pass not issued", "invoice", inv.ID, "error", err)
		result.PassErr = err.Error()
		return result, nil
	}
	result.Pass = pass
	return result, nil
}
