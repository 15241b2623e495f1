package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/gcp"
	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/service"
	"github.com/google/uuid"
)

// Pass identifies an issued receipt pass.
type Pass struct {
	ClassID  string `json:"classId"`
	ObjectID string `json:"objectId"`
	SaveURL  string `json:"saveUrl"`
}

// Issuer creates receipt passes. Classes and objects are created on first
// use and reused afterwards.
type Issuer struct {
	api         API
	signer      Signer
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	issuerID    string
	classSuffix string
	retryOpts   service.RetryOptions
}

// NewIssuer creates an issuer for issuerID's receipt class.
func NewIssuer(api API, signer Signer, issuerID, classSuffix string, logger *slog.Logger, m *metrics.Metrics) (*Issuer, error) {
	if strings.TrimSpace(issuerID) == "" {
		return nil, common.MissingConfig("wallet.issuer_id")
	}
	if strings.TrimSpace(classSuffix) == "" {
		return nil, common.MissingConfig("wallet.class_suffix")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		api:         api,
		signer:      signer,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
		issuerID:    issuerID,
		classSuffix: classSuffix,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// ClassID is the full id of the receipt class.
func (i *Issuer) ClassID() string {
	return ClassID(i.issuerID, i.classSuffix)
}

// EnsureClass creates the receipt class unless it already exists.
func (i *Issuer) EnsureClass(ctx context.Context) (string, error) {
	classID := i.ClassID()
	created, err := i.createOrGet(ctx,
		func() error { return i.api.GetClass(ctx, classID) },
		func() error { return i.api.InsertClass(ctx, ClassBody(classID)) })
	if err != nil {
		return "", fmt.Errorf("failed to ensure class %s: %w", classID, err)
	}
	if created {
		i.logger.Info("wallet class created", "class_id", classID)
	} else {
		i.logger.Debug("wallet class exists", "class_id", classID)
	}
	return classID, nil
}

// IssueReceipt ensures the class and the receipt object exist and returns
// a save link for the object. A receipt without a transaction id gets a
// generated one.
func (i *Issuer) IssueReceipt(ctx context.Context, receipt model.ReceiptData) (pass *Pass, err error) {
	defer func() { i.metrics.IncrementPassIssued(err) }()

	if receipt.TransactionID == "" {
		receipt.TransactionID = "TXN_" + uuid.NewString()
	}

	classID, err := i.EnsureClass(ctx)
	if err != nil {
		return nil, err
	}

	objectID := ObjectID(i.issuerID, receipt.TransactionID)
	created, err := i.createOrGet(ctx,
		func() error { return i.api.GetObject(ctx, objectID) },
		func() error { return i.api.InsertObject(ctx, ObjectBody(classID, objectID, receipt, i.now())) })
	if err != nil {
		return nil, fmt.Errorf("failed to ensure object %s: %w", objectID, err)
	}

	saveURL, err := i.signer.SaveURL(classID, objectID)
	if err != nil {
		return nil, err
	}

	i.logger.Info("wallet pass issued", "object_id", objectID, "created", created)
	return &Pass{ClassID: classID, ObjectID: objectID, SaveURL: saveURL}, nil
}

// IssueInvoice issues a receipt pass for an invoice.
func (i *Issuer) IssueInvoice(ctx context.Context, inv *model.Invoice) (*Pass, error) {
	return i.IssueReceipt(ctx, ReceiptFromInvoice(inv))
}

// createOrGet reports whether the resource had to be created.
func (i *Issuer) createOrGet(ctx context.Context, get, insert func() error) (bool, error) {
	err := common.WithRetry(ctx, func() error { return classify(get()) }, i.retryOpts)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, common.ErrNotFound):
		return false, err
	}

	err = common.WithRetry(ctx, func() error { return classify(insert()) }, i.retryOpts)
	if gcp.IsConflict(err) {
		// An earlier attempt created it.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func classify(err error) error {
	if errors.Is(err, common.ErrNotFound) || gcp.IsConflict(err) {
		return common.Permanent(err)
	}
	return gcp.ClassifyError(err)
}
