// Package docstore reads documents from Google Cloud Firestore.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Getter is the subset of the Firestore client the reader uses.
type Getter interface {
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	Close() error
}

// Reader implements service.DocumentReader over a Getter.
type Reader struct {
	getter  Getter
	logger  *slog.Logger
	timeout time.Duration
}

// NewReader wraps getter. A zero timeout disables the per-call deadline.
func NewReader(getter Getter, timeout time.Duration, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{getter: getter, timeout: timeout, logger: logger}
}

// NewFirestoreReader opens a pooled Firestore client for project.
func NewFirestoreReader(ctx context.Context, project, credentialsFile string, timeout time.Duration, logger *slog.Logger) (*Reader, error) {
	if project == "" {
		return nil, common.MissingConfig("google.project")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: firestore client: %w", common.ErrStoreUnavailable, err)
	}
	return NewReader(&firestoreGetter{client: client}, timeout, logger), nil
}

// GetDocument fetches collection/id, returning common.ErrNotFound when absent.
func (r *Reader) GetDocument(ctx context.Context, collection, id string) (*model.Document, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	data, err := r.getter.Get(ctx, collection, id)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return nil, fmt.Errorf("document %s/%s: %w", collection, id, common.ErrNotFound)
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return nil, fmt.Errorf("%w: read %s/%s: %w", common.ErrStoreUnavailable, collection, id, err)
		default:
			return nil, fmt.Errorf("read %s/%s: %w", collection, id, err)
		}
	}

	r.logger.Debug("read document", "collection", collection, "id", id, "fields", len(data))
	return &model.Document{Collection: collection, ID: id, Data: data}, nil
}

// Close releases the underlying client.
func (r *Reader) Close() error {
	return r.getter.Close()
}

type firestoreGetter struct {
	client *firestore.Client
}

func (g *firestoreGetter) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	snap, err := g.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Data(), nil
}

func (g *firestoreGetter) Close() error {
	return g.client.Close()
}
