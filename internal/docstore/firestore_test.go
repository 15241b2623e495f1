package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeGetter struct {
	err      error
	docs     map[string]map[string]any
	deadline bool
	closed   bool
}

func (f *fakeGetter) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[collection+"/"+id]
	if !ok {
		return nil, status.Error(codes.NotFound, "no such document")
	}
	return doc, nil
}

func (f *fakeGetter) Close() error {
	f.closed = true
	return nil
}

func TestReader_GetDocument(t *testing.T) {
	getter := &fakeGetter{docs: map[string]map[string]any{
		"purchase_stats/nellore": {"city": "Nellore", "visits": int64(42)},
	}}
	reader := NewReader(getter, time.Second, nil)

	doc, err := reader.GetDocument(context.Background(), "purchase_stats", "nellore")
	require.NoError(t, err)
	assert.Equal(t, "Nellore", doc.Data["city"])
	assert.Equal(t, "purchase_stats", doc.Collection)
	assert.True(t, getter.deadline)

	require.NoError(t, reader.Close())
	assert.True(t, getter.closed)
}

func TestReader_GetDocumentErrors(t *testing.T) {
	tests := []struct {
		err     error
		wantIs  error
		name    string
		missing bool
	}{
		{name: "not found", missing: true, wantIs: common.ErrNotFound},
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), wantIs: common.ErrStoreUnavailable},
		{name: "permission", err: status.Error(codes.PermissionDenied, "nope")},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewReader(&fakeGetter{err: tt.err}, 0, nil)

			_, err := reader.GetDocument(context.Background(), "purchase_stats", "x")
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
				return
			}
			assert.NotErrorIs(t, err, common.ErrNotFound)
			assert.NotErrorIs(t, err, common.ErrStoreUnavailable)
		})
	}
}
