package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/tachyon/internal/agent"
	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/config"
	"github.com/Veraticus/tachyon/internal/invoice"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/storage"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTestConfig points the package globals at a temporary workspace.
func useTestConfig(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("database.path", filepath.Join(dir, "tachyon.db"))
	v.Set("invoice.dir", filepath.Join(dir, "invoices"))

	loaded, err := config.Load(v)
	require.NoError(t, err)

	prevCfg, prevLogger := cfg, logger
	cfg, logger = loaded, common.DiscardLogger()
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []model.InvoiceItem
		wantErr bool
	}{
		{
			name: "name and cost",
			raw:  []string{"Rice=100", " Dal = 50.5 "},
			want: []model.InvoiceItem{{Name: "Rice", Cost: 100}, {Name: "Dal", Cost: 50.5}},
		},
		{
			name: "name containing equals",
			raw:  []string{"a=b=3"},
			want: []model.InvoiceItem{{Name: "a=b", Cost: 3}},
		},
		{name: "missing cost", raw: []string{"Rice"}, wantErr: true},
		{name: "missing name", raw: []string{"=10"}, wantErr: true},
		{name: "bad cost", raw: []string{"Rice=ten"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseItems(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, invoice.ErrInvalidInvoice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSampleRecords(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	records := sampleRecords("u1", now)

	require.Len(t, records, 4)
	nellore := 0
	for i, r := range records {
		assert.Equal(t, "u1", r.UserID)
		assert.True(t, r.CreatedAt.Before(now))
		if i > 0 {
			assert.True(t, r.CreatedAt.After(records[i-1].CreatedAt))
		}
		if r.Location() == sampleLocations[0] || r.Location() == sampleLocations[2] {
			nellore++
		}
	}
	assert.Equal(t, 2, nellore)
	assert.Equal(t, "u1/doc1", records[0].ID)
}

func TestExpandFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.ofx", "b.ofx", "c.qfx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	logger = common.DiscardLogger()

	files, err := expandFiles([]string{filepath.Join(dir, "*.ofx"), filepath.Join(dir, "c.qfx"), filepath.Join(dir, "missing.ofx")})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = expandFiles([]string{filepath.Join(dir, "*.csv")})
	assert.Error(t, err)
}

func TestDedupeRecords(t *testing.T) {
	seen := map[string]bool{"a": true}
	got := dedupeRecords([]model.ExpenseRecord{{ID: "a"}, {ID: "b"}, {ID: "b"}, {ID: "c"}}, seen)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"b", "c"}, ids)
	assert.True(t, seen["c"])
}

func TestPipelineOptions(t *testing.T) {
	useTestConfig(t)

	opts := pipelineOptions(cfg)
	assert.Equal(t, agent.BestEffort, opts.FanoutPolicy)
	assert.Equal(t, agent.DecisionOracle, opts.DecisionMode)
	assert.Equal(t, "item_metadata", opts.Collection)
	assert.InDelta(t, 0.6, opts.Weights.Personal, 1e-9)
	assert.InDelta(t, 50.0, opts.Weights.Threshold, 1e-9)
}

func TestLLMConfig(t *testing.T) {
	useTestConfig(t)
	cfg.Google.Project = "proj"

	lc := llmConfig(cfg)
	assert.Equal(t, "gemini", lc.Provider)
	assert.Equal(t, "proj", lc.Project)
	assert.Equal(t, 3, lc.MaxRetries)
	assert.Equal(t, 60*time.Second, lc.Timeout)
}

func TestOpenStores_SQLiteSharesConnection(t *testing.T) {
	useTestConfig(t)

	st, err := openStores(context.Background(), cfg)
	require.NoError(t, err)
	defer st.Close()

	assert.Same(t, st.records.(*storage.SQLiteStorage), st.documents.(*storage.SQLiteStorage))
	assert.Len(t, st.closers, 1)
}

func TestOpenStores_MongoRequiresURI(t *testing.T) {
	useTestConfig(t)
	cfg.Store.Records = config.BackendMongo

	_, err := openStores(context.Background(), cfg)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestSeedAndNotifications(t *testing.T) {
	useTestConfig(t)
	ctx := context.Background()

	var out bytes.Buffer
	seed := seedCmd()
	seed.SetContext(ctx)
	seed.SetOut(&out)
	seed.SetErr(&bytes.Buffer{})
	require.NoError(t, seed.Flags().Set("uid", "u1"))
	require.NoError(t, runSeed(seed, nil))
	assert.Contains(t, out.String(), "Seeded 4 records for u1")

	// Seeding again replaces rather than duplicates.
	require.NoError(t, runSeed(seed, nil))

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	total, err := store.CountUserRecords(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	doc, err := store.GetDocument(ctx, "item_metadata", "doc2")
	require.NoError(t, err)
	assert.Equal(t, "value2", doc.Data["other_field"])

	out.Reset()
	notes := notificationsCmd()
	notes.SetContext(ctx)
	notes.SetOut(&out)
	require.NoError(t, notes.Flags().Set("uid", "u1"))
	require.NoError(t, notes.Flags().Set("json", "true"))
	require.NoError(t, runNotifications(notes, nil))
	assert.Contains(t, out.String(), `"location"`)
}

func TestInvoiceCreateCommand(t *testing.T) {
	useTestConfig(t)

	var out bytes.Buffer
	cmd := invoiceCreateCmd()
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	require.NoError(t, cmd.Flags().Set("issuer", "Asha"))
	require.NoError(t, cmd.Flags().Set("item", "Rice=100"))
	require.NoError(t, cmd.Flags().Set("item", "Dal=50"))
	require.NoError(t, cmd.Flags().Set("gst", "9"))

	require.NoError(t, runInvoiceCreate(cmd, nil))
	assert.Contains(t, out.String(), "Gross 177.00")

	store, err := invoice.NewFileStore(cfg.Invoice.Dir)
	require.NoError(t, err)
	ids, err := store.ListInvoiceIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
