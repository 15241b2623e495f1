package invoice

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInvoiceID = "0b8f7f3e-8a59-4d7e-9d0c-3c8f1a2b4c5d"

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "invoices"))
	require.NoError(t, err)
	return store
}

func TestFileStore_Invoices(t *testing.T) {
	store := newTestStore(t)
	inv := &model.Invoice{
		ID:          testInvoiceID,
		IssuerName:  "Ravi",
		Items:       []model.InvoiceItem{{Name: "rice", Cost: 100}},
		CGST:        9,
		SGST:        9,
		GrossAmount: 118,
	}
	require.NoError(t, store.SaveInvoice(inv))

	data, err := os.ReadFile(filepath.Join(store.Dir(), "invoice_"+testInvoiceID+".json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n    \"id\": \""+testInvoiceID+"\""))
	assert.Contains(t, string(data), `"geo_coordinates": {`)

	got, err := store.GetInvoice(testInvoiceID)
	require.NoError(t, err)
	assert.Equal(t, inv, got)

	err = store.SaveInvoice(&model.Invoice{ID: testInvoiceID})
	assert.ErrorIs(t, err, ErrInvoiceExists)
	again, err := store.GetInvoice(testInvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", again.IssuerName, "invoices are never overwritten")

	ids, err := store.ListInvoiceIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{testInvoiceID}, ids)
}

func TestFileStore_GetInvoice_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetInvoice("6f1c1d8e-1111-4222-8333-944455556666")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetInvoice("../settings")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFileStore_SaveInvoice_RejectsBadID(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.SaveInvoice(&model.Invoice{ID: "../../etc/passwd"}))
}

func TestFileStore_Settings(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.LoadSettings()
	require.NoError(t, err)
	assert.True(t, settings.IsZero())

	want := model.StoreSettings{StoreName: "Ravi Stores", StoreAddress: "20, Kala Circle, Nellore", IssuerID: "3388"}
	require.NoError(t, store.SaveSettings(want))

	got, err := store.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := os.ReadFile(filepath.Join(store.Dir(), SettingsFile))
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"store_name\": \"Ravi Stores\",\n    \"store_address\": \"20, Kala Circle, Nellore\",\n    \"issuer_id\": \"3388\"\n}\n", string(data))
}
