package invoice

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc := newTestService(t, nil)
	svc.metrics = metrics.New(reg)
	h := NewHandler(svc, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), common.DiscardLogger())
	server := httptest.NewServer(h.Router())
	t.Cleanup(server.Close)
	return server, svc
}

func postForm(t *testing.T, target string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.Post(target, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHandler_Settings(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postForm(t, server.URL+"/settings", url.Values{
		"store_name":    {"Ravi Stores"},
		"store_address": {"Nellore"},
		"issuer_id":     {"3388"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	get, err := http.Get(server.URL + "/settings")
	require.NoError(t, err)
	defer get.Body.Close()
	var settings model.StoreSettings
	require.NoError(t, json.NewDecoder(get.Body).Decode(&settings))
	assert.Equal(t, model.StoreSettings{StoreName: "Ravi Stores", StoreAddress: "Nellore", IssuerID: "3388"}, settings)

	bad := postForm(t, server.URL+"/settings", url.Values{"store_name": {"only name"}})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestHandler_CreateAndFetchInvoice(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postForm(t, server.URL+"/invoices", url.Values{
		"issuer_name": {"Ravi"},
		"gst":         {"9"},
		"item_name[]": {"rice", "dal"},
		"item_cost[]": {"60", "40"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.NotNil(t, result.Invoice)
	assert.Equal(t, testInvoiceID, result.Invoice.ID)
	assert.InDelta(t, 118, result.Invoice.GrossAmount, 1e-9)
	assert.Equal(t, []model.InvoiceItem{{Name: "rice", Cost: 60}, {Name: "dal", Cost: 40}}, result.Invoice.Items)

	get, err := http.Get(server.URL + "/invoices/" + testInvoiceID)
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)
	var inv model.Invoice
	require.NoError(t, json.NewDecoder(get.Body).Decode(&inv))
	assert.Equal(t, *result.Invoice, inv)

	list, err := http.Get(server.URL + "/invoices")
	require.NoError(t, err)
	defer list.Body.Close()
	var ids map[string][]string
	require.NoError(t, json.NewDecoder(list.Body).Decode(&ids))
	assert.Equal(t, []string{testInvoiceID}, ids["ids"])

	m, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	body, err := io.ReadAll(m.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tachyon_invoices_created_total 1")
}

func TestHandler_CreateInvoice_BadRequests(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		form url.Values
		name string
	}{
		{name: "missing gst", form: url.Values{"issuer_name": {"Ravi"}}},
		{name: "bad cost", form: url.Values{"issuer_name": {"Ravi"}, "gst": {"5"}, "item_name[]": {"a"}, "item_cost[]": {"cheap"}}},
		{name: "mismatched items", form: url.Values{"issuer_name": {"Ravi"}, "gst": {"5"}, "item_name[]": {"a", "b"}, "item_cost[]": {"1"}}},
		{name: "missing issuer", form: url.Values{"gst": {"5"}}},
		{name: "negative gst", form: url.Values{"issuer_name": {"Ravi"}, "gst": {"-5"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postForm(t, server.URL+"/invoices", tt.form)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestHandler_GetInvoice_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/invoices/6f1c1d8e-1111-4222-8333-944455556666")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	health, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
