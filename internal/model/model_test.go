package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpenseRecordLocation(t *testing.T) {
	tests := []struct {
		name    string
		geoInfo string
		want    string
	}{
		{name: "json geo info", geoInfo: GeoInfoFromLocation("20, Kala Circle, Nellore-128613"), want: "20, Kala Circle, Nellore-128613"},
		{name: "plain text", geoInfo: "Bangalore", want: "Bangalore"},
		{name: "json without location", geoInfo: `{"lat": 1}`, want: `{"lat": 1}`},
		{name: "empty", geoInfo: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpenseRecord{GeoInfo: tt.geoInfo}.Location())
		})
	}
}

func TestGeoInfoFromLocation(t *testing.T) {
	assert.Equal(t, `{"location":"Nellore"}`, GeoInfoFromLocation("Nellore"))
}

func TestGrossAmount(t *testing.T) {
	tests := []struct {
		name  string
		items []InvoiceItem
		cgst  float64
		sgst  float64
		want  float64
	}{
		{name: "no tax", items: []InvoiceItem{{Cost: 10}, {Cost: 5}}, want: 15},
		{name: "gst on both halves", items: []InvoiceItem{{Cost: 100}, {Cost: 50}}, cgst: 9, sgst: 9, want: 177},
		{name: "no items", cgst: 5, sgst: 5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, GrossAmount(tt.items, tt.cgst, tt.sgst), 1e-9)
		})
	}
}

func TestInvoiceItemsSummary(t *testing.T) {
	inv := Invoice{Items: []InvoiceItem{{Name: "Rice"}, {Name: "Dal"}}}
	assert.Equal(t, "Rice Dal", inv.ItemsSummary())
}

func TestStoreSettingsIsZero(t *testing.T) {
	assert.True(t, StoreSettings{}.IsZero())
	assert.False(t, StoreSettings{StoreName: "Corner Store"}.IsZero())
}

func TestProbabilityResultAvailable(t *testing.T) {
	assert.True(t, ProbabilityResult{Value: 0}.Available())
	assert.False(t, ProbabilityResult{NoData: true}.Available())
	assert.False(t, ProbabilityResult{Err: "timeout"}.Available())
}

func TestDecisionAnswer(t *testing.T) {
	assert.Equal(t, "yes", Decision{Verdict: true}.Answer())
	assert.Equal(t, "no", Decision{}.Answer())
}
