package model

import "strings"

// InvoiceItem is one billed line.
type InvoiceItem struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// GeoCoordinates locates where an invoice was issued.
type GeoCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Invoice is persisted once at creation and never mutated.
type Invoice struct {
	ID             string         `json:"id"`
	IssuerName     string         `json:"issuer_name"`
	StoreName      string         `json:"store_name"`
	StoreAddress   string         `json:"store_address"`
	IssuerID       string         `json:"issuer_id"`
	Timestamp      string         `json:"timestamp"`
	Items          []InvoiceItem  `json:"items"`
	GeoCoordinates GeoCoordinates `json:"geo_coordinates"`
	CGST           float64        `json:"cgst"`
	SGST           float64        `json:"sgst"`
	GrossAmount    float64        `json:"gross_amount"`
}

// ItemsSummary joins the item names for display on a receipt pass.
func (i *Invoice) ItemsSummary() string {
	names := make([]string, 0, len(i.Items))
	for _, item := range i.Items {
		names = append(names, item.Name)
	}
	return strings.Join(names, " ")
}

// GrossAmount applies both tax percentages to the summed item costs.
func GrossAmount(items []InvoiceItem, cgst, sgst float64) float64 {
	var total float64
	for _, item := range items {
		total += item.Cost
	}
	return total * (1 + (cgst+sgst)/100)
}

// StoreSettings describes the issuing store.
type StoreSettings struct {
	StoreName    string `json:"store_name"`
	StoreAddress string `json:"store_address"`
	IssuerID     string `json:"issuer_id"`
}

// IsZero reports whether the settings have never been saved.
func (s StoreSettings) IsZero() bool {
	return s == StoreSettings{}
}

// ReceiptData carries what a wallet receipt pass displays.
type ReceiptData struct {
	TransactionID string
	VendorName    string
	PurchaseDate  string
	PaymentMethod string
	ItemsSummary  string
	TotalAmount   float64
}
