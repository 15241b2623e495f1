package wallet

import (
	"time"

	"github.com/Veraticus/tachyon/internal/model"
	"github.com/shopspring/decimal"
	"google.golang.org/api/walletobjects/v1"
)

// Pass artwork and links.
const (
	PassImageURI         = "https://storage.googleapis.com/tachyon-5-bucket/tachyonion.jpg"
	PassBackgroundColor  = "#5cb85c"
	ReceiptHostingPrefix = "https://your-receipt-hosting.com/receipts/"
	VendorWebsite        = "https://your-vendor-website.com"
)

// ClassID is the full id of the issuer's receipt class.
func ClassID(issuerID, suffix string) string {
	return issuerID + "." + suffix
}

// ObjectID is the full id of the pass for one transaction.
func ObjectID(issuerID, transactionID string) string {
	return issuerID + ".receipt_" + transactionID
}

// FormatAmount renders a rupee amount with two decimals.
func FormatAmount(amount float64) string {
	return "₹ " + decimal.NewFromFloat(amount).StringFixed(2)
}

// ReceiptFromInvoice describes an invoice as a receipt pass.
func ReceiptFromInvoice(inv *model.Invoice) model.ReceiptData {
	date := inv.Timestamp
	if ts, err := time.Parse(time.RFC3339Nano, inv.Timestamp); err == nil {
		date = ts.Format(time.DateOnly)
	} else if len(date) >= len(time.DateOnly) {
		date = date[:len(time.DateOnly)]
	}
	return model.ReceiptData{
		TransactionID: inv.ID,
		VendorName:    inv.IssuerName,
		PurchaseDate:  date,
		TotalAmount:   inv.GrossAmount,
		ItemsSummary:  inv.ItemsSummary(),
	}
}

func localized(language, value string) *walletobjects.LocalizedString {
	return &walletobjects.LocalizedString{
		DefaultValue: &walletobjects.TranslatedString{Language: language, Value: value},
	}
}

func fields(paths ...string) *walletobjects.FieldSelector {
	sel := &walletobjects.FieldSelector{}
	for _, p := range paths {
		sel.Fields = append(sel.Fields, &walletobjects.FieldReference{FieldPath: p})
	}
	return sel
}

func detailsItem(path string) *walletobjects.DetailsItemInfo {
	return &walletobjects.DetailsItemInfo{Item: &walletobjects.TemplateItem{FirstValue: fields(path)}}
}

// ClassBody is the generic class every receipt pass belongs to.
func ClassBody(classID string) *walletobjects.GenericClass {
	return &walletobjects.GenericClass{
		Id: classID,
		ClassTemplateInfo: &walletobjects.ClassTemplateInfo{
			CardTemplateOverride: &walletobjects.CardTemplateOverride{
				CardRowTemplateInfos: []*walletobjects.CardRowTemplateInfo{
					{TwoItems: &walletobjects.CardRowTwoItems{
						StartItem: &walletobjects.TemplateItem{FirstValue: fields(`object.textModulesData["total_amount"]`)},
						EndItem:   &walletobjects.TemplateItem{FirstValue: fields(`object.textModulesData["purchase_date"]`)},
					}},
					{TwoItems: &walletobjects.CardRowTwoItems{
						StartItem: &walletobjects.TemplateItem{FirstValue: fields(`object.textModulesData["vendor_name"]`)},
					}},
				},
			},
			DetailsTemplateOverride: &walletobjects.DetailsTemplateOverride{
				DetailsItemInfos: []*walletobjects.DetailsItemInfo{
					detailsItem(`class.imageModulesData["vendor_logo_header"]`),
					detailsItem(`class.textModulesData["receipt_description"]`),
					detailsItem(`class.linksModuleData.uris["vendor_website"]`),
					detailsItem(`class.linksModuleData.uris["view_full_receipt"]`),
				},
			},
		},
		ImageModulesData: []*walletobjects.ImageModuleData{{
			Id: "vendor_logo_header",
			MainImage: &walletobjects.Image{
				SourceUri:          &walletobjects.ImageUri{Uri: PassImageURI},
				ContentDescription: localized("en-US", "Store banner"),
			},
		}},
		TextModulesData: []*walletobjects.TextModuleData{{
			Id:     "receipt_description",
			Header: "Digital Receipt",
			Body:   "Thank you for your purchase!",
		}},
		LinksModuleData: &walletobjects.LinksModuleData{
			Uris: []*walletobjects.Uri{
				{Id: "vendor_website", Uri: VendorWebsite, Description: "Visit Our Website"},
				{Id: "view_full_receipt", Uri: ReceiptHostingPrefix, Description: "View Full Itemized Receipt"},
			},
		},
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// ObjectBody is the pass shown for one receipt.
func ObjectBody(classID, objectID string, r model.ReceiptData, today time.Time) *walletobjects.GenericObject {
	total := FormatAmount(r.TotalAmount)
	return &walletobjects.GenericObject{
		Id:                 objectID,
		ClassId:            classID,
		State:              "ACTIVE",
		HexBackgroundColor: PassBackgroundColor,
		Logo: &walletobjects.Image{
			SourceUri: &walletobjects.ImageUri{Uri: PassImageURI},
		},
		CardTitle: localized("en", "Digital Receipt"),
		Subheader: localized("en", orDefault(r.VendorName, "Local Vendor")),
		Header:    localized("en", "Total: "+total),
		Barcode: &walletobjects.Barcode{
			Type:          "QR_CODE",
			Value:         r.TransactionID,
			AlternateText: "Receipt: " + r.TransactionID,
		},
		HeroImage: &walletobjects.Image{
			SourceUri:          &walletobjects.ImageUri{Uri: PassImageURI},
			ContentDescription: localized("en-US", "Receipt banner"),
		},
		TextModulesData: []*walletobjects.TextModuleData{
			{Id: "vendor_name", Header: "VENDOR", Body: orDefault(r.VendorName, "N/A")},
			{Id: "purchase_date", Header: "DATE", Body: orDefault(r.PurchaseDate, today.Format(time.DateOnly))},
			{Id: "total_amount", Header: "TOTAL", Body: total},
			{Id: "payment_method", Header: "PAYMENT", Body: orDefault(r.PaymentMethod, "N/A")},
			{Id: "items_summary", Header: "ITEMS", Body: orDefault(r.ItemsSummary, "No items listed")},
			{Id: "receipt_id", Header: "RECEIPT ID", Body: r.TransactionID},
		},
		LinksModuleData: &walletobjects.LinksModuleData{
			Uris: []*walletobjects.Uri{{
				Id:          "full_receipt_link",
				Uri:         ReceiptHostingPrefix + r.TransactionID,
				Description: "View Full Itemized Receipt Online",
			}},
		},
	}
}
