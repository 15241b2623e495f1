package wallet

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oauthjwt "golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/walletobjects/v1"
)

const testIssuer = "3388000000022973951"

type fakeAPI struct {
	getErr  error
	classes map[string]*walletobjects.GenericClass
	objects map[string]*walletobjects.GenericObject
	inserts int
	mu      sync.Mutex
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		classes: make(map[string]*walletobjects.GenericClass),
		objects: make(map[string]*walletobjects.GenericObject),
	}
}

func (f *fakeAPI) GetClass(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return f.getErr
	}
	if _, ok := f.classes[id]; !ok {
		return common.ErrNotFound
	}
	return nil
}

func (f *fakeAPI) InsertClass(_ context.Context, class *walletobjects.GenericClass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	f.classes[class.Id] = class
	return nil
}

func (f *fakeAPI) GetObject(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[id]; !ok {
		return common.ErrNotFound
	}
	return nil
}

func (f *fakeAPI) InsertObject(_ context.Context, object *walletobjects.GenericObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	f.objects[object.Id] = object
	return nil
}

func testSigner(t *testing.T) (*ServiceAccountSigner, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	signer, err := NewServiceAccountSigner(&oauthjwt.Config{
		Email:        "wallet@tachyon.iam.gserviceaccount.com",
		PrivateKey:   pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}),
		PrivateKeyID: "key-1",
	})
	require.NoError(t, err)
	signer.now = func() time.Time { return time.Unix(1_750_000_000, 0) }
	return signer, &key.PublicKey
}

func TestServiceAccountSigner_SaveURL(t *testing.T) {
	signer, pub := testSigner(t)

	url, err := signer.SaveURL(testIssuer+".receipts", testIssuer+".receipt_T1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, SaveURLPrefix))

	token, err := jwt.Parse(strings.TrimPrefix(url, SaveURLPrefix), func(tok *jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience("google"))
	require.NoError(t, err)
	assert.Equal(t, "key-1", token.Header["kid"])

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "wallet@tachyon.iam.gserviceaccount.com", claims["iss"])
	assert.Equal(t, "savetowallet", claims["typ"])
	assert.Equal(t, []any{}, claims["origins"])
	assert.Equal(t, map[string]any{
		"genericObjects": []any{
			map[string]any{"id": testIssuer + ".receipt_T1", "classId": testIssuer + ".receipts"},
		},
	}, claims["payload"])
}

func TestNewServiceAccountSigner_BadKey(t *testing.T) {
	_, err := NewServiceAccountSigner(&oauthjwt.Config{PrivateKey: []byte("not a key")})
	assert.Error(t, err)
}

func TestIssuer_IssueReceipt(t *testing.T) {
	api := newFakeAPI()
	signer, _ := testSigner(t)
	issuer, err := NewIssuer(api, signer, testIssuer, "receipts", common.DiscardLogger(), nil)
	require.NoError(t, err)

	receipt := model.ReceiptData{
		TransactionID: "T1",
		VendorName:    "Fresh Greens Market",
		PurchaseDate:  "2025-07-20",
		PaymentMethod: "UPI",
		ItemsSummary:  "Tomatoes Spinach",
		TotalAmount:   125.5,
	}

	pass, err := issuer.IssueReceipt(context.Background(), receipt)
	require.NoError(t, err)
	assert.Equal(t, testIssuer+".receipts", pass.ClassID)
	assert.Equal(t, testIssuer+".receipt_T1", pass.ObjectID)
	assert.True(t, strings.HasPrefix(pass.SaveURL, SaveURLPrefix))
	assert.Equal(t, 2, api.inserts)

	obj := api.objects[pass.ObjectID]
	require.NotNil(t, obj)
	assert.Equal(t, pass.ClassID, obj.ClassId)
	assert.Equal(t, "ACTIVE", obj.State)
	assert.Equal(t, PassBackgroundColor, obj.HexBackgroundColor)
	assert.Equal(t, "Total: ₹ 125.50", obj.Header.DefaultValue.Value)
	assert.Equal(t, "Fresh Greens Market", obj.Subheader.DefaultValue.Value)
	assert.Equal(t, "T1", obj.Barcode.Value)
	assert.Equal(t, "QR_CODE", obj.Barcode.Type)
	assert.Equal(t, ReceiptHostingPrefix+"T1", obj.LinksModuleData.Uris[0].Uri)

	modules := make(map[string]string)
	for _, m := range obj.TextModulesData {
		modules[m.Id] = m.Body
	}
	assert.Equal(t, map[string]string{
		"vendor_name":    "Fresh Greens Market",
		"purchase_date":  "2025-07-20",
		"total_amount":   "₹ 125.50",
		"payment_method": "UPI",
		"items_summary":  "Tomatoes Spinach",
		"receipt_id":     "T1",
	}, modules)

	// A second issue reuses both resources.
	again, err := issuer.IssueReceipt(context.Background(), receipt)
	require.NoError(t, err)
	assert.Equal(t, pass.ObjectID, again.ObjectID)
	assert.Equal(t, 2, api.inserts)
}

func TestIssuer_Defaults(t *testing.T) {
	api := newFakeAPI()
	signer, _ := testSigner(t)
	issuer, err := NewIssuer(api, signer, testIssuer, "receipts", common.DiscardLogger(), nil)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Date(2025, 7, 21, 9, 0, 0, 0, time.UTC) }

	pass, err := issuer.IssueReceipt(context.Background(), model.ReceiptData{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pass.ObjectID, testIssuer+".receipt_TXN_"))

	modules := make(map[string]string)
	for _, m := range api.objects[pass.ObjectID].TextModulesData {
		modules[m.Id] = m.Body
	}
	assert.Equal(t, "N/A", modules["vendor_name"])
	assert.Equal(t, "2025-07-21", modules["purchase_date"])
	assert.Equal(t, "₹ 0.00", modules["total_amount"])
	assert.Equal(t, "No items listed", modules["items_summary"])
}

func TestIssuer_PermanentGetError(t *testing.T) {
	api := newFakeAPI()
	api.getErr = common.Permanent(errors.New("forbidden"))
	signer, _ := testSigner(t)
	issuer, err := NewIssuer(api, signer, testIssuer, "receipts", common.DiscardLogger(), nil)
	require.NoError(t, err)

	_, err = issuer.EnsureClass(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
	assert.Zero(t, api.inserts)
}

func TestNewIssuer_MissingConfig(t *testing.T) {
	_, err := NewIssuer(newFakeAPI(), nil, "", "receipts", nil, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
	_, err = NewIssuer(newFakeAPI(), nil, testIssuer, " ", nil, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestReceiptFromInvoice(t *testing.T) {
	inv := &model.Invoice{
		ID:          "inv-1",
		IssuerName:  "Ravi Stores",
		Timestamp:   "2025-07-20T10:15:00.123456",
		GrossAmount: 118,
		Items:       []model.InvoiceItem{{Name: "rice", Cost: 60}, {Name: "dal", Cost: 40}},
	}
	got := ReceiptFromInvoice(inv)
	assert.Equal(t, model.ReceiptData{
		TransactionID: "inv-1",
		VendorName:    "Ravi Stores",
		PurchaseDate:  "2025-07-20",
		ItemsSummary:  "rice dal",
		TotalAmount:   118,
	}, got)
}

func TestRESTAPI(t *testing.T) {
	var (
		mu       sync.Mutex
		inserted []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/genericClass/"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": {"code": 404, "message": "missing"}}`))
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/genericObject/"):
			_, _ = w.Write([]byte(`{"id": "x"}`))
		case r.Method == http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			inserted = append(inserted, body["id"].(string))
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer server.Close()

	svc, err := walletobjects.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	api := NewRESTAPIWithService(svc)
	ctx := context.Background()

	assert.ErrorIs(t, api.GetClass(ctx, testIssuer+".receipts"), common.ErrNotFound)
	assert.NoError(t, api.GetObject(ctx, testIssuer+".receipt_T1"))
	require.NoError(t, api.InsertClass(ctx, ClassBody(testIssuer+".receipts")))
	require.NoError(t, api.InsertObject(ctx, ObjectBody(testIssuer+".receipts", testIssuer+".receipt_T1", model.ReceiptData{TransactionID: "T1"}, time.Now())))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{testIssuer + ".receipts", testIssuer + ".receipt_T1"}, inserted)
}
