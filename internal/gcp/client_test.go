package gcp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func writeKeyFile(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	data, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"client_email":   "issuer@tachyon.iam.gserviceaccount.com",
		"private_key":    string(block),
		"private_key_id": "key-1",
		"token_uri":      "https://oauth2.googleapis.com/token",
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestServiceAccount(t *testing.T) {
	cfg, err := ServiceAccount(writeKeyFile(t), "scope-a")
	require.NoError(t, err)
	assert.Equal(t, "issuer@tachyon.iam.gserviceaccount.com", cfg.Email)
	assert.Equal(t, []string{"scope-a"}, cfg.Scopes)
	assert.NotEmpty(t, cfg.PrivateKey)

	_, err = ServiceAccount(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestHTTPClient_ServiceAccount(t *testing.T) {
	client, err := HTTPClient(context.Background(), writeKeyFile(t), "scope-a")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err       error
		name      string
		retryable bool
	}{
		{name: "rate limited", err: &googleapi.Error{Code: http.StatusTooManyRequests}, retryable: true},
		{name: "server error", err: &googleapi.Error{Code: http.StatusBadGateway}, retryable: true},
		{name: "bad request", err: &googleapi.Error{Code: http.StatusBadRequest}},
		{name: "cancelled", err: context.Canceled},
		{name: "transport", err: errors.New("connection reset"), retryable: true},
		{name: "already permanent", err: common.Permanent(errors.New("forbidden"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			assert.Equal(t, tt.retryable, common.IsRetryable(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, ClassifyError(nil))
	assert.ErrorIs(t, ClassifyError(&googleapi.Error{Code: http.StatusTooManyRequests}), common.ErrRateLimit)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, IsNotFound(&googleapi.Error{Code: http.StatusConflict}))
	assert.False(t, IsNotFound(errors.New("nope")))
	assert.True(t, IsConflict(&googleapi.Error{Code: http.StatusConflict}))
	assert.False(t, IsConflict(nil))
}
