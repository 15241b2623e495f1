package wallet

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	oauthjwt "golang.org/x/oauth2/jwt"
)

// SaveURLPrefix is where a signed save token is appended.
const SaveURLPrefix = "https://pay.google.com/gp/v/save/"

// Signer produces "Add to Google Wallet" links.
type Signer interface {
	SaveURL(classID, objectID string) (string, error)
}

// ServiceAccountSigner signs save tokens with a service account key.
type ServiceAccountSigner struct {
	key   *rsa.PrivateKey
	now   func() time.Time
	email string
	keyID string
}

// NewServiceAccountSigner parses the key of a loaded service account.
func NewServiceAccountSigner(cfg *oauthjwt.Config) (*ServiceAccountSigner, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account private key: %w", err)
	}
	return &ServiceAccountSigner{key: key, email: cfg.Email, keyID: cfg.PrivateKeyID, now: time.Now}, nil
}

// SaveURL signs a savetowallet token for one generic object.
func (s *ServiceAccountSigner) SaveURL(classID, objectID string) (string, error) {
	claims := jwt.MapClaims{
		"iss":     s.email,
		"aud":     "google",
		"origins": []string{},
		"typ":     "savetowallet",
		"iat":     s.now().Unix(),
		"payload": map[string]any{
			"genericObjects": []map[string]string{
				{"id": objectID, "classId": classID},
			},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign save token: %w", err)
	}
	return SaveURLPrefix + signed, nil
}
