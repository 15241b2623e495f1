// Package gcp builds authenticated clients for Google Cloud REST APIs.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/Veraticus/tachyon/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
)

// ServiceAccount loads a service account key file for the given scopes.
func ServiceAccount(credentialsFile string, scopes ...string) (*jwt.Config, error) {
	jsonKey, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account key file: %w", err)
	}

	cfg, err := google.JWTConfigFromJSON(jsonKey, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account key: %w", err)
	}
	return cfg, nil
}

// HTTPClient returns an OAuth2 client for scopes. A service account key file
// is used when given, otherwise application default credentials.
func HTTPClient(ctx context.Context, credentialsFile string, scopes ...string) (*http.Client, error) {
	var tokenSource oauth2.TokenSource

	if credentialsFile != "" {
		cfg, err := ServiceAccount(credentialsFile, scopes...)
		if err != nil {
			return nil, err
		}
		tokenSource = cfg.TokenSource(ctx)
	} else {
		creds, err := google.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("%w: no google credentials: %w", common.ErrMissingConfig, err)
		}
		tokenSource = creds.TokenSource
	}

	return oauth2.NewClient(ctx, tokenSource), nil
}

// IsNotFound reports whether err is a googleapi 404.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// IsConflict reports whether err is a googleapi 409.
func IsConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// ClassifyError marks rate limits and server errors as retryable and
// other API errors as permanent, for use inside common.WithRetry. Errors
// that are already classified are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var classified *common.RetryableError
	if errors.As(err, &classified) {
		return err
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return common.Retryable(fmt.Errorf("%w: %w", common.ErrRateLimit, err))
		case apiErr.Code >= http.StatusInternalServerError:
			return common.Retryable(err)
		}
		return common.Permanent(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return common.Permanent(err)
	}
	return common.Retryable(err)
}
