// Package wallet issues Google Wallet receipt passes and their save links.
package wallet

import (
	"context"
	"fmt"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/gcp"
	"google.golang.org/api/option"
	"google.golang.org/api/walletobjects/v1"
)

// Scope is the OAuth scope pass issuers need.
const Scope = "https://www.googleapis.com/auth/wallet_object.issuer"

// API is the part of the Wallet REST API the issuer uses. Get methods
// return common.ErrNotFound when the resource does not exist.
type API interface {
	GetClass(ctx context.Context, id string) error
	InsertClass(ctx context.Context, class *walletobjects.GenericClass) error
	GetObject(ctx context.Context, id string) error
	InsertObject(ctx context.Context, object *walletobjects.GenericObject) error
}

// RESTAPI implements API over the walletobjects service.
type RESTAPI struct {
	service *walletobjects.Service
}

// NewRESTAPI creates a client authenticated with credentialsFile.
func NewRESTAPI(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*RESTAPI, error) {
	httpClient, err := gcp.HTTPClient(ctx, credentialsFile, Scope)
	if err != nil {
		return nil, err
	}
	svc, err := walletobjects.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create wallet service: %w", err)
	}
	return &RESTAPI{service: svc}, nil
}

// NewRESTAPIWithService wraps an existing service.
func NewRESTAPIWithService(svc *walletobjects.Service) *RESTAPI {
	return &RESTAPI{service: svc}
}

// GetClass looks up a generic class.
func (a *RESTAPI) GetClass(ctx context.Context, id string) error {
	_, err := a.service.Genericclass.Get(id).Context(ctx).Do()
	return notFound(err)
}

// InsertClass creates a generic class.
func (a *RESTAPI) InsertClass(ctx context.Context, class *walletobjects.GenericClass) error {
	_, err := a.service.Genericclass.Insert(class).Context(ctx).Do()
	return err
}

// GetObject looks up a generic object.
func (a *RESTAPI) GetObject(ctx context.Context, id string) error {
	_, err := a.service.Genericobject.Get(id).Context(ctx).Do()
	return notFound(err)
}

// InsertObject creates a generic object.
func (a *RESTAPI) InsertObject(ctx context.Context, object *walletobjects.GenericObject) error {
	_, err := a.service.Genericobject.Insert(object).Context(ctx).Do()
	return err
}

func notFound(err error) error {
	if gcp.IsNotFound(err) {
		return fmt.Errorf("%w: %w", common.ErrNotFound, err)
	}
	return err
}
