// Package registry maps the logical services of the target system to their
// URL paths behind the gateway.
package registry

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServiceID names one service endpoint of the target system.
type ServiceID string

const (
	ProductService    ServiceID = "product_service"
	CategoryService   ServiceID = "category_service"
	UserService       ServiceID = "user_service"
	AddressService    ServiceID = "address_service"
	CredentialService ServiceID = "credential_service"
	OrderService      ServiceID = "order_service"
	CartService       ServiceID = "cart_service"
	PaymentService    ServiceID = "payment_service"
	FavouriteService  ServiceID = "favourite_service"
	ShippingService   ServiceID = "shipping_service"
	ProxyClient       ServiceID = "proxy_client"
	AuthEndpoint      ServiceID = "auth_endpoint"
)

// ErrUnknownService is returned when a service id is not in the registry.
var ErrUnknownService = errors.New("registry: unknown service")

// UnknownServiceError carries the id that failed to resolve.
type UnknownServiceError struct {
	ID ServiceID
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("registry: unknown service %q", string(e.ID))
}

func (e *UnknownServiceError) Unwrap() error {
	return ErrUnknownService
}

// Entry is one row of the registry table.
type Entry struct {
	ID   ServiceID
	Path string
}

var defaultTable = []Entry{
	{ProductService, "/product-service/api/products"},
	{CategoryService, "/product-service/api/categories"},
	{UserService, "/user-service/api/users"},
	{AddressService, "/user-service/api/address"},
	{CredentialService, "/user-service/api/credentials"},
	{OrderService, "/order-service/api/orders"},
	{CartService, "/order-service/api/carts"},
	{PaymentService, "/payment-service/api/payments"},
	{FavouriteService, "/favourite-service/api/favourites"},
	{ShippingService, "/shipping-service/api/shippings"},
	{ProxyClient, "/app/api"},
	{AuthEndpoint, "/app/api/authenticate"},
}

// Registry is a read-only lookup table. The zero value is empty.
type Registry struct {
	paths map[ServiceID]string
	order []ServiceID
}

// New builds a registry from entries, keeping their order.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{paths: make(map[ServiceID]string, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			return nil, errors.New("registry: empty service id")
		}
		if _, dup := r.paths[e.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate service %q", string(e.ID))
		}
		if !strings.HasPrefix(e.Path, "/") {
			return nil, fmt.Errorf("registry: path for %q must be absolute, got %q", string(e.ID), e.Path)
		}
		r.paths[e.ID] = e.Path
		r.order = append(r.order, e.ID)
	}
	return r, nil
}

// Default returns the registry for the e-commerce deployment.
func Default() *Registry {
	r, err := New(defaultTable)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the path registered for id.
func (r *Registry) Resolve(id ServiceID) (string, error) {
	p, ok := r.paths[id]
	if !ok {
		return "", &UnknownServiceError{ID: id}
	}
	return p, nil
}

// URL resolves id and joins it onto base.
func (r *Registry) URL(base string, id ServiceID) (string, error) {
	p, err := r.Resolve(id)
	if err != nil {
		return "", err
	}
	return JoinURL(base, p)
}

// Services returns every id in registration order.
func (r *Registry) Services() []ServiceID {
	out := make([]ServiceID, len(r.order))
	copy(out, r.order)
	return out
}

// Except returns the registration order minus the given ids.
func (r *Registry) Except(ids ...ServiceID) []ServiceID {
	skip := make(map[ServiceID]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}
	out := make([]ServiceID, 0, len(r.order))
	for _, id := range r.order {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

// JoinURL resolves ref against base. An absolute path replaces the base path.
func JoinURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

type overrideFile struct {
	Services map[string]string `yaml:"services"`
}

// LoadFile returns the default registry with paths overridden from a YAML
// file of the form:
//
//	services:
//	  product_service: /catalog/api/products
//
// Only known service ids may be overridden.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}

	entries := make([]Entry, len(defaultTable))
	copy(entries, defaultTable)
	index := make(map[ServiceID]int, len(entries))
	for i, e := range entries {
		index[e.ID] = i
	}
	for name, p := range f.Services {
		i, ok := index[ServiceID(name)]
		if !ok {
			return nil, &UnknownServiceError{ID: ServiceID(name)}
		}
		entries[i].Path = p
	}
	return New(entries)
}
