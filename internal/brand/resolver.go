// Package brand maps a sender address to the newsletter brand that owns it.
package brand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newdok/mailingest/internal/model"
	"github.com/newdok/mailingest/internal/store"
)

// AddressField names a registered sending address column on a brand.
type AddressField = store.AddressField

// Address fields in their default lookup order.
const (
	FieldPrimary   = store.FieldBrandEmail
	FieldSecondary = store.FieldSecondEmail
	FieldTertiary  = store.FieldThirdEmail
)

// Lookup finds a brand by one of its registered addresses. It returns
// store.ErrNotFound when no brand has addr in field.
type Lookup interface {
	FindNewsletterByAddress(ctx context.Context, field AddressField, addr string) (*model.Newsletter, error)
}

// UnknownSenderError indicates no brand is registered for an address.
type UnknownSenderError struct {
	Address string
}

func (e *UnknownSenderError) Error() string {
	return fmt.Sprintf("unknown sender %s", e.Address)
}

// IsUnknownSender reports whether err (or any error in its chain) is an UnknownSenderError.
func IsUnknownSender(err error) bool {
	var target *UnknownSenderError
	return errors.As(err, &target)
}

// Resolver tries each address field in order and returns the first match.
type Resolver struct {
	lookup Lookup
	fields []AddressField
}

// NewResolver creates a Resolver. With no fields it checks the primary,
// secondary and tertiary addresses in that order.
func NewResolver(l Lookup, fields ...AddressField) *Resolver {
	if len(fields) == 0 {
		fields = []AddressField{FieldPrimary, FieldSecondary, FieldTertiary}
	}
	return &Resolver{lookup: l, fields: fields}
}

// Resolve returns the brand owning addr. Comparison is case-insensitive.
func (r *Resolver) Resolve(ctx context.Context, addr string) (*model.Newsletter, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return nil, &UnknownSenderError{Address: addr}
	}

	for _, field := range r.fields {
		n, err := r.lookup.FindNewsletterByAddress(ctx, field, addr)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("resolving brand by %s: %w", field, err)
		}
	}

	return nil, &UnknownSenderError{Address: addr}
}
