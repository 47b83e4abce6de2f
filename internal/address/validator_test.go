package address

import (
	"context"
	"testing"

	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/internal/taxservice/taxservicetest"
	"github.com/angelmondragon/taxsync/pkg/config"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

func newValidator(t *testing.T, fake *taxservicetest.Fake) *Validator {
	t.Helper()
	v, err := NewValidator(ValidatorParams{
		Client: fake,
		Config: config.TaxConfig{
			AddressErrorMessage:      "Address %s is not valid.",
			AddressNormalizedMessage: "normalized",
		},
		Logger: logger.Nop(),
	})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidateShippingNormalizes(t *testing.T) {
	fake := &taxservicetest.Fake{ValidateFn: func(req taxservice.AddressRequest) (*taxservice.AddressResult, error) {
		n := req.Address
		n.PostalCode = "10001-2062"
		return &taxservice.AddressResult{Valid: true, Normalized: &n}, nil
	}}
	v := newValidator(t, fake)

	q := &sales.Quote{ID: "q1"}
	addr := &sales.Address{ID: "s1", Type: sales.AddressShipping, Street: "350 5th Ave", City: "New York", Region: "NY", Country: "US", PostalCode: "10001"}
	q.AddAddress(addr)
	q.AddAddress(&sales.Address{ID: "b1", Type: sales.AddressBilling, PostalCode: "10001"})

	res, err := v.ValidateShipping(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Normalized || res.Notice != "normalized" {
		t.Fatalf("expected normalization notice, got %+v", res)
	}
	if addr.PostalCode != "10001-2062" {
		t.Fatalf("expected postcode to be normalized, got %s", addr.PostalCode)
	}
	if len(fake.Validates) != 1 {
		t.Fatalf("only the shipping address should be validated, got %d calls", len(fake.Validates))
	}
}

func TestValidateShippingCollectsErrors(t *testing.T) {
	fake := &taxservicetest.Fake{ValidateFn: func(taxservice.AddressRequest) (*taxservice.AddressResult, error) {
		return &taxservice.AddressResult{Valid: false, Errors: []string{"unknown street"}}, nil
	}}
	v := newValidator(t, fake)

	q := &sales.Quote{ID: "q2"}
	q.AddAddress(&sales.Address{Type: sales.AddressShipping, Street: "1 Nowhere", PostalCode: "00000", Country: "US"})
	q.AddAddress(&sales.Address{Type: sales.AddressShipping, Street: "2 Nowhere", PostalCode: "00000", Country: "US"})
	q.AddAddress(&sales.Address{Type: sales.AddressShipping, PostalCode: sales.PostcodeSentinel})

	_, err := v.ValidateShipping(context.Background(), q)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if want := "Address 1 Nowhere, 00000, US is not valid.\nAddress 2 Nowhere, 00000, US is not valid."; typed.Message() != want {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	if len(fake.Validates) != 2 {
		t.Fatalf("sentinel address must not be validated, got %d calls", len(fake.Validates))
	}
}

func TestValidateShippingSkipsWhenServiceDown(t *testing.T) {
	fake := &taxservicetest.Fake{ValidateFn: func(taxservice.AddressRequest) (*taxservice.AddressResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeServiceUnavailable, "down")
	}}
	v := newValidator(t, fake)
	q := &sales.Quote{}
	q.AddAddress(&sales.Address{Type: sales.AddressShipping, PostalCode: "10001"})

	if _, err := v.ValidateShipping(context.Background(), q); err != nil {
		t.Fatalf("service outage should not block checkout: %v", err)
	}
}
