package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/config"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

// ValidatorParams wires a Validator.
type ValidatorParams struct {
	Client taxservice.Client
	Config config.TaxConfig
	Logger *logger.Logger
}

// Validator checks shipping addresses with the tax service.
type Validator struct {
	client taxservice.Client
	cfg    config.TaxConfig
	filter config.RegionFilter
	logg   *logger.Logger
}

func NewValidator(params ValidatorParams) (*Validator, error) {
	if params.Client == nil {
		return nil, errors.New("tax service client required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Validator{
		client: params.Client,
		cfg:    params.Config,
		filter: params.Config.RegionFilter(),
		logg:   params.Logger,
	}, nil
}

// ValidationResult reports what happened to the quote's shipping addresses.
type ValidationResult struct {
	// Normalized is true when at least one address was rewritten by the
	// service; Notice is the message to show the shopper in that case.
	Normalized bool
	Notice     string
}

// ValidateShipping validates every actionable shipping address of quote.
// Normalized addresses are updated in place. Invalid addresses produce one
// validation error listing each of them.
func (v *Validator) ValidateShipping(ctx context.Context, quote *sales.Quote) (ValidationResult, error) {
	var (
		result   ValidationResult
		messages []string
	)
	ctx = v.logg.WithQuoteID(ctx, quote.ID)

	for _, addr := range quote.ShippingAddresses() {
		if addr.HasSentinelPostcode() || !IsActionable(addr, quote.Store, v.filter, PurposeValidation) {
			continue
		}

		res, err := v.client.ValidateAddress(ctx, taxservice.AddressRequest{Address: toServiceAddress(addr)})
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeServiceUnavailable) {
				v.logg.Warn(v.logg.WithField(ctx, "address_id", addr.ID), "address validation skipped: tax service unavailable")
				continue
			}
			return result, err
		}

		if !res.Valid {
			messages = append(messages, fmt.Sprintf(v.cfg.AddressErrorMessage, OneLine(addr)))
			continue
		}
		if res.Normalized != nil && applyNormalized(addr, *res.Normalized) {
			result.Normalized = true
		}
	}

	if result.Normalized {
		result.Notice = v.cfg.AddressNormalizedMessage
	}
	if len(messages) > 0 {
		return result, pkgerrors.New(pkgerrors.CodeValidation, strings.Join(messages, "\n")).
			WithDetails(map[string]any{"addresses": messages})
	}
	return result, nil
}

// OneLine formats addr on a single line.
func OneLine(addr *sales.Address) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{addr.Street, addr.City, addr.Region, addr.PostalCode, addr.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func toServiceAddress(addr *sales.Address) taxservice.Address {
	return taxservice.Address{
		Line1:      addr.Street,
		City:       addr.City,
		Region:     addr.Region,
		Country:    addr.Country,
		PostalCode: addr.PostalCode,
	}
}

func applyNormalized(addr *sales.Address, n taxservice.Address) bool {
	before := toServiceAddress(addr)
	if n.Line1 != "" {
		addr.Street = n.Line1
	}
	if n.City != "" {
		addr.City = n.City
	}
	if n.Region != "" {
		addr.Region = n.Region
	}
	if n.Country != "" {
		addr.Country = n.Country
	}
	if n.PostalCode != "" {
		addr.PostalCode = n.PostalCode
	}
	return before != toServiceAddress(addr)
}

// ServiceAddress converts addr for tax service requests.
func ServiceAddress(addr *sales.Address) taxservice.Address {
	if addr == nil {
		return taxservice.Address{}
	}
	return toServiceAddress(addr)
}
