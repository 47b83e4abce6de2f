// Package address decides which destinations are sent to the tax service
// and validates shipping addresses against it.
package address

import (
	"strings"

	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/enums"
)

// Purpose is the operation an actionability check gates.
type Purpose int

const (
	PurposeTax Purpose = iota
	PurposeValidation
)

// IsActionable reports whether addr should be sent to the tax service for
// purpose under filter. Tax calculation, address validation and document
// submission all go through this check.
func IsActionable(addr *sales.Address, store *sales.Store, filter config.RegionFilter, purpose Purpose) bool {
	if addr == nil {
		return false
	}
	if filter.Mode == "" || filter.Mode == enums.RegionFilterOff {
		return true
	}
	if purpose == PurposeValidation && filter.Scope != enums.RegionScopeTaxAndValidation {
		return true
	}

	matched := matches(addr, store, filter.Codes)
	if filter.Mode == enums.RegionFilterInclude {
		return matched
	}
	return !matched
}

func matches(addr *sales.Address, store *sales.Store, codes []string) bool {
	country := strings.ToUpper(strings.TrimSpace(addr.Country))
	if country == "" && store != nil {
		country = strings.ToUpper(strings.TrimSpace(store.DefaultCountry))
	}
	if country == "" {
		return false
	}
	region := strings.ToUpper(strings.TrimSpace(addr.Region))

	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == country {
			return true
		}
		if region != "" && code == country+"-"+region {
			return true
		}
	}
	return false
}
