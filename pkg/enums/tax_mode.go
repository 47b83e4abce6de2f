package enums

import (
	"fmt"
	"strings"
)

// OperatingMode controls how far the tax integration goes.
type OperatingMode string

const (
	ModeDisabled        OperatingMode = "disabled"
	ModeCalculateOnly   OperatingMode = "calculate_only"
	ModeCalculateSubmit OperatingMode = "calculate_submit"
	ModeFull            OperatingMode = "full"
)

var validOperatingModes = []OperatingMode{
	ModeDisabled,
	ModeCalculateOnly,
	ModeCalculateSubmit,
	ModeFull,
}

func (m OperatingMode) IsValid() bool {
	for _, candidate := range validOperatingModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// CalculatesTax reports whether quotes are sent for estimation.
func (m OperatingMode) CalculatesTax() bool {
	return m == ModeCalculateOnly || m == ModeCalculateSubmit || m == ModeFull
}

// SubmitsDocuments reports whether finalized documents are queued and posted.
func (m OperatingMode) SubmitsDocuments() bool {
	return m == ModeCalculateSubmit || m == ModeFull
}

// CommitsDocuments reports whether posted documents are committed.
func (m OperatingMode) CommitsDocuments() bool {
	return m == ModeFull
}

// ParseOperatingMode accepts the canonical values, case-insensitively.
func ParseOperatingMode(value string) (OperatingMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOperatingModes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operating mode %q", value)
}

// RegionFilterMode selects how the region filter list is applied.
type RegionFilterMode string

const (
	RegionFilterOff     RegionFilterMode = "off"
	RegionFilterInclude RegionFilterMode = "include"
	RegionFilterExclude RegionFilterMode = "exclude"
)

func ParseRegionFilterMode(value string) (RegionFilterMode, error) {
	switch m := RegionFilterMode(strings.ToLower(strings.TrimSpace(value))); m {
	case RegionFilterOff, RegionFilterInclude, RegionFilterExclude:
		return m, nil
	case "":
		return RegionFilterOff, nil
	}
	return "", fmt.Errorf("invalid region filter mode %q", value)
}

// RegionFilterScope selects which operations the region filter restricts.
type RegionFilterScope string

const (
	RegionScopeTax              RegionFilterScope = "tax"
	RegionScopeTaxAndValidation RegionFilterScope = "tax_and_validation"
)

func ParseRegionFilterScope(value string) (RegionFilterScope, error) {
	switch s := RegionFilterScope(strings.ToLower(strings.TrimSpace(value))); s {
	case RegionScopeTax, RegionScopeTaxAndValidation:
		return s, nil
	case "":
		return RegionScopeTax, nil
	}
	return "", fmt.Errorf("invalid region filter scope %q", value)
}

// SubtotalDisplay is the cart subtotal display setting.
type SubtotalDisplay string

const (
	SubtotalDisplayExclTax SubtotalDisplay = "excl"
	SubtotalDisplayInclTax SubtotalDisplay = "incl"
	SubtotalDisplayBoth    SubtotalDisplay = "both"
)

func ParseSubtotalDisplay(value string) (SubtotalDisplay, error) {
	switch d := SubtotalDisplay(strings.ToLower(strings.TrimSpace(value))); d {
	case SubtotalDisplayExclTax, SubtotalDisplayInclTax, SubtotalDisplayBoth:
		return d, nil
	case "":
		return SubtotalDisplayExclTax, nil
	}
	return "", fmt.Errorf("invalid subtotal display %q", value)
}

// ShowsInclTax reports whether the incl-tax subtotal is exposed.
func (d SubtotalDisplay) ShowsInclTax() bool {
	return d == SubtotalDisplayInclTax || d == SubtotalDisplayBoth
}
