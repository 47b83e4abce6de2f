package diagnostics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/angelmondragon/taxsync/internal/taxservice/taxservicetest"
	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

func validService() config.TaxServiceConfig {
	return config.TaxServiceConfig{
		URL:         "https://tax.example.com",
		Account:     "1100012345",
		License:     "ABCDEF",
		CompanyCode: "DEFAULT",
	}
}

func validTax() config.TaxConfig {
	return config.TaxConfig{
		Mode:                  "full",
		ShippingSKU:           "Shipping",
		AdjustmentPositiveSKU: "positive-adjustment",
		AdjustmentNegativeSKU: "negative-adjustment",
		LogLifetimeDays:       "30",
	}
}

func newChecker(t *testing.T, fake *taxservicetest.Fake, svc config.TaxServiceConfig, tax config.TaxConfig) *Checker {
	t.Helper()
	c, err := New(Params{Client: fake, TaxService: svc, Tax: tax, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCheckPasses(t *testing.T) {
	c := newChecker(t, &taxservicetest.Fake{}, validService(), validTax())
	report, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.OK() || len(report.Warnings) != 0 {
		t.Fatalf("expected clean report, got %+v", report)
	}
}

func TestCheckReportsMissingConfig(t *testing.T) {
	svc := validService()
	svc.License = ""
	tax := validTax()
	tax.ShippingSKU = ""
	tax.LogLifetimeDays = "thirty"
	fake := &taxservicetest.Fake{}

	report, err := newChecker(t, fake, svc, tax).Check(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("expected 3 combined errors, got %d: %v", got, err)
	}
	joined := strings.Join(report.Errors, "\n")
	for _, want := range []string{"TAXSYNC_TAX_SERVICE_LICENSE is required", "TAXSYNC_TAX_SHIPPING_SKU is required", config.EnvTaxLogLifetime} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestCheckWarningsAndPing(t *testing.T) {
	svc := validService()
	svc.URL = "https://development.tax.example.com"
	tax := validTax()
	tax.Mode = "calculate_submit"
	fake := &taxservicetest.Fake{PingErr: errors.New("401 unauthorized")}

	report, err := newChecker(t, fake, svc, tax).Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ping failed") {
		t.Fatalf("expected ping failure, got %v", err)
	}
	if len(report.Warnings) != 2 || report.Warnings[0] != WarnDevelopmentURL || report.Warnings[1] != WarnNotCommitted {
		t.Fatalf("unexpected warnings %v", report.Warnings)
	}

	fake = &taxservicetest.Fake{PingMessage: "Company code not found"}
	report, _ = newChecker(t, fake, validService(), validTax()).Check(context.Background())
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "Company code not found") {
		t.Fatalf("expected ping diagnostic, got %v", report.Errors)
	}
}
