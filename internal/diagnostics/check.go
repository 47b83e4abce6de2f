// Package diagnostics reports configuration and connectivity problems with
// the tax service integration.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/enums"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

const (
	WarnDevelopmentURL = "The tax service URL points to a development environment."
	WarnDisabled       = "Tax calculation is disabled."
	WarnNotSubmitted   = "Orders will not be sent to the tax service."
	WarnNotCommitted   = "Orders will be sent to the tax service but never committed."
)

// Params wires a Checker.
type Params struct {
	Client     taxservice.Client
	TaxService config.TaxServiceConfig
	Tax        config.TaxConfig
	Logger     *logger.Logger
}

type Checker struct {
	client   taxservice.Client
	service  config.TaxServiceConfig
	tax      config.TaxConfig
	logg     *logger.Logger
	validate *validator.Validate
}

// Report lists human readable findings.
type Report struct {
	Warnings []string
	Errors   []string
}

func (r Report) OK() bool {
	return len(r.Errors) == 0
}

func New(params Params) (*Checker, error) {
	if params.Client == nil {
		return nil, errors.New("tax service client required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Checker{
		client:   params.Client,
		service:  params.TaxService,
		tax:      params.Tax,
		logg:     params.Logger,
		validate: newValidator(),
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if tag := f.Tag.Get("envconfig"); tag != "" {
			return tag
		}
		return f.Name
	})
	return v
}

// Check runs every diagnostic. The returned error combines all findings
// reported as errors.
func (c *Checker) Check(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   error
	)
	addErr := func(err error) {
		report.Errors = append(report.Errors, err.Error())
		errs = multierr.Append(errs, err)
	}

	if c.service.IsDevelopmentURL() {
		report.Warnings = append(report.Warnings, WarnDevelopmentURL)
	}
	switch c.tax.OperatingMode() {
	case enums.ModeDisabled:
		report.Warnings = append(report.Warnings, WarnDisabled)
	case enums.ModeCalculateOnly:
		report.Warnings = append(report.Warnings, WarnNotSubmitted)
	case enums.ModeCalculateSubmit:
		report.Warnings = append(report.Warnings, WarnNotCommitted)
	}

	credentialsOK := true
	for _, err := range c.structErrors(c.service) {
		credentialsOK = false
		addErr(err)
	}
	for _, err := range c.structErrors(c.tax) {
		addErr(err)
	}
	if _, err := c.tax.LogRetentionDays(); err != nil {
		addErr(fmt.Errorf("%s must be a non-negative number of days", config.EnvTaxLogLifetime))
	}

	if credentialsOK {
		msg, err := c.client.Ping(ctx, taxservice.Credentials{
			URL:         c.service.URL,
			Account:     c.service.Account,
			License:     c.service.License,
			CompanyCode: c.service.CompanyCode,
		})
		switch {
		case err != nil:
			addErr(fmt.Errorf("tax service ping failed: %w", err))
		case msg != "":
			addErr(fmt.Errorf("tax service rejected credentials: %s", msg))
		}
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"warnings": len(report.Warnings),
		"errors":   len(report.Errors),
	})
	if errs != nil {
		c.logg.Warn(logCtx, "tax configuration check found problems")
	} else {
		c.logg.Info(logCtx, "tax configuration check passed")
	}
	return report, errs
}

func (c *Checker) structErrors(s any) []error {
	err := c.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{err}
	}
	out := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, fmt.Errorf("%s %s", fe.Field(), message(fe)))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	}
	return "is invalid: " + strings.TrimSpace(fe.Tag())
}
