package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

func TestSetupWithoutEndpointKeepsNoopProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), config.Config{}, logger.Nop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("tracer provider replaced without an endpoint")
	}
}

func TestSetupInstallsProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	cfg := config.Config{
		App:     config.AppConfig{Env: "test"},
		Service: config.ServiceConfig{Kind: "cron-worker"},
		Telemetry: config.TelemetryConfig{
			OTLPEndpoint: "127.0.0.1:4317",
			OTLPInsecure: true,
			SampleRatio:  1,
		},
	}
	shutdown, err := Setup(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if otel.GetTracerProvider() == before {
		t.Fatal("expected sdk tracer provider to be installed")
	}
	// Nothing was recorded, so shutdown does not need a live collector.
	_ = shutdown(context.Background())
}
