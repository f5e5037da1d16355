package tracing

import (
	"context"
	"testing"
)

func TestEndpointHost(t *testing.T) {
	cases := map[string]string{
		"http://localhost:4318":   "localhost:4318",
		"https://otel.local:443/": "otel.local:443",
		"collector:4318":          "collector:4318",
	}
	for in, want := range cases {
		if got := endpointHost(in); got != want {
			t.Errorf("endpointHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitWithoutEndpointKeepsNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	enabled, err := Init(context.Background(), "agentboard-test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if enabled {
		t.Fatal("expected tracing to stay disabled without an endpoint")
	}

	_, span := Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("expected an invalid span context from the no-op provider")
	}
	span.End()
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
