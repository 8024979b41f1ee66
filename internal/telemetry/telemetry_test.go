package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw  string
		want Target
	}{
		{"collector", Target{Protocol: "grpc", Endpoint: "collector:4317", Insecure: true}},
		{"collector:9000", Target{Protocol: "grpc", Endpoint: "collector:9000", Insecure: true}},
		{"grpc://collector", Target{Protocol: "grpc", Endpoint: "collector:4317", Insecure: true}},
		{"grpcs://collector:443", Target{Protocol: "grpc", Endpoint: "collector:443"}},
		{"http://collector", Target{Protocol: "http", Endpoint: "collector:4318", Insecure: true}},
		{"https://otel.example.com/v1/traces/", Target{Protocol: "http", Endpoint: "otel.example.com:4318", Path: "/v1/traces"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseEndpoint(tt.raw)
			if err != nil {
				t.Fatalf("ParseEndpoint(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseEndpoint(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://collector", "http://"} {
		if _, err := ParseEndpoint(raw); err == nil {
			t.Errorf("ParseEndpoint(%q) error = nil, want error", raw)
		}
	}
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), "", "test", nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if p.Enabled() {
		t.Error("Enabled() = true, want false without an endpoint")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestSetup_HTTPExporter(t *testing.T) {
	p, err := Setup(context.Background(), "http://127.0.0.1:1", "test", nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !p.Enabled() {
		t.Fatal("Enabled() = false, want true")
	}
	if got := p.Target().Protocol; got != "http" {
		t.Errorf("Target().Protocol = %q, want http", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Nothing was recorded, so shutdown has nothing to send.
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
