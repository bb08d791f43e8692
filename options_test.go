package eventpipe

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNew_Defaults(t *testing.T) {
	ep, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if ep.Strategy() != StrategyRemote {
		t.Errorf("Strategy() = %q, want %q", ep.Strategy(), StrategyRemote)
	}
	if ep.Period() != 5*time.Second {
		t.Errorf("Period() = %v, want %v", ep.Period(), 5*time.Second)
	}
	if ep.BaseURL() != "https://httpbin.org/" {
		t.Errorf("BaseURL() = %q, want %q", ep.BaseURL(), "https://httpbin.org/")
	}
	if ep.Path() != "get" {
		t.Errorf("Path() = %q, want %q", ep.Path(), "get")
	}
	if ep.State() != StateIdle {
		t.Errorf("State() = %q, want %q", ep.State(), StateIdle)
	}
	if ep.Err() != nil {
		t.Errorf("Err() = %v, want nil", ep.Err())
	}
	if ep.StatusAddr() != "" {
		t.Errorf("StatusAddr() = %q, want empty", ep.StatusAddr())
	}
}

func TestWithStrategy(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"local", StrategyLocal, false},
		{"remote", StrategyRemote, false},
		{"unknown", "carrier-pigeon", true},
		{"empty", "", true},
		{"wrong case", "Local", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := New(WithStrategy(tt.value))
			if tt.wantErr {
				if err == nil {
					t.Errorf("New(WithStrategy(%q)) expected error, got nil", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if ep.Strategy() != tt.value {
				t.Errorf("Strategy() = %q, want %q", ep.Strategy(), tt.value)
			}
		})
	}
}

func TestWithPeriod(t *testing.T) {
	ep, err := New(WithPeriod(30 * time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ep.Period() != 30*time.Second {
		t.Errorf("Period() = %v, want %v", ep.Period(), 30*time.Second)
	}
}

func TestWithPeriod_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		period time.Duration
	}{
		{"zero", 0},
		{"negative", -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithPeriod(tt.period))
			if err == nil {
				t.Errorf("New(WithPeriod(%v)) expected error, got nil", tt.period)
			}
		})
	}
}

func TestWithBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://example.com/", false},
		{"http with port", "http://localhost:8080", false},
		{"with base path", "https://example.com/api/", false},
		{"missing scheme", "example.com", true},
		{"ftp scheme", "ftp://example.com", true},
		{"missing host", "http://", true},
		{"unparseable", "http://[::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := New(WithBaseURL(tt.url))
			if tt.wantErr {
				if err == nil {
					t.Errorf("New(WithBaseURL(%q)) expected error, got nil", tt.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if ep.BaseURL() != tt.url {
				t.Errorf("BaseURL() = %q, want %q", ep.BaseURL(), tt.url)
			}
		})
	}
}

func TestWithPath(t *testing.T) {
	ep, err := New(WithPath("anything"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ep.Path() != "anything" {
		t.Errorf("Path() = %q, want %q", ep.Path(), "anything")
	}

	if _, err := New(WithPath("")); err == nil {
		t.Error("New(WithPath(\"\")) expected error, got nil")
	}
}

func TestWithFetchTimeout_Invalid(t *testing.T) {
	if _, err := New(WithFetchTimeout(-time.Second)); err == nil {
		t.Error("New(WithFetchTimeout(-1s)) expected error, got nil")
	}
	if _, err := New(WithFetchTimeout(0)); err != nil {
		t.Errorf("New(WithFetchTimeout(0)) error = %v, want nil", err)
	}
}

func TestWithHistorySize_Invalid(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := New(WithHistorySize(n)); err == nil {
			t.Errorf("New(WithHistorySize(%d)) expected error, got nil", n)
		}
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ep, err := New(WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ep.logger.Info("test message")
	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("custom logger not used, got output: %q", buf.String())
	}
}

func TestWithLogger_Nil(t *testing.T) {
	_, err := New(WithLogger(nil))
	if err == nil {
		t.Error("New(WithLogger(nil)) expected error, got nil")
	}
}

func TestWithLogger_DefaultsToSlogDefault(t *testing.T) {
	ep, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ep.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
}

func TestWithTitle(t *testing.T) {
	ep, err := New(WithTitle("Tick Board"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ep.title != "Tick Board" {
		t.Errorf("title = %q, want %q", ep.title, "Tick Board")
	}
}

func TestWithTracing(t *testing.T) {
	ep, err := New(WithTracing(TracingConfig{Enabled: true}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ep.tracing.SampleRatio != 1 {
		t.Errorf("SampleRatio = %v, want 1 for zero value", ep.tracing.SampleRatio)
	}

	for _, ratio := range []float64{-0.1, 1.5} {
		if _, err := New(WithTracing(TracingConfig{Enabled: true, SampleRatio: ratio})); err == nil {
			t.Errorf("New(WithTracing(ratio %v)) expected error, got nil", ratio)
		}
	}
}

func TestWithTracerProvider_Nil(t *testing.T) {
	if _, err := New(WithTracerProvider(nil)); err == nil {
		t.Error("New(WithTracerProvider(nil)) expected error, got nil")
	}
	if _, err := New(WithTracerProvider(noop.NewTracerProvider())); err != nil {
		t.Errorf("New(WithTracerProvider(noop)) error = %v", err)
	}
}

func TestWithMetricsRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	ep, err := New(WithMetricsRegistry(reg))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ep.registry != reg {
		t.Error("registry not used")
	}

	if _, err := New(WithMetricsRegistry(nil)); err == nil {
		t.Error("New(WithMetricsRegistry(nil)) expected error, got nil")
	}
}

func TestNew_DefaultRegistryPerInstance(t *testing.T) {
	a, _ := New()
	b, _ := New()
	if a.registry == nil || a.registry == b.registry {
		t.Error("each EventPipe should get its own registry")
	}
}
