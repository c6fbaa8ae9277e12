package instrumentation

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("INSTRUMENTATION_ENABLED", "")
	t.Setenv("METRICS_EXPORTER", "")
	t.Setenv("TRACING_EXPORTER", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")

	config := DefaultConfig()

	if config.ServiceName != "spotify-mcp" {
		t.Errorf("expected ServiceName 'spotify-mcp', got %q", config.ServiceName)
	}
	if !config.Enabled {
		t.Error("expected Enabled to be true by default")
	}
	if config.MetricsExporter != ExporterPrometheus {
		t.Errorf("expected MetricsExporter %q, got %q", ExporterPrometheus, config.MetricsExporter)
	}
	if config.TracingExporter != ExporterNone {
		t.Errorf("expected TracingExporter %q, got %q", ExporterNone, config.TracingExporter)
	}
	if config.TraceSamplingRate != 0.1 {
		t.Errorf("expected TraceSamplingRate 0.1, got %f", config.TraceSamplingRate)
	}
	if !config.AuditLogging.Enabled {
		t.Error("expected audit logging to be enabled by default")
	}
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "test-service")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", "stdout")
	t.Setenv("TRACING_EXPORTER", "stdout")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	t.Setenv("AUDIT_LOGGING_INCLUDE_PII", "true")

	config := DefaultConfig()

	if config.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %q", config.ServiceName)
	}
	if config.Enabled {
		t.Error("expected Enabled to be false")
	}
	if config.MetricsExporter != ExporterStdout {
		t.Errorf("expected MetricsExporter 'stdout', got %q", config.MetricsExporter)
	}
	if config.TracingExporter != ExporterStdout {
		t.Errorf("expected TracingExporter 'stdout', got %q", config.TracingExporter)
	}
	if config.TraceSamplingRate != 0.5 {
		t.Errorf("expected TraceSamplingRate 0.5, got %f", config.TraceSamplingRate)
	}
	if !config.AuditLogging.IncludePII {
		t.Error("expected IncludePII to be true")
	}
}

func TestDefaultConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "not-a-bool")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "abc")

	config := DefaultConfig()

	if !config.Enabled {
		t.Error("expected invalid bool to fall back to default true")
	}
	if config.TraceSamplingRate != 0.1 {
		t.Errorf("expected invalid float to fall back to 0.1, got %f", config.TraceSamplingRate)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid defaults",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: 0.1},
		},
		{
			name:    "sampling rate too high",
			config:  Config{TraceSamplingRate: 1.5},
			wantErr: true,
		},
		{
			name:    "negative sampling rate",
			config:  Config{TraceSamplingRate: -0.1},
			wantErr: true,
		},
		{
			name:    "unknown metrics exporter",
			config:  Config{MetricsExporter: "statsd"},
			wantErr: true,
		},
		{
			name:    "unknown tracing exporter",
			config:  Config{TracingExporter: "jaeger"},
			wantErr: true,
		},
		{
			name:    "otlp tracing without endpoint",
			config:  Config{TracingExporter: ExporterOTLP},
			wantErr: true,
		},
		{
			name:   "otlp metrics with endpoint",
			config: Config{MetricsExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
