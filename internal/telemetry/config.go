package telemetry

// Config holds configuration for the tracer
type Config struct {
	// Enabled determines whether spans are recorded. When false a noop
	// tracer provider is installed.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector host:port. Spans are recorded but
	// not exported when empty.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	Insecure bool `yaml:"insecure"`

	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"-"`

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64 `yaml:"sample_rate"`
}

// DefaultConfig disables tracing.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "jacinta",
		ServiceVersion: "dev",
		SampleRate:     1.0,
	}
}
