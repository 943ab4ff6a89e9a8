package domain

import "time"

// Config holds the complete Heron configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Catalog file locations
	Catalog CatalogConfig `json:"catalog"`

	// Offline analysis artifacts served verbatim
	Artifacts ArtifactConfig `json:"artifacts"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// Rate limiting (requests per client IP per window)
	RateLimit       int `json:"rateLimit"`
	RateLimitWindow int `json:"rateLimitWindow"` // seconds
}

// CatalogConfig holds catalog file locations. The primary path is tried
// first; the fallback path covers environments that only have the
// sample catalog. Both missing is not an error: the service starts with
// an empty catalog.
type CatalogConfig struct {
	Path         string `json:"path"`
	FallbackPath string `json:"fallbackPath"`
}

// ArtifactConfig holds paths to offline-generated analysis blobs.
type ArtifactConfig struct {
	CustomerAnalysisPath string `json:"customerAnalysisPath"`
	DataSummaryPath      string `json:"dataSummaryPath"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// DefaultConfig returns the default single-node configuration:
// SQLite repository, in-memory LRU cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30,
			WriteTimeout:    30,
			RateLimit:       120,
			RateLimitWindow: 60,
		},
		Catalog: CatalogConfig{
			Path:         "./data/real_insurance_data.json",
			FallbackPath: "./data/insurance_data.json",
		},
		Artifacts: ArtifactConfig{
			CustomerAnalysisPath: "./data/customer_analysis.json",
			DataSummaryPath:      "./data/data_summary.json",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heron.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "heron",
		},
	}
}

// ClusterConfig returns a configuration for multi-node deployments:
// PostgreSQL repository, two-phase Redis cache, NATS event bus.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heron",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
