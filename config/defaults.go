package config

import "time"

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    "flowgate",
			Version: "0.1.0",
		},
		Engine: EngineConfig{
			DefaultTimeout: 10 * time.Minute,
			MaxParallel:    1,
			RateLimit:      0,
			RateBurst:      1,
		},
		History: HistoryConfig{
			Backend: "memory",
			Keep:    100,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "flowgate:",
			},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "flowgate",
			Port:      9091,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stderr"},
		},
	}
}
