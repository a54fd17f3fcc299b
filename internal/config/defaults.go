package config

const (
	// DefaultLogLevel is used when neither logLevel nor debug is set.
	DefaultLogLevel = "info"
)

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() Config {
	cfg := Config{LogLevel: DefaultLogLevel}
	cfg.Operator = cfg.Operator.Default()
	return cfg
}
