package postgres

import "fmt"

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
	// Schema limits discovery to one namespace.
	Schema       string
	PoolMaxConns int32
	PoolMinConns int32
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode. Local development databases
// are the common case for the agent, so TLS is opt-in.
func DefaultSSLMode() string {
	return "disable"
}

// DefaultSchema is the namespace introspected when none is configured.
func DefaultSchema() string {
	return "public"
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:         DefaultPort(),
		SSLMode:      DefaultSSLMode(),
		Schema:       DefaultSchema(),
		PoolMaxConns: 10,
		PoolMinConns: 1,
	}

	if host, ok := config["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	switch port := config["port"].(type) {
	case float64: // JSON numbers are float64
		cfg.Port = int(port)
	case int:
		cfg.Port = port
	}

	if user, ok := config["user"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := config["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := config["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if sslMode, ok := config["ssl_mode"].(string); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}
	if schema, ok := config["schema"].(string); ok && schema != "" {
		cfg.Schema = schema
	}
	if n, ok := config["pool_max_conns"].(int32); ok && n > 0 {
		cfg.PoolMaxConns = n
	}
	if n, ok := config["pool_min_conns"].(int32); ok && n >= 0 {
		cfg.PoolMinConns = n
	}

	return cfg, nil
}
