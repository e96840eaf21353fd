package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the shipping agent.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"5000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// AllowedOrigins is a comma-separated CORS origin list. "*" allows any origin.
	AllowedOrigins string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*"`

	// Datasource is the database questions are answered against.
	Datasource DatasourceConfig `yaml:"datasource"`

	// LLM holds the model endpoints for SQL generation and general answers.
	LLM LLMConfig `yaml:"llm"`

	// History configures where accepted and rejected attempts are persisted.
	History HistoryConfig `yaml:"history"`

	// Agent tunes the generation loop.
	Agent AgentConfig `yaml:"agent"`
}

// DatasourceConfig holds connection settings for the queried database.
type DatasourceConfig struct {
	Type         string `yaml:"type" env:"DB_TYPE" env-default:"postgres"`
	Host         string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User         string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password     string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database     string `yaml:"database" env:"DB_NAME" env-default:"shipnest_schema"`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	Schema       string `yaml:"schema" env:"DB_SCHEMA" env-default:""`
	PoolMaxConns int32  `yaml:"pool_max_conns" env:"DB_POOL_MAX_CONNS" env-default:"10"`
	PoolMinConns int32  `yaml:"pool_min_conns" env:"DB_POOL_MIN_CONNS" env-default:"1"`
}

// LLMConfig holds settings for the two model roles: SQL generation and general answers.
type LLMConfig struct {
	// Provider selects the client: ollama, openai or anthropic.
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"ollama"`
	BaseURL  string `yaml:"base_url" env:"OLLAMA_API_BASE_URL" env-default:"http://localhost:11434"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	SQLModel     string `yaml:"sql_model" env:"OLLAMA_MODEL" env-default:"deepseek-coder:6.7b-instruct"`
	GeneralModel string `yaml:"general_model" env:"GENERAL_LLM_MODEL" env-default:"mistral"`

	SQLTimeout     time.Duration `yaml:"sql_timeout" env:"LLM_SQL_TIMEOUT" env-default:"60s"`
	GeneralTimeout time.Duration `yaml:"general_timeout" env:"LLM_GENERAL_TIMEOUT" env-default:"120s"`

	SQLMaxTokens     int `yaml:"sql_max_tokens" env:"LLM_SQL_MAX_TOKENS" env-default:"2000"`
	GeneralMaxTokens int `yaml:"general_max_tokens" env:"LLM_GENERAL_MAX_TOKENS" env-default:"1024"`

	// BreakerThreshold is the number of consecutive connectivity failures before
	// calls fail fast. Zero disables the breaker.
	BreakerThreshold int           `yaml:"breaker_threshold" env:"LLM_BREAKER_THRESHOLD" env-default:"3"`
	BreakerReset     time.Duration `yaml:"breaker_reset" env:"LLM_BREAKER_RESET" env-default:"30s"`
}

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	// Backend is "file" or "postgres".
	Backend      string `yaml:"backend" env:"HISTORY_BACKEND" env-default:"file"`
	AcceptedPath string `yaml:"accepted_path" env:"HISTORY_ACCEPTED_PATH" env-default:"data/query_history.json"`
	RejectedPath string `yaml:"rejected_path" env:"HISTORY_REJECTED_PATH" env-default:"data/negative_history.json"`
	Limit        int    `yaml:"limit" env:"HISTORY_LIMIT" env-default:"50"`
	// DatabaseURL is used by the postgres backend. Empty means the datasource itself.
	DatabaseURL    string `yaml:"-" env:"HISTORY_DATABASE_URL"` // Secret - not in YAML
	MigrationsPath string `yaml:"migrations_path" env:"HISTORY_MIGRATIONS_PATH" env-default:"migrations"`
}

// AgentConfig tunes the generate-validate loop.
type AgentConfig struct {
	MaxAttempts      int    `yaml:"max_attempts" env:"AGENT_MAX_ATTEMPTS" env-default:"10"`
	FewShotExamples  int    `yaml:"few_shot_examples" env:"AGENT_FEW_SHOT_EXAMPLES" env-default:"3"`
	NegativeExamples int    `yaml:"negative_examples" env:"AGENT_NEGATIVE_EXAMPLES" env-default:"3"`
	FuzzyDistance    int    `yaml:"fuzzy_distance" env:"AGENT_FUZZY_DISTANCE" env-default:"2"`
	RulesPath        string `yaml:"rules_path" env:"AGENT_RULES_PATH" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; defaults and the environment are used instead.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.ApplyDockerHostRewrites()

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Datasource.Type {
	case "postgres", "mssql":
	default:
		return fmt.Errorf("unsupported datasource type %q", c.Datasource.Type)
	}

	switch c.LLM.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "anthropic" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required for the anthropic provider")
	}

	switch c.History.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("unsupported history backend %q", c.History.Backend)
	}

	if c.Agent.MaxAttempts < 1 {
		return fmt.Errorf("agent.max_attempts must be at least 1, got %d", c.Agent.MaxAttempts)
	}
	if c.History.Limit < 1 {
		return fmt.Errorf("history.limit must be at least 1, got %d", c.History.Limit)
	}
	return nil
}

// Origins returns the parsed CORS origin list.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// ConnectionString returns a PostgreSQL connection URL for the datasource.
// Credentials are URL-escaped so special characters survive.
func (c *DatasourceConfig) ConnectionString() string {
	u := &url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ToMap converts the datasource settings into the generic map consumed by
// the datasource adapter factories.
func (c *DatasourceConfig) ToMap() map[string]any {
	return map[string]any{
		"host":           c.Host,
		"port":           c.Port,
		"user":           c.User,
		"password":       c.Password,
		"database":       c.Database,
		"ssl_mode":       c.SSLMode,
		"schema":         c.Schema,
		"pool_max_conns": c.PoolMaxConns,
		"pool_min_conns": c.PoolMinConns,
	}
}
