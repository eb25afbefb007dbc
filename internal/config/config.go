package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	GitHub    GitHubConfig    `yaml:"github"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Sync      SyncConfig      `yaml:"sync"`
	LinkCheck LinkCheckConfig `yaml:"linkcheck"`
	Cache     CacheConfig     `yaml:"cache"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// AnalyzerConfig holds settings for the external content-analysis capability.
type AnalyzerConfig struct {
	BaseURL    string        `yaml:"base_url"    env:"ANALYZER_BASE_URL"    env-default:"http://localhost:8090"`
	APIKey     string        `yaml:"api_key"     env:"ANALYZER_API_KEY"`
	Model      string        `yaml:"model"       env:"ANALYZER_MODEL"       env-default:"catalog-analyzer-v1"`
	Timeout    time.Duration `yaml:"timeout"     env:"ANALYZER_TIMEOUT"     env-default:"30s"`
	MaxRetries int           `yaml:"max_retries" env:"ANALYZER_MAX_RETRIES" env-default:"3"`
}

// GitHubConfig holds settings for the repository-hosting capability.
type GitHubConfig struct {
	BaseURL    string        `yaml:"base_url"    env:"GITHUB_BASE_URL"    env-default:"https://api.github.com"`
	Token      string        `yaml:"token"       env:"GITHUB_TOKEN"`
	Timeout    time.Duration `yaml:"timeout"     env:"GITHUB_TIMEOUT"     env-default:"30s"`
	MaxRetries int           `yaml:"max_retries" env:"GITHUB_MAX_RETRIES" env-default:"4"`
}

// JobsConfig holds background job worker settings.
type JobsConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"     env:"JOBS_POLL_INTERVAL"     env-default:"5s"`
	BatchSize       int           `yaml:"batch_size"        env:"JOBS_BATCH_SIZE"        env-default:"25"`
	MaxItemFailures int           `yaml:"max_item_failures" env:"JOBS_MAX_ITEM_FAILURES" env-default:"5"`
}

// SyncConfig holds sync worker settings.
type SyncConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"SYNC_POLL_INTERVAL" env-default:"10s"`
}

// LinkCheckConfig holds link health checker settings.
type LinkCheckConfig struct {
	Concurrency    int           `yaml:"concurrency"     env:"LINKCHECK_CONCURRENCY"     env-default:"10"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LINKCHECK_REQUEST_TIMEOUT" env-default:"10s"`
}

// CacheConfig holds content cache settings.
type CacheConfig struct {
	DefaultTTL    time.Duration `yaml:"default_ttl"    env:"CACHE_DEFAULT_TTL"    env-default:"720h"`
	PurgeInterval time.Duration `yaml:"purge_interval" env:"CACHE_PURGE_INTERVAL" env-default:"1h"`
}
