package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Jobs.BatchSize <= 0 {
		return fmt.Errorf("jobs.batch_size must be > 0 (got %d)", c.Jobs.BatchSize)
	}
	if c.Jobs.MaxItemFailures <= 0 {
		return fmt.Errorf("jobs.max_item_failures must be > 0 (got %d)", c.Jobs.MaxItemFailures)
	}
	if c.Jobs.PollInterval <= 0 {
		return fmt.Errorf("jobs.poll_interval must be > 0 (got %v)", c.Jobs.PollInterval)
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be > 0 (got %v)", c.Sync.PollInterval)
	}
	if c.LinkCheck.Concurrency <= 0 {
		return fmt.Errorf("linkcheck.concurrency must be > 0 (got %d)", c.LinkCheck.Concurrency)
	}
	if c.LinkCheck.RequestTimeout <= 0 {
		return fmt.Errorf("linkcheck.request_timeout must be > 0 (got %v)", c.LinkCheck.RequestTimeout)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache.default_ttl must be > 0 (got %v)", c.Cache.DefaultTTL)
	}
	if c.Analyzer.MaxRetries < 0 {
		return fmt.Errorf("analyzer.max_retries must be >= 0 (got %d)", c.Analyzer.MaxRetries)
	}
	if c.GitHub.MaxRetries < 0 {
		return fmt.Errorf("github.max_retries must be >= 0 (got %d)", c.GitHub.MaxRetries)
	}
	return nil
}
