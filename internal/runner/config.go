package runner

import "time"

// Defaults for Config.
const (
	DefaultInterval = 60 * time.Second
	DefaultLeaseTTL = 15 * time.Minute
)

// Config controls a Runner.
type Config struct {
	// Owner identifies this runner in task leases. Empty generates one.
	Owner string `yaml:"owner"`

	// Interval between scheduled passes.
	Interval time.Duration `yaml:"interval"`

	// MaxAttempts moves a task to failed after this many aborted passes.
	// Zero keeps failing tasks current indefinitely.
	MaxAttempts int `yaml:"max_attempts"`

	// ResumeCurrent also re-processes current tasks whose lease is ours or
	// older than LeaseTTL.
	ResumeCurrent bool          `yaml:"resume_current"`
	LeaseTTL      time.Duration `yaml:"lease_ttl"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		LeaseTTL: DefaultLeaseTTL,
	}
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	return c
}
