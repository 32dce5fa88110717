package operations

import (
	"time"

	"budgetpulse/internal/config"
)

// Default job execution settings
const (
	DefaultWorkers       = 1
	DefaultQueueSize     = 32
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// Config controls how analysis jobs run
type Config struct {
	// Number of jobs processed concurrently
	Workers int `json:"workers"`

	// Jobs waiting beyond this many are rejected
	QueueSize int `json:"queue_size"`

	// Continue with a standardized dataset when validation fails
	StandardizeOnInvalid bool `json:"standardize_on_invalid"`

	// Produce charts for the report
	Visualize bool `json:"visualize"`

	// Write the XLSX workbook next to the report
	ExportWorkbook bool `json:"export_workbook"`

	// Terminal jobs older than this are purged; zero keeps them forever
	Retention time.Duration `json:"retention"`

	SweepInterval time.Duration `json:"sweep_interval"`
}

// NewConfig returns the default job configuration
func NewConfig() *Config {
	return &Config{
		Workers:        DefaultWorkers,
		QueueSize:      DefaultQueueSize,
		Visualize:      true,
		ExportWorkbook: true,
		Retention:      DefaultRetention,
		SweepInterval:  DefaultSweepInterval,
	}
}

// ConfigFrom maps the jobs section of the application config
func ConfigFrom(cfg config.JobsConfig) *Config {
	c := &Config{
		Workers:              cfg.Workers,
		QueueSize:            cfg.QueueSize,
		StandardizeOnInvalid: cfg.StandardizeOnInvalid,
		Visualize:            cfg.Visualize,
		ExportWorkbook:       cfg.ExportWorkbook,
		Retention:            cfg.Retention,
		SweepInterval:        cfg.SweepInterval,
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}
