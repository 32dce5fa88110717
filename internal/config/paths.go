package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute application paths
type Paths struct {
	BaseDir      string
	DataDir      string
	WorkspaceDir string
	LogsDir      string
	JobsDB       string
}

// GetPaths resolves the configured paths to absolute paths
func (c *Config) GetPaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}

	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}

	return &Paths{
		BaseDir:      base,
		DataDir:      resolve(c.Paths.DataDir),
		WorkspaceDir: resolve(c.Paths.WorkspaceDir),
		LogsDir:      resolve(c.Paths.LogsDir),
		JobsDB:       resolve(c.Jobs.SQLitePath),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.WorkspaceDir,
		p.LogsDir,
		filepath.Dir(p.JobsDB),
	}

	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// LogPathResolution logs every resolved path at info level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("resolved application paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("workspace_dir", p.WorkspaceDir),
		slog.String("logs_dir", p.LogsDir),
		slog.String("jobs_db", p.JobsDB))
}
