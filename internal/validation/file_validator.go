package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// DatasetExtension is the only accepted dataset file suffix
const DatasetExtension = ".json"

// DefaultMaxDatasetBytes bounds datasets read from disk
const DefaultMaxDatasetBytes int64 = 10 << 20

// FileValidator checks dataset files and output directories before the
// pipeline touches them
type FileValidator struct {
	logger   *slog.Logger
	maxBytes int64
}

// NewFileValidator creates a file validator. A non-positive maxBytes uses
// DefaultMaxDatasetBytes.
func NewFileValidator(logger *slog.Logger, maxBytes int64) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDatasetBytes
	}
	return &FileValidator{
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// ValidateDatasetFile checks that path is a readable .json file within the
// size limit
func (v *FileValidator) ValidateDatasetFile(path string) error {
	if !strings.HasSuffix(path, DatasetExtension) {
		return fmt.Errorf("only JSON files are allowed: %s", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Dataset file does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > v.maxBytes {
		return fmt.Errorf("file %s is %s, larger than the %s limit",
			path, humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(v.maxBytes)))
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Dataset file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("Dataset file validated",
		slog.String("file", path),
		slog.String("size", humanize.Bytes(uint64(info.Size()))))
	return nil
}

// ReadDataset validates path and returns its contents
func (v *FileValidator) ReadDataset(path string) ([]byte, error) {
	if err := v.ValidateDatasetFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return data, nil
}

// ValidateOutputDirectory creates dir if needed and verifies it is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}
