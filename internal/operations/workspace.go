package operations

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspaces manages the per-job directories below a root. Each job owns
// <root>/<job_id>, so concurrent jobs never share files.
type Workspaces struct {
	root string
}

// NewWorkspaces creates the root directory if needed
func NewWorkspaces(root string) (*Workspaces, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return &Workspaces{root: root}, nil
}

// Root returns the workspace root directory
func (w *Workspaces) Root() string {
	return w.root
}

// Dir returns the workspace directory of a job
func (w *Workspaces) Dir(jobID string) string {
	return filepath.Join(w.root, jobID)
}

// Prepare clears any stale workspace for jobID, creates a fresh one with its
// plots directory and stores input as the job's input file.
func (w *Workspaces) Prepare(jobID string, input []byte) (string, error) {
	if err := checkJobID(jobID); err != nil {
		return "", err
	}

	dir := w.Dir(jobID)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, PlotsDirName), 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, InputFileName), input, 0644); err != nil {
		return "", fmt.Errorf("failed to store input: %w", err)
	}
	return dir, nil
}

// Input reads a job's stored input file
func (w *Workspaces) Input(jobID string) ([]byte, error) {
	if err := checkJobID(jobID); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(w.Dir(jobID), InputFileName))
}

// Remove deletes a job's workspace. Removing a missing workspace succeeds.
func (w *Workspaces) Remove(jobID string) error {
	if err := checkJobID(jobID); err != nil {
		return err
	}
	if err := os.RemoveAll(w.Dir(jobID)); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}

// Check verifies the root is a writable directory
func (w *Workspaces) Check() error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("workspace root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace root %s is not a directory", w.root)
	}

	f, err := os.CreateTemp(w.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("workspace root not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkJobID(jobID string) error {
	if jobID == "" || jobID == "." || jobID == ".." || filepath.Base(jobID) != jobID {
		return fmt.Errorf("invalid job id %q", jobID)
	}
	return nil
}
