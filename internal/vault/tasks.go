package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/ctxutil"
	"github.com/mrz1836/opsdesk/internal/domain"
)

// Read returns the content of a task file. The path must resolve inside
// the vault.
func (m *Manager) Read(ctx context.Context, path string) (string, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	resolved, err := m.resolveWithinRoot(path)
	if err != nil {
		return "", fmt.Errorf("failed to read task '%s': %w", filepath.Base(path), err)
	}

	data, err := os.ReadFile(resolved) //#nosec G304 -- path is resolved and bounds-checked against the vault root
	if err != nil {
		return "", fmt.Errorf("failed to read task '%s': %w", filepath.Base(path), err)
	}

	return string(data), nil
}

// Write atomically writes content to a path inside the vault using
// write-to-temp, sync and rename. Readers never observe a partial file.
func (m *Manager) Write(ctx context.Context, path, content string) error {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	resolved, err := m.resolveWithinRoot(path)
	if err != nil {
		return fmt.Errorf("failed to write task '%s': %w", filepath.Base(path), err)
	}

	if err = atomicWrite(resolved, []byte(content), constants.FilePerm); err != nil {
		return fmt.Errorf("failed to write task '%s': %w", filepath.Base(path), err)
	}

	return nil
}

// List returns the task files resting in a stage, in filename order.
// Subdirectories, sidecar files and entries with unsafe names are skipped;
// the unsafe ones get a warning. A missing stage directory is an empty
// listing, not an error.
func (m *Manager) List(ctx context.Context, stage constants.Stage) ([]domain.Task, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if err := requireStage(stage); err != nil {
		return nil, err
	}

	return m.listDir(ctx, m.StageDir(stage), stage)
}

// ListAgent returns the tasks claimed by an agent, in filename order.
func (m *Manager) ListAgent(ctx context.Context, agent string) ([]domain.Task, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if err := validateName(agent); err != nil {
		return nil, fmt.Errorf("failed to list agent '%s': %w", agent, err)
	}

	dir := filepath.Join(m.StageDir(constants.StageInProgress), agent)
	return m.listDir(ctx, dir, constants.StageInProgress)
}

// ListInProgress returns every claimed task regardless of agent: files
// directly under InProgress plus one level of per-agent subdirectories.
// Startup recovery sweeps this set back to Intake.
func (m *Manager) ListInProgress(ctx context.Context) ([]domain.Task, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	root := m.StageDir(constants.StageInProgress)
	tasks, err := m.listDir(ctx, root, constants.StageInProgress)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return tasks, nil
		}
		return nil, fmt.Errorf("failed to list stage '%s': %w", constants.StageInProgress, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := validateName(entry.Name()); err != nil {
			m.logger.Warn().Str("dir", entry.Name()).Err(err).Msg("skipping vault entry with unsafe name")
			continue
		}
		agentTasks, err := m.listDir(ctx, filepath.Join(root, entry.Name()), constants.StageInProgress)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, agentTasks...)
	}

	return tasks, nil
}

// listDir collects the task files in one directory.
func (m *Manager) listDir(ctx context.Context, dir string, stage constants.Stage) ([]domain.Task, error) {
	// Missing directory reads as empty, the same as no tasks
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []domain.Task{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage '%s': %w", stage, err)
	}

	tasks := make([]domain.Task, 0, len(entries))
	for _, entry := range entries {
		// Check for cancellation during iteration
		if err := ctxutil.Canceled(ctx); err != nil {
			return nil, err
		}

		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, constants.TaskFileExt) {
			continue
		}
		if err := validateName(name); err != nil {
			m.logger.Warn().Str("stage", stage.String()).Str("file", name).Err(err).Msg("skipping vault entry with unsafe name")
			continue
		}

		tasks = append(tasks, domain.Task{
			ID:    strings.TrimSuffix(name, constants.TaskFileExt),
			Path:  filepath.Join(dir, name),
			Stage: stage,
		})
	}

	return tasks, nil
}

// HasTask reports whether a file with the given name rests in a stage.
func (m *Manager) HasTask(ctx context.Context, stage constants.Stage, name string) (bool, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return false, err
	}

	if err := requireStage(stage); err != nil {
		return false, err
	}
	if err := validateName(name); err != nil {
		return false, fmt.Errorf("failed to check task '%s': %w", name, err)
	}

	_, err := os.Stat(m.TaskPath(stage, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check task '%s': %w", name, err)
	}
	return true, nil
}

// StageContains reports whether any file in a stage has the substring in
// its name. Completion detection uses this to spot drafts a worker staged
// under a decorated name still carrying the task id.
func (m *Manager) StageContains(ctx context.Context, stage constants.Stage, substr string) (bool, error) {
	tasks, err := m.List(ctx, stage)
	if err != nil {
		return false, err
	}

	for _, t := range tasks {
		if strings.Contains(filepath.Base(t.Path), substr) {
			return true, nil
		}
	}
	return false, nil
}

// HasPlan reports whether a plan artifact exists for a task id.
func (m *Manager) HasPlan(ctx context.Context, taskID string) (bool, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return false, err
	}

	if err := validateName(taskID); err != nil {
		return false, fmt.Errorf("failed to check plan for '%s': %w", taskID, err)
	}

	_, err := os.Stat(m.PlanPath(taskID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check plan for '%s': %w", taskID, err)
	}
	return true, nil
}

// FindInProgress looks for the task file an approved draft originated
// from: first under the agent's subdirectory, then directly under
// InProgress, each time with and without the task file extension since
// workers occasionally write extensionless names. Returns the path and
// whether it was found.
func (m *Manager) FindInProgress(ctx context.Context, agent, taskID string) (string, bool, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", false, err
	}

	if err := validateName(agent); err != nil {
		return "", false, fmt.Errorf("failed to find task '%s': %w", taskID, err)
	}
	if err := validateName(taskID); err != nil {
		return "", false, fmt.Errorf("failed to find task '%s': %w", taskID, err)
	}

	name := taskID + constants.TaskFileExt
	candidates := []string{
		filepath.Join(m.StageDir(constants.StageInProgress), agent, name),
		filepath.Join(m.StageDir(constants.StageInProgress), agent, taskID),
		filepath.Join(m.StageDir(constants.StageInProgress), name),
		filepath.Join(m.StageDir(constants.StageInProgress), taskID),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

// AvailableContextDocs returns the names of the root-level context
// documents that exist, in prompt order. Stat failures read as absent.
func (m *Manager) AvailableContextDocs(ctx context.Context) []string {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil
	}

	var docs []string
	for _, doc := range constants.ContextDocNames() {
		if _, err := os.Stat(filepath.Join(m.root, doc)); err == nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	// Write to temp file
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	// Write data
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Sync to disk (ensure data is persisted before rename)
	if err = f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	// Close file before rename
	if err = f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
