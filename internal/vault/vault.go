// Package vault implements the durable task queue on a plain folder tree.
//
// Each lifecycle stage is a named folder under one root. A task is a
// markdown file resting in exactly one stage folder, and renaming the file
// between folders is the only legal state transition. Renames within a
// filesystem are atomic, so observers never see a task in two stages and a
// crash never leaves half a task behind.
//
// The Manager owns the root and exposes the primitives the orchestrator,
// the dispatcher and the CLI build on: stage listings, atomic reads and
// writes, validated moves, sidecar claim locks and the per-day markdown
// activity log. It assigns no meaning to task content.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/clock"
	"github.com/mrz1836/opsdesk/internal/constants"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// Manager owns a vault root and mediates every filesystem operation on it.
// All paths handed to Manager methods are resolved and bounds-checked
// against the root before use.
type Manager struct {
	root         string
	agentID      string
	claimTimeout time.Duration
	clock        clock.Clock
	logger       zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used for activity log dates and archive
// filename suffixes. Tests pin it to a fixed instant.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithClaimTimeout sets how long Claim waits on a held sidecar lock before
// giving up on the task.
func WithClaimTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.claimTimeout = d
	}
}

// New creates a Manager over root, creating the stage directories and the
// agent's InProgress subdirectory if they do not exist. The root is
// resolved through symlinks once here so later boundary checks compare
// real locations. Missing context documents are warned about, not fatal.
func New(root, agentID string, logger zerolog.Logger, opts ...Option) (*Manager, error) {
	if err := validateName(agentID); err != nil {
		return nil, fmt.Errorf("invalid agent id '%s': %w", agentID, err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root '%s': %w", root, err)
	}

	if err = os.MkdirAll(abs, constants.DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create vault root '%s': %v: %w", root, err, opserrors.ErrVaultUnavailable)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root '%s': %v: %w", root, err, opserrors.ErrVaultUnavailable)
	}

	m := &Manager{
		root:         resolved,
		agentID:      agentID,
		claimTimeout: constants.DefaultClaimTimeout,
		clock:        clock.RealClock{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, stage := range constants.AllStages() {
		if err = os.MkdirAll(m.StageDir(stage), constants.DirPerm); err != nil {
			return nil, fmt.Errorf("failed to create stage '%s': %v: %w", stage, err, opserrors.ErrVaultUnavailable)
		}
	}
	if err = os.MkdirAll(m.AgentDir(), constants.DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create agent directory '%s': %v: %w", agentID, err, opserrors.ErrVaultUnavailable)
	}

	for _, doc := range constants.ContextDocNames() {
		if _, err = os.Stat(filepath.Join(m.root, doc)); os.IsNotExist(err) {
			m.logger.Warn().Str("doc", doc).Msg("context document missing from vault root")
		}
	}

	return m, nil
}

// Root returns the resolved vault root.
func (m *Manager) Root() string {
	return m.root
}

// AgentID returns the agent this manager claims tasks for.
func (m *Manager) AgentID() string {
	return m.agentID
}

// StageDir returns the directory backing a stage.
func (m *Manager) StageDir(stage constants.Stage) string {
	return filepath.Join(m.root, stage.String())
}

// AgentDir returns this agent's InProgress subdirectory.
func (m *Manager) AgentDir() string {
	return filepath.Join(m.root, constants.StageInProgress.String(), m.agentID)
}

// TaskPath returns the path a file with the given name would have in a stage.
// It does not check existence.
func (m *Manager) TaskPath(stage constants.Stage, name string) string {
	return filepath.Join(m.StageDir(stage), name)
}

// PlanPath returns the path of the plan artifact for a task id.
func (m *Manager) PlanPath(taskID string) string {
	return filepath.Join(m.StageDir(constants.StagePlan), taskID+"_plan"+constants.TaskFileExt)
}

// resolveWithinRoot resolves path (relative paths are joined to the root),
// follows symlinks, and verifies the result stays inside the vault. The
// comparison is component-wise, so a root of /a/b never admits /a/bb.
func (m *Manager) resolveWithinRoot(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(m.root, path)
	}

	resolved, err := resolveSymlinks(filepath.Clean(abs))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path '%s': %w", path, err)
	}

	rel, err := filepath.Rel(m.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' escapes the vault root: %w", path, opserrors.ErrPathOutsideVault)
	}

	return resolved, nil
}

// resolveSymlinks follows symlinks for path. When the final element does not
// exist yet, the parent directory is resolved instead so boundary checks
// still see the real location a new file would land in.
func resolveSymlinks(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	dir, base := filepath.Split(path)
	resolvedDir, err := filepath.EvalSymlinks(filepath.Clean(dir))
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

// validateName checks a single path segment (a task file name or an agent
// directory name). Used on listings too, so a stray entry cannot smuggle
// path characters into later operations.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty: %w", opserrors.ErrValidation)
	}
	if len(name) > 255 {
		return fmt.Errorf("name too long (max 255 characters): %w", opserrors.ErrValidation)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name cannot start with a dot: %w", opserrors.ErrValidation)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name contains path characters: %w", opserrors.ErrValidation)
	}
	return nil
}

// requireStage rejects operations on stages that are not part of the layout.
func requireStage(stage constants.Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("stage '%s': %w", stage, opserrors.ErrStageUnknown)
	}
	return nil
}
