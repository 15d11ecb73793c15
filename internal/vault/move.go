package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/ctxutil"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// archiveStampLayout formats the timestamp appended to archived filenames.
const archiveStampLayout = "20060102_150405"

// maxReasonSlugLen caps the rejection reason suffix so archived names stay
// listable.
const maxReasonSlugLen = 40

var slugSeparatorRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Move renames a task file into another stage, keeping its name. When a
// file with the same name already rests there, the moved file gets an
// archive timestamp instead so nothing is ever overwritten. Returns the
// new path.
func (m *Manager) Move(ctx context.Context, src string, to constants.Stage) (string, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	if err := requireStage(to); err != nil {
		return "", err
	}

	resolved, base, err := m.moveSource(src)
	if err != nil {
		return "", err
	}

	dest := m.TaskPath(to, base)
	if _, err = os.Stat(dest); err == nil {
		dest = m.TaskPath(to, m.stampName(base, ""))
	}

	return m.rename(resolved, dest, base)
}

// MoveWithReason renames a task file into another stage under an archived
// name: the original stem, an archive timestamp, and for Rejected moves a
// short slug derived from the reason so a human can triage the folder by
// filename alone. Returns the new path.
func (m *Manager) MoveWithReason(ctx context.Context, src string, to constants.Stage, reason string) (string, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	if err := requireStage(to); err != nil {
		return "", err
	}

	resolved, base, err := m.moveSource(src)
	if err != nil {
		return "", err
	}

	slug := ""
	if to == constants.StageRejected {
		slug = reasonSlug(reason)
	}
	dest := m.TaskPath(to, m.stampName(base, slug))

	return m.rename(resolved, dest, base)
}

// moveSource resolves and validates the file a move starts from.
func (m *Manager) moveSource(src string) (resolved, base string, err error) {
	resolved, err = m.resolveWithinRoot(src)
	if err != nil {
		return "", "", fmt.Errorf("failed to move task '%s': %w", filepath.Base(src), err)
	}

	base = filepath.Base(resolved)
	if err = validateName(base); err != nil {
		return "", "", fmt.Errorf("failed to move task '%s': %w", base, err)
	}

	return resolved, base, nil
}

// rename performs the stage transition. A source that disappeared between
// listing and moving reads as ErrTaskVanished so callers can skip it.
func (m *Manager) rename(src, dest, base string) (string, error) {
	if err := os.Rename(src, dest); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("failed to move task '%s': %w", base, opserrors.ErrTaskVanished)
		}
		return "", fmt.Errorf("failed to move task '%s': %w", base, err)
	}
	return dest, nil
}

// stampName builds "<stem>_<yyyymmdd_hhmmss><ext>", with an optional
// reason slug between the timestamp and the extension.
func (m *Manager) stampName(base, slug string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamp := m.clock.Now().Format(archiveStampLayout)
	if slug == "" {
		return stem + "_" + stamp + ext
	}
	return stem + "_" + stamp + "_" + slug + ext
}

// reasonSlug reduces a free-form reason to a short filename-safe slug.
// An empty or fully non-alphanumeric reason produces no slug.
func reasonSlug(reason string) string {
	s := strings.ToLower(strings.TrimSpace(reason))
	s = slugSeparatorRegex.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxReasonSlugLen {
		s = strings.Trim(s[:maxReasonSlugLen], "_")
	}
	return s
}
