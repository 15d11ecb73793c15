// Package dispatch delivers human-approved drafts. The dispatcher polls
// the Approved stage, parses each draft, optionally enriches it with an
// ERP document, routes it to the right channel and archives the file in
// Done or Rejected. It is the only component that sends anything outside
// the vault.
//
// Import rules:
//   - MAY import: internal/channel, internal/config, internal/constants,
//     internal/ctxutil, internal/domain, internal/draft, internal/errors,
//     internal/vault
//   - MUST NOT import: internal/engine, internal/worker, internal/cli
package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/channel"
	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/ctxutil"
	"github.com/mrz1836/opsdesk/internal/domain"
	"github.com/mrz1836/opsdesk/internal/draft"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/vault"
)

// subjectDetailLen caps the subject recorded in activity log details.
const subjectDetailLen = 60

// timeSleep wraps time.After so tests can collapse loop pauses.
//
//nolint:gochecknoglobals // Required for test mocking
var timeSleep = time.After

// invoiceRefRegex spots loose invoice references ("Invoice ID: 70") in
// drafts whose front matter does not carry invoice_id.
//
//nolint:gochecknoglobals // Package-level compiled regexes are a Go best practice for performance
var invoiceRefRegex = regexp.MustCompile(`(?im)(?:^invoice_id|Invoice\s+ID)[:\s*]+(\d+)`)

// DocumentFetcher is the slice of the ERP client the dispatcher needs.
type DocumentFetcher interface {
	FetchInvoicePDF(ctx context.Context, invoiceID int) (*domain.Attachment, error)
}

// Dispatcher owns the outbound half of the daemon. It consumes draft
// files a human released into Approved and moves every one of them to a
// terminal stage, sent or not.
type Dispatcher struct {
	vault        *vault.Manager
	registry     *channel.Registry
	fetcher      DocumentFetcher
	retry        channel.RetryPolicy
	pollInterval time.Duration
	dryRun       bool
	logger       zerolog.Logger
}

// New creates a dispatcher over the given vault and channel registry.
// fetcher may be nil when no ERP is configured; enrichment is skipped.
func New(vm *vault.Manager, registry *channel.Registry, fetcher DocumentFetcher, cfg *config.DispatchConfig, logger zerolog.Logger) *Dispatcher {
	pollInterval := constants.DefaultDispatchInterval
	dryRun := false
	if cfg != nil {
		if cfg.Interval > 0 {
			pollInterval = cfg.Interval
		}
		dryRun = cfg.DryRun
	}

	return &Dispatcher{
		vault:        vm,
		registry:     registry,
		fetcher:      fetcher,
		retry:        channel.DefaultRetryPolicy(),
		pollInterval: pollInterval,
		dryRun:       dryRun,
		logger:       logger.With().Str("component", "dispatch").Logger(),
	}
}

// Run polls Approved until ctx is done. A failing cycle never stops the
// loop; the next one starts after the poll interval regardless.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info().
		Str("vault", d.vault.Root()).
		Dur("poll_interval", d.pollInterval).
		Bool("dry_run", d.dryRun).
		Msg("dispatcher started")

	for {
		if err := d.pollOnce(ctx); err != nil {
			if ctxutil.Canceled(ctx) != nil {
				d.logger.Info().Msg("dispatcher stopping")
				return ctx.Err()
			}
			d.logger.Error().Err(err).Msg("dispatch cycle failed")
		}

		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopping")
			return ctx.Err()
		case <-timeSleep(d.pollInterval):
		}
	}
}

// pollOnce processes every approved draft visible right now, in filename
// order. Failures are isolated per file.
func (d *Dispatcher) pollOnce(ctx context.Context) error {
	drafts, err := d.vault.List(ctx, constants.StageApproved)
	if err != nil {
		return err
	}

	for i := range drafts {
		if err = ctxutil.Canceled(ctx); err != nil {
			return err
		}
		d.processFile(ctx, drafts[i].Path)
	}

	return nil
}

// processFile runs one approved draft through parse, enrich, clean,
// route and archive. Every terminal outcome moves the file out of
// Approved; only a read failure or a shutdown leaves it for the next
// poll.
func (d *Dispatcher) processFile(ctx context.Context, path string) {
	logger := d.logger.With().Str("file", filepath.Base(path)).Logger()
	logger.Info().Msg("processing approved draft")

	content, err := d.vault.Read(ctx, path)
	if err != nil {
		logger.Error().Err(err).Msg("could not read draft, leaving in place")
		return
	}

	parsed, err := draft.Parse(content)
	if err != nil {
		logger.Warn().Err(err).Msg("unparseable draft")
		d.reject(ctx, path, "parse_failed", logger)
		return
	}

	d.enrich(ctx, parsed, content, logger)
	parsed.Body = draft.Clean(parsed.Body)

	if parsed.Action == domain.ActionPostSocialMedia {
		d.fanOut(ctx, path, parsed, content, logger)
		return
	}

	d.sendOne(ctx, path, parsed, logger)
}

// enrich attaches the referenced ERP document when the draft carries an
// invoice reference and no attachment yet. Enrichment failure is never
// fatal; the message goes out without the document.
func (d *Dispatcher) enrich(ctx context.Context, parsed *domain.Draft, content string, logger zerolog.Logger) {
	if d.fetcher == nil || len(parsed.Attachments) > 0 {
		return
	}

	invoiceID := parsed.InvoiceID
	if invoiceID == 0 {
		if m := invoiceRefRegex.FindStringSubmatch(content); m != nil {
			invoiceID, _ = strconv.Atoi(m[1])
		}
	}
	if invoiceID == 0 {
		return
	}

	logger.Info().Int("invoice_id", invoiceID).Msg("enriching draft with erp document")

	att, err := d.fetcher.FetchInvoicePDF(ctx, invoiceID)
	if err != nil {
		logger.Warn().Err(err).Int("invoice_id", invoiceID).Msg("could not fetch document, sending without attachment")
		return
	}

	parsed.Attachments = append(parsed.Attachments, *att)
	logger.Info().Str("attachment", att.Filename).Msg("attached erp document")
}

// sendOne delivers a single-channel draft and archives it.
func (d *Dispatcher) sendOne(ctx context.Context, path string, parsed *domain.Draft, logger zerolog.Logger) {
	ch := channelFor(parsed)

	details := map[string]string{
		"channel": ch.String(),
		"file":    filepath.Base(path),
	}
	if parsed.To != "" {
		details["to"] = parsed.To
	}
	if parsed.Subject != "" {
		details["subject"] = truncate(parsed.Subject, subjectDetailLen)
	}

	if d.dryRun {
		logger.Info().Str("channel", ch.String()).Str("to", parsed.To).Msg("dry run, would send")
		d.logActivity(ctx, "draft_sent_dry_run", details)
		d.archive(ctx, path, parsed.TaskID, dryRunReason(ch), dryRunReason(ch), logger)
		return
	}

	sender, err := d.registry.Lookup(ch)
	if err != nil {
		logger.Error().Err(err).Msg("no sender for draft")
		d.reject(ctx, path, "channel_unavailable", logger)
		return
	}

	ref, err := channel.SendWithRetry(ctx, sender, outbound(parsed), d.retry, logger)
	if err != nil {
		if ctxutil.Canceled(ctx) != nil {
			logger.Info().Msg("send interrupted by shutdown, draft stays in Approved")
			return
		}

		logger.Error().Err(err).Str("channel", ch.String()).Msg("send failed")
		details["error"] = err.Error()
		d.logActivity(ctx, "draft_send_failed", details)
		d.reject(ctx, path, rejectReason(err), logger)
		return
	}

	logger.Info().Str("channel", ch.String()).Str("ref", ref).Msg("draft sent")
	details["ref"] = ref
	d.logActivity(ctx, "draft_sent", details)
	d.archive(ctx, path, parsed.TaskID, "sent", closeReason(ch), logger)
}

// fanOut publishes one draft to every platform that has its own section.
// Platforms are attempted independently; one failure never blocks the
// others.
func (d *Dispatcher) fanOut(ctx context.Context, path string, parsed *domain.Draft, content string, logger zerolog.Logger) {
	sections := draft.Sections(content)
	if len(sections) == 0 {
		logger.Warn().Msg("multi-platform draft has no platform sections")
		d.reject(ctx, path, "no_platform_sections", logger)
		return
	}

	// Stable order so logs and outcomes read the same every time.
	platforms := make([]domain.Channel, 0, len(sections))
	for ch := range sections {
		platforms = append(platforms, ch)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	details := map[string]string{"file": filepath.Base(path)}
	succeeded := 0
	interrupted := false

	for _, ch := range platforms {
		if ctxutil.Canceled(ctx) != nil {
			interrupted = true
			break
		}

		body := draft.Clean(sections[ch])

		if d.dryRun {
			logger.Info().Str("platform", ch.String()).Msg("dry run, would post")
			details[ch.String()] = "dry_run"
			succeeded++
			continue
		}

		sender, err := d.registry.Lookup(ch)
		if err != nil {
			logger.Error().Err(err).Str("platform", ch.String()).Msg("no sender for platform")
			details[ch.String()] = "no_sender"
			continue
		}

		if _, err = channel.SendWithRetry(ctx, sender, &domain.Outbound{Body: body}, d.retry, logger); err != nil {
			logger.Error().Err(err).Str("platform", ch.String()).Msg("platform post failed")
			details[ch.String()] = "failed"
			continue
		}

		logger.Info().Str("platform", ch.String()).Msg("platform post published")
		details[ch.String()] = "posted"
		succeeded++
	}

	if interrupted && succeeded == 0 {
		// Nothing went out; leave the draft for the next run.
		logger.Info().Msg("fan-out interrupted by shutdown, draft stays in Approved")
		return
	}

	switch {
	case succeeded == len(platforms):
		closeNote := "social_media_posted"
		if d.dryRun {
			closeNote = "posted_dry_run"
		}
		d.logActivity(ctx, "multi_platform_post_published", details)
		d.archive(ctx, path, parsed.TaskID, "posted_all", closeNote, logger)
	case succeeded > 0:
		d.logActivity(ctx, "multi_platform_post_partial", details)
		d.archive(ctx, path, parsed.TaskID, "posted_partial", "social_media_posted_partial", logger)
	default:
		d.logActivity(ctx, "multi_platform_post_failed", details)
		d.reject(ctx, path, "all_platforms_failed", logger)
	}
}

// archive moves a delivered draft to Done and closes the originating
// task. Runs on a detached context: the message is already out, so the
// bookkeeping must not be lost to a shutdown or the next poll would
// send it again.
func (d *Dispatcher) archive(ctx context.Context, path, taskID, moveReason, closeNote string, logger zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)

	if _, err := d.vault.MoveWithReason(ctx, path, constants.StageDone, moveReason); err != nil {
		logger.Error().Err(err).Msg("could not archive sent draft, next poll may resend")
		return
	}

	d.closeOriginalTask(ctx, taskID, closeNote, logger)
}

// closeOriginalTask archives the task a sent draft originated from.
// Absence is normal: the worker may have moved it to Done already.
func (d *Dispatcher) closeOriginalTask(ctx context.Context, taskID, reason string, logger zerolog.Logger) {
	if taskID == "" {
		return
	}

	taskPath, found, err := d.vault.FindInProgress(ctx, d.vault.AgentID(), taskID)
	if err != nil {
		logger.Warn().Err(err).Str("task", taskID).Msg("could not look up originating task")
		return
	}
	if !found {
		logger.Debug().Str("task", taskID).Msg("originating task not in InProgress, nothing to close")
		return
	}

	if _, err = d.vault.Move(ctx, taskPath, constants.StageDone); err != nil {
		logger.Error().Err(err).Str("task", taskID).Msg("could not close originating task")
		return
	}

	logger.Info().Str("task", taskID).Str("reason", reason).Msg("originating task closed")
	d.logActivity(ctx, "task_closed_after_approval", map[string]string{
		"task":   taskID,
		"reason": reason,
	})
}

// reject moves a draft to Rejected with a reason slug in the filename.
// Detached from cancellation for the same reason archive is.
func (d *Dispatcher) reject(ctx context.Context, path, reason string, logger zerolog.Logger) {
	if _, err := d.vault.MoveWithReason(context.WithoutCancel(ctx), path, constants.StageRejected, reason); err != nil {
		logger.Error().Err(err).Msg("could not move draft to Rejected")
	}
}

// logActivity appends to the vault activity log, warning on failure.
// Entries for completed sends must survive shutdown, so the context is
// detached here too.
func (d *Dispatcher) logActivity(ctx context.Context, event string, details map[string]string) {
	if err := d.vault.LogActivity(context.WithoutCancel(ctx), event, details); err != nil {
		d.logger.Warn().Err(err).Msg("failed to write activity log")
	}
}

// outbound builds the channel-facing view of a parsed draft.
func outbound(parsed *domain.Draft) *domain.Outbound {
	return &domain.Outbound{
		To:          parsed.To,
		Subject:     parsed.Subject,
		Body:        parsed.Body,
		ThreadID:    parsed.ThreadID,
		InReplyTo:   parsed.InReplyTo,
		Attachments: parsed.Attachments,
	}
}

// channelFor maps a draft's action to its delivery channel.
func channelFor(parsed *domain.Draft) domain.Channel {
	switch parsed.Action {
	case domain.ActionSendWhatsApp:
		return domain.ChannelWhatsApp
	case domain.ActionPostLinkedIn:
		return domain.ChannelLinkedIn
	case domain.ActionPostTwitter:
		return domain.ChannelTwitter
	case domain.ActionPostFacebook:
		return domain.ChannelFacebook
	case domain.ActionPostSocial:
		if parsed.Platform.IsValid() {
			return parsed.Platform
		}
		return domain.ChannelLinkedIn
	default:
		return domain.ChannelEmail
	}
}

// closeReason is the note recorded when the originating task archives.
func closeReason(ch domain.Channel) string {
	switch ch {
	case domain.ChannelEmail:
		return "email_sent"
	case domain.ChannelWhatsApp:
		return "whatsapp_sent"
	default:
		return ch.String() + "_posted"
	}
}

// dryRunReason distinguishes rehearsed sends from rehearsed posts.
func dryRunReason(ch domain.Channel) string {
	if ch == domain.ChannelEmail || ch == domain.ChannelWhatsApp {
		return "sent_dry_run"
	}
	return "posted_dry_run"
}

// rejectReason reduces a send error to a short slug for the archived
// filename.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, opserrors.ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, opserrors.ErrUnknownChannel):
		return "channel_unavailable"
	case errors.Is(err, opserrors.ErrSendTransient):
		return "send_failed_retries_exhausted"
	case errors.Is(err, opserrors.ErrChannelSend):
		return "send_rejected"
	case errors.Is(err, opserrors.ErrMissingField):
		return "missing_field"
	default:
		return "send_failed"
	}
}

// truncate shortens a detail value, avoiding a cut mid-rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
