// Package draft parses approved draft files into outbound actions and
// normalizes worker prose for delivery.
//
// Draft files are Markdown with optional YAML front-matter. Reasoning
// workers produce them in whatever layout the model chose that day, so
// parsing is deliberately forgiving: front-matter keys, bold "**To**:"
// headers and plain "To:" lines all work, and the first occurrence of a
// field wins. Drafts that still lack the fields their action requires
// are rejected rather than guessed at.
package draft

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// headerScanLimit bounds how many body lines the inline header scan
// visits. A "To:" past that point is prose, not metadata.
const headerScanLimit = 40

// Pre-compiled regexes for draft parsing (compiled once at package init).
//
//nolint:gochecknoglobals // Package-level compiled regexes are a Go best practice for performance
var (
	// frontMatterRe splits a draft into its front-matter block and body.
	frontMatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n?(.*)$`)

	// scalarKeyRe matches one "key: value" line inside front-matter.
	scalarKeyRe = regexp.MustCompile(`(?i)^\s*(to|whatsapp_to|subject|task_id|action|thread_id|in_reply_to|platform|invoice_id)\s*:\s*(.+)$`)

	// inlineHeaderRe matches header lines like "**To**: x" or "Subject: y"
	// at the top of drafts written without front-matter.
	inlineHeaderRe = regexp.MustCompile(`(?i)^\s*\*{0,2}(to|subject|task_id|action)\*{0,2}\s*:\s*(.+)$`)

	// approvalHeaderRe marks where the approval instructions start.
	// Nothing below it belongs in the outbound body.
	approvalHeaderRe = regexp.MustCompile(`^##\s+To (Approve|Reject)`)

	// emailBodyHeaderRe matches the "## Email Body" section header some
	// drafts use to introduce the prose.
	emailBodyHeaderRe = regexp.MustCompile(`(?i)^##\s+Email Body\s*$`)
)

// frontMatter is the YAML-decoded view of a draft's front-matter block.
// Only attachments ride through the YAML decoder. Scalar keys are
// line-scanned separately because workers routinely emit values that are
// not valid YAML, like "subject: Re: your invoice", and one bad scalar
// must not take the attachments down with it.
type frontMatter struct {
	Attachments []domain.Attachment `yaml:"attachments"`
}

// Parse extracts an outbound action from a draft file's content.
//
// Three layouts are tried in order and merged: YAML front-matter keys,
// bold or plain header lines in the first lines of the body, and
// everything after the headers as the body text. A draft missing a field
// its action requires fails with ErrMissingField wrapped in ErrParse.
func Parse(content string) (*domain.Draft, error) {
	d := &domain.Draft{}

	bodyLines := strings.Split(content, "\n")
	if m := frontMatterRe.FindStringSubmatch(strings.TrimSpace(content)); m != nil {
		scanFrontMatter(d, m[1])
		bodyLines = strings.Split(strings.TrimSpace(m[2]), "\n")
	}

	bodyStart := scanInlineHeaders(d, bodyLines)
	d.Body = assembleBody(bodyLines[bodyStart:])

	if d.Action == "" {
		d.Action = domain.ActionSendEmail
	}
	if d.Action.IsSocial() && d.Platform == "" {
		d.Platform = domain.ChannelLinkedIn
	}

	if err := validateDraft(d); err != nil {
		return nil, err
	}

	return d, nil
}

// scanFrontMatter fills d from the front-matter block between the ---
// fences: attachments via the YAML decoder, scalar keys line by line.
func scanFrontMatter(d *domain.Draft, block string) {
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err == nil {
		d.Attachments = fm.Attachments
	}

	for _, line := range strings.Split(block, "\n") {
		m := scalarKeyRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		assignField(d, strings.ToLower(m[1]), strings.TrimSpace(m[2]))
	}
}

// scanInlineHeaders picks up "**To**: x" style header lines at the top of
// the body and returns the index of the first line after them. Scanning
// stops early once both recipient and subject are known and at least one
// non-header line has passed.
func scanInlineHeaders(d *domain.Draft, lines []string) int {
	bodyStart := 0
	limit := len(lines)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		if m := inlineHeaderRe.FindStringSubmatch(lines[i]); m != nil {
			assignField(d, strings.ToLower(m[1]), strings.TrimSpace(m[2]))
			bodyStart = i + 1
		}
		if d.To != "" && d.Subject != "" && i > bodyStart {
			break
		}
	}

	return bodyStart
}

// assignField stores a parsed key/value pair on the draft. The first
// occurrence of each field wins; later duplicates are ignored.
func assignField(d *domain.Draft, key, val string) {
	switch key {
	case "to", "whatsapp_to":
		if d.To == "" {
			d.To = val
		}
	case "subject":
		if d.Subject == "" {
			d.Subject = val
		}
	case "task_id":
		if d.TaskID == "" {
			d.TaskID = val
		}
	case "action":
		if d.Action == "" {
			d.Action = domain.Action(strings.ToLower(val))
		}
	case "thread_id":
		if d.ThreadID == "" {
			d.ThreadID = val
		}
	case "in_reply_to":
		if d.InReplyTo == "" {
			d.InReplyTo = val
		}
	case "platform":
		if d.Platform == "" {
			d.Platform = domain.Channel(strings.ToLower(val))
		}
	case "invoice_id":
		if d.InvoiceID == 0 {
			if n, err := strconv.Atoi(val); err == nil {
				d.InvoiceID = n
			}
		}
	}
}

// assembleBody joins the post-header lines into the outbound body. The
// "## Email Body" marker is dropped and everything from the approval
// instructions down is cut off.
func assembleBody(lines []string) string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if approvalHeaderRe.MatchString(line) {
			break
		}
		if emailBodyHeaderRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// validateDraft checks that the draft carries every field its action
// requires.
func validateDraft(d *domain.Draft) error {
	if !d.Action.IsValid() {
		return fmt.Errorf("%w: action '%s': %w", opserrors.ErrParse, d.Action, opserrors.ErrUnknownAction)
	}

	if d.Action.IsSocial() {
		if d.Body == "" {
			return missingField(d.Action, "body")
		}
		return nil
	}

	if d.To == "" {
		return missingField(d.Action, "to")
	}
	if d.Action == domain.ActionSendEmail && d.Subject == "" {
		return missingField(d.Action, "subject")
	}

	return nil
}

func missingField(action domain.Action, field string) error {
	return fmt.Errorf("%w: action '%s' requires '%s': %w", opserrors.ErrParse, action, field, opserrors.ErrMissingField)
}
