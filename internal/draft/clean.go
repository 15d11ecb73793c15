package draft

import (
	"regexp"
	"strings"
)

// Pre-compiled regexes for outbound text normalization (compiled once at package init).
//
//nolint:gochecknoglobals // Package-level compiled regexes are a Go best practice for performance
var (
	// metaCommentaryRes match lines of worker narration that must never
	// reach a recipient.
	metaCommentaryRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:let me|i'll|i will|here's what|i'm thinking|i'm going to)`),
		regexp.MustCompile(`(?i)(?:step \d+:|first,|next,|then,|finally,)`),
		regexp.MustCompile(`(?i)(?:this (?:email|post|message) will|the purpose is)`),
		regexp.MustCompile(`(?i)^##\s+(?:action summary|draft|preview|email body|to approve)`),
	}

	markdownHeaderRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	boldEmphasisRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	underscoreRe     = regexp.MustCompile(`__(.+?)__`)
	listBulletRe     = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
	horizontalRuleRe = regexp.MustCompile(`(?m)^\s*[-*]{3,}\s*$`)
	fencedCodeRe     = regexp.MustCompile("```[\\s\\S]*?```")
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
)

// Clean strips markdown scaffolding and worker narration from outbound
// prose so the delivered text reads like a person typed it. Emojis,
// hashtags and paragraph breaks survive.
func Clean(text string) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if isMetaCommentary(line) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.Join(kept, "\n")

	text = markdownHeaderRe.ReplaceAllString(text, "$1")
	text = boldEmphasisRe.ReplaceAllString(text, "$1")
	text = underscoreRe.ReplaceAllString(text, "$1")
	text = listBulletRe.ReplaceAllString(text, "")
	text = horizontalRuleRe.ReplaceAllString(text, "")
	text = fencedCodeRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

func isMetaCommentary(line string) bool {
	for _, re := range metaCommentaryRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
