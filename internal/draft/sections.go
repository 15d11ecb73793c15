package draft

import (
	"regexp"
	"strings"

	"github.com/mrz1836/opsdesk/internal/domain"
)

// Per-platform section regexes for multi-platform drafts (compiled once at package init).
//
//nolint:gochecknoglobals // Package-level compiled regexes are a Go best practice for performance
var fanoutSectionRes = map[domain.Channel]*regexp.Regexp{
	domain.ChannelLinkedIn: sectionRe("LinkedIn"),
	domain.ChannelTwitter:  sectionRe("Twitter"),
	domain.ChannelFacebook: sectionRe("Facebook"),
}

// sectionRe captures the text of a "## <Platform> Post" section. The
// section header line may carry extra words; the text runs from the first
// blank line after it to the next horizontal rule, the next section
// header or the end of the draft.
func sectionRe(platform string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)## ` + platform + ` Post.*?\n\n(.*?)(?:\n---|\n##|$)`)
}

// Sections splits a multi-platform draft into per-platform post texts.
// Platforms without a "## <Platform> Post" section are absent from the
// result.
func Sections(content string) map[domain.Channel]string {
	out := make(map[domain.Channel]string)
	for ch, re := range fanoutSectionRes {
		m := re.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		if text := strings.TrimSpace(m[1]); text != "" {
			out[ch] = text
		}
	}
	return out
}
