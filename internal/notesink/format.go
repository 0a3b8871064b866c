package notesink

import (
	"regexp"
	"strings"

	"github.com/lotas/notebridge/internal/config"
	"github.com/lotas/notebridge/internal/types"
)

// sourceLinkRe matches a rendered source-link line, with either an ASCII or
// a full-width colon as older notes used.
var sourceLinkRe = regexp.MustCompile(`(?m)^[ \t]*Original (?:article )?link[:：][ \t]*\[[^\]\n]*\]\([^)\n]*\)[ \t]*$`)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// LinkLine renders the source link appended to non-image notes.
func LinkLine(title, url string) string {
	return "Original link: [" + label(title, url) + "](" + url + ")"
}

// ImageSourceLine renders the source line appended to image notes.
func ImageSourceLine(title, url string) string {
	return "> Source: [" + label(title, url) + "](" + url + ")"
}

func label(title, url string) string {
	if title != "" {
		return title
	}
	return url
}

// StripSourceLinks removes every rendered source-link line from content so
// re-extracting a page that already carries one does not accumulate links.
func StripSourceLinks(content string) string {
	out := sourceLinkRe.ReplaceAllString(content, "")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Format applies the source link line and then the tag line to content.
// A request tag overrides the scenario tag from settings.
func Format(content string, c Context, s *config.Settings) string {
	out := content

	if c.URL != "" && s.IncludeURL(c.Scenario) {
		if c.Scenario == types.ScenarioImage {
			line := ImageSourceLine(c.Title, c.URL)
			if !strings.Contains(out, line) {
				if out != "" {
					out += "\n\n"
				}
				out += line
			}
		} else {
			line := LinkLine(c.Title, c.URL)
			if !strings.Contains(out, line) {
				out += "\n\n" + line
			}
		}
	}

	tag := c.Tag
	if tag == "" {
		tag = s.Tag(c.Scenario)
	}
	if tag != "" {
		if out == "" {
			out = tag
		} else {
			out += "\n\n" + tag
		}
	}
	return out
}
