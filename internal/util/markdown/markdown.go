// Package markdown tidies model-written markdown for plain-text display.
package markdown

import (
	"regexp"
	"strings"
)

var (
	reImageMD           = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reImageHTML         = regexp.MustCompile(`(?is)<img[^>]*>`)
	reComment           = regexp.MustCompile(`(?s)<!--.*?-->`)
	reTrailingSpace     = regexp.MustCompile(`(?m)[ \t]+$`)
	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)
)

// Clean drops images and HTML comments, strips trailing whitespace and
// collapses runs of blank lines to one. Line endings are normalized to \n.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = reImageMD.ReplaceAllString(text, "")
	text = reImageHTML.ReplaceAllString(text, "")
	text = reComment.ReplaceAllString(text, "")
	text = reTrailingSpace.ReplaceAllString(text, "")
	text = reExcessiveNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
