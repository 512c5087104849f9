package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultSummaryMaxLength bounds derived document summaries.
const DefaultSummaryMaxLength = 500

var (
	imageRe    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	boldRe     = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	emphasisRe = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	codeRe     = regexp.MustCompile("`([^`]*)`")
	listRe     = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// Summarize derives a plain-text summary from a markdown document: front
// matter and headers are stripped, the first non-empty paragraph is taken,
// markdown decoration is flattened, whitespace collapses, and the result is
// truncated at a word boundary when it exceeds maxLen.
func Summarize(content string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSummaryMaxLength
	}

	body := stripFrontMatter(content)
	paragraph := firstParagraph(body)
	if paragraph == "" {
		return ""
	}

	text := imageRe.ReplaceAllString(paragraph, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1$2")
	text = emphasisRe.ReplaceAllString(text, "$1$2")
	text = codeRe.ReplaceAllString(text, "$1")
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return truncateAtWord(text, maxLen)
}

// stripFrontMatter removes a leading YAML front-matter block delimited by
// `---` lines.
func stripFrontMatter(content string) string {
	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, "---") {
		return content
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return content
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[i+1:], "\n")
		}
	}
	return content
}

// firstParagraph returns the first run of non-empty, non-header lines.
func firstParagraph(body string) string {
	var paragraph []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(paragraph) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			if len(paragraph) > 0 {
				break
			}
			continue
		}
		paragraph = append(paragraph, listRe.ReplaceAllString(trimmed, ""))
	}
	return strings.Join(paragraph, " ")
}

// truncateAtWord cuts text at the last word boundary within maxLen and marks
// the cut with an ellipsis.
func truncateAtWord(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := truncateRuneSafe(text, maxLen)
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

// truncateRuneSafe cuts s to at most max bytes without splitting a rune.
func truncateRuneSafe(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
