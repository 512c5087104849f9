package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeSkipsFrontMatterAndHeader(t *testing.T) {
	content := "---\nstatus: accepted\n---\n# Title\n\nFirst real paragraph here.\n\nSecond paragraph."

	summary := Summarize(content, 500)
	assert.Equal(t, "First real paragraph here.", summary)
}

func TestSummarizeFlattensMarkdown(t *testing.T) {
	content := "Some **bold** text with a [link](https://example.com) and `code` inline."

	summary := Summarize(content, 500)
	assert.Equal(t, "Some bold text with a link and code inline.", summary)
}

func TestSummarizeJoinsListItems(t *testing.T) {
	content := "- first point\n- second point\n\nlater paragraph"

	summary := Summarize(content, 500)
	assert.Equal(t, "first point second point", summary)
}

func TestSummarizeTruncatesAtWordBoundary(t *testing.T) {
	content := strings.Repeat("word ", 50)

	summary := Summarize(content, 30)
	assert.True(t, strings.HasSuffix(summary, "..."))
	assert.LessOrEqual(t, len(summary), 30+3)
	// Never cuts in the middle of a word.
	assert.NotContains(t, summary, "wor...")
}

func TestSummarizeNeverSplitsMultiByteRunes(t *testing.T) {
	// One unbroken run of two-byte runes forces every candidate cut index
	// inside a rune; the cut must back up to a boundary.
	content := strings.Repeat("é", 100)

	for maxLen := 20; maxLen < 24; maxLen++ {
		summary := Summarize(content, maxLen)
		assert.True(t, utf8.ValidString(summary))
	}
}

func TestSummarizeEmptyDocument(t *testing.T) {
	assert.Equal(t, "", Summarize("", 500))
	assert.Equal(t, "", Summarize("---\nkey: value\n---\n# Only a header\n", 500))
}

func TestSummarizeDefaultsMaxLength(t *testing.T) {
	content := strings.Repeat("alpha ", 200)

	summary := Summarize(content, 0)
	assert.LessOrEqual(t, len(summary), DefaultSummaryMaxLength+3)
	assert.True(t, strings.HasSuffix(summary, "..."))
}
