package hybrid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet_ShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "Short text here.", Snippet("Short   text\nhere.", "anything", 500))
}

func TestSnippet_PicksAlignedSentences(t *testing.T) {
	filler := strings.Repeat("Unrelated filler sentence about nothing. ", 20)
	text := filler + "Self debugging lets models repair code with execution feedback. " + filler

	got := Snippet(text, "how does self debugging work", 120)
	assert.Contains(t, got, "Self debugging lets models repair code")
	assert.LessOrEqual(t, len(got), 120)
}

func TestSnippet_NoOverlapReturnsOpening(t *testing.T) {
	text := strings.Repeat("word ", 300)
	got := Snippet(text, "thailand", 100)
	assert.True(t, strings.HasPrefix(got, "word word"))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 100)
}

func TestTruncate_RespectsRunes(t *testing.T) {
	text := strings.Repeat("é", 100)
	got := truncate(text, 51)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, len(got) <= 51)
	assert.NotContains(t, got, "�")
}
