package quiz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_Passthrough(t *testing.T) {
	sq, err := Sanitize("What is 2+2?", []string{"3", "4", "5"}, 1, "basic math")
	require.NoError(t, err)

	assert.Equal(t, "What is 2+2?", sq.Question)
	assert.Equal(t, []string{"3", "4", "5"}, sq.Options)
	assert.Equal(t, 1, sq.Correct)
	assert.Equal(t, "basic math", sq.Explanation)
}

func TestSanitize_TruncatesWithEllipsis(t *testing.T) {
	longQ := strings.Repeat("q", MaxQuestionLen+50)
	longOpt := strings.Repeat("o", MaxOptionLen+50)
	longExpl := strings.Repeat("e", MaxExplanationLen+50)

	sq, err := Sanitize(longQ, []string{longOpt, "short"}, 1, longExpl)
	require.NoError(t, err)

	assert.Len(t, []rune(sq.Question), MaxQuestionLen)
	assert.True(t, strings.HasSuffix(sq.Question, "…"))
	assert.Len(t, []rune(sq.Options[0]), MaxOptionLen)
	assert.True(t, strings.HasSuffix(sq.Options[0], "…"))
	assert.Len(t, []rune(sq.Explanation), MaxExplanationLen)
}

func TestSanitize_DropsEmptyAndDeduplicates(t *testing.T) {
	sq, err := Sanitize("Q?", []string{"  ", "A", "B", "A", "", "C"}, 2, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, sq.Options)
	assert.Equal(t, 1, sq.Correct) // "B" moved up after the blank was dropped
}

func TestSanitize_CapsOptionCount(t *testing.T) {
	options := make([]string, 14)
	for i := range options {
		options[i] = string(rune('A' + i))
	}

	sq, err := Sanitize("Q?", options, 0, "")
	require.NoError(t, err)
	assert.Len(t, sq.Options, MaxOptions)
}

func TestSanitize_CorrectRemapsByText(t *testing.T) {
	// The correct option appears twice; only the first copy survives, so
	// correct lands on the survivor regardless of its original position.
	sq, err := Sanitize("Q?", []string{"A", "B", "A"}, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 0, sq.Correct)
}

func TestSanitize_Rejections(t *testing.T) {
	testCases := []struct {
		name    string
		options []string
		correct int
		want    error
	}{
		{
			name:    "correct index negative",
			options: []string{"A", "B"},
			correct: -1,
			want:    ErrCorrectOptionLost,
		},
		{
			name:    "correct index out of range",
			options: []string{"A", "B"},
			correct: 5,
			want:    ErrCorrectOptionLost,
		},
		{
			name:    "correct option blank",
			options: []string{"A", "  ", "B"},
			correct: 1,
			want:    ErrCorrectOptionLost,
		},
		{
			name:    "correct option beyond the cap",
			options: []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"},
			correct: 10,
			want:    ErrCorrectOptionLost,
		},
		{
			name:    "single usable option",
			options: []string{"A", "A", ""},
			correct: 0,
			want:    ErrNotEnoughOptions,
		},
		{
			name:    "all options blank",
			options: []string{" ", "\t"},
			correct: 0,
			want:    ErrCorrectOptionLost,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Sanitize("Q?", tc.options, tc.correct, "")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	raw := []string{strings.Repeat("x", 150), "B", "B", " ", "C"}

	first, err := Sanitize("  padded question  ", raw, 1, "why")
	require.NoError(t, err)

	second, err := Sanitize(first.Question, first.Options, first.Correct, first.Explanation)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
