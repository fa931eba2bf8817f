package quiz

import (
	"errors"
	"strings"
)

// Telegram poll limits, minus a margin on the question so the question
// counter prefix still fits.
const (
	MaxQuestionLen    = 292
	MaxOptionLen      = 100
	MaxExplanationLen = 200
	MaxOptions        = 10
	MinOptions        = 2
)

var (
	// ErrNotEnoughOptions means fewer than two usable options survived
	// sanitization.
	ErrNotEnoughOptions = errors.New("not enough valid options (need at least 2)")

	// ErrCorrectOptionLost means the correct option did not survive
	// sanitization, so delivering the quiz would mark a different option
	// as correct. Such quizzes are rejected, never clamped.
	ErrCorrectOptionLost = errors.New("correct option did not survive sanitization")
)

// SanitizedQuiz is quiz content that is safe to hand to the poll API.
type SanitizedQuiz struct {
	Question    string
	Options     []string
	Correct     int
	Explanation string
}

// Sanitize makes raw quiz content valid for delivery: truncates the
// question, options and explanation, drops empty options, deduplicates
// preserving first-seen order, caps the option count, and remaps the
// correct index onto the surviving options. Pure and idempotent.
func Sanitize(question string, options []string, correct int, explanation string) (SanitizedQuiz, error) {
	if correct < 0 || correct >= len(options) {
		return SanitizedQuiz{}, ErrCorrectOptionLost
	}

	correctText := truncate(options[correct], MaxOptionLen)
	if correctText == "" {
		return SanitizedQuiz{}, ErrCorrectOptionLost
	}

	seen := make(map[string]struct{}, len(options))
	clean := make([]string, 0, len(options))
	for _, o := range options {
		o = truncate(o, MaxOptionLen)
		if o == "" {
			continue
		}
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		clean = append(clean, o)
	}
	if len(clean) > MaxOptions {
		clean = clean[:MaxOptions]
	}
	if len(clean) < MinOptions {
		return SanitizedQuiz{}, ErrNotEnoughOptions
	}

	newCorrect := -1
	for i, o := range clean {
		if o == correctText {
			newCorrect = i
			break
		}
	}
	if newCorrect < 0 {
		return SanitizedQuiz{}, ErrCorrectOptionLost
	}

	return SanitizedQuiz{
		Question:    truncate(question, MaxQuestionLen),
		Options:     clean,
		Correct:     newCorrect,
		Explanation: truncate(explanation, MaxExplanationLen),
	}, nil
}

// truncate trims surrounding whitespace and cuts s to at most n runes,
// marking the cut with an ellipsis.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
