package quiz

import (
	"encoding/json"
	"fmt"

	"github.com/The-TM1/QuizBot/internal/models"
)

// Entry is one quiz in the interchange file: a JSON array of these is the
// bot's only durable import/export format.
type Entry struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
	Subject     string   `json:"subject"`
	Chapter     string   `json:"chapter"`
}

// ImportResult counts one import run.
type ImportResult struct {
	Added    int
	Rejected int
}

// Inserter is the single store operation an import needs.
type Inserter interface {
	InsertQuiz(q *models.Quiz) (int64, error)
}

// Import parses a JSON quiz file and inserts its entries. Entries that
// fail sanitization are rejected and counted without aborting the rest.
// Non-empty subject/chapter override the per-entry tags (used when
// importing straight into a chapter).
func Import(store Inserter, data []byte, addedBy int64, subject, chapter string) (ImportResult, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return ImportResult{}, fmt.Errorf("invalid quiz file: %w", err)
	}

	var res ImportResult
	for _, entry := range entries {
		if subject != "" {
			entry.Subject = subject
		}
		if chapter != "" {
			entry.Chapter = chapter
		}

		if _, err := Sanitize(entry.Question, entry.Options, entry.Correct, entry.Explanation); err != nil {
			res.Rejected++
			continue
		}
		if entry.Subject == "" || entry.Chapter == "" {
			res.Rejected++
			continue
		}

		// Raw content is stored; sanitization happens again at delivery.
		_, err := store.InsertQuiz(&models.Quiz{
			Question:    entry.Question,
			Options:     entry.Options,
			Correct:     entry.Correct,
			Explanation: entry.Explanation,
			Subject:     entry.Subject,
			Chapter:     entry.Chapter,
			AddedBy:     addedBy,
		})
		if err != nil {
			return res, fmt.Errorf("failed to insert imported quiz: %w", err)
		}
		res.Added++
	}

	return res, nil
}

// Export renders quizzes into the interchange format.
func Export(quizzes []models.Quiz) ([]byte, error) {
	entries := make([]Entry, 0, len(quizzes))
	for _, q := range quizzes {
		entries = append(entries, Entry{
			Question:    q.Question,
			Options:     q.Options,
			Correct:     q.Correct,
			Explanation: q.Explanation,
			Subject:     q.Subject,
			Chapter:     q.Chapter,
		})
	}

	return json.MarshalIndent(entries, "", "  ")
}
