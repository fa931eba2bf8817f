package quiz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The-TM1/QuizBot/internal/models"
)

type fakeInserter struct {
	inserted []*models.Quiz
}

func (f *fakeInserter) InsertQuiz(q *models.Quiz) (int64, error) {
	f.inserted = append(f.inserted, q)
	return int64(len(f.inserted)), nil
}

func TestImport_SkipsBadEntriesWithoutAborting(t *testing.T) {
	data := []byte(`[
		{"question": "Good one", "options": ["A", "B"], "correct": 1,
		 "subject": "Math", "chapter": "Algebra"},
		{"question": "One option only", "options": ["A"], "correct": 0,
		 "subject": "Math", "chapter": "Algebra"},
		{"question": "No chapter", "options": ["A", "B"], "correct": 0,
		 "subject": "Math", "chapter": ""},
		{"question": "Also good", "options": ["Yes", "No"], "correct": 0,
		 "explanation": "obviously", "subject": "Math", "chapter": "Algebra"}
	]`)

	store := &fakeInserter{}
	res, err := Import(store, data, 42, "", "")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 2, res.Rejected)
	require.Len(t, store.inserted, 2)
	assert.Equal(t, "Good one", store.inserted[0].Question)
	assert.Equal(t, int64(42), store.inserted[0].AddedBy)
	assert.Equal(t, "obviously", store.inserted[1].Explanation)
}

func TestImport_TargetOverridesEntryTags(t *testing.T) {
	data := []byte(`[
		{"question": "Q", "options": ["A", "B"], "correct": 0,
		 "subject": "History", "chapter": "WW2"}
	]`)

	store := &fakeInserter{}
	res, err := Import(store, data, 1, "Math", "Algebra")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, "Math", store.inserted[0].Subject)
	assert.Equal(t, "Algebra", store.inserted[0].Chapter)
}

func TestImport_InvalidJSON(t *testing.T) {
	store := &fakeInserter{}
	_, err := Import(store, []byte(`{not an array}`), 1, "", "")
	assert.Error(t, err)
	assert.Empty(t, store.inserted)
}

func TestExport_RoundTripsThroughImport(t *testing.T) {
	quizzes := []models.Quiz{
		{
			Question: "Q1", Options: []string{"A", "B"}, Correct: 1,
			Explanation: "because", Subject: "Math", Chapter: "Algebra",
		},
		{
			Question: "Q2", Options: []string{"X", "Y", "Z"}, Correct: 0,
			Subject: "Math", Chapter: "Geometry",
		},
	}

	data, err := Export(quizzes)
	require.NoError(t, err)

	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "because", entries[0].Explanation)

	store := &fakeInserter{}
	res, err := Import(store, data, 9, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 0, res.Rejected)
}
