package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The-TM1/QuizBot/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.RunMigrations())
	return db
}

func insertTestQuiz(t *testing.T, db *DB, subject, chapter string, addedBy int64) int64 {
	t.Helper()

	id, err := db.InsertQuiz(&models.Quiz{
		Question: "What is 2+2?",
		Options:  []string{"3", "4", "5"},
		Correct:  1,
		Subject:  subject,
		Chapter:  chapter,
		AddedBy:  addedBy,
	})
	require.NoError(t, err)
	return id
}

func TestUpsertUser(t *testing.T) {
	db := testDB(t)

	isNew, err := db.UpsertUser(100, "alice", "Alice", "A")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = db.UpsertUser(100, "alice_new", "Alice", "A")
	require.NoError(t, err)
	assert.False(t, isNew)

	u, err := db.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", u.Username)
	assert.False(t, u.IsBanned)

	count, err := db.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBanLifecycle(t *testing.T) {
	db := testDB(t)

	// Unknown users are not banned.
	banned, err := db.IsBanned(999)
	require.NoError(t, err)
	assert.False(t, banned)

	_, err = db.UpsertUser(100, "bob", "Bob", "")
	require.NoError(t, err)

	require.NoError(t, db.SetBanned(100, true))
	banned, err = db.IsBanned(100)
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, db.SetBanned(100, false))
	banned, err = db.IsBanned(100)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestSettings(t *testing.T) {
	db := testDB(t)

	v, err := db.GetSetting("admin_ids")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, db.SetSetting("admin_ids", "1,2,3"))
	require.NoError(t, db.SetSetting("admin_ids", "1,2"))

	v, err = db.GetSetting("admin_ids")
	require.NoError(t, err)
	assert.Equal(t, "1,2", v)
}

func TestQuizRoundTrip(t *testing.T) {
	db := testDB(t)

	id := insertTestQuiz(t, db, "Math", "Algebra", 42)

	q, err := db.GetQuiz(id)
	require.NoError(t, err)
	assert.Equal(t, "What is 2+2?", q.Question)
	assert.Equal(t, []string{"3", "4", "5"}, q.Options)
	assert.Equal(t, 1, q.Correct)
	assert.Equal(t, int64(42), q.AddedBy)
	assert.False(t, q.CreatedAt.IsZero())
}

func TestSubjectAndChapterCounts(t *testing.T) {
	db := testDB(t)

	insertTestQuiz(t, db, "Math", "Algebra", 1)
	insertTestQuiz(t, db, "Math", "Algebra", 1)
	insertTestQuiz(t, db, "Math", "Geometry", 1)
	insertTestQuiz(t, db, "History", "WW2", 1)

	subjects, err := db.SubjectsWithCounts()
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "Math", subjects[0].Subject) // most quizzes first
	assert.Equal(t, 2, subjects[0].Chapters)
	assert.Equal(t, 3, subjects[0].Quizzes)

	chapters, err := db.ChaptersWithCounts("Math")
	require.NoError(t, err)
	require.Len(t, chapters, 2)

	quizzes, err := db.QuizzesFor("Math", "Algebra")
	require.NoError(t, err)
	assert.Len(t, quizzes, 2)

	total, err := db.CountQuizzes()
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	counts, err := db.CountsBySubjectChapter()
	require.NoError(t, err)
	assert.Equal(t, 2, counts["Math"]["Algebra"])
	assert.Equal(t, 1, counts["History"]["WW2"])
}

func TestLastQuizByCreator(t *testing.T) {
	db := testDB(t)

	q, err := db.LastQuizByCreator(42)
	require.NoError(t, err)
	assert.Nil(t, q)

	insertTestQuiz(t, db, "Math", "Algebra", 42)
	last := insertTestQuiz(t, db, "Math", "Algebra", 42)
	insertTestQuiz(t, db, "Math", "Algebra", 7) // someone else's

	q, err = db.LastQuizByCreator(42)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, last, q.ID)

	require.NoError(t, db.DeleteQuiz(last))
	q, err = db.LastQuizByCreator(42)
	require.NoError(t, err)
	assert.NotEqual(t, last, q.ID)
}

func TestExportQuizzes_Filters(t *testing.T) {
	db := testDB(t)

	insertTestQuiz(t, db, "Math", "Algebra", 1)
	insertTestQuiz(t, db, "Math", "Geometry", 1)
	insertTestQuiz(t, db, "History", "WW2", 1)

	all, err := db.ExportQuizzes("", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	math, err := db.ExportQuizzes("Math", "")
	require.NoError(t, err)
	assert.Len(t, math, 2)

	algebra, err := db.ExportQuizzes("Math", "Algebra")
	require.NoError(t, err)
	assert.Len(t, algebra, 1)
}

func TestContentManagement(t *testing.T) {
	db := testDB(t)

	insertTestQuiz(t, db, "Math", "Algebra", 1)
	insertTestQuiz(t, db, "Math", "Algebra", 1)
	insertTestQuiz(t, db, "Math", "Geometry", 1)
	insertTestQuiz(t, db, "History", "WW2", 1)

	n, err := db.RenameSubject("Math", "Mathematics")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// The old name is gone.
	n, err = db.RenameSubject("Math", "Mathematics")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = db.RenameChapter("Mathematics", "Algebra", "Linear Algebra")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = db.DeleteChapter("Mathematics", "Geometry")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.DeleteSubject("Mathematics")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// History / WW2 was never touched.
	total, err := db.CountQuizzes()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestListAllUsers(t *testing.T) {
	db := testDB(t)

	_, err := db.UpsertUser(300, "carol", "Carol", "")
	require.NoError(t, err)
	_, err = db.UpsertUser(100, "alice", "Alice", "")
	require.NoError(t, err)

	users, err := db.ListAllUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(100), users[0].UserID)
	assert.Equal(t, int64(300), users[1].UserID)
}

func TestSessionItems_DeliveryOrder(t *testing.T) {
	db := testDB(t)

	q1 := insertTestQuiz(t, db, "Math", "Algebra", 1)
	q2 := insertTestQuiz(t, db, "Math", "Algebra", 1)
	q3 := insertTestQuiz(t, db, "Math", "Algebra", 1)

	sessionID, err := db.CreateSession(&models.Session{
		UserID: 7, ChatID: 7, StartedAt: time.Now(),
	}, []int64{q3, q1, q2})
	require.NoError(t, err)

	items, err := db.SessionItems(sessionID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	got := []int64{items[0].QuizID, items[1].QuizID, items[2].QuizID}
	assert.Equal(t, []int64{q3, q1, q2}, got)
	for i, it := range items {
		assert.Equal(t, i, it.Idx)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := testDB(t)

	q1 := insertTestQuiz(t, db, "Math", "Algebra", 1)
	q2 := insertTestQuiz(t, db, "Math", "Algebra", 1)

	start := time.Now()
	sessionID, err := db.CreateSession(&models.Session{
		UserID:     100,
		ChatID:     100,
		OpenPeriod: 30,
		StartedAt:  start,
	}, []int64{q2, q1})
	require.NoError(t, err)

	s, err := db.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, s.State)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 30, s.OpenPeriod)
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Nil(t, s.FinishedAt)

	// Items keep the shuffled order.
	item, err := db.ItemAt(sessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, q2, item.QuizID)

	require.NoError(t, db.MarkItemSent(item.ID, "poll-1", 555, time.Now()))
	byPoll, err := db.ItemByPoll(sessionID, "poll-1")
	require.NoError(t, err)
	assert.Equal(t, item.ID, byPoll.ID)
	assert.Equal(t, 555, byPoll.MessageID)

	require.NoError(t, db.MarkItemOutcome(item.ID, 1, true, time.Now()))
	require.NoError(t, db.AdvanceCursor(sessionID))

	item2, err := db.ItemAt(sessionID, 1)
	require.NoError(t, err)
	require.NoError(t, db.MarkItemSent(item2.ID, "poll-2", 556, time.Now()))
	require.NoError(t, db.MarkItemOutcome(item2.ID, models.TimeoutChosen, false, time.Now()))
	require.NoError(t, db.AdvanceCursor(sessionID))

	tally, err := db.SessionTally(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.Tally{Total: 2, Answered: 1, Correct: 1}, tally)
	assert.Equal(t, 0, tally.Wrong())
	assert.Equal(t, 1, tally.Missed())

	finished, err := db.FinishSession(sessionID, time.Now())
	require.NoError(t, err)
	assert.True(t, finished)

	// Second finalization attempt loses.
	finished, err = db.FinishSession(sessionID, time.Now())
	require.NoError(t, err)
	assert.False(t, finished)

	s, err = db.Session(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, s.State)
	assert.NotNil(t, s.FinishedAt)
}

func TestStopRunningSessions(t *testing.T) {
	db := testDB(t)

	q := insertTestQuiz(t, db, "Math", "Algebra", 1)

	first, err := db.CreateSession(&models.Session{UserID: 100, ChatID: 100, StartedAt: time.Now()}, []int64{q})
	require.NoError(t, err)
	other, err := db.CreateSession(&models.Session{UserID: 200, ChatID: 200, StartedAt: time.Now()}, []int64{q})
	require.NoError(t, err)

	ids, err := db.StopRunningSessions(100)
	require.NoError(t, err)
	assert.Equal(t, []int64{first}, ids)

	s, err := db.Session(first)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStopped, s.State)

	// The other user's session is untouched.
	s, err = db.Session(other)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, s.State)

	// Nothing left to stop.
	ids, err = db.StopRunningSessions(100)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestActivePoll_DeleteIsExactlyOnce(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.PutActivePoll("poll-1", 5, 100))

	ap, err := db.GetActivePoll("poll-1")
	require.NoError(t, err)
	require.NotNil(t, ap)
	assert.Equal(t, int64(5), ap.SessionID)

	deleted, err := db.DeleteActivePoll("poll-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = db.DeleteActivePoll("poll-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	ap, err = db.GetActivePoll("poll-1")
	require.NoError(t, err)
	assert.Nil(t, ap)
}

func TestUserStatsAndLeaderboard(t *testing.T) {
	db := testDB(t)

	q1 := insertTestQuiz(t, db, "Math", "Algebra", 1)
	q2 := insertTestQuiz(t, db, "Math", "Algebra", 1)

	play := func(userID int64, outcomes []bool) {
		sessionID, err := db.CreateSession(&models.Session{
			UserID: userID, ChatID: userID, StartedAt: time.Now(),
		}, []int64{q1, q2})
		require.NoError(t, err)

		for i, correct := range outcomes {
			item, err := db.ItemAt(sessionID, i)
			require.NoError(t, err)
			require.NoError(t, db.MarkItemOutcome(item.ID, 0, correct, time.Now()))
		}
	}

	play(100, []bool{true, true})
	play(100, []bool{true, false})
	play(200, []bool{false, false})

	stats, err := db.UserStats(100)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, 4, stats.Answered)
	assert.Equal(t, 3, stats.Correct)

	board, err := db.Leaderboard(10, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, int64(100), board[0].UserID)
	assert.Equal(t, 3, board[0].Correct)
	assert.Equal(t, int64(200), board[1].UserID)
	assert.Equal(t, 0, board[1].Correct)
}
