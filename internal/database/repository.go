package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/The-TM1/QuizBot/internal/models"
)

// User operations
func (db *DB) UpsertUser(userID int64, username, firstName, lastName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE user_id = ?)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET username = excluded.username,
		    first_name = excluded.first_name,
		    last_name = excluded.last_name,
		    last_seen = CURRENT_TIMESTAMP
	`, userID, username, firstName, lastName)
	if err != nil {
		return false, fmt.Errorf("failed to upsert user: %w", err)
	}

	return !exists, nil
}

func (db *DB) GetUser(userID int64) (*models.User, error) {
	var user models.User

	err := db.QueryRow(`
		SELECT user_id, username, first_name, last_name, is_banned, joined_at, last_seen
		FROM users
		WHERE user_id = ?
	`, userID).Scan(
		&user.UserID, &user.Username, &user.FirstName, &user.LastName,
		&user.IsBanned, &user.JoinedAt, &user.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (db *DB) ListRecentUsers(limit, offset int) ([]models.User, error) {
	return db.queryUsers(`
		SELECT user_id, username, first_name, last_name, is_banned, joined_at, last_seen
		FROM users
		ORDER BY last_seen DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// ListAllUsers returns every user row ordered by id, for the users
// export.
func (db *DB) ListAllUsers() ([]models.User, error) {
	return db.queryUsers(`
		SELECT user_id, username, first_name, last_name, is_banned, joined_at, last_seen
		FROM users
		ORDER BY user_id
	`)
}

func (db *DB) queryUsers(query string, args ...interface{}) ([]models.User, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		err := rows.Scan(
			&u.UserID, &u.Username, &u.FirstName, &u.LastName,
			&u.IsBanned, &u.JoinedAt, &u.LastSeen,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *DB) AllUserIDs() ([]int64, error) {
	rows, err := db.Query(`SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *DB) CountUsers() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (db *DB) SetBanned(userID int64, banned bool) error {
	_, err := db.Exec(`UPDATE users SET is_banned = ? WHERE user_id = ?`, banned, userID)
	return err
}

func (db *DB) IsBanned(userID int64) (bool, error) {
	var banned bool
	err := db.QueryRow(`SELECT is_banned FROM users WHERE user_id = ?`, userID).Scan(&banned)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return banned, err
}

// Settings operations
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Quiz operations
func (db *DB) InsertQuiz(q *models.Quiz) (int64, error) {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("failed to encode options: %w", err)
	}

	res, err := db.Exec(`
		INSERT INTO quizzes (question, options_json, correct, explanation, subject, chapter, added_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, q.Question, string(optionsJSON), q.Correct, q.Explanation, q.Subject, q.Chapter, q.AddedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to insert quiz: %w", err)
	}

	return res.LastInsertId()
}

func scanQuiz(row interface{ Scan(...interface{}) error }) (*models.Quiz, error) {
	var q models.Quiz
	var optionsJSON string

	err := row.Scan(
		&q.ID, &q.Question, &optionsJSON, &q.Correct, &q.Explanation,
		&q.Subject, &q.Chapter, &q.AddedBy, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options of quiz %d: %w", q.ID, err)
	}

	return &q, nil
}

const quizColumns = `id, question, options_json, correct, explanation, subject, chapter, added_by, created_at`

func (db *DB) GetQuiz(id int64) (*models.Quiz, error) {
	return scanQuiz(db.QueryRow(`SELECT `+quizColumns+` FROM quizzes WHERE id = ?`, id))
}

func (db *DB) DeleteQuiz(id int64) error {
	_, err := db.Exec(`DELETE FROM quizzes WHERE id = ?`, id)
	return err
}

// LastQuizByCreator returns nil when the admin has not added anything yet.
func (db *DB) LastQuizByCreator(addedBy int64) (*models.Quiz, error) {
	q, err := scanQuiz(db.QueryRow(`
		SELECT `+quizColumns+` FROM quizzes
		WHERE added_by = ?
		ORDER BY id DESC
		LIMIT 1
	`, addedBy))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

// Bulk content management over the subject and chapter tags. Running
// sessions reference quizzes by id and skip rows that are gone, so
// these never touch session state.
func (db *DB) RenameSubject(oldName, newName string) (int64, error) {
	res, err := db.Exec(`UPDATE quizzes SET subject = ? WHERE subject = ?`, newName, oldName)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) RenameChapter(subject, oldName, newName string) (int64, error) {
	res, err := db.Exec(`
		UPDATE quizzes SET chapter = ? WHERE subject = ? AND chapter = ?
	`, newName, subject, oldName)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) DeleteSubject(subject string) (int64, error) {
	res, err := db.Exec(`DELETE FROM quizzes WHERE subject = ?`, subject)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) DeleteChapter(subject, chapter string) (int64, error) {
	res, err := db.Exec(`DELETE FROM quizzes WHERE subject = ? AND chapter = ?`, subject, chapter)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) SubjectsWithCounts() ([]models.SubjectCount, error) {
	rows, err := db.Query(`
		SELECT subject, COUNT(DISTINCT chapter), COUNT(*)
		FROM quizzes
		GROUP BY subject
		ORDER BY COUNT(*) DESC, subject
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []models.SubjectCount
	for rows.Next() {
		var s models.SubjectCount
		if err := rows.Scan(&s.Subject, &s.Chapters, &s.Quizzes); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}

	return subjects, rows.Err()
}

func (db *DB) ChaptersWithCounts(subject string) ([]models.ChapterCount, error) {
	rows, err := db.Query(`
		SELECT chapter, COUNT(*)
		FROM quizzes
		WHERE subject = ?
		GROUP BY chapter
		ORDER BY COUNT(*) DESC, chapter
	`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []models.ChapterCount
	for rows.Next() {
		var c models.ChapterCount
		if err := rows.Scan(&c.Chapter, &c.Quizzes); err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}

	return chapters, rows.Err()
}

// QuizzesFor returns the full quiz rows of one subject and chapter, in
// insertion order. Shuffling is the engine's business, not the store's.
func (db *DB) QuizzesFor(subject, chapter string) ([]models.Quiz, error) {
	return db.queryQuizzes(`
		SELECT `+quizColumns+` FROM quizzes
		WHERE subject = ? AND chapter = ?
		ORDER BY id
	`, subject, chapter)
}

// ExportQuizzes returns quiz rows filtered by subject and/or chapter.
// Empty strings mean no filter.
func (db *DB) ExportQuizzes(subject, chapter string) ([]models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes`
	var conds []string
	var args []interface{}
	if subject != "" {
		conds = append(conds, "subject = ?")
		args = append(args, subject)
	}
	if chapter != "" {
		conds = append(conds, "chapter = ?")
		args = append(args, chapter)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	return db.queryQuizzes(query, args...)
}

func (db *DB) queryQuizzes(query string, args ...interface{}) ([]models.Quiz, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []models.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}

	return quizzes, rows.Err()
}

func (db *DB) CountQuizzes() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM quizzes`).Scan(&n)
	return n, err
}

func (db *DB) CountsBySubjectChapter() (map[string]map[string]int, error) {
	rows, err := db.Query(`
		SELECT subject, chapter, COUNT(*)
		FROM quizzes
		GROUP BY subject, chapter
		ORDER BY subject, chapter
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var subject, chapter string
		var n int
		if err := rows.Scan(&subject, &chapter, &n); err != nil {
			return nil, err
		}
		if counts[subject] == nil {
			counts[subject] = make(map[string]int)
		}
		counts[subject][chapter] = n
	}

	return counts, rows.Err()
}
