package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/The-TM1/QuizBot/internal/models"
)

// Session operations
func (db *DB) CreateSession(s *models.Session, quizIDs []int64) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO sessions (user_id, chat_id, total, open_period, started_at, state, current_index)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, s.UserID, s.ChatID, len(quizIDs), s.OpenPeriod, s.StartedAt, models.SessionRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	sessionID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO session_items (session_id, quiz_id, idx) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, quizID := range quizIDs {
		if _, err := stmt.Exec(sessionID, quizID, i); err != nil {
			return 0, fmt.Errorf("failed to insert session item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}

	return sessionID, nil
}

func (db *DB) Session(id int64) (*models.Session, error) {
	var s models.Session
	var finishedAt sql.NullTime

	err := db.QueryRow(`
		SELECT id, user_id, chat_id, total, open_period, started_at, finished_at, state, current_index
		FROM sessions
		WHERE id = ?
	`, id).Scan(
		&s.ID, &s.UserID, &s.ChatID, &s.Total, &s.OpenPeriod,
		&s.StartedAt, &finishedAt, &s.State, &s.CurrentIndex,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		s.FinishedAt = &finishedAt.Time
	}

	return &s, nil
}

// StopRunningSessions marks every running session of the user stopped and
// returns the ids it touched.
func (db *DB) StopRunningSessions(userID int64) ([]int64, error) {
	rows, err := db.Query(`
		SELECT id FROM sessions WHERE user_id = ? AND state = ?
	`, userID, models.SessionRunning)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	_, err = db.Exec(`
		UPDATE sessions SET state = ? WHERE user_id = ? AND state = ?
	`, models.SessionStopped, userID, models.SessionRunning)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// FinishSession transitions running -> finished. It reports whether this
// call performed the transition, so finalization happens exactly once.
func (db *DB) FinishSession(id int64, at time.Time) (bool, error) {
	res, err := db.Exec(`
		UPDATE sessions SET state = ?, finished_at = ?
		WHERE id = ? AND state = ?
	`, models.SessionFinished, at, id, models.SessionRunning)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (db *DB) AdvanceCursor(id int64) error {
	_, err := db.Exec(`UPDATE sessions SET current_index = current_index + 1 WHERE id = ?`, id)
	return err
}

// Session item operations
func scanItem(row interface{ Scan(...interface{}) error }) (*models.SessionItem, error) {
	var it models.SessionItem
	var chosen sql.NullInt64
	var sentAt, closedAt sql.NullTime

	err := row.Scan(
		&it.ID, &it.SessionID, &it.QuizID, &it.Idx, &it.PollID, &it.MessageID,
		&chosen, &it.IsCorrect, &sentAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}

	if chosen.Valid {
		v := int(chosen.Int64)
		it.Chosen = &v
	}
	if sentAt.Valid {
		it.SentAt = &sentAt.Time
	}
	if closedAt.Valid {
		it.ClosedAt = &closedAt.Time
	}

	return &it, nil
}

const itemColumns = `id, session_id, quiz_id, idx, poll_id, message_id, chosen, is_correct, sent_at, closed_at`

func (db *DB) ItemAt(sessionID int64, idx int) (*models.SessionItem, error) {
	return scanItem(db.QueryRow(`
		SELECT `+itemColumns+` FROM session_items
		WHERE session_id = ? AND idx = ?
	`, sessionID, idx))
}

func (db *DB) ItemByPoll(sessionID int64, pollID string) (*models.SessionItem, error) {
	return scanItem(db.QueryRow(`
		SELECT `+itemColumns+` FROM session_items
		WHERE session_id = ? AND poll_id = ?
	`, sessionID, pollID))
}

func (db *DB) SessionItems(sessionID int64) ([]models.SessionItem, error) {
	rows, err := db.Query(`
		SELECT `+itemColumns+` FROM session_items
		WHERE session_id = ?
		ORDER BY idx
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.SessionItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}

	return items, rows.Err()
}

func (db *DB) MarkItemSent(itemID int64, pollID string, messageID int, at time.Time) error {
	_, err := db.Exec(`
		UPDATE session_items SET poll_id = ?, message_id = ?, sent_at = ? WHERE id = ?
	`, pollID, messageID, at, itemID)
	return err
}

func (db *DB) MarkItemOutcome(itemID int64, chosen int, correct bool, at time.Time) error {
	_, err := db.Exec(`
		UPDATE session_items SET chosen = ?, is_correct = ?, closed_at = ? WHERE id = ?
	`, chosen, correct, at, itemID)
	return err
}

func (db *DB) SessionTally(sessionID int64) (models.Tally, error) {
	var t models.Tally
	err := db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN chosen >= 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_correct = 1 THEN 1 ELSE 0 END), 0)
		FROM session_items
		WHERE session_id = ?
	`, sessionID).Scan(&t.Total, &t.Answered, &t.Correct)
	return t, err
}

// Active poll operations
func (db *DB) PutActivePoll(pollID string, sessionID, userID int64) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO active_polls (poll_id, session_id, user_id) VALUES (?, ?, ?)
	`, pollID, sessionID, userID)
	return err
}

// GetActivePoll returns nil without error when the poll is no longer
// outstanding.
func (db *DB) GetActivePoll(pollID string) (*models.ActivePoll, error) {
	var ap models.ActivePoll
	err := db.QueryRow(`
		SELECT poll_id, session_id, user_id FROM active_polls WHERE poll_id = ?
	`, pollID).Scan(&ap.PollID, &ap.SessionID, &ap.UserID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ap, nil
}

// DeleteActivePoll removes the outstanding-poll row and reports whether a
// row was actually deleted. The answer and timeout paths both call this;
// only the caller that deleted the row may advance the session.
func (db *DB) DeleteActivePoll(pollID string) (bool, error) {
	res, err := db.Exec(`DELETE FROM active_polls WHERE poll_id = ?`, pollID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats operations
func (db *DB) UserStats(userID int64) (models.UserStats, error) {
	var st models.UserStats
	err := db.QueryRow(`
		SELECT COUNT(DISTINCT s.id),
		       COALESCE(SUM(CASE WHEN si.chosen >= 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN si.is_correct = 1 THEN 1 ELSE 0 END), 0)
		FROM sessions s
		JOIN session_items si ON si.session_id = s.id
		WHERE s.user_id = ?
	`, userID).Scan(&st.Sessions, &st.Answered, &st.Correct)
	return st, err
}

func (db *DB) Leaderboard(limit, offset int) ([]models.LeaderboardRow, error) {
	rows, err := db.Query(`
		SELECT s.user_id, COALESCE(SUM(si.is_correct), 0) AS correct
		FROM sessions s
		LEFT JOIN session_items si ON si.session_id = s.id
		GROUP BY s.user_id
		ORDER BY correct DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var board []models.LeaderboardRow
	for rows.Next() {
		var r models.LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.Correct); err != nil {
			return nil, err
		}
		board = append(board, r)
	}

	return board, rows.Err()
}
