package quiz

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/The-TM1/QuizBot/internal/models"
	"github.com/The-TM1/QuizBot/pkg/logger"
)

// ErrEmptySelection means the chosen subject/chapter has no deliverable
// quizzes.
var ErrEmptySelection = errors.New("no quizzes for this selection")

// timeoutGrace is added to a question's time budget before the fallback
// timer fires, so a last-second answer still beats the timeout.
const timeoutGrace = 2 * time.Second

// Store is the slice of the database the engine needs.
type Store interface {
	QuizzesFor(subject, chapter string) ([]models.Quiz, error)
	GetQuiz(id int64) (*models.Quiz, error)

	CreateSession(s *models.Session, quizIDs []int64) (int64, error)
	Session(id int64) (*models.Session, error)
	StopRunningSessions(userID int64) ([]int64, error)
	FinishSession(id int64, at time.Time) (bool, error)
	AdvanceCursor(id int64) error

	ItemAt(sessionID int64, idx int) (*models.SessionItem, error)
	ItemByPoll(sessionID int64, pollID string) (*models.SessionItem, error)
	SessionItems(sessionID int64) ([]models.SessionItem, error)
	MarkItemSent(itemID int64, pollID string, messageID int, at time.Time) error
	MarkItemOutcome(itemID int64, chosen int, correct bool, at time.Time) error
	SessionTally(sessionID int64) (models.Tally, error)

	PutActivePoll(pollID string, sessionID, userID int64) error
	GetActivePoll(pollID string) (*models.ActivePoll, error)
	DeleteActivePoll(pollID string) (bool, error)
}

// OutboundPoll is one quiz question ready for delivery.
type OutboundPoll struct {
	ChatID      int64
	Question    string
	Options     []string
	Correct     int
	Explanation string
	OpenPeriod  int // seconds, 0 = untimed
}

// Summary is the one-time result of a finished session.
type Summary struct {
	Total    int
	Answered int
	Correct  int
	Wrong    int
	Missed   int
	Duration time.Duration
	Review   []ReviewEntry
}

// ReviewEntry is one wrong or missed question, listed in the finish
// message so the user knows what to revisit.
type ReviewEntry struct {
	Index    int    // zero-based position in the session
	Question string // empty when the quiz row is gone
	Missed   bool
}

// Sender delivers engine output to the chat.
type Sender interface {
	SendQuizPoll(p OutboundPoll) (pollID string, messageID int, err error)
	SendSummary(chatID int64, s Summary) error
	NotifyAdmins(text string)
}

// Engine drives quiz sessions: one outstanding question per session,
// advanced by answer or timeout, whichever deletes the active-poll row
// first.
type Engine struct {
	store  Store
	sender Sender
	now    func() time.Time

	mu     sync.Mutex
	timers map[int64]*time.Timer // pending timeout per session
}

func NewEngine(store Store, sender Sender) *Engine {
	return &Engine{
		store:  store,
		sender: sender,
		now:    time.Now,
		timers: make(map[int64]*time.Timer),
	}
}

// Start creates a session for the subject/chapter selection and delivers
// its first question. Any running session of the same user is stopped
// first. openPeriod is the per-question budget in seconds, 0 for untimed.
func (e *Engine) Start(userID, chatID int64, subject, chapter string, openPeriod int) (int64, int, error) {
	quizzes, err := e.store.QuizzesFor(subject, chapter)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load quizzes: %w", err)
	}

	// Only quizzes that survive sanitization are playable.
	var ids []int64
	for _, q := range quizzes {
		if _, err := Sanitize(q.Question, q.Options, q.Correct, q.Explanation); err != nil {
			zap.L().Warn("skipping invalid quiz",
				zap.Int64(logger.FieldQuizID, q.ID), zap.Error(err))
			continue
		}
		ids = append(ids, q.ID)
	}
	if len(ids) == 0 {
		return 0, 0, ErrEmptySelection
	}

	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.stopLocked(userID); err != nil {
		return 0, 0, err
	}

	sessionID, err := e.store.CreateSession(&models.Session{
		UserID:     userID,
		ChatID:     chatID,
		OpenPeriod: openPeriod,
		StartedAt:  e.now(),
	}, ids)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create session: %w", err)
	}

	zap.L().Info("session started",
		zap.Int64(logger.FieldSessionID, sessionID),
		zap.Int64(logger.FieldUserID, userID),
		zap.String("subject", subject),
		zap.String("chapter", chapter),
		zap.Int("total", len(ids)),
		zap.Int("open_period", openPeriod))

	return sessionID, len(ids), e.advanceLocked(sessionID)
}

// HandleAnswer resolves a poll-answer update. Unknown or already-resolved
// polls are a no-op. chosen is the selected option index against the
// sanitized option list, or models.TimeoutChosen for a retracted vote.
func (e *Engine) HandleAnswer(pollID string, chosen int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveLocked(pollID, chosen)
}

// handleTimeout fires once per timed question. If the poll is still
// outstanding the question is marked missed; otherwise an answer already
// won and this is a no-op.
func (e *Engine) handleTimeout(pollID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.resolveLocked(pollID, models.TimeoutChosen); err != nil {
		zap.L().Error("timeout resolution failed",
			zap.String(logger.FieldPollID, pollID), zap.Error(err))
	}
}

// Stop cancels the user's running sessions and their pending timeout
// timers.
func (e *Engine) Stop(userID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked(userID)
}

func (e *Engine) stopLocked(userID int64) error {
	ids, err := e.store.StopRunningSessions(userID)
	if err != nil {
		return fmt.Errorf("failed to stop sessions: %w", err)
	}
	for _, id := range ids {
		e.cancelTimerLocked(id)
	}
	return nil
}

func (e *Engine) resolveLocked(pollID string, chosen int) error {
	ap, err := e.store.GetActivePoll(pollID)
	if err != nil {
		return fmt.Errorf("failed to look up active poll: %w", err)
	}
	if ap == nil {
		return nil // already resolved, first writer won
	}

	// Delete-before-advance is the exactly-once latch.
	deleted, err := e.store.DeleteActivePoll(pollID)
	if err != nil {
		return fmt.Errorf("failed to delete active poll: %w", err)
	}
	if !deleted {
		return nil
	}
	e.cancelTimerLocked(ap.SessionID)

	s, err := e.store.Session(ap.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	item, err := e.store.ItemByPoll(s.ID, pollID)
	if err != nil {
		return fmt.Errorf("failed to load session item: %w", err)
	}

	correct := chosen >= 0 && e.answeredCorrectly(item.QuizID, chosen)

	if err := e.store.MarkItemOutcome(item.ID, chosen, correct, e.now()); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	if err := e.store.AdvanceCursor(s.ID); err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}

	return e.advanceLocked(s.ID)
}

// answeredCorrectly scores chosen against the index the delivered poll
// actually used. A quiz deleted or invalidated after delivery scores as
// wrong; the item is resolved either way so the session keeps advancing.
func (e *Engine) answeredCorrectly(quizID int64, chosen int) bool {
	q, err := e.store.GetQuiz(quizID)
	if err != nil {
		zap.L().Warn("quiz unavailable at resolution",
			zap.Int64(logger.FieldQuizID, quizID), zap.Error(err))
		return false
	}
	sq, err := Sanitize(q.Question, q.Options, q.Correct, q.Explanation)
	if err != nil {
		zap.L().Warn("quiz invalidated mid-session",
			zap.Int64(logger.FieldQuizID, q.ID), zap.Error(err))
		return false
	}
	return chosen == sq.Correct
}

// advanceLocked is the step loop: deliver the question at the cursor, or
// finalize when the cursor has passed the last item. Undeliverable items
// are skipped, so a single loop iteration per item keeps stack usage flat
// no matter how long the session is.
func (e *Engine) advanceLocked(sessionID int64) error {
	for {
		s, err := e.store.Session(sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if s.State != models.SessionRunning {
			return nil
		}
		if s.CurrentIndex >= s.Total {
			return e.finalizeLocked(s)
		}

		sent, err := e.deliverLocked(s)
		if err != nil {
			return err
		}
		if sent {
			return nil // wait for answer or timeout
		}
	}
}

// deliverLocked sends the question at the session cursor. It reports
// false when the item could not be delivered and the cursor was skipped
// forward.
func (e *Engine) deliverLocked(s *models.Session) (bool, error) {
	item, err := e.store.ItemAt(s.ID, s.CurrentIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return false, e.store.AdvanceCursor(s.ID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session item: %w", err)
	}

	q, err := e.store.GetQuiz(item.QuizID)
	if errors.Is(err, sql.ErrNoRows) {
		// Quiz was deleted after session creation; skip it.
		zap.L().Warn("skipping quiz deleted mid-session",
			zap.Int64(logger.FieldQuizID, item.QuizID))
		return false, e.store.AdvanceCursor(s.ID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to load quiz %d: %w", item.QuizID, err)
	}

	sq, err := Sanitize(q.Question, q.Options, q.Correct, q.Explanation)
	if err != nil {
		// Quiz was edited to invalid after session creation; skip it.
		zap.L().Warn("skipping quiz invalidated mid-session",
			zap.Int64(logger.FieldQuizID, q.ID), zap.Error(err))
		return false, e.store.AdvanceCursor(s.ID)
	}

	pollID, messageID, err := e.sender.SendQuizPoll(OutboundPoll{
		ChatID:      s.ChatID,
		Question:    fmt.Sprintf("[%d/%d] %s", s.CurrentIndex+1, s.Total, sq.Question),
		Options:     sq.Options,
		Correct:     sq.Correct,
		Explanation: sq.Explanation,
		OpenPeriod:  s.OpenPeriod,
	})
	if err != nil {
		e.sender.NotifyAdmins(fmt.Sprintf("Failed to send question %d of session %d: %v",
			s.CurrentIndex+1, s.ID, err))
		return false, fmt.Errorf("failed to send poll: %w", err)
	}

	now := e.now()
	if err := e.store.MarkItemSent(item.ID, pollID, messageID, now); err != nil {
		return false, fmt.Errorf("failed to record delivery: %w", err)
	}
	if err := e.store.PutActivePoll(pollID, s.ID, s.UserID); err != nil {
		return false, fmt.Errorf("failed to register active poll: %w", err)
	}

	if s.OpenPeriod > 0 {
		budget := time.Duration(s.OpenPeriod)*time.Second + timeoutGrace
		e.timers[s.ID] = time.AfterFunc(budget, func() {
			e.handleTimeout(pollID)
		})
	}

	return true, nil
}

func (e *Engine) finalizeLocked(s *models.Session) error {
	now := e.now()
	finished, err := e.store.FinishSession(s.ID, now)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if !finished {
		return nil // someone else finalized already
	}
	e.cancelTimerLocked(s.ID)

	tally, err := e.store.SessionTally(s.ID)
	if err != nil {
		return fmt.Errorf("failed to tally session: %w", err)
	}

	review, err := e.reviewLocked(s.ID)
	if err != nil {
		// The summary still goes out without the breakdown.
		zap.L().Error("review build failed",
			zap.Int64(logger.FieldSessionID, s.ID), zap.Error(err))
	}

	zap.L().Info("session finished",
		zap.Int64(logger.FieldSessionID, s.ID),
		zap.Int64(logger.FieldUserID, s.UserID),
		zap.Int("correct", tally.Correct),
		zap.Int("wrong", tally.Wrong()),
		zap.Int("missed", tally.Missed()))

	return e.sender.SendSummary(s.ChatID, Summary{
		Total:    tally.Total,
		Answered: tally.Answered,
		Correct:  tally.Correct,
		Wrong:    tally.Wrong(),
		Missed:   tally.Missed(),
		Duration: now.Sub(s.StartedAt),
		Review:   review,
	})
}

// reviewLocked lists the wrong and missed questions of a session, in
// delivery order.
func (e *Engine) reviewLocked(sessionID int64) ([]ReviewEntry, error) {
	items, err := e.store.SessionItems(sessionID)
	if err != nil {
		return nil, err
	}

	var review []ReviewEntry
	for _, it := range items {
		if it.IsCorrect {
			continue
		}
		entry := ReviewEntry{
			Index:  it.Idx,
			Missed: it.Chosen == nil || *it.Chosen < 0,
		}
		if q, err := e.store.GetQuiz(it.QuizID); err == nil {
			entry.Question = truncate(q.Question, 80)
		}
		review = append(review, entry)
	}
	return review, nil
}

func (e *Engine) cancelTimerLocked(sessionID int64) {
	if t, ok := e.timers[sessionID]; ok {
		t.Stop()
		delete(e.timers, sessionID)
	}
}
