package models

import "time"

type SessionState string

const (
	SessionRunning  SessionState = "running"
	SessionStopped  SessionState = "stopped"
	SessionFinished SessionState = "finished"
)

// TimeoutChosen is the sentinel recorded when a timed question expires
// without an answer.
const TimeoutChosen = -1

type Quiz struct {
	ID          int64     `db:"id"`
	Question    string    `db:"question"`
	Options     []string  `db:"options_json"`
	Correct     int       `db:"correct"`
	Explanation string    `db:"explanation"`
	Subject     string    `db:"subject"`
	Chapter     string    `db:"chapter"`
	AddedBy     int64     `db:"added_by"`
	CreatedAt   time.Time `db:"created_at"`
}

type Session struct {
	ID           int64        `db:"id"`
	UserID       int64        `db:"user_id"`
	ChatID       int64        `db:"chat_id"`
	Total        int          `db:"total"`
	OpenPeriod   int          `db:"open_period"` // seconds per question, 0 = untimed
	StartedAt    time.Time    `db:"started_at"`
	FinishedAt   *time.Time   `db:"finished_at"`
	State        SessionState `db:"state"`
	CurrentIndex int          `db:"current_index"`
}

type SessionItem struct {
	ID        int64      `db:"id"`
	SessionID int64      `db:"session_id"`
	QuizID    int64      `db:"quiz_id"`
	Idx       int        `db:"idx"`
	PollID    string     `db:"poll_id"`
	MessageID int        `db:"message_id"`
	Chosen    *int       `db:"chosen"`
	IsCorrect bool       `db:"is_correct"`
	SentAt    *time.Time `db:"sent_at"`
	ClosedAt  *time.Time `db:"closed_at"`
}

// ActivePoll maps an outstanding poll back to its session. The row is
// deleted by whichever of answer or timeout arrives first; its absence
// makes the loser a no-op.
type ActivePoll struct {
	PollID    string `db:"poll_id"`
	SessionID int64  `db:"session_id"`
	UserID    int64  `db:"user_id"`
}

// User carries JSON tags because the owner can export the user table as
// a document.
type User struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	IsBanned  bool      `db:"is_banned" json:"is_banned"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
}

// Tally summarizes one session's resolved items.
type Tally struct {
	Total    int
	Answered int
	Correct  int
}

func (t Tally) Wrong() int  { return t.Answered - t.Correct }
func (t Tally) Missed() int { return t.Total - t.Answered }

// SubjectCount is one row of the subject picker.
type SubjectCount struct {
	Subject  string
	Chapters int
	Quizzes  int
}

// ChapterCount is one row of the chapter picker.
type ChapterCount struct {
	Chapter string
	Quizzes int
}

// LeaderboardRow aggregates a user's all-time correct answers.
type LeaderboardRow struct {
	UserID  int64
	Correct int
}

// UserStats is a single user's all-time answer record.
type UserStats struct {
	Sessions int
	Answered int
	Correct  int
}

// PendingMode is the single pending conversational action for a user.
// At most one mode is armed at a time; plain text and documents are
// interpreted against it.
type PendingMode string

const (
	ModeNone             PendingMode = ""
	ModeContactAdmin     PendingMode = "contact_admin"
	ModeBroadcastEnter   PendingMode = "broadcast_enter"
	ModeBroadcastConfirm PendingMode = "broadcast_confirm"
	ModeAddAdmin         PendingMode = "add_admin"
	ModeMessageUser      PendingMode = "message_user"
	ModeImport           PendingMode = "import"
	ModeImportChapter    PendingMode = "import_chapter"
	ModeNewSubject       PendingMode = "new_subject"
	ModeNewChapter       PendingMode = "new_chapter"
	ModeAddingQuizzes    PendingMode = "adding_quizzes"
)

// UserState is the per-user conversation record: the armed pending mode
// plus the quiz selection being built up through the menus.
type UserState struct {
	UserID int64
	Mode   PendingMode

	// quiz selection
	Subject    string
	Chapter    string
	OpenPeriod int

	// admin flow payloads
	AddSubject    string
	AddChapter    string
	TargetUserID  int64
	BroadcastText string
}
