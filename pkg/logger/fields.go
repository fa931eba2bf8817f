package logger

// Standard field names for consistent logging.
const (
	FieldService   = "service"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldUserID    = "user_id"
	FieldChatID    = "chat_id"
	FieldSessionID = "session_id"
	FieldPollID    = "poll_id"
	FieldQuizID    = "quiz_id"
)
