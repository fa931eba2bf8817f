package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/The-TM1/QuizBot/internal/bot"
	"github.com/The-TM1/QuizBot/internal/models"
	"github.com/The-TM1/QuizBot/internal/quiz"
	"github.com/The-TM1/QuizBot/pkg/logger"
)

const (
	msgBanned       = "🚫 You are banned from using this bot."
	msgAdminOnly    = "Only admin/owner can use this."
	msgOwnerOnly    = "Owner only."
	msgNoQuestions  = "No questions in this chapter."
	msgStartFailed  = "Couldn't start quiz due to an error, please try again."
	msgQuizStopped  = "⏹️ Quiz stopped."
	msgPickFirst    = "Please choose Subject and Chapter first."
	msgUnknownBtn   = "Unknown action."
	msgInvalidID    = "⚠️ Invalid user ID."
	msgCannotOwner  = "⚠️ You cannot modify the owner."
	msgMessageSent  = "✅ Your message has been sent to the admin."
	msgCancelled    = "Cancelled."
	welcomeTemplate = "👋 Hey %s, welcome to the Quiz Bot!\n\n" +
		"• Pick a Subject → Chapter → Timer → tap \"I am ready!\" 🎯\n" +
		"• Use /stop anytime to end a quiz."
	helpText = "📘 How to use\n" +
		"1) Start → Subject → Chapter → Timer (or Without Timer)\n" +
		"2) Tap \"I am ready!\"\n" +
		"3) Answer each question; next appears automatically.\n\n" +
		"Admins can manage quizzes, users, broadcast & admins."
)

// blocked enforces the ban list on every entry point; admins are exempt.
func blocked(b *bot.Bot, userID int64) bool {
	banned, err := b.DB.IsBanned(userID)
	if err != nil {
		log.Printf("Error checking ban for %d: %v", userID, err)
		return false
	}
	return banned && !b.IsAdmin(userID)
}

// trackUser upserts the sender and alerts admins when they are new.
func trackUser(b *bot.Bot, from *tgbotapi.User) {
	isNew, err := b.DB.UpsertUser(from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		log.Printf("Error upserting user %d: %v", from.ID, err)
		return
	}
	if !isNew {
		return
	}

	total, err := b.DB.CountUsers()
	if err != nil {
		log.Printf("Error counting users: %v", err)
	}
	uname := from.FirstName
	if from.UserName != "" {
		uname = "@" + from.UserName
	}
	b.NotifyAdmins(fmt.Sprintf("✅ New user joined\nUsername: %s\nUserid: %d\n\nTotal users: %d",
		uname, from.ID, total))
}

// HandleCommand routes slash commands.
func HandleCommand(b *bot.Bot, eng *quiz.Engine, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	if blocked(b, userID) {
		b.SendMessage(chatID, msgBanned, nil)
		return
	}
	trackUser(b, message.From)

	switch message.Command() {
	case "start":
		first := message.From.FirstName
		if first == "" {
			first = "there"
		}
		keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
		b.SendMessage(chatID, fmt.Sprintf(welcomeTemplate, first), keyboard)

	case "help":
		b.SendMessage(chatID, helpText, nil)

	case "stop":
		if err := eng.Stop(userID); err != nil {
			log.Printf("Error stopping session for %d: %v", userID, err)
		}
		keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
		b.SendMessage(chatID, msgQuizStopped, keyboard)

	case "cancel":
		b.ClearMode(userID)
		b.SendMessage(chatID, msgCancelled, nil)

	case "admins":
		handleAdminsCommand(b, message)

	case "addadmin":
		handleAddAdminCommand(b, message)

	case "rmadmin":
		handleRemoveAdminCommand(b, message)

	case "users":
		handleUsersCommand(b, message)

	case "ban":
		handleBanCommand(b, message, true)

	case "unban":
		handleBanCommand(b, message, false)

	case "delquiz":
		handleDeleteQuizCommand(b, message)

	case "editsub":
		handleEditSubjectCommand(b, message)

	case "editchap":
		handleEditChapterCommand(b, message)

	case "delsub":
		handleDeleteSubjectCommand(b, message)

	case "delchap":
		handleDeleteChapterCommand(b, message)

	default:
		b.SendMessage(chatID, "Unknown command. Use /start.", nil)
	}
}

// HandleMessage interprets plain text, documents and quiz polls against
// the sender's pending mode.
func HandleMessage(b *bot.Bot, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	if blocked(b, userID) {
		b.SendMessage(chatID, msgBanned, nil)
		return
	}
	trackUser(b, message.From)

	state := b.State(userID)
	switch state.Mode {
	case models.ModeContactAdmin:
		b.ClearMode(userID)
		uname := message.From.FirstName
		if message.From.UserName != "" {
			uname = "@" + message.From.UserName
		}
		b.NotifyAdmins(fmt.Sprintf("📩 Message from user\nUsername: %s\nUserID: %d\n\n%s",
			uname, userID, message.Text))
		keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
		b.SendMessage(chatID, msgMessageSent, keyboard)

	case models.ModeBroadcastEnter:
		handleBroadcastEntered(b, message, state)

	case models.ModeAddAdmin:
		handleAdminIDEntered(b, message)

	case models.ModeMessageUser:
		handleDirectMessageEntered(b, message, state)

	case models.ModeNewSubject:
		handleNewSubjectEntered(b, message, state)

	case models.ModeNewChapter:
		handleNewChapterEntered(b, message, state)

	case models.ModeAddingQuizzes:
		handleQuizPollAdded(b, message, state)

	case models.ModeImport, models.ModeImportChapter:
		handleImportDocument(b, message, state)
	}
}

// HandleCallbackQuery parses the callback data once and dispatches it.
func HandleCallbackQuery(b *bot.Bot, eng *quiz.Engine, callback *tgbotapi.CallbackQuery) {
	b.AnswerCallbackQuery(callback.ID, "")

	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if blocked(b, userID) {
		b.EditMessage(chatID, messageID, msgBanned, nil)
		return
	}
	trackUser(b, callback.From)

	cmd := ParseCallback(callback.Data)

	if cmd.Admin() {
		HandleAdminCallback(b, eng, callback, cmd)
		return
	}

	state := b.State(userID)

	switch cmd.Kind {
	case CmdNoop:

	case CmdMainMenu:
		keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
		b.EditMessage(chatID, messageID, "Menu:", &keyboard)

	case CmdHelp:
		keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
		b.EditMessage(chatID, messageID, helpText, &keyboard)

	case CmdStats:
		showStats(b, callback)

	case CmdContact:
		state.Mode = models.ModeContactAdmin
		keyboard := bot.BackKeyboard("u:back")
		b.EditMessage(chatID, messageID,
			"✍️ Please type your message for the admin.\nSend /cancel to abort.", &keyboard)

	case CmdLeaderboard:
		showLeaderboard(b, callback, cmd.Page)

	case CmdSubjects:
		showSubjects(b, callback, 0)

	case CmdSubjectsPage:
		showSubjects(b, callback, cmd.Page)

	case CmdPickSubject:
		state.Subject = cmd.Subject
		showChapters(b, callback, cmd.Subject, 0)

	case CmdChaptersPage:
		showChapters(b, callback, cmd.Subject, cmd.Page)

	case CmdPickChapter:
		state.Subject = cmd.Subject
		state.Chapter = cmd.Chapter
		keyboard := bot.TimerKeyboard()
		b.EditMessage(chatID, messageID, "⏲ Select a timer per question:", &keyboard)

	case CmdPickTimer:
		state.OpenPeriod = cmd.Seconds
		showReadyScreen(b, callback, state)

	case CmdReady, CmdRetry:
		startQuiz(b, eng, callback, state)

	case CmdStopQuiz:
		if err := eng.Stop(userID); err != nil {
			log.Printf("Error stopping session for %d: %v", userID, err)
		}
		keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
		b.EditMessage(chatID, messageID, msgQuizStopped, &keyboard)

	default:
		keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
		b.EditMessage(chatID, messageID, msgUnknownBtn, &keyboard)
	}
}

// HandlePollAnswer resolves a quiz answer; unknown polls are ignored by
// the engine.
func HandlePollAnswer(eng *quiz.Engine, answer *tgbotapi.PollAnswer) {
	chosen := models.TimeoutChosen
	if len(answer.OptionIDs) > 0 {
		chosen = answer.OptionIDs[0]
	}

	if err := eng.HandleAnswer(answer.PollID, chosen); err != nil {
		zap.L().Error("poll answer handling failed",
			zap.String(logger.FieldPollID, answer.PollID), zap.Error(err))
	}
}

func showSubjects(b *bot.Bot, callback *tgbotapi.CallbackQuery, page int) {
	subjects, err := b.DB.SubjectsWithCounts()
	if err != nil {
		log.Printf("Error listing subjects: %v", err)
		return
	}
	keyboard := bot.SubjectsKeyboard(subjects, page)
	b.EditMessage(callback.Message.Chat.ID, callback.Message.MessageID,
		"📚 Choose a subject:", &keyboard)
}

func showChapters(b *bot.Bot, callback *tgbotapi.CallbackQuery, subject string, page int) {
	chapters, err := b.DB.ChaptersWithCounts(subject)
	if err != nil {
		log.Printf("Error listing chapters: %v", err)
		return
	}
	keyboard := bot.ChaptersKeyboard(subject, chapters, page)
	b.EditMessage(callback.Message.Chat.ID, callback.Message.MessageID,
		fmt.Sprintf("📖 %s — choose a chapter:", subject), &keyboard)
}

func showReadyScreen(b *bot.Bot, callback *tgbotapi.CallbackQuery, state *models.UserState) {
	timer := "Without Timer"
	if state.OpenPeriod > 0 {
		timer = fmt.Sprintf("%ds", state.OpenPeriod)
	}
	text := fmt.Sprintf(
		"🏁 Get ready!\n\nSubject: %s\nChapter: %s\nTimer: %s\n\n"+
			"Press the button when ready. Send /stop to cancel.",
		state.Subject, state.Chapter, timer)
	keyboard := bot.ReadyKeyboard()
	b.EditMessage(callback.Message.Chat.ID, callback.Message.MessageID, text, &keyboard)
}

func startQuiz(b *bot.Bot, eng *quiz.Engine, callback *tgbotapi.CallbackQuery, state *models.UserState) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if state.Subject == "" || state.Chapter == "" {
		keyboard := bot.BackKeyboard("u:start")
		b.EditMessage(chatID, messageID, msgPickFirst, &keyboard)
		return
	}

	b.EditMessage(chatID, messageID, "🎯 Quiz started! Good luck!\n(Use /stop to end.)", nil)

	_, _, err := eng.Start(userID, chatID, state.Subject, state.Chapter, state.OpenPeriod)
	if errors.Is(err, quiz.ErrEmptySelection) {
		keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
		b.SendMessage(chatID, msgNoQuestions, keyboard)
		return
	}
	if err != nil {
		log.Printf("Error starting quiz for %d: %v", userID, err)
		b.SendMessage(chatID, msgStartFailed, nil)
	}
}

func showStats(b *bot.Bot, callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID

	stats, err := b.DB.UserStats(userID)
	if err != nil {
		log.Printf("Error loading stats for %d: %v", userID, err)
		return
	}

	keyboard := bot.MainMenuKeyboard(b.IsAdmin(userID))
	b.EditMessage(callback.Message.Chat.ID, callback.Message.MessageID,
		fmt.Sprintf("📊 Your overall stats\nCorrect: %d\nWrong: %d",
			stats.Correct, stats.Answered-stats.Correct), &keyboard)
}

func showLeaderboard(b *bot.Bot, callback *tgbotapi.CallbackQuery, page int) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if !b.IsAdmin(userID) {
		keyboard := bot.MainMenuKeyboard(false)
		b.EditMessage(chatID, messageID, "🏆 Leaderboard is admin-only.", &keyboard)
		return
	}

	if page < 0 {
		page = 0
	}
	rows, err := b.DB.Leaderboard(bot.LeaderboardPage, page*bot.LeaderboardPage)
	if err != nil {
		log.Printf("Error loading leaderboard: %v", err)
		return
	}
	if len(rows) == 0 {
		keyboard := bot.MainMenuKeyboard(true)
		b.EditMessage(chatID, messageID, "No data yet.", &keyboard)
		return
	}

	lines := []string{"🏆 Leaderboard (all time):"}
	for i, r := range rows {
		u, err := b.DB.GetUser(r.UserID)
		if err != nil {
			u = &models.User{UserID: r.UserID}
		}
		lines = append(lines, fmt.Sprintf("%d. %s — %d correct",
			page*bot.LeaderboardPage+i+1, bot.DisplayName(u), r.Correct))
	}

	pages := page + 1
	if len(rows) == bot.LeaderboardPage {
		pages = page + 2 // at least one more page may exist
	}
	keyboard := bot.LeaderboardKeyboard(page, pages)
	b.EditMessage(chatID, messageID, strings.Join(lines, "\n"), &keyboard)
}

func parseIDArg(message *tgbotapi.Message) (int64, bool) {
	arg := strings.TrimSpace(message.CommandArguments())
	if arg == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// downloadDocument fetches an uploaded file's content from the Bot API.
func downloadDocument(b *bot.Bot, fileID string) ([]byte, error) {
	url, err := b.API.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
