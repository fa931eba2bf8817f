package handlers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/The-TM1/QuizBot/internal/bot"
	"github.com/The-TM1/QuizBot/internal/models"
	"github.com/The-TM1/QuizBot/internal/quiz"
	"github.com/The-TM1/QuizBot/pkg/logger"
)

// HandleAdminCallback dispatches every a:* button. The admin gate runs
// here once so the individual handlers can assume authorization.
func HandleAdminCallback(b *bot.Bot, eng *quiz.Engine, callback *tgbotapi.CallbackQuery, cmd Command) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if !b.IsAdmin(userID) {
		b.NotifyOwner(fmt.Sprintf("⚠️ User %d tried an admin action: %s", userID, callback.Data))
		keyboard := bot.MainMenuKeyboard(false)
		b.EditMessage(chatID, messageID, msgAdminOnly, &keyboard)
		return
	}
	if cmd.OwnerOnly() && !b.IsOwner(userID) {
		b.NotifyOwner(fmt.Sprintf("⚠️ Admin %d tried an owner-only action: %s",
			userID, callback.Data))
		keyboard := bot.AdminMenuKeyboard(false)
		b.EditMessage(chatID, messageID, msgAdminOnly, &keyboard)
		return
	}

	state := b.State(userID)

	switch cmd.Kind {
	case CmdAdminPanel:
		b.ClearMode(userID)
		keyboard := bot.AdminMenuKeyboard(b.IsOwner(userID))
		b.EditMessage(chatID, messageID, "🛠 Admin panel", &keyboard)

	case CmdAdminBack:
		b.ClearMode(userID)
		keyboard := bot.MainMenuKeyboard(true)
		b.EditMessage(chatID, messageID, "Menu:", &keyboard)

	case CmdAddQuizMenu:
		showAddQuizSubjects(b, callback)

	case CmdNewSubject:
		state.Mode = models.ModeNewSubject
		keyboard := bot.BackKeyboard("a:add")
		b.EditMessage(chatID, messageID,
			"✍️ Send the new subject name.\nSend /cancel to abort.", &keyboard)

	case CmdAddPickSubject:
		state.AddSubject = cmd.Subject
		showAddQuizChapters(b, callback, cmd.Subject)

	case CmdNewChapter:
		if state.AddSubject == "" {
			showAddQuizSubjects(b, callback)
			return
		}
		state.Mode = models.ModeNewChapter
		keyboard := bot.BackKeyboard("a:add_subj:" + state.AddSubject)
		b.EditMessage(chatID, messageID,
			fmt.Sprintf("✍️ Send the new chapter name for %q.\nSend /cancel to abort.", state.AddSubject),
			&keyboard)

	case CmdAddPickChapter:
		if state.AddSubject == "" {
			showAddQuizSubjects(b, callback)
			return
		}
		state.AddChapter = cmd.Chapter
		state.Mode = models.ModeAddingQuizzes
		showAddQuizTarget(b, chatID, messageID, state)

	case CmdAddImportHere:
		if state.AddSubject == "" || state.AddChapter == "" {
			showAddQuizSubjects(b, callback)
			return
		}
		state.Mode = models.ModeImportChapter
		keyboard := bot.BackKeyboard("a:add_chap:" + state.AddChapter)
		b.EditMessage(chatID, messageID,
			fmt.Sprintf("📥 Upload a JSON file. Every quiz will be stored under %s / %s.",
				state.AddSubject, state.AddChapter), &keyboard)

	case CmdDeleteLast:
		showDeleteLast(b, callback)

	case CmdDeleteLastConfirm:
		deleteLastQuiz(b, callback)

	case CmdDeleteQuiz:
		deleteQuizByID(b, callback, cmd.QuizID)

	case CmdExportMenu:
		showExportMenu(b, callback)

	case CmdExportAll:
		sendExport(b, chatID, "", "")

	case CmdExportSubjectMenu:
		showExportSubject(b, callback, cmd.Subject)

	case CmdExportSubject:
		sendExport(b, chatID, cmd.Subject, "")

	case CmdExportChapterMenu:
		keyboard := bot.ExportChapterKeyboard(cmd.Subject, cmd.Chapter)
		b.EditMessage(chatID, messageID,
			fmt.Sprintf("📤 Export %s / %s?", cmd.Subject, cmd.Chapter), &keyboard)

	case CmdExportChapter:
		sendExport(b, chatID, cmd.Subject, cmd.Chapter)

	case CmdExportUsers:
		sendUsersExport(b, chatID)

	case CmdUsersPanel:
		showUsersPanel(b, chatID, messageID, 0)

	case CmdUsersPage:
		showUsersPanel(b, chatID, messageID, cmd.Page)

	case CmdUserView:
		showUserDetail(b, chatID, messageID, cmd.UserID)

	case CmdUserToggleBan:
		toggleBan(b, callback, cmd.UserID)

	case CmdUserMessage:
		state.Mode = models.ModeMessageUser
		state.TargetUserID = cmd.UserID
		keyboard := bot.BackKeyboard(fmt.Sprintf("a:users_view:%d", cmd.UserID))
		b.EditMessage(chatID, messageID,
			fmt.Sprintf("✍️ Type the message for user %d.\nSend /cancel to abort.", cmd.UserID),
			&keyboard)

	case CmdAdminsMenu:
		keyboard := bot.AdminsKeyboard(b.AdminIDs(), b.OwnerID)
		b.EditMessage(chatID, messageID, "👑 Admins", &keyboard)

	case CmdAdminsAdd:
		state.Mode = models.ModeAddAdmin
		keyboard := bot.BackKeyboard("a:admins")
		b.EditMessage(chatID, messageID,
			"✍️ Send the numeric Telegram ID of the new admin.\nSend /cancel to abort.", &keyboard)

	case CmdAdminView:
		showAdminDetail(b, chatID, messageID, cmd.UserID)

	case CmdAdminRemove:
		removeAdmin(b, callback, cmd.UserID)

	case CmdCount:
		showCounts(b, chatID, messageID)

	case CmdBroadcast:
		state.Mode = models.ModeBroadcastEnter
		keyboard := bot.BackKeyboard("a:panel")
		b.EditMessage(chatID, messageID,
			"📣 Type the broadcast message.\nSend /cancel to abort.", &keyboard)

	case CmdBroadcastGo:
		runBroadcast(b, callback, state)

	case CmdImport:
		state.Mode = models.ModeImport
		state.AddSubject = ""
		state.AddChapter = ""
		keyboard := bot.BackKeyboard("a:panel")
		b.EditMessage(chatID, messageID,
			"📥 Upload a JSON file. Each entry needs question, options, correct, subject and chapter.",
			&keyboard)

	default:
		keyboard := bot.AdminMenuKeyboard(b.IsOwner(userID))
		b.EditMessage(chatID, messageID, msgUnknownBtn, &keyboard)
	}
}

// Add-quiz flow

func showAddQuizSubjects(b *bot.Bot, callback *tgbotapi.CallbackQuery) {
	subjects, err := b.DB.SubjectsWithCounts()
	if err != nil {
		zap.L().Error("Error listing subjects", zap.Error(err))
		return
	}
	keyboard := bot.AddQuizSubjectsKeyboard(subjects)
	b.EditMessage(callback.Message.Chat.ID, callback.Message.MessageID,
		"➕ Pick a subject for the new quizzes:", &keyboard)
}

func showAddQuizChapters(b *bot.Bot, callback *tgbotapi.CallbackQuery, subject string) {
	chapters, err := b.DB.ChaptersWithCounts(subject)
	if err != nil {
		zap.L().Error("Error listing chapters", zap.String("subject", subject), zap.Error(err))
		return
	}
	keyboard := bot.AddQuizChaptersKeyboard(subject, chapters)
	b.EditMessage(callback.Message.Chat.ID, callback.Message.MessageID,
		fmt.Sprintf("➕ %s — pick a chapter:", subject), &keyboard)
}

func showAddQuizTarget(b *bot.Bot, chatID int64, messageID int, state *models.UserState) {
	keyboard := bot.AddQuizTargetKeyboard(state.AddSubject)
	b.EditMessage(chatID, messageID, fmt.Sprintf(
		"🎯 Target: %s / %s\n\nForward quiz polls to this chat and each one is saved here.\n"+
			"Send /cancel when you are done.",
		state.AddSubject, state.AddChapter), &keyboard)
}

func handleNewSubjectEntered(b *bot.Bot, message *tgbotapi.Message, state *models.UserState) {
	name := strings.TrimSpace(message.Text)
	if name == "" {
		b.SendMessage(message.Chat.ID, "⚠️ Subject name cannot be empty. Try again.", nil)
		return
	}
	state.AddSubject = name
	state.Mode = models.ModeNewChapter
	keyboard := bot.BackKeyboard("a:add")
	b.SendMessage(message.Chat.ID,
		fmt.Sprintf("✍️ Now send the chapter name for %q.", name), keyboard)
}

func handleNewChapterEntered(b *bot.Bot, message *tgbotapi.Message, state *models.UserState) {
	name := strings.TrimSpace(message.Text)
	if name == "" {
		b.SendMessage(message.Chat.ID, "⚠️ Chapter name cannot be empty. Try again.", nil)
		return
	}
	state.AddChapter = name
	state.Mode = models.ModeAddingQuizzes
	keyboard := bot.AddQuizTargetKeyboard(state.AddSubject)
	b.SendMessage(message.Chat.ID, fmt.Sprintf(
		"🎯 Target: %s / %s\n\nForward quiz polls to this chat and each one is saved here.\n"+
			"Send /cancel when you are done.",
		state.AddSubject, state.AddChapter), keyboard)
}

// handleQuizPollAdded stores a forwarded quiz poll under the armed
// subject and chapter. Regular polls carry no correct option and are
// refused.
func handleQuizPollAdded(b *bot.Bot, message *tgbotapi.Message, state *models.UserState) {
	chatID := message.Chat.ID

	poll := message.Poll
	if poll == nil {
		b.SendMessage(chatID,
			"Forward a quiz poll, or send /cancel to finish.", nil)
		return
	}
	if poll.Type != "quiz" {
		b.SendMessage(chatID, "⚠️ That is a regular poll, not a quiz. Skipped.", nil)
		return
	}
	if poll.CorrectOptionID < 0 || poll.CorrectOptionID >= len(poll.Options) {
		b.SendMessage(chatID,
			"⚠️ The correct answer of this poll is hidden, so it cannot be saved.", nil)
		return
	}

	options := make([]string, len(poll.Options))
	for i, o := range poll.Options {
		options[i] = o.Text
	}

	if _, err := quiz.Sanitize(poll.Question, options, poll.CorrectOptionID, poll.Explanation); err != nil {
		b.SendMessage(chatID, fmt.Sprintf("⚠️ Quiz rejected: %v", err), nil)
		return
	}

	id, err := b.DB.InsertQuiz(&models.Quiz{
		Question:    poll.Question,
		Options:     options,
		Correct:     poll.CorrectOptionID,
		Explanation: poll.Explanation,
		Subject:     state.AddSubject,
		Chapter:     state.AddChapter,
		AddedBy:     message.From.ID,
	})
	if err != nil {
		zap.L().Error("Error inserting quiz", zap.Error(err))
		b.SendMessage(chatID, "⚠️ Could not save the quiz, please try again.", nil)
		return
	}

	b.SendMessage(chatID, fmt.Sprintf("✅ Saved as #%d under %s / %s. Forward the next one or /cancel.",
		id, state.AddSubject, state.AddChapter), nil)
}

// Delete flows

func showDeleteLast(b *bot.Bot, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	q, err := b.DB.LastQuizByCreator(callback.From.ID)
	if err != nil {
		zap.L().Error("Error loading last quiz", zap.Error(err))
		return
	}
	if q == nil {
		keyboard := bot.AdminMenuKeyboard(b.IsOwner(callback.From.ID))
		b.EditMessage(chatID, messageID, "You have not added any quizzes yet.", &keyboard)
		return
	}

	keyboard := bot.DeleteLastConfirmKeyboard()
	b.EditMessage(chatID, messageID, fmt.Sprintf(
		"⛔️ Delete your last quiz?\n\n#%d [%s / %s]\n%s", q.ID, q.Subject, q.Chapter, q.Question),
		&keyboard)
}

func deleteLastQuiz(b *bot.Bot, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	keyboard := bot.AdminMenuKeyboard(b.IsOwner(callback.From.ID))

	q, err := b.DB.LastQuizByCreator(callback.From.ID)
	if err != nil || q == nil {
		b.EditMessage(chatID, messageID, "Nothing to delete.", &keyboard)
		return
	}
	if err := b.DB.DeleteQuiz(q.ID); err != nil {
		zap.L().Error("Error deleting quiz", zap.Int64(logger.FieldQuizID, q.ID), zap.Error(err))
		b.EditMessage(chatID, messageID, "⚠️ Delete failed.", &keyboard)
		return
	}
	b.EditMessage(chatID, messageID, fmt.Sprintf("🗑 Quiz #%d deleted.", q.ID), &keyboard)
}

func deleteQuizByID(b *bot.Bot, callback *tgbotapi.CallbackQuery, quizID int64) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	keyboard := bot.AdminMenuKeyboard(b.IsOwner(userID))

	q, err := b.DB.GetQuiz(quizID)
	if err != nil {
		b.EditMessage(chatID, messageID, fmt.Sprintf("Quiz #%d not found.", quizID), &keyboard)
		return
	}
	if !b.IsOwner(userID) && q.AddedBy != userID {
		b.EditMessage(chatID, messageID, "⚠️ You can only delete quizzes you added.", &keyboard)
		return
	}
	if err := b.DB.DeleteQuiz(quizID); err != nil {
		zap.L().Error("Error deleting quiz", zap.Int64(logger.FieldQuizID, quizID), zap.Error(err))
		b.EditMessage(chatID, messageID, "⚠️ Delete failed.", &keyboard)
		return
	}
	b.EditMessage(chatID, messageID, fmt.Sprintf("🗑 Quiz #%d deleted.", quizID), &keyboard)
}

func handleDeleteQuizCommand(b *bot.Bot, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	if !b.IsAdmin(userID) {
		b.SendMessage(chatID, msgAdminOnly, nil)
		return
	}

	id, ok := parseIDArg(message)
	if !ok {
		b.SendMessage(chatID, "Usage: /delquiz <quiz id>", nil)
		return
	}

	q, err := b.DB.GetQuiz(id)
	if err != nil {
		b.SendMessage(chatID, fmt.Sprintf("Quiz #%d not found.", id), nil)
		return
	}
	if !b.IsOwner(userID) && q.AddedBy != userID {
		b.SendMessage(chatID, "⚠️ You can only delete quizzes you added.", nil)
		return
	}

	keyboard := bot.DeleteQuizConfirmKeyboard(id)
	b.SendMessage(chatID, fmt.Sprintf(
		"⛔️ Delete this quiz?\n\n#%d [%s / %s]\n%s", q.ID, q.Subject, q.Chapter, q.Question),
		keyboard)
}

// Export and import

func showExportMenu(b *bot.Bot, callback *tgbotapi.CallbackQuery) {
	subjects, err := b.DB.SubjectsWithCounts()
	if err != nil {
		zap.L().Error("Error listing subjects", zap.Error(err))
		return
	}
	keyboard := bot.ExportMenuKeyboard(subjects)
	b.EditMessage(callback.Message.Chat.ID, callback.Message.MessageID,
		"📤 What should be exported?", &keyboard)
}

func showExportSubject(b *bot.Bot, callback *tgbotapi.CallbackQuery, subject string) {
	chapters, err := b.DB.ChaptersWithCounts(subject)
	if err != nil {
		zap.L().Error("Error listing chapters", zap.String("subject", subject), zap.Error(err))
		return
	}
	keyboard := bot.ExportSubjectKeyboard(subject, chapters)
	b.EditMessage(callback.Message.Chat.ID, callback.Message.MessageID,
		fmt.Sprintf("📤 %s — export the whole subject or one chapter:", subject), &keyboard)
}

func exportFileName(subject, chapter string) string {
	name := "quizzes"
	if subject != "" {
		name += "_" + strings.ReplaceAll(subject, " ", "_")
	}
	if chapter != "" {
		name += "_" + strings.ReplaceAll(chapter, " ", "_")
	}
	return name + ".json"
}

func sendExport(b *bot.Bot, chatID int64, subject, chapter string) {
	quizzes, err := b.DB.ExportQuizzes(subject, chapter)
	if err != nil {
		zap.L().Error("Error exporting quizzes", zap.Error(err))
		b.SendMessage(chatID, "⚠️ Export failed.", nil)
		return
	}
	if len(quizzes) == 0 {
		b.SendMessage(chatID, "Nothing to export.", nil)
		return
	}

	data, err := quiz.Export(quizzes)
	if err != nil {
		zap.L().Error("Error encoding export", zap.Error(err))
		b.SendMessage(chatID, "⚠️ Export failed.", nil)
		return
	}

	caption := fmt.Sprintf("📤 %d quizzes", len(quizzes))
	if err := b.SendDocument(chatID, exportFileName(subject, chapter), data, caption); err != nil {
		zap.L().Error("Error sending export document", zap.Error(err))
	}
}

func sendUsersExport(b *bot.Bot, chatID int64) {
	users, err := b.DB.ListAllUsers()
	if err != nil {
		zap.L().Error("Error listing users for export", zap.Error(err))
		b.SendMessage(chatID, "⚠️ Export failed.", nil)
		return
	}
	if len(users) == 0 {
		b.SendMessage(chatID, "Nothing to export.", nil)
		return
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		zap.L().Error("Error encoding users export", zap.Error(err))
		b.SendMessage(chatID, "⚠️ Export failed.", nil)
		return
	}

	caption := fmt.Sprintf("👥 %d users", len(users))
	if err := b.SendDocument(chatID, "users.json", data, caption); err != nil {
		zap.L().Error("Error sending users export", zap.Error(err))
	}
}

func handleImportDocument(b *bot.Bot, message *tgbotapi.Message, state *models.UserState) {
	chatID := message.Chat.ID

	if message.Document == nil {
		b.SendMessage(chatID, "Upload a JSON file, or send /cancel to abort.", nil)
		return
	}

	data, err := downloadDocument(b, message.Document.FileID)
	if err != nil {
		zap.L().Error("Error downloading import file", zap.Error(err))
		b.SendMessage(chatID, "⚠️ Could not download the file, please retry.", nil)
		return
	}

	subject, chapter := "", ""
	if state.Mode == models.ModeImportChapter {
		subject, chapter = state.AddSubject, state.AddChapter
	}

	res, err := quiz.Import(b.DB, data, message.From.ID, subject, chapter)
	if err != nil {
		b.SendMessage(chatID, fmt.Sprintf("⚠️ Import failed: %v", err), nil)
		return
	}

	b.ClearMode(message.From.ID)
	b.SendMessage(chatID, fmt.Sprintf("📥 Import finished.\nAdded: %d\nRejected: %d",
		res.Added, res.Rejected), nil)
}

// Users panel

func showUsersPanel(b *bot.Bot, chatID int64, messageID int, page int) {
	total, err := b.DB.CountUsers()
	if err != nil {
		zap.L().Error("Error counting users", zap.Error(err))
		return
	}
	pages := (total + bot.PageSize - 1) / bot.PageSize
	if pages < 1 {
		pages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}

	users, err := b.DB.ListRecentUsers(bot.PageSize, page*bot.PageSize)
	if err != nil {
		zap.L().Error("Error listing users", zap.Error(err))
		return
	}

	keyboard := bot.UsersPanelKeyboard(users, page, pages)
	b.EditMessage(chatID, messageID,
		fmt.Sprintf("👥 Users (%d total), newest first:", total), &keyboard)
}

func showUserDetail(b *bot.Bot, chatID int64, messageID int, targetID int64) {
	u, err := b.DB.GetUser(targetID)
	if err != nil {
		zap.L().Error("Error loading user", zap.Int64(logger.FieldUserID, targetID), zap.Error(err))
		keyboard := bot.BackKeyboard("a:users")
		b.EditMessage(chatID, messageID, "User not found.", &keyboard)
		return
	}

	stats, err := b.DB.UserStats(targetID)
	if err != nil {
		zap.L().Error("Error loading user stats", zap.Int64(logger.FieldUserID, targetID), zap.Error(err))
	}

	status := "active"
	if u.IsBanned {
		status = "banned"
	}
	text := fmt.Sprintf(
		"👤 %s\nID: %d\nStatus: %s\nJoined: %s\n\nSessions: %d\nAnswered: %d\nCorrect: %d",
		bot.DisplayName(u), u.UserID, status, u.JoinedAt.Format("2006-01-02"),
		stats.Sessions, stats.Answered, stats.Correct)

	keyboard := bot.UserDetailKeyboard(u)
	b.EditMessage(chatID, messageID, text, &keyboard)
}

func toggleBan(b *bot.Bot, callback *tgbotapi.CallbackQuery, targetID int64) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if targetID == b.OwnerID {
		keyboard := bot.BackKeyboard("a:users")
		b.EditMessage(chatID, messageID, msgCannotOwner, &keyboard)
		return
	}

	u, err := b.DB.GetUser(targetID)
	if err != nil {
		zap.L().Error("Error loading user", zap.Int64(logger.FieldUserID, targetID), zap.Error(err))
		return
	}
	if err := b.DB.SetBanned(targetID, !u.IsBanned); err != nil {
		zap.L().Error("Error toggling ban", zap.Int64(logger.FieldUserID, targetID), zap.Error(err))
		return
	}

	showUserDetail(b, chatID, messageID, targetID)
}

func handleDirectMessageEntered(b *bot.Bot, message *tgbotapi.Message, state *models.UserState) {
	targetID := state.TargetUserID
	b.ClearMode(message.From.ID)

	if targetID == 0 || message.Text == "" {
		b.SendMessage(message.Chat.ID, "Nothing sent.", nil)
		return
	}

	if err := b.SendMessage(targetID, "📬 Message from admin:\n\n"+message.Text, nil); err != nil {
		b.SendMessage(message.Chat.ID,
			fmt.Sprintf("⚠️ Could not deliver to %d (user may have blocked the bot).", targetID), nil)
		return
	}
	b.SendMessage(message.Chat.ID, fmt.Sprintf("✅ Delivered to %d.", targetID), nil)
}

// Admins management

func showAdminDetail(b *bot.Bot, chatID int64, messageID int, adminID int64) {
	text := fmt.Sprintf("👤 Admin %d", adminID)
	if u, err := b.DB.GetUser(adminID); err == nil {
		text = fmt.Sprintf("👤 Admin %s\nID: %d", bot.DisplayName(u), adminID)
	}
	keyboard := bot.AdminViewKeyboard(adminID)
	b.EditMessage(chatID, messageID, text, &keyboard)
}

func removeAdmin(b *bot.Bot, callback *tgbotapi.CallbackQuery, adminID int64) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if err := b.RemoveAdmin(adminID); err != nil {
		zap.L().Error("Error removing admin", zap.Int64(logger.FieldUserID, adminID), zap.Error(err))
		keyboard := bot.BackKeyboard("a:admins")
		b.EditMessage(chatID, messageID, fmt.Sprintf("⚠️ %v", err), &keyboard)
		return
	}

	keyboard := bot.AdminsKeyboard(b.AdminIDs(), b.OwnerID)
	b.EditMessage(chatID, messageID, fmt.Sprintf("🗑 Admin %d removed.", adminID), &keyboard)
}

func handleAdminIDEntered(b *bot.Bot, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	b.ClearMode(message.From.ID)

	if !b.IsOwner(message.From.ID) {
		b.SendMessage(chatID, msgOwnerOnly, nil)
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(message.Text), 10, 64)
	if err != nil || id <= 0 {
		b.SendMessage(chatID, msgInvalidID, nil)
		return
	}

	if err := b.AddAdmin(id); err != nil {
		zap.L().Error("Error adding admin", zap.Int64(logger.FieldUserID, id), zap.Error(err))
		b.SendMessage(chatID, "⚠️ Could not add admin.", nil)
		return
	}

	keyboard := bot.AdminsKeyboard(b.AdminIDs(), b.OwnerID)
	b.SendMessage(chatID, fmt.Sprintf("✅ %d is now an admin.", id), keyboard)
	b.SendMessage(id, "👑 You have been granted admin access. Use /start to open the menu.", nil)
}

// Counts and broadcast

func showCounts(b *bot.Bot, chatID int64, messageID int) {
	total, err := b.DB.CountQuizzes()
	if err != nil {
		zap.L().Error("Error counting quizzes", zap.Error(err))
		return
	}
	bySubject, err := b.DB.CountsBySubjectChapter()
	if err != nil {
		zap.L().Error("Error counting by subject", zap.Error(err))
		return
	}

	subjects := make([]string, 0, len(bySubject))
	for s := range bySubject {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	lines := []string{fmt.Sprintf("#️⃣ Total quizzes: %d", total)}
	for _, s := range subjects {
		chapters := bySubject[s]
		names := make([]string, 0, len(chapters))
		for c := range chapters {
			names = append(names, c)
		}
		sort.Strings(names)

		sum := 0
		for _, c := range names {
			sum += chapters[c]
		}
		lines = append(lines, fmt.Sprintf("\n📚 %s (%d)", s, sum))
		for _, c := range names {
			lines = append(lines, fmt.Sprintf("  • %s: %d", c, chapters[c]))
		}
	}

	keyboard := bot.BackKeyboard("a:panel")
	b.EditMessage(chatID, messageID, strings.Join(lines, "\n"), &keyboard)
}

func handleBroadcastEntered(b *bot.Bot, message *tgbotapi.Message, state *models.UserState) {
	if strings.TrimSpace(message.Text) == "" {
		b.SendMessage(message.Chat.ID, "⚠️ The broadcast cannot be empty. Try again.", nil)
		return
	}

	state.BroadcastText = message.Text
	state.Mode = models.ModeBroadcastConfirm

	keyboard := bot.BroadcastConfirmKeyboard()
	b.SendMessage(message.Chat.ID,
		"📣 This will be sent to every user:\n\n"+message.Text, keyboard)
}

func runBroadcast(b *bot.Bot, callback *tgbotapi.CallbackQuery, state *models.UserState) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	keyboard := bot.AdminMenuKeyboard(b.IsOwner(callback.From.ID))

	if state.Mode != models.ModeBroadcastConfirm || state.BroadcastText == "" {
		b.EditMessage(chatID, messageID, "No pending broadcast.", &keyboard)
		return
	}
	text := state.BroadcastText
	b.ClearMode(callback.From.ID)

	ids, err := b.DB.AllUserIDs()
	if err != nil {
		zap.L().Error("Error listing users for broadcast", zap.Error(err))
		b.EditMessage(chatID, messageID, "⚠️ Broadcast failed.", &keyboard)
		return
	}

	b.EditMessage(chatID, messageID, fmt.Sprintf("📣 Broadcasting to %d users…", len(ids)), nil)

	sent, failed := 0, 0
	for _, id := range ids {
		if err := b.SendMessage(id, text, nil); err != nil {
			failed++
			continue
		}
		sent++
	}

	zap.L().Info("Broadcast finished", zap.Int("sent", sent), zap.Int("failed", failed))
	b.SendMessage(chatID, fmt.Sprintf("📣 Broadcast done.\nSent: %d\nFailed: %d", sent, failed),
		keyboard)
}

// Slash-command twins of the panel buttons.

func handleAdminsCommand(b *bot.Bot, message *tgbotapi.Message) {
	if !b.IsAdmin(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgAdminOnly, nil)
		return
	}
	ids := b.AdminIDs()
	lines := []string{"👑 Admins:"}
	for _, id := range ids {
		tag := ""
		if id == b.OwnerID {
			tag = " (owner)"
		}
		lines = append(lines, fmt.Sprintf("• %d%s", id, tag))
	}
	b.SendMessage(message.Chat.ID, strings.Join(lines, "\n"), nil)
}

func handleAddAdminCommand(b *bot.Bot, message *tgbotapi.Message) {
	if !b.IsOwner(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return
	}
	id, ok := parseIDArg(message)
	if !ok {
		b.SendMessage(message.Chat.ID, "Usage: /addadmin <telegram id>", nil)
		return
	}
	if err := b.AddAdmin(id); err != nil {
		b.SendMessage(message.Chat.ID, "⚠️ Could not add admin.", nil)
		return
	}
	b.SendMessage(message.Chat.ID, fmt.Sprintf("✅ %d is now an admin.", id), nil)
}

func handleRemoveAdminCommand(b *bot.Bot, message *tgbotapi.Message) {
	if !b.IsOwner(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return
	}
	id, ok := parseIDArg(message)
	if !ok {
		b.SendMessage(message.Chat.ID, "Usage: /rmadmin <telegram id>", nil)
		return
	}
	if err := b.RemoveAdmin(id); err != nil {
		b.SendMessage(message.Chat.ID, fmt.Sprintf("⚠️ %v", err), nil)
		return
	}
	b.SendMessage(message.Chat.ID, fmt.Sprintf("🗑 Admin %d removed.", id), nil)
}

func handleUsersCommand(b *bot.Bot, message *tgbotapi.Message) {
	if !b.IsOwner(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return
	}

	total, err := b.DB.CountUsers()
	if err != nil {
		zap.L().Error("Error counting users", zap.Error(err))
		return
	}
	users, err := b.DB.ListRecentUsers(bot.PageSize, 0)
	if err != nil {
		zap.L().Error("Error listing users", zap.Error(err))
		return
	}

	pages := (total + bot.PageSize - 1) / bot.PageSize
	if pages < 1 {
		pages = 1
	}
	keyboard := bot.UsersPanelKeyboard(users, 0, pages)
	b.SendMessage(message.Chat.ID,
		fmt.Sprintf("👥 Users (%d total), newest first:", total), keyboard)
}

func handleBanCommand(b *bot.Bot, message *tgbotapi.Message, ban bool) {
	if !b.IsOwner(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return
	}
	id, ok := parseIDArg(message)
	if !ok {
		usage := "Usage: /ban <telegram id>"
		if !ban {
			usage = "Usage: /unban <telegram id>"
		}
		b.SendMessage(message.Chat.ID, usage, nil)
		return
	}
	if id == b.OwnerID {
		b.SendMessage(message.Chat.ID, msgCannotOwner, nil)
		return
	}
	if err := b.DB.SetBanned(id, ban); err != nil {
		zap.L().Error("Error setting ban", zap.Int64(logger.FieldUserID, id), zap.Error(err))
		b.SendMessage(message.Chat.ID, "⚠️ Operation failed.", nil)
		return
	}
	if ban {
		b.SendMessage(message.Chat.ID, fmt.Sprintf("🚫 %d banned.", id), nil)
	} else {
		b.SendMessage(message.Chat.ID, fmt.Sprintf("✅ %d unbanned.", id), nil)
	}
}

// Content management commands, owner only: rename or delete a whole
// subject or chapter.

var quotedArgRE = regexp.MustCompile(`"([^"]+)"`)

// parseNameArgs extracts exactly n names from a command tail. Quoted
// parts win; otherwise the tail is split on | and ->.
func parseNameArgs(raw string, n int) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parts []string
	for _, m := range quotedArgRE.FindAllStringSubmatch(raw, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) >= n {
		return parts[:n]
	}

	parts = nil
	for _, piece := range strings.Split(raw, "|") {
		for _, p := range strings.Split(piece, "->") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	if len(parts) != n {
		return nil
	}
	return parts
}

func handleEditSubjectCommand(b *bot.Bot, message *tgbotapi.Message) {
	if !b.IsOwner(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return
	}
	args := parseNameArgs(message.CommandArguments(), 2)
	if args == nil {
		b.SendMessage(message.Chat.ID,
			`Usage: /editsub "Old Subject" "New Subject" (or Old | New)`, nil)
		return
	}

	n, err := b.DB.RenameSubject(args[0], args[1])
	if err != nil {
		zap.L().Error("Error renaming subject", zap.Error(err))
		b.SendMessage(message.Chat.ID, "⚠️ Rename failed.", nil)
		return
	}
	if n == 0 {
		b.SendMessage(message.Chat.ID, fmt.Sprintf("Subject %q not found.", args[0]), nil)
		return
	}
	b.SendMessage(message.Chat.ID,
		fmt.Sprintf("✏️ Subject renamed: %s → %s (%d quizzes).", args[0], args[1], n), nil)
}

func handleEditChapterCommand(b *bot.Bot, message *tgbotapi.Message) {
	if !b.IsOwner(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return
	}
	args := parseNameArgs(message.CommandArguments(), 3)
	if args == nil {
		b.SendMessage(message.Chat.ID,
			`Usage: /editchap "Subject" "Old Chapter" "New Chapter" (or Subject | Old -> New)`, nil)
		return
	}

	n, err := b.DB.RenameChapter(args[0], args[1], args[2])
	if err != nil {
		zap.L().Error("Error renaming chapter", zap.Error(err))
		b.SendMessage(message.Chat.ID, "⚠️ Rename failed.", nil)
		return
	}
	if n == 0 {
		b.SendMessage(message.Chat.ID,
			fmt.Sprintf("Chapter %q not found in %q.", args[1], args[0]), nil)
		return
	}
	b.SendMessage(message.Chat.ID,
		fmt.Sprintf("✏️ Chapter renamed in %s: %s → %s (%d quizzes).", args[0], args[1], args[2], n), nil)
}

func handleDeleteSubjectCommand(b *bot.Bot, message *tgbotapi.Message) {
	if !b.IsOwner(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return
	}
	args := parseNameArgs(message.CommandArguments(), 1)
	if args == nil {
		b.SendMessage(message.Chat.ID, `Usage: /delsub "Subject"`, nil)
		return
	}

	n, err := b.DB.DeleteSubject(args[0])
	if err != nil {
		zap.L().Error("Error deleting subject", zap.Error(err))
		b.SendMessage(message.Chat.ID, "⚠️ Delete failed.", nil)
		return
	}
	if n == 0 {
		b.SendMessage(message.Chat.ID, fmt.Sprintf("Subject %q not found.", args[0]), nil)
		return
	}
	b.SendMessage(message.Chat.ID,
		fmt.Sprintf("🗑 Deleted subject %q (%d quizzes).", args[0], n), nil)
}

func handleDeleteChapterCommand(b *bot.Bot, message *tgbotapi.Message) {
	if !b.IsOwner(message.From.ID) {
		b.SendMessage(message.Chat.ID, msgOwnerOnly, nil)
		return
	}
	args := parseNameArgs(message.CommandArguments(), 2)
	if args == nil {
		b.SendMessage(message.Chat.ID, `Usage: /delchap "Subject" "Chapter" (or Subject | Chapter)`, nil)
		return
	}

	n, err := b.DB.DeleteChapter(args[0], args[1])
	if err != nil {
		zap.L().Error("Error deleting chapter", zap.Error(err))
		b.SendMessage(message.Chat.ID, "⚠️ Delete failed.", nil)
		return
	}
	if n == 0 {
		b.SendMessage(message.Chat.ID,
			fmt.Sprintf("Chapter %q not found in %q.", args[1], args[0]), nil)
		return
	}
	b.SendMessage(message.Chat.ID,
		fmt.Sprintf("🗑 Deleted %s / %s (%d quizzes).", args[0], args[1], n), nil)
}
