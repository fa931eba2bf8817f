package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/The-TM1/QuizBot/internal/models"
)

const (
	PageSize        = 10
	LeaderboardPage = 20
)

func btn(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func MainMenuKeyboard(isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{btn("▶️ Start quiz", "u:start")},
	}
	if isAdmin {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn("🏆 Leaderboard", "u:lb"),
			btn("🛠 Admin panel", "a:panel"),
		})
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			btn("📊 My stats", "u:stats"),
			btn("📨 Contact admin", "u:contact"),
		},
		[]tgbotapi.InlineKeyboardButton{btn("ℹ️ Help", "u:help")},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func navRow(page, pages int, prevData, nextData string) []tgbotapi.InlineKeyboardButton {
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, btn("◀️ Prev", prevData))
	}
	nav = append(nav, btn(fmt.Sprintf("%d/%d", page+1, pages), "noop"))
	if page < pages-1 {
		nav = append(nav, btn("Next ▶️", nextData))
	}
	return nav
}

func pageCount(n int) int {
	pages := (n + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

func clampPage(page, pages int) int {
	if page < 0 {
		return 0
	}
	if page >= pages {
		return pages - 1
	}
	return page
}

func SubjectsKeyboard(subjects []models.SubjectCount, page int) tgbotapi.InlineKeyboardMarkup {
	if len(subjects) == 0 {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", "u:back")),
		)
	}

	pages := pageCount(len(subjects))
	page = clampPage(page, pages)
	start := page * PageSize
	end := start + PageSize
	if end > len(subjects) {
		end = len(subjects)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range subjects[start:end] {
		label := fmt.Sprintf("%s  (%d chapters • %d q.)", s.Subject, s.Chapters, s.Quizzes)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn(label, "u:sub:"+s.Subject),
		})
	}
	if pages > 1 {
		rows = append(rows, navRow(page, pages,
			fmt.Sprintf("u:subp:%d", page-1), fmt.Sprintf("u:subp:%d", page+1)))
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "u:back")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func ChaptersKeyboard(subject string, chapters []models.ChapterCount, page int) tgbotapi.InlineKeyboardMarkup {
	if len(chapters) == 0 {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(btn("⬅️ Subjects", "u:start")),
			tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", "u:back")),
		)
	}

	pages := pageCount(len(chapters))
	page = clampPage(page, pages)
	start := page * PageSize
	end := start + PageSize
	if end > len(chapters) {
		end = len(chapters)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range chapters[start:end] {
		label := fmt.Sprintf("%s  (%d q.)", c.Chapter, c.Quizzes)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn(label, fmt.Sprintf("u:chap:%s:%s", subject, c.Chapter)),
		})
	}
	if pages > 1 {
		rows = append(rows, navRow(page, pages,
			fmt.Sprintf("u:chapp:%s:%d", subject, page-1),
			fmt.Sprintf("u:chapp:%s:%d", subject, page+1)))
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		btn("⬅️ Subjects", "u:start"),
		btn("⬅️ Back", "u:back"),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func TimerKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("⏱ 15s", "u:t:15"),
			btn("⏱ 30s", "u:t:30"),
			btn("⏱ 45s", "u:t:45"),
		),
		tgbotapi.NewInlineKeyboardRow(btn("🚫 Without Timer", "u:t:0")),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", "u:back")),
	)
}

func ReadyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("✅ I am ready!", "u:ready")),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", "u:back")),
	)
}

func FinishKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("🔁 Try again", "u:retry"),
			btn("⬅️ Back", "u:back"),
		),
	)
}

func BackKeyboard(data string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", data)),
	)
}

func LeaderboardKeyboard(page, pages int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if pages > 1 {
		rows = append(rows, navRow(page, pages,
			fmt.Sprintf("u:lbp:%d", page-1), fmt.Sprintf("u:lbp:%d", page+1)))
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "u:back")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Admin keyboards

func AdminMenuKeyboard(isOwner bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{btn("➕ Add quiz", "a:add")},
		{btn("⛔️ Delete last", "a:dellast")},
	}
	if isOwner {
		rows = append(rows,
			[]tgbotapi.InlineKeyboardButton{
				btn("📥 Import JSON", "a:import"),
				btn("📤 Export JSON", "a:export_menu"),
			},
			[]tgbotapi.InlineKeyboardButton{
				btn("#️⃣ Count", "a:count"),
				btn("👥 Users", "a:users"),
			},
			[]tgbotapi.InlineKeyboardButton{btn("📣 Broadcast", "a:broadcast")},
			[]tgbotapi.InlineKeyboardButton{btn("👑 Admins", "a:admins")},
		)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "a:back")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func AdminsKeyboard(ids []int64, ownerID int64) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		if id == ownerID {
			continue
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn(fmt.Sprintf("👤 %d", id), fmt.Sprintf("a:admins_view:%d", id)),
		})
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{btn("➕ Add admin", "a:admins_add")},
		[]tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "a:panel")},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func AdminViewKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("🗑 Remove admin", fmt.Sprintf("a:admins_rm:%d", id))),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", "a:admins")),
	)
}

func UsersPanelKeyboard(users []models.User, page, pages int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, u := range users {
		tag := "✅"
		if u.IsBanned {
			tag = "🚫"
		}
		name := DisplayName(&u)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn(fmt.Sprintf("%s %s (id:%d)", tag, name, u.UserID),
				fmt.Sprintf("a:users_view:%d", u.UserID)),
		})
	}
	if pages > 1 {
		rows = append(rows, navRow(page, pages,
			fmt.Sprintf("a:users_p:%d", page-1), fmt.Sprintf("a:users_p:%d", page+1)))
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "a:panel")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func UserDetailKeyboard(u *models.User) tgbotapi.InlineKeyboardMarkup {
	banLabel := "🚫 Ban"
	if u.IsBanned {
		banLabel = "✅ Unban"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn(banLabel, fmt.Sprintf("a:users_toggle:%d", u.UserID))),
		tgbotapi.NewInlineKeyboardRow(btn("✉️ Message user", fmt.Sprintf("a:users_msg:%d", u.UserID))),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", "a:users")),
	)
}

func ExportMenuKeyboard(subjects []models.SubjectCount) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{btn("📤 Export all", "a:export_all")},
		{btn("👥 Export users", "a:export_users")},
	}
	for _, s := range subjects {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn("📚 "+s.Subject, "a:export_subj:"+s.Subject),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "a:panel")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func ExportSubjectKeyboard(subject string, chapters []models.ChapterCount) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range chapters {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn("📖 "+c.Chapter, fmt.Sprintf("a:export_chap:%s:%s", subject, c.Chapter)),
		})
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{btn("📤 Export whole subject", "a:export_subj_go:"+subject)},
		[]tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "a:export_menu")},
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func ExportChapterKeyboard(subject, chapter string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("📤 Export this chapter", fmt.Sprintf("a:export_chap_go:%s:%s", subject, chapter))),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", "a:export_subj:"+subject)),
	)
}

func AddQuizSubjectsKeyboard(subjects []models.SubjectCount) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{btn("➕ Add new Subject", "a:newsubj")},
	}
	for _, s := range subjects {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn(fmt.Sprintf("📚 %s (chapters: %d | quizzes: %d)", s.Subject, s.Chapters, s.Quizzes),
				"a:add_subj:"+s.Subject),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "a:panel")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func AddQuizChaptersKeyboard(subject string, chapters []models.ChapterCount) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{btn("➕ Add new Chapter", "a:newchap")},
	}
	for _, c := range chapters {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn(fmt.Sprintf("📖 %s (quizzes: %d)", c.Chapter, c.Quizzes), "a:add_chap:"+c.Chapter),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("⬅️ Back", "a:add")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func AddQuizTargetKeyboard(subject string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("📥 Import JSON into this chapter", "a:add_import_here")),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Back", "a:add_subj:"+subject)),
	)
}

func DeleteLastConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("✅ Confirm", "a:dellast_yes"),
			btn("❌ Cancel", "a:panel"),
		),
	)
}

func DeleteQuizConfirmKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("✅ Confirm delete", fmt.Sprintf("a:delquiz:%d", id))),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Cancel", "a:panel")),
	)
}

func BroadcastConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn("✅ Confirm broadcast", "a:bcast_go"),
			btn("❌ Cancel", "a:panel"),
		),
	)
}

// DisplayName renders a user as @username, full name, or the raw id.
func DisplayName(u *models.User) string {
	if u == nil {
		return "unknown"
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name != "" {
		return name
	}
	return fmt.Sprintf("user %d", u.UserID)
}
