package handlers

import (
	"strconv"
	"strings"
)

// CommandKind enumerates every inline-keyboard action. Callback data is
// parsed into a Command once at the boundary and dispatched with an
// exhaustive switch; raw prefix checks stop here.
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdNoop

	// user actions ("u:" namespace)
	CmdMainMenu
	CmdHelp
	CmdStats
	CmdContact
	CmdLeaderboard
	CmdSubjects
	CmdSubjectsPage
	CmdPickSubject
	CmdChaptersPage
	CmdPickChapter
	CmdPickTimer
	CmdReady
	CmdRetry
	CmdStopQuiz

	// admin actions ("a:" namespace)
	CmdAdminPanel
	CmdAdminBack
	CmdAddQuizMenu
	CmdNewSubject
	CmdAddPickSubject
	CmdNewChapter
	CmdAddPickChapter
	CmdAddImportHere
	CmdDeleteLast
	CmdDeleteLastConfirm
	CmdDeleteQuiz
	CmdExportMenu
	CmdExportAll
	CmdExportSubjectMenu
	CmdExportSubject
	CmdExportChapterMenu
	CmdExportChapter
	CmdExportUsers
	CmdUsersPanel
	CmdUsersPage
	CmdUserView
	CmdUserToggleBan
	CmdUserMessage
	CmdAdminsMenu
	CmdAdminsAdd
	CmdAdminView
	CmdAdminRemove
	CmdCount
	CmdBroadcast
	CmdBroadcastGo
	CmdImport
)

// Command is one parsed callback action with its arguments.
type Command struct {
	Kind    CommandKind
	Subject string
	Chapter string
	Page    int
	Seconds int
	QuizID  int64
	UserID  int64
}

// Admin reports whether the action lives in the admin namespace.
func (c Command) Admin() bool {
	return c.Kind >= CmdAdminPanel
}

// OwnerOnly reports whether the action is reserved for the owner:
// user management, broadcasts, data import/export and admin management.
func (c Command) OwnerOnly() bool {
	switch c.Kind {
	case CmdExportMenu, CmdExportAll, CmdExportSubjectMenu, CmdExportSubject,
		CmdExportChapterMenu, CmdExportChapter, CmdExportUsers,
		CmdUsersPanel, CmdUsersPage, CmdUserView, CmdUserToggleBan, CmdUserMessage,
		CmdAdminsMenu, CmdAdminsAdd, CmdAdminView, CmdAdminRemove,
		CmdCount, CmdBroadcast, CmdBroadcastGo, CmdImport:
		return true
	}
	return false
}

// ParseCallback turns raw callback data into a Command. Unknown data
// parses to CmdUnknown rather than an error: a stale keyboard is not
// worth more than a shrug.
func ParseCallback(data string) Command {
	switch data {
	case "noop":
		return Command{Kind: CmdNoop}
	case "u:back":
		return Command{Kind: CmdMainMenu}
	case "u:help":
		return Command{Kind: CmdHelp}
	case "u:stats":
		return Command{Kind: CmdStats}
	case "u:contact":
		return Command{Kind: CmdContact}
	case "u:lb":
		return Command{Kind: CmdLeaderboard}
	case "u:start":
		return Command{Kind: CmdSubjects}
	case "u:ready":
		return Command{Kind: CmdReady}
	case "u:retry":
		return Command{Kind: CmdRetry}
	case "u:stop_now":
		return Command{Kind: CmdStopQuiz}

	case "a:panel":
		return Command{Kind: CmdAdminPanel}
	case "a:back":
		return Command{Kind: CmdAdminBack}
	case "a:add":
		return Command{Kind: CmdAddQuizMenu}
	case "a:newsubj":
		return Command{Kind: CmdNewSubject}
	case "a:newchap":
		return Command{Kind: CmdNewChapter}
	case "a:add_import_here":
		return Command{Kind: CmdAddImportHere}
	case "a:dellast":
		return Command{Kind: CmdDeleteLast}
	case "a:dellast_yes":
		return Command{Kind: CmdDeleteLastConfirm}
	case "a:export_menu":
		return Command{Kind: CmdExportMenu}
	case "a:export_all":
		return Command{Kind: CmdExportAll}
	case "a:export_users":
		return Command{Kind: CmdExportUsers}
	case "a:users":
		return Command{Kind: CmdUsersPanel}
	case "a:admins":
		return Command{Kind: CmdAdminsMenu}
	case "a:admins_add":
		return Command{Kind: CmdAdminsAdd}
	case "a:count":
		return Command{Kind: CmdCount}
	case "a:broadcast":
		return Command{Kind: CmdBroadcast}
	case "a:bcast_go":
		return Command{Kind: CmdBroadcastGo}
	case "a:import":
		return Command{Kind: CmdImport}
	}

	prefix, rest, ok := strings.Cut(data, ":")
	if !ok {
		return Command{Kind: CmdUnknown}
	}

	switch prefix {
	case "u":
		return parseUser(rest)
	case "a":
		return parseAdmin(rest)
	}
	return Command{Kind: CmdUnknown}
}

func parseUser(data string) Command {
	action, arg, ok := strings.Cut(data, ":")
	if !ok {
		return Command{Kind: CmdUnknown}
	}

	switch action {
	case "subp":
		if page, err := strconv.Atoi(arg); err == nil {
			return Command{Kind: CmdSubjectsPage, Page: page}
		}
	case "sub":
		return Command{Kind: CmdPickSubject, Subject: arg}
	case "chapp":
		// u:chapp:<subject>:<page>
		if subject, pageStr, ok := cutLast(arg); ok {
			if page, err := strconv.Atoi(pageStr); err == nil {
				return Command{Kind: CmdChaptersPage, Subject: subject, Page: page}
			}
		}
	case "chap":
		// u:chap:<subject>:<chapter>
		if subject, chapter, ok := cutLast(arg); ok {
			return Command{Kind: CmdPickChapter, Subject: subject, Chapter: chapter}
		}
	case "t":
		if secs, err := strconv.Atoi(arg); err == nil {
			return Command{Kind: CmdPickTimer, Seconds: secs}
		}
	case "lbp":
		if page, err := strconv.Atoi(arg); err == nil {
			return Command{Kind: CmdLeaderboard, Page: page}
		}
	}
	return Command{Kind: CmdUnknown}
}

func parseAdmin(data string) Command {
	action, arg, ok := strings.Cut(data, ":")
	if !ok {
		return Command{Kind: CmdUnknown}
	}

	switch action {
	case "add_subj":
		return Command{Kind: CmdAddPickSubject, Subject: arg}
	case "add_chap":
		return Command{Kind: CmdAddPickChapter, Chapter: arg}
	case "delquiz":
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return Command{Kind: CmdDeleteQuiz, QuizID: id}
		}
	case "export_subj":
		return Command{Kind: CmdExportSubjectMenu, Subject: arg}
	case "export_subj_go":
		return Command{Kind: CmdExportSubject, Subject: arg}
	case "export_chap":
		if subject, chapter, ok := cutLast(arg); ok {
			return Command{Kind: CmdExportChapterMenu, Subject: subject, Chapter: chapter}
		}
	case "export_chap_go":
		if subject, chapter, ok := cutLast(arg); ok {
			return Command{Kind: CmdExportChapter, Subject: subject, Chapter: chapter}
		}
	case "users_p":
		if page, err := strconv.Atoi(arg); err == nil {
			return Command{Kind: CmdUsersPage, Page: page}
		}
	case "users_view":
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return Command{Kind: CmdUserView, UserID: id}
		}
	case "users_toggle":
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return Command{Kind: CmdUserToggleBan, UserID: id}
		}
	case "users_msg":
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return Command{Kind: CmdUserMessage, UserID: id}
		}
	case "admins_view":
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return Command{Kind: CmdAdminView, UserID: id}
		}
	case "admins_rm":
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return Command{Kind: CmdAdminRemove, UserID: id}
		}
	}
	return Command{Kind: CmdUnknown}
}

// cutLast splits at the final colon, for data whose first part may itself
// contain colons. The trailing part (a page number or a chapter name)
// must stay colon free.
func cutLast(s string) (string, string, bool) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
