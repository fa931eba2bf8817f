package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCallback(t *testing.T) {
	testCases := []struct {
		data string
		want Command
	}{
		{"noop", Command{Kind: CmdNoop}},
		{"u:back", Command{Kind: CmdMainMenu}},
		{"u:start", Command{Kind: CmdSubjects}},
		{"u:subp:2", Command{Kind: CmdSubjectsPage, Page: 2}},
		{"u:sub:Math", Command{Kind: CmdPickSubject, Subject: "Math"}},
		{"u:chap:Math:Algebra", Command{Kind: CmdPickChapter, Subject: "Math", Chapter: "Algebra"}},
		{"u:chapp:Math:1", Command{Kind: CmdChaptersPage, Subject: "Math", Page: 1}},
		{"u:t:30", Command{Kind: CmdPickTimer, Seconds: 30}},
		{"u:t:0", Command{Kind: CmdPickTimer, Seconds: 0}},
		{"u:ready", Command{Kind: CmdReady}},
		{"u:retry", Command{Kind: CmdRetry}},
		{"u:lb", Command{Kind: CmdLeaderboard}},
		{"u:lbp:3", Command{Kind: CmdLeaderboard, Page: 3}},
		{"u:stop_now", Command{Kind: CmdStopQuiz}},
		{"a:panel", Command{Kind: CmdAdminPanel}},
		{"a:add_subj:Math", Command{Kind: CmdAddPickSubject, Subject: "Math"}},
		{"a:add_chap:Algebra", Command{Kind: CmdAddPickChapter, Chapter: "Algebra"}},
		{"a:delquiz:17", Command{Kind: CmdDeleteQuiz, QuizID: 17}},
		{"a:export_subj:Math", Command{Kind: CmdExportSubjectMenu, Subject: "Math"}},
		{"a:export_users", Command{Kind: CmdExportUsers}},
		{"a:export_chap_go:Math:Algebra", Command{Kind: CmdExportChapter, Subject: "Math", Chapter: "Algebra"}},
		{"a:users_p:1", Command{Kind: CmdUsersPage, Page: 1}},
		{"a:users_view:42", Command{Kind: CmdUserView, UserID: 42}},
		{"a:users_toggle:42", Command{Kind: CmdUserToggleBan, UserID: 42}},
		{"a:admins_rm:42", Command{Kind: CmdAdminRemove, UserID: 42}},
		{"a:bcast_go", Command{Kind: CmdBroadcastGo}},
	}

	for _, tc := range testCases {
		t.Run(tc.data, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseCallback(tc.data))
		})
	}
}

func TestParseCallback_SubjectNamesMayContainColons(t *testing.T) {
	// The trailing part is split off the final colon, so subject names
	// with colons survive every chapter-scoped action.
	cmd := ParseCallback("u:chapp:C: a journey:2")
	assert.Equal(t, CmdChaptersPage, cmd.Kind)
	assert.Equal(t, "C: a journey", cmd.Subject)
	assert.Equal(t, 2, cmd.Page)

	cmd = ParseCallback("u:chap:C: a journey:Intro")
	assert.Equal(t, CmdPickChapter, cmd.Kind)
	assert.Equal(t, "C: a journey", cmd.Subject)
	assert.Equal(t, "Intro", cmd.Chapter)

	cmd = ParseCallback("a:export_chap:C: a journey:Intro")
	assert.Equal(t, CmdExportChapterMenu, cmd.Kind)
	assert.Equal(t, "C: a journey", cmd.Subject)
	assert.Equal(t, "Intro", cmd.Chapter)

	cmd = ParseCallback("a:export_chap_go:C: a journey:Intro")
	assert.Equal(t, CmdExportChapter, cmd.Kind)
	assert.Equal(t, "C: a journey", cmd.Subject)
	assert.Equal(t, "Intro", cmd.Chapter)
}

func TestParseCallback_Garbage(t *testing.T) {
	for _, data := range []string{"", "x", "u:", "u:nope", "a:wat:1", "u:t:abc", "a:delquiz:xyz"} {
		assert.Equal(t, CmdUnknown, ParseCallback(data).Kind, "data=%q", data)
	}
}

func TestCommand_Gates(t *testing.T) {
	assert.False(t, Command{Kind: CmdReady}.Admin())
	assert.False(t, Command{Kind: CmdLeaderboard}.Admin())
	assert.True(t, Command{Kind: CmdAdminPanel}.Admin())
	assert.True(t, Command{Kind: CmdBroadcastGo}.Admin())

	assert.False(t, Command{Kind: CmdAdminPanel}.OwnerOnly())
	assert.False(t, Command{Kind: CmdDeleteLast}.OwnerOnly())
	assert.True(t, Command{Kind: CmdBroadcast}.OwnerOnly())
	assert.True(t, Command{Kind: CmdImport}.OwnerOnly())
	assert.True(t, Command{Kind: CmdUsersPanel}.OwnerOnly())
	assert.True(t, Command{Kind: CmdExportUsers}.OwnerOnly())
}
