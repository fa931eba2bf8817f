package bot

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/The-TM1/QuizBot/internal/database"
	"github.com/The-TM1/QuizBot/internal/models"
	"github.com/The-TM1/QuizBot/internal/quiz"
)

const adminIDsSetting = "admin_ids"

type Bot struct {
	API         *tgbotapi.BotAPI
	DB          *database.DB
	OwnerID     int64
	EnvAdminIDs []int64

	States      map[int64]*models.UserState
	StatesMutex sync.RWMutex
}

func New(token string, db *database.DB, ownerID int64, envAdminIDs []int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		API:         api,
		DB:          db,
		OwnerID:     ownerID,
		EnvAdminIDs: envAdminIDs,
		States:      make(map[int64]*models.UserState),
	}, nil
}

// State returns the user's conversation state, creating it on first use.
func (b *Bot) State(userID int64) *models.UserState {
	b.StatesMutex.Lock()
	defer b.StatesMutex.Unlock()

	st, ok := b.States[userID]
	if !ok {
		st = &models.UserState{UserID: userID}
		b.States[userID] = st
	}
	return st
}

func (b *Bot) ClearMode(userID int64) {
	b.StatesMutex.Lock()
	defer b.StatesMutex.Unlock()

	if st, ok := b.States[userID]; ok {
		st.Mode = models.ModeNone
		st.TargetUserID = 0
		st.BroadcastText = ""
	}
}

// Permissions

func (b *Bot) IsOwner(userID int64) bool {
	return userID == b.OwnerID
}

// AdminIDs merges the persisted admin set, the env-configured ids and the
// owner.
func (b *Bot) AdminIDs() []int64 {
	set := map[int64]struct{}{b.OwnerID: {}}
	for _, id := range b.EnvAdminIDs {
		set[id] = struct{}{}
	}

	saved, err := b.DB.GetSetting(adminIDsSetting)
	if err != nil {
		log.Printf("Error reading admin ids: %v", err)
	}
	for _, part := range strings.Split(saved, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			set[id] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *Bot) IsAdmin(userID int64) bool {
	for _, id := range b.AdminIDs() {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) AddAdmin(userID int64) error {
	ids := b.AdminIDs()
	for _, id := range ids {
		if id == userID {
			return nil
		}
	}
	ids = append(ids, userID)
	return b.saveAdmins(ids)
}

func (b *Bot) RemoveAdmin(userID int64) error {
	if userID == b.OwnerID {
		return errors.New("the owner cannot be removed")
	}
	var kept []int64
	for _, id := range b.AdminIDs() {
		if id != userID {
			kept = append(kept, id)
		}
	}
	return b.saveAdmins(kept)
}

func (b *Bot) saveAdmins(ids []int64) error {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == b.OwnerID {
			continue // implicit, never persisted
		}
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return b.DB.SetSetting(adminIDsSetting, strings.Join(parts, ","))
}

// Outbound helpers

func (b *Bot) SendMessage(chatID int64, text string, replyMarkup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}

	_, err := b.API.Send(msg)
	return err
}

func (b *Bot) SendMessageWithMarkdown(chatID int64, text string, replyMarkup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}

	_, err := b.API.Send(msg)
	return err
}

func (b *Bot) EditMessage(chatID int64, messageID int, text string, replyMarkup interface{}) error {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if replyMarkup != nil {
		if markup, ok := replyMarkup.(*tgbotapi.InlineKeyboardMarkup); ok {
			msg.ReplyMarkup = markup
		}
	}

	_, err := b.API.Send(msg)
	return err
}

func (b *Bot) AnswerCallbackQuery(callbackID string, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := b.API.Request(callback)
	return err
}

func (b *Bot) SendDocument(chatID int64, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption

	_, err := b.API.Send(doc)
	return err
}

// quiz.Sender implementation

func (b *Bot) SendQuizPoll(p quiz.OutboundPoll) (string, int, error) {
	poll := tgbotapi.SendPollConfig{
		BaseChat:        tgbotapi.BaseChat{ChatID: p.ChatID},
		Question:        p.Question,
		Options:         p.Options,
		Type:            "quiz",
		CorrectOptionID: int64(p.Correct),
		Explanation:     p.Explanation,
		IsAnonymous:     false,
	}
	if p.OpenPeriod > 0 {
		poll.OpenPeriod = p.OpenPeriod
	}

	msg, err := b.API.Send(poll)
	if err != nil {
		return "", 0, err
	}
	if msg.Poll == nil {
		return "", 0, fmt.Errorf("send poll returned no poll")
	}

	return msg.Poll.ID, msg.MessageID, nil
}

// reviewLimit caps the per-question breakdown in the finish message.
const reviewLimit = 10

func (b *Bot) SendSummary(chatID int64, s quiz.Summary) error {
	mins := int(s.Duration.Minutes())
	secs := int(s.Duration.Seconds()) % 60
	text := fmt.Sprintf(
		"🏁 *The quiz has finished!*\nYou answered *%d*/*%d* questions:\n\n"+
			"✅ Correct – *%d*    ❌ Wrong – *%d*    ⌛️ Missed – *%d*\n"+
			"🕒 Time – %d min %d sec",
		s.Answered, s.Total, s.Correct, s.Wrong, s.Missed, mins, secs,
	)

	if len(s.Review) > 0 {
		lines := []string{text, "", "📝 Worth another look:"}
		shown := s.Review
		if len(shown) > reviewLimit {
			shown = shown[:reviewLimit]
		}
		for _, r := range shown {
			mark := "❌"
			if r.Missed {
				mark = "⌛️"
			}
			q := r.Question
			if q == "" {
				q = "(no longer available)"
			}
			lines = append(lines, fmt.Sprintf("%s %d. %s", mark, r.Index+1, q))
		}
		if rest := len(s.Review) - len(shown); rest > 0 {
			lines = append(lines, fmt.Sprintf("…and %d more", rest))
		}
		text = strings.Join(lines, "\n")
	}

	markup := FinishKeyboard()
	return b.SendMessageWithMarkdown(chatID, text, &markup)
}

func (b *Bot) NotifyAdmins(text string) {
	for _, id := range b.AdminIDs() {
		if err := b.SendMessage(id, text, nil); err != nil {
			log.Printf("Error notifying admin %d: %v", id, err)
		}
	}
}

// NotifyOwner mirrors unauthorized-action alerts to the owner only.
func (b *Bot) NotifyOwner(text string) {
	if err := b.SendMessage(b.OwnerID, text, nil); err != nil {
		log.Printf("Error notifying owner: %v", err)
	}
}
