// Package notify is the messaging transport boundary. Delivery failures
// are returned to callers, which log and move on; nothing here is fatal.
package notify

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clinicbot/internal/commands"
)

type Notifier interface {
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, fileID, caption string) error
	// SendRatingPrompt sends a question with the fixed 1..5 choice set.
	// The issued-at timestamp is baked into the buttons so late presses
	// can be expired.
	SendRatingPrompt(chatID int64, text string, questionIndex int, issuedAt time.Time) error
}

// Telegram delivers through the Bot API.
type Telegram struct {
	api *tgbotapi.BotAPI
}

func NewTelegram(api *tgbotapi.BotAPI) *Telegram {
	return &Telegram{api: api}
}

func (t *Telegram) SendText(chatID int64, text string) error {
	_, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (t *Telegram) SendPhoto(chatID int64, fileID, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	_, err := t.api.Send(photo)
	return err
}

func (t *Telegram) SendRatingPrompt(chatID int64, text string, questionIndex int, issuedAt time.Time) error {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 5)
	for v := 1; v <= 5; v++ {
		data := commands.EncodeRate(questionIndex, v, issuedAt)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(v), data))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	_, err := t.api.Send(msg)
	return err
}
