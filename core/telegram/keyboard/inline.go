// Package keyboard builds inline keyboards.
package keyboard

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/telegram/callbacks"
)

// MaxData is the Bot API limit for callback_data in bytes.
const MaxData = 64

// Button is a link when URL is set, otherwise a callback carrying Unique and Data.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

func Link(text, url string) Button { return Button{Text: text, URL: url} }

func Action(text, unique, data string) Button {
	return Button{Text: text, Unique: unique, Data: data}
}

// Fits reports whether the encoded callback data stays within MaxData.
func (b Button) Fits() bool {
	if b.URL != "" {
		return true
	}
	return len(callbacks.Encode(b.Unique, b.Data)) <= MaxData
}

// Inline lays rows out as an inline keyboard. Buttons Telegram would reject are
// dropped with a warning; nil is returned when nothing is left.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			if !b.Fits() {
				logger.Warn(context.Background(), "tg", "keyboard.button_dropped",
					slog.String("cb_key", b.Unique),
					slog.Int("size", len(callbacks.Encode(b.Unique, b.Data))),
				)
				continue
			}
			if b.URL != "" {
				line = append(line, *markup.URL(b.Text, b.URL).Inline())
			} else {
				line = append(line, *markup.Data(b.Text, b.Unique, b.Data).Inline())
			}
		}
		if len(line) > 0 {
			markup.InlineKeyboard = append(markup.InlineKeyboard, line)
		}
	}
	if len(markup.InlineKeyboard) == 0 {
		return nil
	}
	return markup
}
