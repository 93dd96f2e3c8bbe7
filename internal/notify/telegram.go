package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tripplanner/pkg/logger"
)

// Sender is the part of *tgbotapi.BotAPI the dispatcher uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDispatcher posts administrator notifications to one chat.
// Messages for other recipients are ignored.
type TelegramDispatcher struct {
	sender Sender
	chatID int64
	logger *logger.Logger
}

func NewTelegramDispatcher(token string, chatID int64, log *logger.Logger) (*TelegramDispatcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Infow("Authorized on Telegram", "username", bot.Self.UserName)

	return NewTelegramDispatcherWithSender(bot, chatID, log), nil
}

func NewTelegramDispatcherWithSender(sender Sender, chatID int64, log *logger.Logger) *TelegramDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &TelegramDispatcher{sender: sender, chatID: chatID, logger: log}
}

func (t *TelegramDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if msg.To != AdminRecipient {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text, err := Render(msg)
	if err != nil {
		return err
	}

	out := tgbotapi.NewMessage(t.chatID, text)
	out.DisableWebPagePreview = true
	if _, err := t.sender.Send(out); err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}

	t.logger.Debugw("Telegram notification sent", "chat_id", t.chatID, "template", msg.Template)
	return nil
}
