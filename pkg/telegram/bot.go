package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/gamenight/pkg/logger"
)

// Bot represents a Telegram bot instance
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *logger.Logger
}

// HandlerFunc is a function that handles a Telegram update
type HandlerFunc func(update tgbotapi.Update)

// CommandHandler is a function that handles a Telegram command
type CommandHandler func(message *tgbotapi.Message)

// CallbackHandler is a function that handles a Telegram callback query
type CallbackHandler func(callback *tgbotapi.CallbackQuery)

// New creates a new Telegram bot instance
func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	bot := &Bot{
		api:    api,
		logger: logger.New("telegram"),
	}

	bot.logger.Info("Telegram bot created: @%s", api.Self.UserName)
	return bot, nil
}

// Username returns the bot account name, for logs and health reporting.
func (b *Bot) Username() string {
	if b == nil || b.api == nil {
		return ""
	}
	return b.api.Self.UserName
}

// Start listens for updates until Stop is called and dispatches them to the
// registered handlers. Callback handlers match on a data prefix.
func (b *Bot) Start(commandHandlers map[string]CommandHandler, callbackHandlers map[string]CallbackHandler, defaultHandler HandlerFunc) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		log := b.logger
		if chatID := updateChatID(update); chatID != 0 {
			log = b.logger.WithChat(chatID)
		}

		// Handle commands
		if update.Message != nil && update.Message.IsCommand() {
			command := update.Message.Command()
			if handler, ok := commandHandlers[command]; ok {
				log.Info("Handling command: %s from user %s", command, update.Message.From.UserName)
				handler(update.Message)
				continue
			}
		}

		// Handle callback queries
		if update.CallbackQuery != nil {
			data := update.CallbackQuery.Data
			for prefix, handler := range callbackHandlers {
				if strings.HasPrefix(data, prefix) {
					log.Info("Handling callback: %s from user %s", data, update.CallbackQuery.From.UserName)
					handler(update.CallbackQuery)
					break
				}
			}
			continue
		}

		// Use default handler for other updates
		if defaultHandler != nil {
			defaultHandler(update)
		}
	}

	return nil
}

// Stop closes the update stream, which unblocks Start.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

// SendMessage sends a plain text message to a chat
func (b *Bot) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return b.api.Send(msg)
}

// SendMarkdown sends a MarkdownV2 formatted message to a chat
func (b *Bot) SendMarkdown(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return b.api.Send(msg)
}

// SendMarkdownWithKeyboard sends a MarkdownV2 message with an inline keyboard
func (b *Bot) SendMarkdownWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = keyboard
	return b.api.Send(msg)
}

// EditMarkdownWithKeyboard replaces a message's text and inline keyboard
func (b *Bot) EditMarkdownWithKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	return b.api.Send(edit)
}

// AnswerCallbackQuery answers a callback query
func (b *Bot) AnswerCallbackQuery(callbackID string, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := b.api.Request(callback)
	return err
}

func updateChatID(update tgbotapi.Update) int64 {
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}
