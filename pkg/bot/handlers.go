// Package bot maps Telegram commands and vote buttons onto the scheduling
// services and renders their replies.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/gamenight/pkg/datetime"
	"github.com/korjavin/gamenight/pkg/dialogue"
	"github.com/korjavin/gamenight/pkg/logger"
	"github.com/korjavin/gamenight/pkg/messages"
	"github.com/korjavin/gamenight/pkg/reminder"
	"github.com/korjavin/gamenight/pkg/session"
	"github.com/korjavin/gamenight/pkg/telegram"
)

const (
	scheduleUsage = "Usage: /schedule \"Game Night\" \"Friday 19:00, Saturday 14:30\"\n" +
		"Or send /schedule alone and I'll walk you through it."
	confirmUsage  = "Usage: /confirm <session_id>"
	cancelUsage   = "Usage: /cancel <session_id>"
	deadlineUsage = "Usage: /deadline <session_id> <time>\n" +
		"Time formats: Friday 19:00, Monday 14.30, 15.08.2026 20:00"
)

// Handlers wires Telegram updates to the scheduling services
type Handlers struct {
	bot       *telegram.Bot
	sessions  *session.Service
	reminders *reminder.Service
	dialogues *dialogue.Store
	messages  *messages.Service
	logger    *logger.Logger
}

// New creates the bot handler set
func New(bot *telegram.Bot, sessions *session.Service, reminders *reminder.Service, dialogues *dialogue.Store, messageService *messages.Service) *Handlers {
	return &Handlers{
		bot:       bot,
		sessions:  sessions,
		reminders: reminders,
		dialogues: dialogues,
		messages:  messageService,
		logger:    logger.New("bot"),
	}
}

// CommandHandlers maps command names to their handlers
func (h *Handlers) CommandHandlers() map[string]telegram.CommandHandler {
	return map[string]telegram.CommandHandler{
		"start":         h.abortDialogue(h.handleStart),
		"help":          h.abortDialogue(h.handleHelp),
		"schedule":      h.abortDialogue(h.handleSchedule),
		"confirm":       h.abortDialogue(h.handleConfirm),
		"cancel":        h.abortDialogue(h.handleCancel),
		"deadline":      h.abortDialogue(h.handleDeadline),
		"list":          h.abortDialogue(h.handleList),
		"stats":         h.abortDialogue(h.handleStats),
		"settings":      h.abortDialogue(h.handleSettings),
		"testreminders": h.abortDialogue(h.handleTestReminders),
	}
}

// abortDialogue drops any guided conversation before the command runs, so a
// command issued mid-conversation starts fresh instead of feeding the next
// message into the old flow.
func (h *Handlers) abortDialogue(next telegram.CommandHandler) telegram.CommandHandler {
	return func(message *tgbotapi.Message) {
		if message.From != nil {
			if err := h.dialogues.Clear(message.Chat.ID, message.From.ID); err != nil {
				h.logger.Debug("Failed to clear dialogue: %v", err)
			}
		}
		next(message)
	}
}

// CallbackHandlers maps callback data prefixes to their handlers
func (h *Handlers) CallbackHandlers() map[string]telegram.CallbackHandler {
	return map[string]telegram.CallbackHandler{
		votePrefix: h.handleVote,
	}
}

// DefaultHandler answers unknown commands, continues guided schedule
// conversations, and nudges users who mention scheduling in plain chat
func (h *Handlers) DefaultHandler() telegram.HandlerFunc {
	return h.handlePlainMessage
}

func (h *Handlers) handleStart(message *tgbotapi.Message) {
	h.bot.SendMessage(message.Chat.ID, h.messages.GenerateWelcomeMessage())
}

func (h *Handlers) handleHelp(message *tgbotapi.Message) {
	if _, err := h.bot.SendMarkdown(message.Chat.ID, messages.HelpText()); err != nil {
		h.logger.Error("Failed to send help: %v", err)
	}
}

func (h *Handlers) handleSchedule(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	chatID := message.Chat.ID
	args := strings.TrimSpace(message.CommandArguments())

	if args == "" {
		if err := h.dialogues.Set(chatID, message.From.ID, dialogue.Pending{Step: dialogue.StepTitle}); err != nil {
			h.logger.Error("Failed to start schedule conversation: %v", err)
			h.bot.SendMessage(chatID, h.messages.GenerateErrorMessage("start the schedule conversation"))
			return
		}
		h.bot.SendMessage(chatID, "🎲 Let's set up a session! What should it be called?")
		return
	}

	title, options := parseScheduleArgs(args)
	if options == "" {
		h.bot.SendMessage(chatID, scheduleUsage)
		return
	}
	h.createSession(chatID, message.From, title, options)
}

// createSession runs the schedule flow shared by the one-shot command and
// the guided conversation. It reports whether the session card was posted.
func (h *Handlers) createSession(chatID int64, from *tgbotapi.User, title, optionsText string) bool {
	ctx := context.Background()

	sess, options, err := h.sessions.Schedule(ctx, chatID, from.ID, title, optionsText)
	if err != nil {
		h.replyError(chatID, "schedule a session", err)
		return false
	}

	tallies := make([]session.OptionTally, len(options))
	for i, option := range options {
		tallies[i] = session.OptionTally{Option: option}
	}
	overview := session.Overview{Session: sess, Options: tallies}

	card, err := h.bot.SendMarkdownWithKeyboard(chatID, messages.SessionCard(overview), voteKeyboard(overview))
	if err != nil {
		h.logger.Error("Failed to post session card: %v", err)
		return false
	}
	if err := h.sessions.AttachMessage(ctx, sess.ID, card.MessageID); err != nil {
		h.logger.Error("Failed to attach card message: %v", err)
	}
	return true
}

func (h *Handlers) handleVote(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.From == nil {
		return
	}
	chatID := callback.Message.Chat.ID

	sessionID, optionIndex, value, err := parseVoteCallback(callback.Data)
	if err != nil {
		h.logger.Warn("Ignoring vote callback: %v", err)
		h.bot.AnswerCallbackQuery(callback.ID, "This button is no longer valid.")
		return
	}

	ctx := context.Background()
	option, err := h.sessions.OptionByIndex(ctx, sessionID, optionIndex)
	if err != nil {
		h.answerVoteError(callback.ID, err)
		return
	}

	overview, err := h.sessions.Respond(ctx, sessionID, option.ID, callback.From.ID, displayName(callback.From), string(value))
	if err != nil {
		h.answerVoteError(callback.ID, err)
		return
	}

	h.bot.AnswerCallbackQuery(callback.ID, "Vote recorded: "+string(value))
	if _, err := h.bot.EditMarkdownWithKeyboard(chatID, callback.Message.MessageID, messages.SessionCard(overview), voteKeyboard(overview)); err != nil {
		// Telegram rejects edits that leave the message unchanged, which
		// happens when a voter repeats the same choice.
		h.logger.Debug("Session card not refreshed: %v", err)
	}
}

func (h *Handlers) answerVoteError(callbackID string, err error) {
	if text, ok := replyForError(err); ok {
		h.bot.AnswerCallbackQuery(callbackID, text)
		return
	}
	h.logger.Error("Failed to record vote: %v", err)
	h.bot.AnswerCallbackQuery(callbackID, "😢 Something went wrong, please try again.")
}

func (h *Handlers) handleConfirm(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	chatID := message.Chat.ID
	sessionID := strings.TrimSpace(message.CommandArguments())
	if sessionID == "" || strings.ContainsRune(sessionID, ' ') {
		h.bot.SendMessage(chatID, confirmUsage)
		return
	}

	outcome, err := h.sessions.Confirm(context.Background(), chatID, sessionID, message.From.ID)
	if err != nil {
		h.replyError(chatID, "confirm the session", err)
		return
	}

	if _, err := h.bot.SendMarkdown(chatID, messages.ConfirmAnnouncement(outcome)); err != nil {
		h.logger.Error("Failed to announce confirmation: %v", err)
	}
	celebration := h.messages.GenerateConfirmationCelebration(
		outcome.Session.Title, datetime.Format(outcome.Winner.Datetime), outcome.YesVotes)
	h.bot.SendMessage(chatID, celebration)
}

func (h *Handlers) handleCancel(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	chatID := message.Chat.ID
	sessionID := strings.TrimSpace(message.CommandArguments())
	if sessionID == "" || strings.ContainsRune(sessionID, ' ') {
		h.bot.SendMessage(chatID, cancelUsage)
		return
	}

	sess, err := h.sessions.Cancel(context.Background(), chatID, sessionID, message.From.ID)
	if err != nil {
		h.replyError(chatID, "cancel the session", err)
		return
	}

	if _, err := h.bot.SendMarkdown(chatID, messages.CancelAnnouncement(sess)); err != nil {
		h.logger.Error("Failed to announce cancellation: %v", err)
	}
}

func (h *Handlers) handleDeadline(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	chatID := message.Chat.ID
	args := strings.Fields(message.CommandArguments())
	if len(args) < 2 {
		h.bot.SendMessage(chatID, deadlineUsage)
		return
	}
	sessionID := args[0]
	deadlineText := strings.Join(args[1:], " ")

	sess, err := h.sessions.SetDeadline(context.Background(), chatID, sessionID, message.From.ID, deadlineText)
	if err != nil {
		h.replyError(chatID, "set the deadline", err)
		return
	}

	if _, err := h.bot.SendMarkdown(chatID, messages.DeadlineAnnouncement(sess)); err != nil {
		h.logger.Error("Failed to announce deadline: %v", err)
	}
}

func (h *Handlers) handleList(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	overviews, err := h.sessions.List(context.Background(), chatID)
	if err != nil {
		h.replyError(chatID, "list sessions", err)
		return
	}

	if _, err := h.bot.SendMarkdown(chatID, messages.SessionList(overviews)); err != nil {
		h.logger.Error("Failed to send session list: %v", err)
	}
}

func (h *Handlers) handleStats(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	stats, err := h.sessions.Stats(context.Background(), chatID)
	if err != nil {
		h.replyError(chatID, "load group statistics", err)
		return
	}

	if _, err := h.bot.SendMarkdown(chatID, messages.StatsReport(stats)); err != nil {
		h.logger.Error("Failed to send stats report: %v", err)
	}
}

func (h *Handlers) handleSettings(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	ctx := context.Background()

	group, err := h.sessions.GroupInfo(ctx, chatID)
	if err != nil {
		h.replyError(chatID, "load group settings", err)
		return
	}
	stats, err := h.sessions.Stats(ctx, chatID)
	if err != nil {
		h.replyError(chatID, "load group settings", err)
		return
	}

	if _, err := h.bot.SendMarkdown(chatID, messages.SettingsView(group, stats)); err != nil {
		h.logger.Error("Failed to send settings view: %v", err)
	}
}

func (h *Handlers) handleTestReminders(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	h.bot.SendMessage(chatID, "⏳ Running a reminder sweep...")
	if err := h.reminders.RunOnce(context.Background()); err != nil {
		h.logger.Error("Manual reminder sweep failed: %v", err)
		h.bot.SendMessage(chatID, "😢 The reminder sweep failed, check the logs.")
		return
	}
	h.bot.SendMessage(chatID, "✅ Reminder sweep finished.")
}

// handlePlainMessage advances guided schedule conversations and answers
// commands no handler claimed. Other chatter gets at most a hint.
func (h *Handlers) handlePlainMessage(update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.Text == "" {
		return
	}
	chatID := message.Chat.ID
	userID := message.From.ID

	if message.IsCommand() {
		// A mistyped command should not leave a conversation hanging.
		if err := h.dialogues.Clear(chatID, userID); err != nil {
			h.logger.Debug("Failed to clear dialogue: %v", err)
		}
		h.bot.SendMessage(chatID, fmt.Sprintf(
			"⚠️ Unknown command: /%s\nUse /help to see all available commands, or check your command syntax.",
			message.Command()))
		return
	}

	pending, active, err := h.dialogues.Get(chatID, userID)
	if err != nil {
		h.logger.Error("Failed to load dialogue state: %v", err)
		return
	}
	if !active {
		h.sendKeywordHint(chatID, message.Text)
		return
	}

	switch pending.Step {
	case dialogue.StepTitle:
		if err := session.ValidateTitle(message.Text); err != nil {
			h.replyError(chatID, "read the title", err)
			return
		}
		if err := h.dialogues.Set(chatID, userID, dialogue.Pending{Step: dialogue.StepOptions, Title: message.Text}); err != nil {
			h.logger.Error("Failed to advance dialogue: %v", err)
			return
		}
		h.bot.SendMessage(chatID, "📅 Got it! Now send up to 10 time options separated by commas, e.g.: Friday 19:00, Saturday 14:30")
	case dialogue.StepOptions:
		if !h.createSession(chatID, message.From, pending.Title, message.Text) {
			// The reply asked for corrected input, keep the conversation open.
			return
		}
		if err := h.dialogues.Clear(chatID, userID); err != nil {
			h.logger.Error("Failed to clear dialogue: %v", err)
		}
	}
}

// sendKeywordHint nudges users whose message mentions scheduling without
// using a command. Anything else stays unanswered to keep group chats quiet.
func (h *Handlers) sendKeywordHint(chatID int64, text string) {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "schedule") || strings.Contains(lowered, "session"):
		h.bot.SendMessage(chatID, "ℹ️ Looking to schedule a session? Try:\n"+
			"• /schedule \"Session Title\" \"Friday 19:00, Saturday 14:30\"\n"+
			"• Use /help for more examples")
	case strings.Contains(lowered, "help"):
		h.bot.SendMessage(chatID, "ℹ️ Use /help to see all available commands and examples!")
	}
}

// replyError answers a failed command, keeping internal details out of chat.
func (h *Handlers) replyError(chatID int64, action string, err error) {
	if text, ok := replyForError(err); ok {
		h.bot.SendMessage(chatID, text)
		return
	}
	h.logger.Error("Failed to %s: %v", action, err)
	h.bot.SendMessage(chatID, h.messages.GenerateErrorMessage(action))
}
