package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/gamenight/pkg/models"
	"github.com/korjavin/gamenight/pkg/session"
)

// votePrefix starts the callback data of every vote button.
const votePrefix = "vote:"

// parseScheduleArgs splits the schedule arguments into a title and the
// comma-separated time options. A quoted title may contain spaces; without
// quotes the first word is the title and everything after it is options.
// Malformed input degrades instead of failing: an unterminated quote turns
// the whole text into the title with empty options.
func parseScheduleArgs(args string) (title, options string) {
	args = strings.TrimSpace(args)
	if strings.HasPrefix(args, `"`) {
		rest := args[1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return strings.TrimSpace(rest), ""
		}
		return strings.TrimSpace(rest[:end]), stripQuotes(rest[end+1:])
	}

	cut := strings.IndexFunc(args, unicode.IsSpace)
	if cut < 0 {
		return args, ""
	}
	return args[:cut], stripQuotes(args[cut+1:])
}

func stripQuotes(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		return strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}

// parseVoteCallback splits "vote:<session>:<index>:<value>" callback data.
// Buttons carry the option position instead of its ID to stay inside
// Telegram's 64-byte callback payload limit.
func parseVoteCallback(data string) (string, int, models.ResponseValue, error) {
	payload, found := strings.CutPrefix(data, votePrefix)
	if !found {
		return "", 0, "", fmt.Errorf("not a vote callback: %q", data)
	}
	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, "", fmt.Errorf("malformed vote callback: %q", data)
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return "", 0, "", fmt.Errorf("bad option index in vote callback: %q", data)
	}
	value, valid := models.ParseResponseValue(parts[2])
	if !valid {
		return "", 0, "", fmt.Errorf("bad vote value in vote callback: %q", data)
	}
	return parts[0], index, value, nil
}

// voteKeyboard builds one button row per candidate time.
func voteKeyboard(overview session.Overview) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(overview.Options))
	for i := range overview.Options {
		prefix := fmt.Sprintf("%s%s:%d", votePrefix, overview.Session.ID, i)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d ✅ Yes", i+1), prefix+":yes"),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d ❌ No", i+1), prefix+":no"),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d ❓ Maybe", i+1), prefix+":maybe"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// displayName prefers the Telegram username and falls back to the first name.
func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return user.UserName
	}
	return user.FirstName
}

// replyForError maps domain errors onto short user-facing replies. The
// second return is false for internal errors, which callers log instead.
func replyForError(err error) (string, bool) {
	var validationErr *session.ValidationError
	var notFoundErr *session.NotFoundError
	var permissionErr *session.PermissionError
	var stateErr *session.StateError
	var noWinnerErr *session.NoWinnerError

	switch {
	case errors.As(err, &validationErr):
		return "⚠️ " + validationErr.Message, true
	case errors.As(err, &noWinnerErr):
		return "⚠️ Nobody has voted yes yet. Ask the group to vote, then confirm again.", true
	case errors.As(err, &stateErr):
		return "⚠️ " + stateErr.Message, true
	case errors.As(err, &permissionErr):
		return "❌ " + permissionErr.Message, true
	case errors.As(err, &notFoundErr):
		return "❌ " + notFoundErr.Error() + ". Use /list to see session IDs.", true
	}
	return "", false
}
