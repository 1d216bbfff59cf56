package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/gamenight/pkg/models"
	"github.com/korjavin/gamenight/pkg/session"
)

func TestParseScheduleArgs(t *testing.T) {
	cases := []struct {
		args    string
		title   string
		options string
	}{
		{`"Game Night" "Friday 19:00, Saturday 14:30"`, "Game Night", "Friday 19:00, Saturday 14:30"},
		{`  "Quiz"   "Monday 20:00"  `, "Quiz", "Monday 20:00"},
		{`"Game Night" Friday 19:00, Saturday 14:30`, "Game Night", "Friday 19:00, Saturday 14:30"},
		{`Catan Friday 19:00, Saturday 14:30`, "Catan", "Friday 19:00, Saturday 14:30"},
		{`"Only Title"`, "Only Title", ""},
		{`Catan`, "Catan", ""},
		{`"Unterminated quote Friday 19:00`, "Unterminated quote Friday 19:00", ""},
		{``, "", ""},
	}

	for _, tc := range cases {
		title, options := parseScheduleArgs(tc.args)
		if title != tc.title || options != tc.options {
			t.Errorf("parseScheduleArgs(%q) = (%q, %q), want (%q, %q)",
				tc.args, title, options, tc.title, tc.options)
		}
	}
}

func TestStripQuotes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"Friday 19:00, Saturday 14:30"`, "Friday 19:00, Saturday 14:30"},
		{`  "Monday 20:00"  `, "Monday 20:00"},
		{`Friday 19:00`, "Friday 19:00"},
		{`"unterminated`, `"unterminated`},
		{`""`, ""},
		{``, ``},
	}
	for _, tc := range cases {
		if got := stripQuotes(tc.in); got != tc.want {
			t.Errorf("stripQuotes(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseVoteCallback(t *testing.T) {
	sessionID, index, value, err := parseVoteCallback("vote:sess-1:0:yes")
	if err != nil {
		t.Fatalf("parse valid callback: %v", err)
	}
	if sessionID != "sess-1" || index != 0 || value != models.ResponseYes {
		t.Fatalf("unexpected parse result: %q %d %q", sessionID, index, value)
	}

	_, index, value, err = parseVoteCallback("vote:sess-1:9:maybe")
	if err != nil || index != 9 || value != models.ResponseMaybe {
		t.Fatalf("unexpected parse result: %d %q %v", index, value, err)
	}

	invalid := []string{
		"settings:close",
		"vote:sess-1:yes",
		"vote:sess-1:first:yes",
		"vote:sess-1:-1:yes",
		"vote:sess-1:0:perhaps",
		"vote::0:yes",
	}
	for _, data := range invalid {
		if _, _, _, err := parseVoteCallback(data); err == nil {
			t.Errorf("expected error for %q", data)
		}
	}
}

func TestVoteKeyboardLayout(t *testing.T) {
	overview := session.Overview{
		Session: models.Session{ID: "0d9f2b7e-41ad-4b0e-9c1a-7aa1f3d2c4b5"},
		Options: []session.OptionTally{
			{Option: models.SessionOption{Datetime: time.Now()}},
			{Option: models.SessionOption{Datetime: time.Now().Add(time.Hour)}},
		},
	}

	keyboard := voteKeyboard(overview)
	if len(keyboard.InlineKeyboard) != 2 {
		t.Fatalf("expected one row per option, got %d", len(keyboard.InlineKeyboard))
	}
	for rowIdx, row := range keyboard.InlineKeyboard {
		if len(row) != 3 {
			t.Fatalf("expected 3 buttons in row %d, got %d", rowIdx, len(row))
		}
		for _, button := range row {
			if button.CallbackData == nil {
				t.Fatalf("button %q has no callback data", button.Text)
			}
			data := *button.CallbackData
			wantPrefix := fmt.Sprintf("vote:%s:%d:", overview.Session.ID, rowIdx)
			if !strings.HasPrefix(data, wantPrefix) {
				t.Errorf("callback %q does not start with %q", data, wantPrefix)
			}
			// Telegram rejects callback payloads over 64 bytes.
			if len(data) > 64 {
				t.Errorf("callback %q is %d bytes", data, len(data))
			}
		}
	}
	if !strings.Contains(keyboard.InlineKeyboard[0][0].Text, "✅ Yes") {
		t.Errorf("unexpected yes button label %q", keyboard.InlineKeyboard[0][0].Text)
	}
	if got := *keyboard.InlineKeyboard[1][2].CallbackData; !strings.HasSuffix(got, ":maybe") {
		t.Errorf("unexpected maybe callback %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	if got := displayName(nil); got != "" {
		t.Errorf("nil user rendered as %q", got)
	}
	if got := displayName(&tgbotapi.User{UserName: "ada", FirstName: "Ada"}); got != "ada" {
		t.Errorf("expected username to win, got %q", got)
	}
	if got := displayName(&tgbotapi.User{FirstName: "Ada"}); got != "Ada" {
		t.Errorf("expected first name fallback, got %q", got)
	}
}

func TestReplyForError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&session.ValidationError{Message: "title too short"}, "⚠️ title too short"},
		{&session.StateError{Message: "voting is closed"}, "⚠️ voting is closed"},
		{&session.PermissionError{Message: "only the session creator can change it"}, "❌ only the session creator can change it"},
		{&session.NotFoundError{Resource: "session", ID: "abc"}, "❌ session abc not found. Use /list to see session IDs."},
		{fmt.Errorf("confirm: %w", &session.NoWinnerError{SessionID: "abc"}), "⚠️ Nobody has voted yes yet. Ask the group to vote, then confirm again."},
	}
	for _, tc := range cases {
		got, ok := replyForError(tc.err)
		if !ok || got != tc.want {
			t.Errorf("replyForError(%v) = (%q, %v), want (%q, true)", tc.err, got, ok, tc.want)
		}
	}

	if text, ok := replyForError(errors.New("db exploded")); ok {
		t.Errorf("internal error mapped to %q, want none", text)
	}
}
