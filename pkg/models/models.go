package models

import (
	"strings"
	"time"
)

// Group defaults applied when a chat is seen for the first time.
const (
	DefaultTimezone        = "UTC"
	DefaultDurationMinutes = 240
	DefaultReminderHours   = 24
)

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	// SessionStatusActive means the session is collecting votes
	SessionStatusActive SessionStatus = "active"
	// SessionStatusConfirmed means a winning option has been picked
	SessionStatusConfirmed SessionStatus = "confirmed"
	// SessionStatusCancelled means the session was called off
	SessionStatusCancelled SessionStatus = "cancelled"
)

// ResponseValue represents a vote on a session option
type ResponseValue string

const (
	// ResponseYes means the user can attend
	ResponseYes ResponseValue = "yes"
	// ResponseNo means the user cannot attend
	ResponseNo ResponseValue = "no"
	// ResponseMaybe means the user is unsure
	ResponseMaybe ResponseValue = "maybe"
)

// ParseResponseValue parses a vote value case-insensitively
func ParseResponseValue(value string) (ResponseValue, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes":
		return ResponseYes, true
	case "no":
		return ResponseNo, true
	case "maybe":
		return ResponseMaybe, true
	default:
		return "", false
	}
}

// IsValidChatID reports whether an id looks like a Telegram chat:
// positive ids are private chats, ids at or below -1000000000 are group chats
func IsValidChatID(chatID int64) bool {
	return chatID > 0 || chatID <= -1_000_000_000
}

// Group represents one chat that schedules sessions
type Group struct {
	ID              int64     `json:"id"`
	TelegramChatID  int64     `json:"telegram_chat_id"`
	Timezone        string    `json:"timezone"`
	DefaultDuration int       `json:"default_duration"`
	ReminderHours   int       `json:"reminder_hours"`
	CreatedAt       time.Time `json:"created_at"`
}

// Session represents one scheduling poll
type Session struct {
	ID        string        `json:"id"`
	GroupID   int64         `json:"group_id"`
	Title     string        `json:"title"`
	MessageID *int          `json:"message_id,omitempty"`
	Status    SessionStatus `json:"status"`
	Deadline  *time.Time    `json:"deadline,omitempty"`
	CreatedBy int64         `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
}

// IsActive reports whether the session still accepts votes
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// SessionOption represents one candidate time within a session
type SessionOption struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Datetime        time.Time `json:"datetime"`
	DurationMinutes int       `json:"duration_minutes"`
	Confirmed       bool      `json:"confirmed"`
}

// Response represents one user's vote on one session option
type Response struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	OptionID  string        `json:"option_id"`
	UserID    int64         `json:"user_id"`
	Username  string        `json:"username,omitempty"`
	Value     ResponseValue `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
}

// Reminder marks that one pre-session notification offset was dispatched
type Reminder struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	DaysBefore int       `json:"days_before"`
	SentAt     time.Time `json:"sent_at"`
}
