package storage

import (
	"context"
	"errors"
	"time"

	"github.com/korjavin/gamenight/pkg/models"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write lost against a uniqueness or state constraint.
	ErrConflict = errors.New("record conflict")
)

// ParticipantStat counts one user's votes within a group.
type ParticipantStat struct {
	Username      string
	ResponseCount int
}

// GroupStats aggregates scheduling activity for one group.
type GroupStats struct {
	TotalSessions     int
	ActiveSessions    int
	ConfirmedSessions int
	CancelledSessions int
	TotalResponses    int
	YesResponses      int
	NoResponses       int
	MaybeResponses    int
	TopParticipants   []ParticipantStat
	MostRecentSession *models.Session
}

// Store persists groups, sessions, options, responses and reminder markers.
type Store interface {
	// EnsureGroup finds or lazily creates the group for a chat.
	EnsureGroup(ctx context.Context, chatID int64) (models.Group, error)
	// FindGroupByChatID loads the group owning a chat, or ErrNotFound.
	FindGroupByChatID(ctx context.Context, chatID int64) (models.Group, error)
	// FindGroupByID loads a group by primary key, or ErrNotFound.
	FindGroupByID(ctx context.Context, id int64) (models.Group, error)

	// CreateSession persists a session together with its candidate times
	// as one atomic write.
	CreateSession(ctx context.Context, session models.Session, options []models.SessionOption) error
	// FindSession loads one session, or ErrNotFound.
	FindSession(ctx context.Context, id string) (models.Session, error)
	// FindSessionsByGroup lists a group's sessions newest-first, optionally
	// filtered by status.
	FindSessionsByGroup(ctx context.Context, groupID int64, statuses ...models.SessionStatus) ([]models.Session, error)
	// FindSessionsByStatus lists all sessions in one status across groups.
	FindSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.Session, error)
	// SetSessionMessageID records the chat message posted for a session so
	// it can be edited later.
	SetSessionMessageID(ctx context.Context, sessionID string, messageID int) error

	// FindOptions lists a session's candidate times ordered by time.
	FindOptions(ctx context.Context, sessionID string) ([]models.SessionOption, error)
	// BatchFindOptions lists candidate times for many sessions at once;
	// callers group the result by session id.
	BatchFindOptions(ctx context.Context, sessionIDs []string) ([]models.SessionOption, error)
	// FindResponses lists all votes for one session.
	FindResponses(ctx context.Context, sessionID string) ([]models.Response, error)
	// BatchFindResponses lists votes for many sessions at once.
	BatchFindResponses(ctx context.Context, sessionIDs []string) ([]models.Response, error)
	// UpsertResponse atomically replaces the vote for the response's
	// (session, option, user) key.
	UpsertResponse(ctx context.Context, response models.Response) error

	// SetDeadline stores a voting deadline; callers validate it is in the future.
	SetDeadline(ctx context.Context, sessionID string, deadline time.Time) error
	// CancelSession marks a session cancelled; callers enforce state rules.
	CancelSession(ctx context.Context, sessionID string) error
	// ConfirmSessionOption atomically moves an active session to confirmed
	// and flags the winning option. It returns ErrConflict when the session
	// is no longer active, so concurrent confirms resolve cleanly.
	ConfirmSessionOption(ctx context.Context, sessionID, optionID string) error

	// RecordReminderSent inserts the at-most-once marker for a reminder
	// offset. It returns false, without error, when the marker already
	// exists.
	RecordReminderSent(ctx context.Context, sessionID string, daysBefore int) (bool, error)
	// ReminderAlreadySent reports whether the marker for a reminder offset
	// exists.
	ReminderAlreadySent(ctx context.Context, sessionID string, daysBefore int) (bool, error)

	// GroupStats aggregates session and vote counts for one group.
	GroupStats(ctx context.Context, groupID int64) (GroupStats, error)
}
