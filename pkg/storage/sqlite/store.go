package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/korjavin/gamenight/pkg/models"
	"github.com/korjavin/gamenight/pkg/storage"
	"github.com/korjavin/gamenight/pkg/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for scheduling state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a scheduling SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite db is required")
	}
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

// EnsureGroup finds or lazily creates the group owning a chat.
func (s *Store) EnsureGroup(ctx context.Context, chatID int64) (models.Group, error) {
	if err := ctx.Err(); err != nil {
		return models.Group{}, err
	}
	if s == nil || s.sqlDB == nil {
		return models.Group{}, fmt.Errorf("storage is not configured")
	}
	if !models.IsValidChatID(chatID) {
		return models.Group{}, fmt.Errorf("chat id %d is not a telegram chat", chatID)
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO groups (telegram_chat_id, timezone, default_duration, reminder_hours, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(telegram_chat_id) DO NOTHING
`, chatID, models.DefaultTimezone, models.DefaultDurationMinutes, models.DefaultReminderHours, toMillis(time.Now()))
	if err != nil {
		return models.Group{}, fmt.Errorf("ensure group: %w", err)
	}
	return s.FindGroupByChatID(ctx, chatID)
}

// FindGroupByChatID loads the group owning a chat.
func (s *Store) FindGroupByChatID(ctx context.Context, chatID int64) (models.Group, error) {
	if err := ctx.Err(); err != nil {
		return models.Group{}, err
	}
	if s == nil || s.sqlDB == nil {
		return models.Group{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, telegram_chat_id, timezone, default_duration, reminder_hours, created_at
FROM groups
WHERE telegram_chat_id = ?
`, chatID)
	group, err := scanGroup(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Group{}, storage.ErrNotFound
		}
		return models.Group{}, fmt.Errorf("find group by chat id: %w", err)
	}
	return group, nil
}

// FindGroupByID loads a group by primary key.
func (s *Store) FindGroupByID(ctx context.Context, id int64) (models.Group, error) {
	if err := ctx.Err(); err != nil {
		return models.Group{}, err
	}
	if s == nil || s.sqlDB == nil {
		return models.Group{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, telegram_chat_id, timezone, default_duration, reminder_hours, created_at
FROM groups
WHERE id = ?
`, id)
	group, err := scanGroup(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Group{}, storage.ErrNotFound
		}
		return models.Group{}, fmt.Errorf("find group by id: %w", err)
	}
	return group, nil
}

// CreateSession atomically persists a session with its candidate times.
func (s *Store) CreateSession(ctx context.Context, session models.Session, options []models.SessionOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if session.GroupID == 0 {
		return fmt.Errorf("session group id is required")
	}
	if len(options) == 0 {
		return fmt.Errorf("session needs at least one candidate time")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback session write: %v", cause, rollbackErr)
		}
		return cause
	}

	if err := insertSessionExec(ctx, tx, session); err != nil {
		return rollbackWith(err)
	}
	for _, option := range options {
		option.SessionID = session.ID
		if err := insertOptionExec(ctx, tx, option); err != nil {
			return rollbackWith(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session write: %w", err)
	}
	return nil
}

// FindSession loads one session by id.
func (s *Store) FindSession(ctx context.Context, id string) (models.Session, error) {
	if err := ctx.Err(); err != nil {
		return models.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return models.Session{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Session{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, group_id, title, message_id, status, deadline, created_by, created_at
FROM sessions
WHERE id = ?
`, id)
	session, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Session{}, storage.ErrNotFound
		}
		return models.Session{}, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

// FindSessionsByGroup lists a group's sessions newest-first, optionally filtered by status.
func (s *Store) FindSessionsByGroup(ctx context.Context, groupID int64, statuses ...models.SessionStatus) ([]models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
SELECT id, group_id, title, message_id, status, deadline, created_by, created_at
FROM sessions
WHERE group_id = ?`
	args := []any{groupID}
	if len(statuses) > 0 {
		query += " AND status IN (" + placeholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions by group: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// FindSessionsByStatus lists all sessions in one status across groups.
func (s *Store) FindSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, group_id, title, message_id, status, deadline, created_by, created_at
FROM sessions
WHERE status = ?
ORDER BY created_at DESC, id DESC
`, status)
	if err != nil {
		return nil, fmt.Errorf("list sessions by status: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// SetSessionMessageID records the chat message posted for a session.
func (s *Store) SetSessionMessageID(ctx context.Context, sessionID string, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE sessions SET message_id = ? WHERE id = ?",
		messageID, sessionID)
	if err != nil {
		return fmt.Errorf("set session message id: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set session message id rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindOptions lists a session's candidate times ordered by time.
func (s *Store) FindOptions(ctx context.Context, sessionID string) ([]models.SessionOption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, datetime, duration_minutes, confirmed
FROM session_options
WHERE session_id = ?
ORDER BY datetime ASC, id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session options: %w", err)
	}
	defer rows.Close()
	return collectOptions(rows)
}

// BatchFindOptions lists candidate times for many sessions at once.
func (s *Store) BatchFindOptions(ctx context.Context, sessionIDs []string) ([]models.SessionOption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	query := `
SELECT id, session_id, datetime, duration_minutes, confirmed
FROM session_options
WHERE session_id IN (` + placeholders(len(sessionIDs)) + `)
ORDER BY session_id ASC, datetime ASC, id ASC`
	args := make([]any, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		args = append(args, id)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch list session options: %w", err)
	}
	defer rows.Close()
	return collectOptions(rows)
}

// FindResponses lists all votes for one session.
func (s *Store) FindResponses(ctx context.Context, sessionID string) ([]models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, option_id, user_id, username, value, created_at
FROM responses
WHERE session_id = ?
ORDER BY created_at ASC, id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	return collectResponses(rows)
}

// BatchFindResponses lists votes for many sessions at once.
func (s *Store) BatchFindResponses(ctx context.Context, sessionIDs []string) ([]models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	query := `
SELECT id, session_id, option_id, user_id, username, value, created_at
FROM responses
WHERE session_id IN (` + placeholders(len(sessionIDs)) + `)
ORDER BY session_id ASC, created_at ASC, id ASC`
	args := make([]any, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		args = append(args, id)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch list responses: %w", err)
	}
	defer rows.Close()
	return collectResponses(rows)
}

// UpsertResponse atomically replaces the vote for the response's (session, option, user) key.
func (s *Store) UpsertResponse(ctx context.Context, response models.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(response.ID) == "" {
		return fmt.Errorf("response id is required")
	}
	if strings.TrimSpace(response.SessionID) == "" || strings.TrimSpace(response.OptionID) == "" {
		return fmt.Errorf("response session id and option id are required")
	}
	if _, ok := models.ParseResponseValue(string(response.Value)); !ok {
		return fmt.Errorf("response value %q is not valid", response.Value)
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO responses (id, session_id, option_id, user_id, username, value, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, option_id, user_id) DO UPDATE SET
	username = excluded.username,
	value = excluded.value,
	created_at = excluded.created_at
`,
		response.ID,
		response.SessionID,
		response.OptionID,
		response.UserID,
		response.Username,
		response.Value,
		toMillis(response.CreatedAt),
	)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("upsert response: %w", err)
	}
	return nil
}

// SetDeadline stores a voting deadline for one session.
func (s *Store) SetDeadline(ctx context.Context, sessionID string, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE sessions SET deadline = ? WHERE id = ?",
		toMillis(deadline), sessionID)
	if err != nil {
		return fmt.Errorf("set session deadline: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set session deadline rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CancelSession marks one session cancelled.
func (s *Store) CancelSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		"UPDATE sessions SET status = ? WHERE id = ?",
		models.SessionStatusCancelled, sessionID)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel session rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ConfirmSessionOption atomically moves an active session to confirmed and
// flags the winning option. Concurrent confirms lose with ErrConflict.
func (s *Store) ConfirmSessionOption(ctx context.Context, sessionID, optionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin confirm write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback confirm write: %v", cause, rollbackErr)
		}
		return cause
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE sessions SET status = ? WHERE id = ? AND status = ?",
		models.SessionStatusConfirmed, sessionID, models.SessionStatusActive)
	if err != nil {
		return rollbackWith(fmt.Errorf("confirm session: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return rollbackWith(fmt.Errorf("confirm session rows affected: %w", err))
	}
	if affected == 0 {
		var found int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return rollbackWith(storage.ErrNotFound)
		}
		if err != nil {
			return rollbackWith(fmt.Errorf("check session exists: %w", err))
		}
		return rollbackWith(storage.ErrConflict)
	}

	result, err = tx.ExecContext(ctx,
		"UPDATE session_options SET confirmed = 1 WHERE id = ? AND session_id = ?",
		optionID, sessionID)
	if err != nil {
		return rollbackWith(fmt.Errorf("confirm session option: %w", err))
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return rollbackWith(fmt.Errorf("confirm session option rows affected: %w", err))
	}
	if affected == 0 {
		return rollbackWith(storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit confirm write: %w", err)
	}
	return nil
}

// RecordReminderSent inserts the at-most-once marker for one reminder offset.
// It returns false, without error, when the marker already exists.
func (s *Store) RecordReminderSent(ctx context.Context, sessionID string, daysBefore int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	marker := models.Reminder{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		DaysBefore: daysBefore,
		SentAt:     time.Now().UTC(),
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO reminders (id, session_id, days_before, sent_at)
VALUES (?, ?, ?, ?)
`, marker.ID, marker.SessionID, marker.DaysBefore, toMillis(marker.SentAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		if isForeignKeyConstraintError(err) {
			return false, storage.ErrNotFound
		}
		return false, fmt.Errorf("record reminder marker: %w", err)
	}
	return true, nil
}

// ReminderAlreadySent reports whether the marker for a reminder offset exists.
func (s *Store) ReminderAlreadySent(ctx context.Context, sessionID string, daysBefore int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	var one int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM reminders WHERE session_id = ? AND days_before = ?
`, sessionID, daysBefore).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find reminder marker: %w", err)
	}
	return true, nil
}

// GroupStats aggregates session and vote counts for one group.
func (s *Store) GroupStats(ctx context.Context, groupID int64) (storage.GroupStats, error) {
	if err := ctx.Err(); err != nil {
		return storage.GroupStats{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.GroupStats{}, fmt.Errorf("storage is not configured")
	}

	var stats storage.GroupStats

	statusRows, err := s.sqlDB.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM sessions WHERE group_id = ? GROUP BY status",
		groupID)
	if err != nil {
		return storage.GroupStats{}, fmt.Errorf("count sessions by status: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status models.SessionStatus
		var count int
		if err := statusRows.Scan(&status, &count); err != nil {
			return storage.GroupStats{}, fmt.Errorf("scan session status count: %w", err)
		}
		stats.TotalSessions += count
		switch status {
		case models.SessionStatusActive:
			stats.ActiveSessions = count
		case models.SessionStatusConfirmed:
			stats.ConfirmedSessions = count
		case models.SessionStatusCancelled:
			stats.CancelledSessions = count
		}
	}
	if err := statusRows.Err(); err != nil {
		return storage.GroupStats{}, fmt.Errorf("iterate session status counts: %w", err)
	}

	valueRows, err := s.sqlDB.QueryContext(ctx, `
SELECT r.value, COUNT(1)
FROM responses r
JOIN sessions sess ON sess.id = r.session_id
WHERE sess.group_id = ?
GROUP BY r.value
`, groupID)
	if err != nil {
		return storage.GroupStats{}, fmt.Errorf("count responses by value: %w", err)
	}
	defer valueRows.Close()
	for valueRows.Next() {
		var value models.ResponseValue
		var count int
		if err := valueRows.Scan(&value, &count); err != nil {
			return storage.GroupStats{}, fmt.Errorf("scan response value count: %w", err)
		}
		stats.TotalResponses += count
		switch value {
		case models.ResponseYes:
			stats.YesResponses = count
		case models.ResponseNo:
			stats.NoResponses = count
		case models.ResponseMaybe:
			stats.MaybeResponses = count
		}
	}
	if err := valueRows.Err(); err != nil {
		return storage.GroupStats{}, fmt.Errorf("iterate response value counts: %w", err)
	}

	participantRows, err := s.sqlDB.QueryContext(ctx, `
SELECT MAX(r.username), COUNT(1) AS votes
FROM responses r
JOIN sessions sess ON sess.id = r.session_id
WHERE sess.group_id = ?
GROUP BY r.user_id
ORDER BY votes DESC, r.user_id ASC
LIMIT 5
`, groupID)
	if err != nil {
		return storage.GroupStats{}, fmt.Errorf("list top participants: %w", err)
	}
	defer participantRows.Close()
	for participantRows.Next() {
		var stat storage.ParticipantStat
		if err := participantRows.Scan(&stat.Username, &stat.ResponseCount); err != nil {
			return storage.GroupStats{}, fmt.Errorf("scan participant stat: %w", err)
		}
		stats.TopParticipants = append(stats.TopParticipants, stat)
	}
	if err := participantRows.Err(); err != nil {
		return storage.GroupStats{}, fmt.Errorf("iterate participant stats: %w", err)
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, group_id, title, message_id, status, deadline, created_by, created_at
FROM sessions
WHERE group_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1
`, groupID)
	session, err := scanSession(row.Scan)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return storage.GroupStats{}, fmt.Errorf("find most recent session: %w", err)
		}
	} else {
		stats.MostRecentSession = &session
	}

	return stats, nil
}

type scanner func(dest ...any) error

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSessionExec(ctx context.Context, execer sqlExecer, session models.Session) error {
	var messageID sql.NullInt64
	if session.MessageID != nil {
		messageID = sql.NullInt64{Int64: int64(*session.MessageID), Valid: true}
	}
	var deadline sql.NullInt64
	if session.Deadline != nil {
		deadline = sql.NullInt64{Int64: toMillis(*session.Deadline), Valid: true}
	}
	status := session.Status
	if status == "" {
		status = models.SessionStatusActive
	}

	_, err := execer.ExecContext(ctx, `
INSERT INTO sessions (id, group_id, title, message_id, status, deadline, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		session.ID,
		session.GroupID,
		session.Title,
		messageID,
		status,
		deadline,
		session.CreatedBy,
		toMillis(session.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		if isForeignKeyConstraintError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func insertOptionExec(ctx context.Context, execer sqlExecer, option models.SessionOption) error {
	confirmed := 0
	if option.Confirmed {
		confirmed = 1
	}

	_, err := execer.ExecContext(ctx, `
INSERT INTO session_options (id, session_id, datetime, duration_minutes, confirmed)
VALUES (?, ?, ?, ?, ?)
`,
		option.ID,
		option.SessionID,
		toMillis(option.Datetime),
		option.DurationMinutes,
		confirmed,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		if isForeignKeyConstraintError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert session option: %w", err)
	}
	return nil
}

func scanGroup(scan scanner) (models.Group, error) {
	var group models.Group
	var createdAt int64
	if err := scan(
		&group.ID,
		&group.TelegramChatID,
		&group.Timezone,
		&group.DefaultDuration,
		&group.ReminderHours,
		&createdAt,
	); err != nil {
		return models.Group{}, err
	}
	group.CreatedAt = fromMillis(createdAt)
	return group, nil
}

func scanSession(scan scanner) (models.Session, error) {
	var session models.Session
	var messageID sql.NullInt64
	var deadline sql.NullInt64
	var createdAt int64
	if err := scan(
		&session.ID,
		&session.GroupID,
		&session.Title,
		&messageID,
		&session.Status,
		&deadline,
		&session.CreatedBy,
		&createdAt,
	); err != nil {
		return models.Session{}, err
	}
	if messageID.Valid {
		value := int(messageID.Int64)
		session.MessageID = &value
	}
	if deadline.Valid {
		value := fromMillis(deadline.Int64)
		session.Deadline = &value
	}
	session.CreatedAt = fromMillis(createdAt)
	return session, nil
}

func scanOption(scan scanner) (models.SessionOption, error) {
	var option models.SessionOption
	var datetime int64
	var confirmed int
	if err := scan(
		&option.ID,
		&option.SessionID,
		&datetime,
		&option.DurationMinutes,
		&confirmed,
	); err != nil {
		return models.SessionOption{}, err
	}
	option.Datetime = fromMillis(datetime)
	option.Confirmed = confirmed != 0
	return option, nil
}

func scanResponse(scan scanner) (models.Response, error) {
	var response models.Response
	var createdAt int64
	if err := scan(
		&response.ID,
		&response.SessionID,
		&response.OptionID,
		&response.UserID,
		&response.Username,
		&response.Value,
		&createdAt,
	); err != nil {
		return models.Response{}, err
	}
	response.CreatedAt = fromMillis(createdAt)
	return response, nil
}

func collectSessions(rows *sql.Rows) ([]models.Session, error) {
	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

func collectOptions(rows *sql.Rows) ([]models.SessionOption, error) {
	var options []models.SessionOption
	for rows.Next() {
		option, err := scanOption(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session option row: %w", err)
		}
		options = append(options, option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session option rows: %w", err)
	}
	return options, nil
}

func collectResponses(rows *sql.Rows) ([]models.Response, error) {
	var responses []models.Response
	for rows.Next() {
		response, err := scanResponse(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan response row: %w", err)
		}
		responses = append(responses, response)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate response rows: %w", err)
	}
	return responses, nil
}

func placeholders(count int) string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = "?"
	}
	return strings.Join(marks, ", ")
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
