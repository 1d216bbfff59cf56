package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/korjavin/gamenight/pkg/datetime"
	"github.com/korjavin/gamenight/pkg/logger"
	"github.com/korjavin/gamenight/pkg/models"
	"github.com/korjavin/gamenight/pkg/storage"
)

const (
	minTitleLength  = 3
	maxTitleLength  = 100
	maxOptionCount  = 10
	maxOptionLength = 50

	// listTimeout bounds aggregate reads; when tally lookups are slow the
	// list degrades to sessions without vote counts instead of failing.
	listTimeout = 10 * time.Second
)

// OptionTally pairs one candidate time with its vote counts.
type OptionTally struct {
	Option models.SessionOption
	Yes    int
	No     int
	Maybe  int
}

// Overview is one session together with its candidate times and tallies.
type Overview struct {
	Session models.Session
	Options []OptionTally
}

// ConfirmOutcome describes the winning option picked by a confirm.
type ConfirmOutcome struct {
	Session      models.Session
	Winner       models.SessionOption
	YesVotes     int
	Participants []string
}

// Service provides the scheduling workflows on top of a store.
type Service struct {
	store  storage.Store
	logger *logger.Logger
	now    func() time.Time
}

// New creates a new scheduling service
func New(store storage.Store) *Service {
	return &Service{
		store:  store,
		logger: logger.New("session"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Schedule validates the title and time phrases, then creates an active
// session with one candidate option per phrase.
func (s *Service) Schedule(ctx context.Context, chatID, userID int64, title, optionsText string) (models.Session, []models.SessionOption, error) {
	cleanTitle, err := validateTitle(title)
	if err != nil {
		return models.Session{}, nil, err
	}
	optionTexts, err := splitOptionTexts(optionsText)
	if err != nil {
		return models.Session{}, nil, err
	}

	group, err := s.store.EnsureGroup(ctx, chatID)
	if err != nil {
		return models.Session{}, nil, fmt.Errorf("failed to ensure group for chat %d: %w", chatID, err)
	}

	newSession := models.Session{
		ID:        uuid.NewString(),
		GroupID:   group.ID,
		Title:     cleanTitle,
		Status:    models.SessionStatusActive,
		CreatedBy: userID,
		CreatedAt: s.now(),
	}
	options := make([]models.SessionOption, 0, len(optionTexts))
	for _, text := range optionTexts {
		options = append(options, models.SessionOption{
			ID:              uuid.NewString(),
			SessionID:       newSession.ID,
			Datetime:        datetime.Parse(text),
			DurationMinutes: group.DefaultDuration,
		})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Datetime.Before(options[j].Datetime)
	})

	if err := s.store.CreateSession(ctx, newSession, options); err != nil {
		return models.Session{}, nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("Created session %s (%q) with %d options for chat %d", newSession.ID, cleanTitle, len(options), chatID)
	return newSession, options, nil
}

// Respond records one user's vote on a candidate time and returns the
// refreshed overview for re-rendering.
func (s *Service) Respond(ctx context.Context, sessionID, optionID string, userID int64, username, value string) (Overview, error) {
	parsedValue, ok := models.ParseResponseValue(value)
	if !ok {
		return Overview{}, &ValidationError{Message: fmt.Sprintf("%q is not a valid response", value)}
	}

	sess, err := s.store.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Overview{}, &NotFoundError{Resource: "session", ID: sessionID}
		}
		return Overview{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if !sess.IsActive() {
		return Overview{}, &StateError{Message: "voting is closed for this session"}
	}

	options, err := s.store.FindOptions(ctx, sessionID)
	if err != nil {
		return Overview{}, fmt.Errorf("failed to load options for session %s: %w", sessionID, err)
	}
	optionFound := false
	for _, option := range options {
		if option.ID == optionID {
			optionFound = true
			break
		}
	}
	if !optionFound {
		return Overview{}, &NotFoundError{Resource: "option", ID: optionID}
	}

	response := models.Response{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		OptionID:  optionID,
		UserID:    userID,
		Username:  strings.TrimSpace(username),
		Value:     parsedValue,
		CreatedAt: s.now(),
	}
	if err := s.store.UpsertResponse(ctx, response); err != nil {
		return Overview{}, fmt.Errorf("failed to record response: %w", err)
	}

	responses, err := s.store.FindResponses(ctx, sessionID)
	if err != nil {
		return Overview{}, fmt.Errorf("failed to load responses for session %s: %w", sessionID, err)
	}
	return Overview{Session: sess, Options: tallyVotes(options, responses)}, nil
}

// Confirm tallies yes votes, picks the winning option and atomically moves
// the session to confirmed. Ties resolve to the earliest candidate time.
func (s *Service) Confirm(ctx context.Context, chatID int64, sessionID string, requesterID int64) (ConfirmOutcome, error) {
	sess, err := s.loadOwnedSession(ctx, chatID, sessionID, requesterID)
	if err != nil {
		return ConfirmOutcome{}, err
	}
	if !sess.IsActive() {
		return ConfirmOutcome{}, &StateError{Message: fmt.Sprintf("session is %s, only active sessions can be confirmed", sess.Status)}
	}

	options, err := s.store.FindOptions(ctx, sessionID)
	if err != nil {
		return ConfirmOutcome{}, fmt.Errorf("failed to load options for session %s: %w", sessionID, err)
	}
	responses, err := s.store.FindResponses(ctx, sessionID)
	if err != nil {
		return ConfirmOutcome{}, fmt.Errorf("failed to load responses for session %s: %w", sessionID, err)
	}

	yesByOption := make(map[string]int)
	yesVoters := make(map[string][]string)
	for _, response := range responses {
		if response.Value != models.ResponseYes {
			continue
		}
		yesByOption[response.OptionID]++
		if response.Username != "" {
			yesVoters[response.OptionID] = append(yesVoters[response.OptionID], response.Username)
		}
	}

	winnerIdx := -1
	maxYes := 0
	for i, option := range options {
		if count := yesByOption[option.ID]; count > maxYes {
			maxYes = count
			winnerIdx = i
		}
	}
	if winnerIdx < 0 {
		return ConfirmOutcome{}, &NoWinnerError{SessionID: sessionID}
	}
	winner := options[winnerIdx]

	if err := s.store.ConfirmSessionOption(ctx, sessionID, winner.ID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ConfirmOutcome{}, &StateError{Message: "session was already confirmed or cancelled"}
		}
		if errors.Is(err, storage.ErrNotFound) {
			return ConfirmOutcome{}, &NotFoundError{Resource: "session", ID: sessionID}
		}
		return ConfirmOutcome{}, fmt.Errorf("failed to confirm session %s: %w", sessionID, err)
	}

	sess.Status = models.SessionStatusConfirmed
	winner.Confirmed = true
	s.logger.Info("Confirmed session %s with option %s (%d yes votes)", sessionID, winner.ID, maxYes)
	return ConfirmOutcome{
		Session:      sess,
		Winner:       winner,
		YesVotes:     maxYes,
		Participants: yesVoters[winner.ID],
	}, nil
}

// Cancel marks a session cancelled. Confirmed sessions may still be
// cancelled; cancelling twice fails.
func (s *Service) Cancel(ctx context.Context, chatID int64, sessionID string, requesterID int64) (models.Session, error) {
	sess, err := s.loadOwnedSession(ctx, chatID, sessionID, requesterID)
	if err != nil {
		return models.Session{}, err
	}
	if sess.Status == models.SessionStatusCancelled {
		return models.Session{}, &StateError{Message: "session is already cancelled"}
	}

	if err := s.store.CancelSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, &NotFoundError{Resource: "session", ID: sessionID}
		}
		return models.Session{}, fmt.Errorf("failed to cancel session %s: %w", sessionID, err)
	}
	sess.Status = models.SessionStatusCancelled
	s.logger.Info("Cancelled session %s", sessionID)
	return sess, nil
}

// SetDeadline parses a deadline phrase and stores it when it lies in the
// future. It returns the session with the new deadline applied.
func (s *Service) SetDeadline(ctx context.Context, chatID int64, sessionID string, requesterID int64, deadlineText string) (models.Session, error) {
	sess, err := s.loadOwnedSession(ctx, chatID, sessionID, requesterID)
	if err != nil {
		return models.Session{}, err
	}

	deadline := datetime.Parse(deadlineText)
	if !deadline.After(s.now()) {
		return models.Session{}, &ValidationError{Message: "deadline must be in the future"}
	}

	if err := s.store.SetDeadline(ctx, sessionID, deadline); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, &NotFoundError{Resource: "session", ID: sessionID}
		}
		return models.Session{}, fmt.Errorf("failed to set deadline for session %s: %w", sessionID, err)
	}
	sess.Deadline = &deadline
	return sess, nil
}

// List returns the chat's active and confirmed sessions with vote tallies,
// newest first.
func (s *Service) List(ctx context.Context, chatID int64) ([]Overview, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	group, err := s.store.FindGroupByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load group for chat %d: %w", chatID, err)
	}

	sessions, err := s.store.FindSessionsByGroup(ctx, group.ID, models.SessionStatusActive, models.SessionStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for chat %d: %w", chatID, err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	sessionIDs := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		sessionIDs = append(sessionIDs, sess.ID)
	}

	// Tally lookups are secondary reads: when they fail or time out the
	// list still renders, just without counts.
	options, err := s.store.BatchFindOptions(ctx, sessionIDs)
	if err != nil {
		s.logger.Warn("Listing sessions without options for chat %d: %v", chatID, err)
		options = nil
	}
	responses, err := s.store.BatchFindResponses(ctx, sessionIDs)
	if err != nil {
		s.logger.Warn("Listing sessions without vote counts for chat %d: %v", chatID, err)
		responses = nil
	}

	optionsBySession := make(map[string][]models.SessionOption, len(sessions))
	for _, option := range options {
		optionsBySession[option.SessionID] = append(optionsBySession[option.SessionID], option)
	}
	responsesBySession := make(map[string][]models.Response, len(sessions))
	for _, response := range responses {
		responsesBySession[response.SessionID] = append(responsesBySession[response.SessionID], response)
	}

	overviews := make([]Overview, 0, len(sessions))
	for _, sess := range sessions {
		overviews = append(overviews, Overview{
			Session: sess,
			Options: tallyVotes(optionsBySession[sess.ID], responsesBySession[sess.ID]),
		})
	}
	return overviews, nil
}

// Stats aggregates the chat's scheduling activity.
func (s *Service) Stats(ctx context.Context, chatID int64) (storage.GroupStats, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	group, err := s.store.FindGroupByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.GroupStats{}, nil
		}
		return storage.GroupStats{}, fmt.Errorf("failed to load group for chat %d: %w", chatID, err)
	}

	stats, err := s.store.GroupStats(ctx, group.ID)
	if err != nil {
		return storage.GroupStats{}, fmt.Errorf("failed to load stats for chat %d: %w", chatID, err)
	}
	return stats, nil
}

// GroupInfo returns the chat's group record, creating it on first use.
func (s *Service) GroupInfo(ctx context.Context, chatID int64) (models.Group, error) {
	group, err := s.store.EnsureGroup(ctx, chatID)
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to load group for chat %d: %w", chatID, err)
	}
	return group, nil
}

// OptionByIndex resolves an option by its position in the time-ordered
// option list. Vote buttons carry the position because Telegram callback
// payloads are too small for two UUIDs.
func (s *Service) OptionByIndex(ctx context.Context, sessionID string, index int) (models.SessionOption, error) {
	options, err := s.store.FindOptions(ctx, sessionID)
	if err != nil {
		return models.SessionOption{}, fmt.Errorf("failed to load options for session %s: %w", sessionID, err)
	}
	if index < 0 || index >= len(options) {
		return models.SessionOption{}, &NotFoundError{Resource: "option", ID: strconv.Itoa(index)}
	}
	return options[index], nil
}

// AttachMessage records the chat message that carries a session's voting card.
func (s *Service) AttachMessage(ctx context.Context, sessionID string, messageID int) error {
	if err := s.store.SetSessionMessageID(ctx, sessionID, messageID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Resource: "session", ID: sessionID}
		}
		return fmt.Errorf("failed to attach message to session %s: %w", sessionID, err)
	}
	return nil
}

// loadOwnedSession resolves a session inside the calling chat's group and
// enforces the creator-only rule shared by all mutating commands.
func (s *Service) loadOwnedSession(ctx context.Context, chatID int64, sessionID string, requesterID int64) (models.Session, error) {
	group, err := s.store.FindGroupByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, &NotFoundError{Resource: "session", ID: sessionID}
		}
		return models.Session{}, fmt.Errorf("failed to load group for chat %d: %w", chatID, err)
	}

	sess, err := s.store.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, &NotFoundError{Resource: "session", ID: sessionID}
		}
		return models.Session{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if sess.GroupID != group.ID {
		return models.Session{}, &NotFoundError{Resource: "session", ID: sessionID}
	}
	if sess.CreatedBy != requesterID {
		return models.Session{}, &PermissionError{Message: "only the session creator can change it"}
	}
	return sess, nil
}

// ValidateTitle reports whether a title is usable for a new session. It lets
// multi-step prompts reject a bad title before asking for time options.
func ValidateTitle(title string) error {
	_, err := validateTitle(title)
	return err
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if strings.ContainsAny(title, "\n\r") {
		return "", &ValidationError{Message: "title cannot contain line breaks"}
	}
	if length := utf8.RuneCountInString(title); length < minTitleLength || length > maxTitleLength {
		return "", &ValidationError{Message: fmt.Sprintf("title must be between %d and %d characters", minTitleLength, maxTitleLength)}
	}
	return title, nil
}

func splitOptionTexts(optionsText string) ([]string, error) {
	parts := strings.Split(optionsText, ",")
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &ValidationError{Message: "time options cannot be empty"}
		}
		if utf8.RuneCountInString(part) > maxOptionLength {
			return nil, &ValidationError{Message: fmt.Sprintf("each time option must be at most %d characters", maxOptionLength)}
		}
		texts = append(texts, part)
	}
	if len(texts) > maxOptionCount {
		return nil, &ValidationError{Message: fmt.Sprintf("at most %d time options are allowed", maxOptionCount)}
	}
	return texts, nil
}

// tallyVotes pairs options with per-value vote counts, preserving option order.
func tallyVotes(options []models.SessionOption, responses []models.Response) []OptionTally {
	tallies := make([]OptionTally, 0, len(options))
	byOption := make(map[string]*OptionTally, len(options))
	for _, option := range options {
		tallies = append(tallies, OptionTally{Option: option})
		byOption[option.ID] = &tallies[len(tallies)-1]
	}
	for _, response := range responses {
		tally, ok := byOption[response.OptionID]
		if !ok {
			continue
		}
		switch response.Value {
		case models.ResponseYes:
			tally.Yes++
		case models.ResponseNo:
			tally.No++
		case models.ResponseMaybe:
			tally.Maybe++
		}
	}
	return tallies
}
