package reminder

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/gamenight/pkg/logger"
	"github.com/korjavin/gamenight/pkg/messages"
	"github.com/korjavin/gamenight/pkg/models"
	"github.com/korjavin/gamenight/pkg/storage"
)

// Notifier posts reminder messages to a group chat.
type Notifier interface {
	SendMarkdown(chatID int64, text string) (tgbotapi.Message, error)
}

// offsets lists the reminder steps, furthest out first.
var offsets = []struct {
	days   int
	header string
}{
	{14, "2 Week Reminder"},
	{7, "1 Week Reminder"},
	{3, "3 Day Reminder"},
}

// dueTolerance is how far a tick may land from the exact offset and still
// count as due. Sent markers keep a later tick inside the window from
// repeating the send.
const dueTolerance = time.Hour

// Service periodically sends reminders for confirmed sessions
type Service struct {
	store    storage.Store
	notifier Notifier
	interval time.Duration
	logger   *logger.Logger
	stopChan chan struct{}
	now      func() time.Time
}

// New creates a new reminder service
func New(store storage.Store, notifier Notifier, interval time.Duration) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		interval: interval,
		logger:   logger.New("reminder"),
		stopChan: make(chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start starts the reminder loop
func (s *Service) Start() {
	s.logger.Info("Starting reminder scheduler, sweep interval %s", s.interval)
	go s.run()
}

// Stop stops the reminder loop
func (s *Service) Stop() {
	s.logger.Info("Stopping reminder scheduler")
	close(s.stopChan)
}

func (s *Service) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(context.Background()); err != nil {
				s.logger.Error("Reminder sweep failed: %v", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// RunOnce performs one reminder sweep over all confirmed sessions.
// A failure on one session never blocks the others.
func (s *Service) RunOnce(ctx context.Context) error {
	sessions, err := s.store.FindSessionsByStatus(ctx, models.SessionStatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to list confirmed sessions: %w", err)
	}

	for _, sess := range sessions {
		if err := s.processSession(ctx, sess); err != nil {
			s.logger.Error("Skipping reminders for session %s: %v", sess.ID, err)
		}
	}
	return nil
}

func (s *Service) processSession(ctx context.Context, sess models.Session) error {
	options, err := s.store.FindOptions(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}

	var confirmed *models.SessionOption
	for i := range options {
		if options[i].Confirmed {
			confirmed = &options[i]
			break
		}
	}
	if confirmed == nil {
		return fmt.Errorf("confirmed session has no confirmed option")
	}

	now := s.now()
	for _, offset := range offsets {
		dueAt := confirmed.Datetime.Add(-time.Duration(offset.days) * 24 * time.Hour)
		distance := now.Sub(dueAt)
		if distance < -dueTolerance || distance > dueTolerance {
			continue
		}
		if err := s.dispatch(ctx, sess, *confirmed, offset.days, offset.header); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, sess models.Session, option models.SessionOption, days int, header string) error {
	alreadySent, err := s.store.ReminderAlreadySent(ctx, sess.ID, days)
	if err != nil {
		return fmt.Errorf("failed to check reminder marker: %w", err)
	}
	if alreadySent {
		return nil
	}

	group, err := s.store.FindGroupByID(ctx, sess.GroupID)
	if err != nil {
		return fmt.Errorf("failed to load group %d: %w", sess.GroupID, err)
	}

	participants, err := s.yesVoters(ctx, sess.ID, option.ID)
	if err != nil {
		return err
	}

	text := messages.Reminder(header, sess, option, participants)
	if _, err := s.notifier.SendMarkdown(group.TelegramChatID, text); err != nil {
		// No marker on failure, so the next sweep retries the send.
		return fmt.Errorf("failed to send %d-day reminder: %w", days, err)
	}

	recorded, err := s.store.RecordReminderSent(ctx, sess.ID, days)
	if err != nil {
		return fmt.Errorf("failed to record reminder marker: %w", err)
	}
	if !recorded {
		s.logger.Warn("Reminder marker for session %s at %d days already existed", sess.ID, days)
	}
	s.logger.Info("Sent %d-day reminder for session %s", days, sess.ID)
	return nil
}

func (s *Service) yesVoters(ctx context.Context, sessionID, optionID string) ([]string, error) {
	responses, err := s.store.FindResponses(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}

	var names []string
	for _, response := range responses {
		if response.OptionID != optionID || response.Value != models.ResponseYes {
			continue
		}
		if response.Username == "" {
			continue
		}
		names = append(names, response.Username)
	}
	return names, nil
}
