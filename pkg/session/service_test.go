package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/korjavin/gamenight/pkg/models"
	"github.com/korjavin/gamenight/pkg/storage"
	"github.com/korjavin/gamenight/pkg/storage/sqlite"
)

const (
	testChatID      = int64(-1000000100)
	otherChatID     = int64(-1000000200)
	creatorID       = int64(11)
	otherUserID     = int64(22)
	thirdUserID     = int64(33)
	testOptionsText = "Friday 19:00, Saturday 14:30"
)

func TestScheduleCreatesSessionWithParsedOptions(t *testing.T) {
	svc, store := newTestService(t)

	sess, options, err := svc.Schedule(context.Background(), testChatID, creatorID, "  Game Night  ", testOptionsText)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if sess.Title != "Game Night" {
		t.Fatalf("expected trimmed title, got %q", sess.Title)
	}
	if sess.Status != models.SessionStatusActive {
		t.Fatalf("expected active session, got %q", sess.Status)
	}
	if sess.CreatedBy != creatorID {
		t.Fatalf("unexpected creator: %d", sess.CreatedBy)
	}
	if len(options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(options))
	}

	clockTimes := map[string]bool{}
	for i, option := range options {
		if option.Datetime.Before(time.Now().UTC().Add(-time.Minute)) {
			t.Fatalf("option %d is in the past: %v", i, option.Datetime)
		}
		if option.DurationMinutes != models.DefaultDurationMinutes {
			t.Fatalf("expected default duration, got %d", option.DurationMinutes)
		}
		clockTimes[option.Datetime.Format("15:04")] = true
	}
	if !clockTimes["19:00"] || !clockTimes["14:30"] {
		t.Fatalf("expected 19:00 and 14:30 options, got %v", clockTimes)
	}
	for i := 1; i < len(options); i++ {
		if options[i].Datetime.Before(options[i-1].Datetime) {
			t.Fatal("expected options sorted by time")
		}
	}

	stored, err := store.FindOptions(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find options: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored options, got %d", len(stored))
	}
}

func TestScheduleRejectsBadTitles(t *testing.T) {
	svc, store := newTestService(t)

	titles := []string{
		"ab",
		strings.Repeat("x", 101),
		"line\nbreak",
		"carriage\rreturn",
		"   ",
	}
	for _, title := range titles {
		_, _, err := svc.Schedule(context.Background(), testChatID, creatorID, title, testOptionsText)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("title %q: expected validation error, got %v", title, err)
		}
	}

	// Validation failures must not touch storage, not even group creation.
	if _, err := store.FindGroupByChatID(context.Background(), testChatID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no group after rejected schedule, got %v", err)
	}
}

func TestScheduleRejectsBadOptionLists(t *testing.T) {
	svc, _ := newTestService(t)

	optionLists := []string{
		"",
		"Friday,,Saturday",
		strings.Repeat("Friday 19:00,", 10) + "Friday 20:00",
		strings.Repeat("x", 51),
	}
	for _, optionsText := range optionLists {
		_, _, err := svc.Schedule(context.Background(), testChatID, creatorID, "Game Night", optionsText)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("options %q: expected validation error, got %v", optionsText, err)
		}
	}
}

func TestRespondReplacesPriorVote(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)
	target := options[0].ID

	if _, err := svc.Respond(context.Background(), sess.ID, target, otherUserID, "ada", "yes"); err != nil {
		t.Fatalf("respond yes: %v", err)
	}
	overview, err := svc.Respond(context.Background(), sess.ID, target, otherUserID, "ada", "no")
	if err != nil {
		t.Fatalf("respond no: %v", err)
	}

	tally := findTally(t, overview, target)
	if tally.Yes != 0 || tally.No != 1 {
		t.Fatalf("expected replaced vote, got yes=%d no=%d", tally.Yes, tally.No)
	}

	overview, err = svc.Respond(context.Background(), sess.ID, target, thirdUserID, "grace", "YES")
	if err != nil {
		t.Fatalf("respond second user: %v", err)
	}
	tally = findTally(t, overview, target)
	if tally.Yes != 1 || tally.No != 1 {
		t.Fatalf("expected one yes and one no, got yes=%d no=%d", tally.Yes, tally.No)
	}
}

func TestRespondRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	_, err := svc.Respond(context.Background(), sess.ID, options[0].ID, otherUserID, "ada", "perhaps")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Respond(context.Background(), sess.ID, "missing-option", otherUserID, "ada", "yes")
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected not found error, got %v", err)
	}

	_, err = svc.Respond(context.Background(), "missing-session", options[0].ID, otherUserID, "ada", "yes")
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRespondRejectsClosedSession(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	if _, err := svc.Cancel(context.Background(), testChatID, sess.ID, creatorID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := svc.Respond(context.Background(), sess.ID, options[0].ID, otherUserID, "ada", "yes")
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestConfirmPicksOptionWithMostYesVotes(t *testing.T) {
	svc, store := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	votes := []struct {
		userID   int64
		username string
		option   string
		value    string
	}{
		{creatorID, "creator", options[0].ID, "yes"},
		{otherUserID, "ada", options[0].ID, "yes"},
		{thirdUserID, "grace", options[0].ID, "no"},
	}
	for _, vote := range votes {
		if _, err := svc.Respond(context.Background(), sess.ID, vote.option, vote.userID, vote.username, vote.value); err != nil {
			t.Fatalf("respond: %v", err)
		}
	}

	outcome, err := svc.Confirm(context.Background(), testChatID, sess.ID, creatorID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if outcome.Winner.ID != options[0].ID {
		t.Fatalf("expected first option to win, got %s", outcome.Winner.ID)
	}
	if outcome.YesVotes != 2 {
		t.Fatalf("expected 2 yes votes, got %d", outcome.YesVotes)
	}
	if outcome.Session.Status != models.SessionStatusConfirmed {
		t.Fatalf("expected confirmed session, got %q", outcome.Session.Status)
	}
	if len(outcome.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %v", outcome.Participants)
	}

	stored, err := store.FindSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if stored.Status != models.SessionStatusConfirmed {
		t.Fatalf("expected stored session confirmed, got %q", stored.Status)
	}
	storedOptions, err := store.FindOptions(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find options: %v", err)
	}
	for _, option := range storedOptions {
		if option.ID == outcome.Winner.ID && !option.Confirmed {
			t.Fatal("expected winner to be flagged confirmed")
		}
		if option.ID != outcome.Winner.ID && option.Confirmed {
			t.Fatal("expected losers to stay unconfirmed")
		}
	}
}

func TestConfirmTieKeepsEarliestOption(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	for _, vote := range []struct {
		userID int64
		option string
	}{
		{creatorID, options[0].ID},
		{otherUserID, options[0].ID},
		{thirdUserID, options[1].ID},
		{int64(44), options[1].ID},
	} {
		if _, err := svc.Respond(context.Background(), sess.ID, vote.option, vote.userID, "player", "yes"); err != nil {
			t.Fatalf("respond: %v", err)
		}
	}

	outcome, err := svc.Confirm(context.Background(), testChatID, sess.ID, creatorID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if outcome.Winner.ID != options[0].ID {
		t.Fatalf("expected tie to resolve to first option, got %s", outcome.Winner.ID)
	}
	if outcome.YesVotes != 2 {
		t.Fatalf("expected 2 yes votes, got %d", outcome.YesVotes)
	}
}

func TestConfirmRequiresYesVotes(t *testing.T) {
	svc, store := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	if _, err := svc.Respond(context.Background(), sess.ID, options[0].ID, otherUserID, "ada", "maybe"); err != nil {
		t.Fatalf("respond: %v", err)
	}

	_, err := svc.Confirm(context.Background(), testChatID, sess.ID, creatorID)
	var noWinnerErr *NoWinnerError
	if !errors.As(err, &noWinnerErr) {
		t.Fatalf("expected no winner error, got %v", err)
	}

	stored, err := store.FindSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if stored.Status != models.SessionStatusActive {
		t.Fatalf("expected session to stay active, got %q", stored.Status)
	}
}

func TestConfirmTwiceFailsWithStateError(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	if _, err := svc.Respond(context.Background(), sess.ID, options[0].ID, otherUserID, "ada", "yes"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), testChatID, sess.ID, creatorID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	_, err := svc.Confirm(context.Background(), testChatID, sess.ID, creatorID)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestConfirmRequiresCreator(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	if _, err := svc.Respond(context.Background(), sess.ID, options[0].ID, otherUserID, "ada", "yes"); err != nil {
		t.Fatalf("respond: %v", err)
	}

	_, err := svc.Confirm(context.Background(), testChatID, sess.ID, otherUserID)
	var permissionErr *PermissionError
	if !errors.As(err, &permissionErr) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestConfirmScopedToChat(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	// Second chat gets its own group.
	if _, _, err := svc.Schedule(context.Background(), otherChatID, creatorID, "Other Night", testOptionsText); err != nil {
		t.Fatalf("schedule other chat: %v", err)
	}
	if _, err := svc.Respond(context.Background(), sess.ID, options[0].ID, otherUserID, "ada", "yes"); err != nil {
		t.Fatalf("respond: %v", err)
	}

	_, err := svc.Confirm(context.Background(), otherChatID, sess.ID, creatorID)
	var notFoundErr *NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCancelLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	if _, err := svc.Respond(context.Background(), sess.ID, options[0].ID, otherUserID, "ada", "yes"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), testChatID, sess.ID, creatorID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// A confirmed session may still be cancelled.
	cancelled, err := svc.Cancel(context.Background(), testChatID, sess.ID, creatorID)
	if err != nil {
		t.Fatalf("cancel confirmed session: %v", err)
	}
	if cancelled.Status != models.SessionStatusCancelled {
		t.Fatalf("expected cancelled status, got %q", cancelled.Status)
	}

	_, err = svc.Cancel(context.Background(), testChatID, sess.ID, creatorID)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected state error for double cancel, got %v", err)
	}
}

func TestSetDeadlineRejectsPastBeforeWriting(t *testing.T) {
	svc, store := newTestService(t)
	sess, _ := scheduleTestSession(t, svc)

	_, err := svc.SetDeadline(context.Background(), testChatID, sess.ID, creatorID, "15.08.20 19:00")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	stored, err := store.FindSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if stored.Deadline != nil {
		t.Fatalf("expected no deadline written, got %v", stored.Deadline)
	}
}

func TestSetDeadlineStoresFutureTime(t *testing.T) {
	svc, store := newTestService(t)
	sess, _ := scheduleTestSession(t, svc)

	updated, err := svc.SetDeadline(context.Background(), testChatID, sess.ID, creatorID, "15.08.2030 19:00")
	if err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	want := time.Date(2030, 8, 15, 19, 0, 0, 0, time.UTC)
	if updated.Deadline == nil || !updated.Deadline.Equal(want) {
		t.Fatalf("expected %v, got %v", want, updated.Deadline)
	}
	if updated.Title != sess.Title {
		t.Fatalf("expected session returned with title %q, got %q", sess.Title, updated.Title)
	}

	stored, err := store.FindSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if stored.Deadline == nil || !stored.Deadline.Equal(want) {
		t.Fatalf("unexpected stored deadline: %v", stored.Deadline)
	}
}

func TestListReturnsTalliesNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, firstOptions, err := svc.Schedule(context.Background(), testChatID, creatorID, "First Night", testOptionsText)
	if err != nil {
		t.Fatalf("schedule first: %v", err)
	}
	second, _, err := svc.Schedule(context.Background(), testChatID, creatorID, "Second Night", testOptionsText)
	if err != nil {
		t.Fatalf("schedule second: %v", err)
	}
	cancelledSess, _, err := svc.Schedule(context.Background(), testChatID, creatorID, "Called Off", testOptionsText)
	if err != nil {
		t.Fatalf("schedule cancelled: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), testChatID, cancelledSess.ID, creatorID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := svc.Respond(context.Background(), first.ID, firstOptions[0].ID, otherUserID, "ada", "yes"); err != nil {
		t.Fatalf("respond: %v", err)
	}

	overviews, err := svc.List(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(overviews) != 2 {
		t.Fatalf("expected 2 overviews, got %d", len(overviews))
	}
	if overviews[0].Session.ID != second.ID || overviews[1].Session.ID != first.ID {
		t.Fatalf("unexpected order: %s, %s", overviews[0].Session.ID, overviews[1].Session.ID)
	}

	tally := findTally(t, overviews[1], firstOptions[0].ID)
	if tally.Yes != 1 {
		t.Fatalf("expected 1 yes vote, got %d", tally.Yes)
	}
}

func TestListEmptyChat(t *testing.T) {
	svc, _ := newTestService(t)

	overviews, err := svc.List(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(overviews) != 0 {
		t.Fatalf("expected no overviews, got %d", len(overviews))
	}
}

func TestListDegradesWhenTalliesFail(t *testing.T) {
	svc, store := newTestService(t)
	sess, _ := scheduleTestSession(t, svc)

	flaky := &flakyStore{Store: store, failBatch: true}
	degraded := New(flaky)

	overviews, err := degraded.List(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(overviews) != 1 || overviews[0].Session.ID != sess.ID {
		t.Fatalf("expected degraded list to keep sessions, got %+v", overviews)
	}
	if len(overviews[0].Options) != 0 {
		t.Fatalf("expected no tallies in degraded list, got %d", len(overviews[0].Options))
	}
}

func TestStatsAggregatesChatActivity(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	if _, err := svc.Respond(context.Background(), sess.ID, options[0].ID, otherUserID, "ada", "yes"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if _, err := svc.Respond(context.Background(), sess.ID, options[1].ID, thirdUserID, "grace", "maybe"); err != nil {
		t.Fatalf("respond: %v", err)
	}

	stats, err := svc.Stats(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalSessions != 1 || stats.ActiveSessions != 1 {
		t.Fatalf("unexpected session counts: %+v", stats)
	}
	if stats.TotalResponses != 2 || stats.YesResponses != 1 || stats.MaybeResponses != 1 {
		t.Fatalf("unexpected response counts: %+v", stats)
	}

	empty, err := svc.Stats(context.Background(), otherChatID)
	if err != nil {
		t.Fatalf("stats empty chat: %v", err)
	}
	if empty.TotalSessions != 0 {
		t.Fatalf("expected empty stats, got %+v", empty)
	}
}

func TestGroupInfoCreatesGroupWithDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	group, err := svc.GroupInfo(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("group info: %v", err)
	}
	if group.TelegramChatID != testChatID {
		t.Fatalf("unexpected chat id %d", group.TelegramChatID)
	}
	if group.Timezone != models.DefaultTimezone || group.DefaultDuration != models.DefaultDurationMinutes {
		t.Fatalf("unexpected defaults: %+v", group)
	}

	again, err := svc.GroupInfo(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("group info again: %v", err)
	}
	if again.ID != group.ID {
		t.Fatalf("expected stable group id, got %d and %d", group.ID, again.ID)
	}
}

func TestOptionByIndexFollowsTimeOrder(t *testing.T) {
	svc, _ := newTestService(t)
	sess, options := scheduleTestSession(t, svc)

	first, err := svc.OptionByIndex(context.Background(), sess.ID, 0)
	if err != nil {
		t.Fatalf("option 0: %v", err)
	}
	if first.ID != options[0].ID {
		t.Fatalf("index 0 resolved to %s, want %s", first.ID, options[0].ID)
	}

	second, err := svc.OptionByIndex(context.Background(), sess.ID, 1)
	if err != nil {
		t.Fatalf("option 1: %v", err)
	}
	if second.ID != options[1].ID {
		t.Fatalf("index 1 resolved to %s, want %s", second.ID, options[1].ID)
	}

	var notFoundErr *NotFoundError
	if _, err := svc.OptionByIndex(context.Background(), sess.ID, 2); !errors.As(err, &notFoundErr) {
		t.Fatalf("expected not-found for index 2, got %v", err)
	}
	if _, err := svc.OptionByIndex(context.Background(), sess.ID, -1); !errors.As(err, &notFoundErr) {
		t.Fatalf("expected not-found for negative index, got %v", err)
	}
}

func TestAttachMessage(t *testing.T) {
	svc, store := newTestService(t)
	sess, _ := scheduleTestSession(t, svc)

	if err := svc.AttachMessage(context.Background(), sess.ID, 42); err != nil {
		t.Fatalf("attach message: %v", err)
	}
	stored, err := store.FindSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if stored.MessageID == nil || *stored.MessageID != 42 {
		t.Fatalf("unexpected message id: %v", stored.MessageID)
	}

	var notFoundErr *NotFoundError
	if err := svc.AttachMessage(context.Background(), "missing", 1); !errors.As(err, &notFoundErr) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

type flakyStore struct {
	storage.Store
	failBatch bool
}

func (f *flakyStore) BatchFindOptions(ctx context.Context, sessionIDs []string) ([]models.SessionOption, error) {
	if f.failBatch {
		return nil, errors.New("simulated batch failure")
	}
	return f.Store.BatchFindOptions(ctx, sessionIDs)
}

func (f *flakyStore) BatchFindResponses(ctx context.Context, sessionIDs []string) ([]models.Response, error) {
	if f.failBatch {
		return nil, errors.New("simulated batch failure")
	}
	return f.Store.BatchFindResponses(ctx, sessionIDs)
}

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "scheduler.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return New(store), store
}

func scheduleTestSession(t *testing.T, svc *Service) (models.Session, []models.SessionOption) {
	t.Helper()
	sess, options, err := svc.Schedule(context.Background(), testChatID, creatorID, "Game Night", testOptionsText)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(options))
	}
	return sess, options
}

func findTally(t *testing.T, overview Overview, optionID string) OptionTally {
	t.Helper()
	for _, tally := range overview.Options {
		if tally.Option.ID == optionID {
			return tally
		}
	}
	t.Fatalf("option %s not in overview", optionID)
	return OptionTally{}
}
