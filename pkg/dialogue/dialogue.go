// Package dialogue tracks multi-step command conversations, such as a
// schedule prompt waiting for a title and then for time options. Entries
// live in BadgerDB so an in-flight conversation survives a restart, and
// they expire so an abandoned prompt cannot swallow later messages.
package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/korjavin/gamenight/pkg/logger"
)

// Step names the reply a conversation is waiting for.
type Step string

const (
	// StepTitle means the next message is taken as the session title.
	StepTitle Step = "awaiting_title"
	// StepOptions means the next message is taken as the time options.
	StepOptions Step = "awaiting_options"
)

// TTL bounds how long an unanswered prompt stays active.
const TTL = 10 * time.Minute

// Pending is one user's in-progress schedule conversation.
type Pending struct {
	Step  Step   `json:"step"`
	Title string `json:"title,omitempty"`
}

// Store persists in-progress conversations in BadgerDB.
type Store struct {
	db     *badger.DB
	logger *logger.Logger
}

// New opens the dialogue store under dataDir.
func New(dataDir string) (*Store, error) {
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	opts := badger.DefaultOptions(absPath)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	log := logger.New("dialogue")
	log.Info("Dialogue store opened at %s", absPath)
	return &Store{db: db, logger: log}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Set stores the pending conversation for a user in a chat.
func (s *Store) Set(chatID, userID int64, pending Pending) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal dialogue state: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(chatID, userID), data).WithTTL(TTL)
		return txn.SetEntry(entry)
	})
}

// Get loads the pending conversation for a user. The second return is false
// when the user has none, or when it already expired.
func (s *Store) Get(chatID, userID int64) (Pending, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(chatID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Pending{}, false, nil
	}
	if err != nil {
		return Pending{}, false, fmt.Errorf("failed to get dialogue state: %w", err)
	}

	var pending Pending
	if err := json.Unmarshal(data, &pending); err != nil {
		return Pending{}, false, fmt.Errorf("failed to unmarshal dialogue state: %w", err)
	}
	return pending, true, nil
}

// Clear removes the pending conversation for a user
func (s *Store) Clear(chatID, userID int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(chatID, userID))
	})
}

// RunGC runs garbage collection on the database
func (s *Store) RunGC() error {
	return s.db.RunValueLogGC(0.5)
}

// StartGCRoutine starts a goroutine that periodically runs garbage collection
func (s *Store) StartGCRoutine(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			err := s.RunGC()
			if err != nil {
				// Only log when GC actually did something
				if err != badger.ErrNoRewrite {
					s.logger.Error("BadgerDB GC error: %v", err)
				}
			}
		}
	}()
	s.logger.Info("Started BadgerDB GC routine with interval %v", interval)
}

func key(chatID, userID int64) []byte {
	return []byte(fmt.Sprintf("dialogue:%d:%d", chatID, userID))
}
