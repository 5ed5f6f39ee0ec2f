package auth

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/existflow/slotflow/internal/config"
	"github.com/existflow/slotflow/internal/logger"
)

// Change is published to subscribers whenever the credential is replaced or removed
type Change struct {
	Present bool
}

// Store holds the process-wide credential. Writers replace the slot
// content as a whole under the lock.
type Store struct {
	slot Slot

	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

// NewStore creates a credential store on top of slot
func NewStore(slot Slot) *Store {
	return &Store{
		slot: slot,
		subs: make(map[int]chan Change),
	}
}

// DefaultPath returns ~/.slotflow/credential.json
func DefaultPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credential.json"), nil
}

// OpenDefault opens the store at the default path
func OpenDefault() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return NewStore(NewFileSlot(path)), nil
}

// Save replaces the stored credential
func (s *Store) Save(token string) error {
	if token == "" {
		return errors.New("refusing to store an empty credential")
	}

	s.mu.Lock()
	err := s.slot.Set(token)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	logger.Debug("Credential stored")
	s.publish(Change{Present: true})
	return nil
}

// Read returns the stored credential if there is one
func (s *Store) Read() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok, err := s.slot.Get()
	if errors.Is(err, ErrCorruptSlot) {
		logger.Warn("Discarding corrupt credential", logger.F("error", err))
		if err := s.slot.Delete(); err != nil {
			logger.Error("Failed to remove credential", logger.F("error", err))
		}
		return "", false
	}
	if err != nil {
		logger.Warn("Failed to read credential", logger.F("error", err))
		return "", false
	}
	return token, ok
}

// Clear removes the stored credential
func (s *Store) Clear() error {
	s.mu.Lock()
	_, had, _ := s.slot.Get()
	err := s.slot.Delete()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if had {
		logger.Debug("Credential cleared")
		s.publish(Change{Present: false})
	}
	return nil
}

// ClearIf removes the stored credential only while it still equals token.
// It reports whether anything was removed.
func (s *Store) ClearIf(token string) (bool, error) {
	s.mu.Lock()
	current, ok, _ := s.slot.Get()
	if !ok || current != token {
		s.mu.Unlock()
		return false, nil
	}
	err := s.slot.Delete()
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	logger.Debug("Credential cleared")
	s.publish(Change{Present: false})
	return true, nil
}

// CurrentUser decodes the stored credential. Any decode failure is
// treated as logged out and the broken credential is removed.
func (s *Store) CurrentUser() (Identity, bool) {
	token, ok := s.Read()
	if !ok {
		return Identity{}, false
	}

	id, err := Decode(token)
	if err != nil {
		logger.Warn("Discarding undecodable credential", logger.F("error", err))
		if _, err := s.ClearIf(token); err != nil {
			logger.Error("Failed to remove credential", logger.F("error", err))
		}
		return Identity{}, false
	}
	return id, true
}

// Subscribe returns a channel of credential changes and a cancel func.
// Slow subscribers miss intermediate changes, never the latest.
func (s *Store) Subscribe() (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan Change, 1)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) publish(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
			// Replace the stale pending change with the latest one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c:
			default:
			}
		}
	}
}
