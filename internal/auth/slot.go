package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrCorruptSlot is returned by Get when the stored credential cannot be parsed
var ErrCorruptSlot = errors.New("corrupt credential")

// Slot is a single persisted key-value slot holding the credential
type Slot interface {
	Get() (string, bool, error)
	Set(value string) error
	Delete() error
}

type slotFile struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// FileSlot keeps the credential in a JSON file readable only by the owner
type FileSlot struct {
	path string
}

// NewFileSlot returns a slot stored at path
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// Path returns the backing file path
func (s *FileSlot) Path() string {
	return s.path
}

func (s *FileSlot) Get() (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read credential: %w", err)
	}

	var f slotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", false, fmt.Errorf("failed to parse credential file: %w: %w", ErrCorruptSlot, err)
	}
	if f.Token == "" {
		return "", false, nil
	}
	return f.Token, true, nil
}

// Set writes to a temp file and renames it over the old one so readers
// never see a partial token.
func (s *FileSlot) Set(value string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := json.MarshalIndent(slotFile{Token: value, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("failed to create temp credential: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (s *FileSlot) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}

// MemorySlot is a process-local slot
type MemorySlot struct {
	mu    sync.Mutex
	value string
}

func (s *MemorySlot) Get() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.value != "", nil
}

func (s *MemorySlot) Set(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	return nil
}

func (s *MemorySlot) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	return nil
}
