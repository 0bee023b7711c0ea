// Package session persists conversation transcripts under ~/.ask/sessions.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avi1989/ask/internal/config"
	"github.com/avi1989/ask/internal/paths"
	"go.uber.org/zap"
)

const (
	// DefaultName is the slot used when no session name is given.
	DefaultName = "last"
	pointerName = ".last-session"
)

var (
	// ErrReservedName is returned when saving under the pointer file's name.
	ErrReservedName = errors.New("reserved session name")
	// ErrInvalidName is returned for names that are not a single path element.
	ErrInvalidName = errors.New("invalid session name")
)

// Store reads and writes sessions in a directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore returns a store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

func validateName(name string) error {
	switch {
	case name == pointerName:
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	case name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Load returns the transcript saved under name. A missing session returns
// false; a malformed one is logged and also returns false.
func (s *Store) Load(name string) ([]Message, bool) {
	if validateName(name) != nil {
		return nil, false
	}
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading session", zap.String("session", name), zap.Error(err))
		}
		return nil, false
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		s.logger.Warn("failed to parse session", zap.String("session", name), zap.Error(err))
		return nil, false
	}
	return messages, true
}

// Save writes messages under name, followed by reply when it is not nil,
// and records name as the last written session.
func (s *Store) Save(name string, messages []Message, reply *Message) error {
	if err := validateName(name); err != nil {
		return err
	}

	out := make([]Message, 0, len(messages)+1)
	out = append(out, messages...)
	if reply != nil {
		out = append(out, *reply)
	}
	if out == nil {
		out = []Message{}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := paths.EnsureDir(s.dir); err != nil {
		return fmt.Errorf("creating session directory %s: %w", s.dir, err)
	}
	if err := config.WriteFileAtomic(filepath.Join(s.dir, name), data); err != nil {
		return fmt.Errorf("writing session %s: %w", name, err)
	}
	if err := config.WriteFileAtomic(filepath.Join(s.dir, pointerName), []byte(name)); err != nil {
		return fmt.Errorf("recording last session: %w", err)
	}
	return nil
}

// LastName returns the name of the most recently written session.
func (s *Store) LastName() (string, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, pointerName))
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	return name, name != ""
}

// Info describes a saved session.
type Info struct {
	Name     string
	Modified time.Time
}

// List returns the named sessions, newest first. The default slot, the
// pointer file and in-flight temp files are not listed.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session directory %s: %w", s.dir, err)
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == DefaultName || strings.HasPrefix(name, ".") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("reading metadata for session %s: %w", name, err)
		}
		infos = append(infos, Info{Name: name, Modified: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Modified.Equal(infos[j].Modified) {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].Modified.After(infos[j].Modified)
	})
	return infos, nil
}

// Age renders how long ago the session was written, relative to now.
func (i Info) Age(now time.Time) string {
	d := now.Sub(i.Modified)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d/time.Hour))
	default:
		return i.Modified.Local().Format("02 Jan 06 15:04")
	}
}
