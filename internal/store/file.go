package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cinetaste/authkit/internal/model"
)

var (
	errStoreFileIsDir = errors.New("store file is dir")
)

type fileData struct {
	Session *model.Session `json:"session,omitempty"`
	Token   string         `json:"auth_token,omitempty"`
}

// fileStore keeps both entries in a single JSON file. Writes go straight
// to disk so state survives a crash, not just a clean shutdown.
type fileStore struct {
	mu   sync.Mutex
	path string
	data fileData
}

// NewFile opens (creating if needed) a JSON-file-backed store at path.
func NewFile(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &fileStore{path: path}
	if err := s.readfile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) readfile() error {
	finfo, err := os.Stat(s.path)
	if err != nil {
		return err
	}

	if finfo.IsDir() {
		return errStoreFileIsDir
	}

	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(&s.data)
}

func (s *fileStore) writefile() error {
	b, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

func (s *fileStore) Session(_ context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.Session == nil {
		return nil, ErrNotFound
	}
	session := *s.data.Session
	return &session, nil
}

func (s *fileStore) PutSession(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.data.Session = &copied
	return s.writefile()
}

func (s *fileStore) DeleteSession(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Session = nil
	return s.writefile()
}

func (s *fileStore) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.Token == "" {
		return "", ErrNotFound
	}
	return s.data.Token, nil
}

func (s *fileStore) PutToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Token = token
	return s.writefile()
}

func (s *fileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = fileData{}
	return s.writefile()
}
