package narration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps audio on local disk under content-addressed names and maps them to public URLs.
type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore creates dir when missing. baseURL is the public prefix the directory is served under.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Key derives the file name for a voice and text pair.
func Key(voiceID, text string) string {
	sum := sha256.Sum256([]byte(voiceID + "|" + text))
	return hex.EncodeToString(sum[:]) + ".mp3"
}

// Lookup reports the URL of key when the file already exists.
func (s *FileStore) Lookup(key string) (string, bool) {
	info, err := os.Stat(filepath.Join(s.dir, key))
	if err != nil || info.Size() == 0 {
		return "", false
	}
	return s.url(key), true
}

// Put writes audio atomically and returns its URL.
func (s *FileStore) Put(key string, audio []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".narration-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil && !errors.Is(err, fs.ErrExist) {
		return "", err
	}
	return s.url(key), nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) url(key string) string {
	return s.baseURL + "/media/" + key
}
