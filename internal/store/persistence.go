package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"groupcast/internal/models"
)

// Persistence stores the whole QueueState as a single document. Load returns
// (nil, nil) when no snapshot exists yet; any other failure is an error the
// Store degrades from.
type Persistence interface {
	Load() (*models.QueueState, error)
	Save(state *models.QueueState) error
	Close() error
}

func marshalState(state *models.QueueState, enc *encryptor) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue state: %w", err)
	}
	return enc.EncryptIfEnabled(data)
}

func unmarshalState(data []byte, enc *encryptor) (*models.QueueState, error) {
	plain, err := enc.DecryptIfEnabled(data)
	if err != nil {
		return nil, err
	}
	var state models.QueueState
	if err := json.Unmarshal(plain, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue state: %w", err)
	}
	return &state, nil
}

// FileStore persists the queue state as a JSON snapshot on disk. Saves write
// to a temp file first and atomically rename over the snapshot, so a crash
// mid-write never corrupts the existing state.
type FileStore struct {
	path string
	enc  *encryptor
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}

	enc, err := newEncryptor()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	return &FileStore{path: path, enc: enc}, nil
}

func (f *FileStore) Load() (*models.QueueState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return unmarshalState(data, f.enc)
}

func (f *FileStore) Save(state *models.QueueState) error {
	data, err := marshalState(state, f.enc)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

func (f *FileStore) Close() error {
	return nil
}
