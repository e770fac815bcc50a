package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/security"
)

// DefaultTokenFile returns ~/.tweetsweep/token.json.
func DefaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".tweetsweep", "token.json")
}

// FileTokenRepository keeps the encrypted token in a 0600 JSON file.
type FileTokenRepository struct {
	path string
}

// NewFileTokenRepository creates a repository at path, or at
// DefaultTokenFile when path is empty.
func NewFileTokenRepository(path string) *FileTokenRepository {
	if path == "" {
		path = DefaultTokenFile()
	}
	return &FileTokenRepository{path: path}
}

// Path returns the token file location.
func (r *FileTokenRepository) Path() string {
	return r.path
}

func (r *FileTokenRepository) Save(ctx context.Context, token StoredToken) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return security.WriteFileAtomic(r.path, data, 0o600)
}

func (r *FileTokenRepository) Load(ctx context.Context) (*StoredToken, error) {
	data, err := security.SafeReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &token, nil
}
