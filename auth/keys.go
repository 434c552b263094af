package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// KeyFile is the name of the token key inside the key directory.
const KeyFile = "auth.key"

// LoadOrGenerateKey reads the hex-encoded token key from <dir>/auth.key,
// generating and saving a new one when the file does not exist.
func LoadOrGenerateKey(fs afero.Fs, dir string) ([]byte, error) {
	keyPath := filepath.Join(dir, KeyFile)

	if keyBytes, err := afero.ReadFile(fs, keyPath); err == nil {
		keyHex := strings.TrimSpace(string(keyBytes))
		if len(keyHex) != keyBytesSize*2 {
			return nil, fmt.Errorf("invalid auth key length: expected %d hex chars, got %d", keyBytesSize*2, len(keyHex))
		}
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid auth key format: not valid hex: %w", err)
		}
		return key, nil
	}

	key := make([]byte, keyBytesSize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate auth key: %w", err)
	}

	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := afero.WriteFile(fs, keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}

	return key, nil
}
