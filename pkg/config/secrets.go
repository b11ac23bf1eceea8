package config

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// On disk: magic | salt | nonce | AES-256-GCM(json secrets).
const (
	secretsFileName = "secrets.json.enc"
	saltSize        = 16
	nonceSize       = 12
	gcmTagSize      = 16
	scryptN         = 32768
	scryptR         = 8
	scryptP         = 1
	keySize         = 32
)

var secretsMagic = []byte("AST1")

// ErrWrongPassword is returned when the secrets file cannot be authenticated.
var ErrWrongPassword = errors.New("decryption failed (wrong password or corrupted file)")

// errCorruptSecrets is returned for files too short or missing the header.
var errCorruptSecrets = errors.New("secrets file is corrupted or has an unknown format")

// secretStore holds what UnlockSecrets installed.
type secretStore struct {
	mu       sync.RWMutex
	values   map[string]string
	password string
}

//nolint:gochecknoglobals // unlocked secrets are process state
var unlocked = &secretStore{}

// SetProjectPassword stores the password that unlocked the secrets file. It doubles as the HTTP password.
func SetProjectPassword(password string) {
	unlocked.mu.Lock()
	defer unlocked.mu.Unlock()
	unlocked.password = password
}

func GetProjectPassword() string {
	unlocked.mu.RLock()
	defer unlocked.mu.RUnlock()
	return unlocked.password
}

// SetDecryptedSecrets replaces the in-memory secrets; nil clears them.
func SetDecryptedSecrets(values map[string]string) {
	unlocked.mu.Lock()
	defer unlocked.mu.Unlock()
	unlocked.values = values
}

// GetSecret looks a secret up in the decrypted secrets file first, then the environment.
func GetSecret(name string) (string, error) {
	unlocked.mu.RLock()
	value := unlocked.values[name]
	unlocked.mu.RUnlock()
	if value != "" {
		return value, nil
	}

	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not found in secrets file or environment", name)
}

// SecretNames returns the sorted names (not values) of the in-memory secrets.
func SecretNames() []string {
	unlocked.mu.RLock()
	defer unlocked.mu.RUnlock()

	names := make([]string, 0, len(unlocked.values))
	for name := range unlocked.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func SetSecret(name, value string) {
	unlocked.mu.Lock()
	defer unlocked.mu.Unlock()

	if unlocked.values == nil {
		unlocked.values = make(map[string]string)
	}
	unlocked.values[name] = value
}

// SaveSecretsToFile encrypts the current in-memory secrets to disk.
func SaveSecretsToFile(projectDir, password string) error {
	unlocked.mu.RLock()
	snapshot := make(map[string]string, len(unlocked.values))
	for k, v := range unlocked.values {
		snapshot[k] = v
	}
	unlocked.mu.RUnlock()

	return EncryptSecretsFile(projectDir, password, snapshot)
}

// UnlockSecrets decrypts the secrets file and installs its contents and the password in memory.
func UnlockSecrets(projectDir, password string) error {
	values, err := DecryptSecretsFile(projectDir, password)
	if err != nil {
		return err
	}
	SetDecryptedSecrets(values)
	SetProjectPassword(password)
	LogInfo("Loaded %d secrets from %s", len(values), secretsPath(projectDir))
	return nil
}

func SecretsFileExists(projectDir string) bool {
	_, err := os.Stat(secretsPath(projectDir))
	return err == nil
}

func secretsPath(projectDir string) string {
	return filepath.Join(projectDir, ProjectConfigDir, secretsFileName)
}

// EncryptSecretsFile writes values to .assistant/secrets.json.enc with mode 0600. The file is
// replaced atomically so a crash never leaves a half-written vault.
func EncryptSecretsFile(projectDir, password string, values map[string]string) error {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}
	defer zero(plaintext)

	sealed, err := seal([]byte(password), plaintext)
	if err != nil {
		return err
	}

	dir := filepath.Join(projectDir, ProjectConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", ProjectConfigDir, err)
	}
	tmp, err := os.CreateTemp(dir, secretsFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp secrets file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to set secrets file permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), secretsPath(projectDir)); err != nil {
		return fmt.Errorf("failed to replace secrets file: %w", err)
	}
	return nil
}

// DecryptSecretsFile reads and decrypts .assistant/secrets.json.enc.
func DecryptSecretsFile(projectDir, password string) (map[string]string, error) {
	path := secretsPath(projectDir)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets file: %w", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		LogInfo("Secrets file has permissions %04o, resetting to 0600", perm)
		if err := os.Chmod(path, 0o600); err != nil {
			return nil, fmt.Errorf("failed to fix file permissions: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	plaintext, err := open([]byte(password), data)
	if err != nil {
		return nil, err
	}
	defer zero(plaintext)

	var values map[string]string
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}
	return values, nil
}

func seal(password, plaintext []byte) ([]byte, error) {
	defer zero(password)

	header := make([]byte, len(secretsMagic)+saltSize+nonceSize)
	copy(header, secretsMagic)
	salt := header[len(secretsMagic) : len(secretsMagic)+saltSize]
	nonce := header[len(secretsMagic)+saltSize:]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := deriveAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	// The header is authenticated along with the ciphertext.
	ciphertext := aead.Seal(nil, nonce, plaintext, header)
	return append(header, ciphertext...), nil
}

func open(password, data []byte) ([]byte, error) {
	defer zero(password)

	headerLen := len(secretsMagic) + saltSize + nonceSize
	if len(data) < headerLen+gcmTagSize || !bytes.HasPrefix(data, secretsMagic) {
		return nil, errCorruptSecrets
	}
	header := data[:headerLen]
	salt := header[len(secretsMagic) : len(secretsMagic)+saltSize]
	nonce := header[len(secretsMagic)+saltSize:]

	aead, err := deriveAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, data[headerLen:], header)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

func deriveAEAD(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block) //nolint:wrapcheck // only fails for a non-standard tag size
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
