package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Secret accounts stored in the secrets file. Session tokens never go into
// config.json, which `config show` prints.
const (
	SecretSessionToken  = "session_token"
	SecretAdminToken    = "admin_token"
	SecretLocalAPIToken = "local_api_token"
)

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "flatprice", "secrets.json")
}

func readSecrets(path string) map[string]string {
	secrets := make(map[string]string)
	data, err := os.ReadFile(path)
	if err == nil {
		_ = json.Unmarshal(data, &secrets)
	}
	return secrets
}

func writeSecrets(path string, secrets map[string]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// GetSecret returns the named secret, or an error when absent.
func GetSecret(account string) (string, error) {
	secrets := readSecrets(secretsFilePath())
	val, ok := secrets[account]
	if !ok || val == "" {
		return "", fmt.Errorf("secret %q not found", account)
	}
	return val, nil
}

// SetSecret stores the named secret in the 0600 secrets file.
func SetSecret(account, value string) error {
	path := secretsFilePath()
	secrets := readSecrets(path)
	secrets[account] = value
	return writeSecrets(path, secrets)
}

// DeleteSecret removes the named secret. Deleting an absent secret is not an error.
func DeleteSecret(account string) error {
	path := secretsFilePath()
	secrets := readSecrets(path)
	if _, ok := secrets[account]; !ok {
		return nil
	}
	delete(secrets, account)
	return writeSecrets(path, secrets)
}

// EnsureLocalAPIToken returns the bearer token protecting the loopback API,
// generating and persisting one on first use.
func EnsureLocalAPIToken() (string, error) {
	if token, err := GetSecret(SecretLocalAPIToken); err == nil {
		return token, nil
	}
	token := uuid.New().String()
	if err := SetSecret(SecretLocalAPIToken, token); err != nil {
		return "", fmt.Errorf("storing local API token: %w", err)
	}
	return token, nil
}
