package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"applyflow-engine/internal/config"
)

const (
	// "Service" groups this app's secrets in the OS keychain.
	KeyringService = "applyflow"

	AccountAIKey       = "applyflow:ai:api_key"
	AccountNotionToken = "applyflow:report:notion_token"
)

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(pw) == "" {
		return "", errors.New("keyring entry is empty")
	}
	return pw, nil
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("value is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// GetIMAPPassword prefers the keychain; a password written straight into
// the config file still works but is discouraged.
func GetIMAPPassword(cfg config.Config) (string, error) {
	if pw, err := Get(IMAPKeyringAccount(cfg)); err == nil {
		return pw, nil
	}
	if strings.TrimSpace(cfg.Email.AppPassword) != "" {
		return cfg.Email.AppPassword, nil
	}
	return "", errors.New("IMAP password not found (set it in the keychain or email.app_password)")
}

func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"applyflow:imap:%s@%s",
		cfg.Email.Username,
		cfg.Email.IMAPHost,
	)
}
