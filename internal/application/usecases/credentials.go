package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/arca-scheduler/internal/domain/booking"
	"github.com/example/arca-scheduler/internal/domain/user"
	"github.com/example/arca-scheduler/internal/infrastructure/crypto"
	"github.com/example/arca-scheduler/internal/internaltypes"
)

// ErrNoCredentials means the user never stored a platform login. It matches
// internaltypes.ErrNotFound too.
var ErrNoCredentials = fmt.Errorf("no arca credentials saved: %w", internaltypes.ErrNotFound)

// CredentialSource hands out decrypted credentials.
type CredentialSource interface {
	Get(ctx context.Context, userID string) (user.Credentials, error)
}

type CredentialsService struct {
	Store  CredentialStore
	Cipher *crypto.Cipher
	// Connector verifies new credentials with a test login. Nil skips it.
	Connector booking.Connector
}

func (s CredentialsService) Get(ctx context.Context, userID string) (user.Credentials, error) {
	c, err := s.Store.GetCredentials(ctx, userID)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return user.Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return user.Credentials{}, err
	}
	if c.Username, err = s.Cipher.Decrypt(c.Username); err != nil {
		return user.Credentials{}, fmt.Errorf("decrypt username: %w", err)
	}
	if c.Password, err = s.Cipher.Decrypt(c.Password); err != nil {
		return user.Credentials{}, fmt.Errorf("decrypt password: %w", err)
	}
	return c, nil
}

// Save stores credentials after an optional test login against the
// platform.
func (s CredentialsService) Save(ctx context.Context, userID, username, password string, verify bool) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("username and password required")
	}
	if verify && s.Connector != nil {
		if _, err := s.Connector.Connect(ctx, username, password); err != nil {
			return fmt.Errorf("invalid arca credentials: %w", err)
		}
	}

	c := user.Credentials{UserID: userID}
	var err error
	if c.Username, err = s.Cipher.Encrypt(username); err != nil {
		return err
	}
	if c.Password, err = s.Cipher.Encrypt(password); err != nil {
		return err
	}
	return s.Store.PutCredentials(ctx, c)
}
