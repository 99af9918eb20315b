package db

// gitaccounts.go gives the Git Fetcher (C3) a way to resolve the access
// token belonging to a project's owner for a given provider, without
// pulling OAuth exchange logic (owned by the façade) into this module.

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

// ErrGitAccountNotFound is returned when no git_accounts row matches the
// given user/provider pair. The Git Fetcher treats this as "clone
// anonymously" rather than a hard failure, since public repos need no
// credential.
var ErrGitAccountNotFound = errors.New("git account not found")

// InsertGitAccount writes a git_accounts row. The real OAuth exchange that
// produces an access token belongs to the façade; this exists so corvusctl
// and tests can seed a credential without a façade in front of this module.
func (database *Database) InsertGitAccount(account *models.GitAccount) error {
	query := `
		INSERT INTO git_accounts (user_id, provider, provider_user_id, access_token)
		VALUES (?, ?, ?, ?)
	`
	_, err := database.connection.Exec(query, account.UserID, account.Provider, account.ProviderUserID, account.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to insert git account for user %q provider %q: %w", account.UserID, account.Provider, err)
	}
	return nil
}

// GetGitAccount looks up the stored access token for a user's connected
// Git provider account.
func (database *Database) GetGitAccount(userID string, provider string) (*models.GitAccount, error) {
	query := `
		SELECT user_id, provider, provider_user_id, access_token
		FROM git_accounts WHERE user_id = ? AND provider = ?
	`

	var account models.GitAccount
	err := database.connection.QueryRow(query, userID, provider).Scan(
		&account.UserID,
		&account.Provider,
		&account.ProviderUserID,
		&account.AccessToken,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGitAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get git account for user %q provider %q: %w", userID, provider, err)
	}
	return &account, nil
}
