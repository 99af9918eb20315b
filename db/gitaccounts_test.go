package db

import (
	"errors"
	"testing"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

func TestGetGitAccount_NotFound(t *testing.T) {
	database := openTestDatabase(t)

	_, err := database.GetGitAccount("user-1", "github")
	if !errors.Is(err, ErrGitAccountNotFound) {
		t.Errorf("expected ErrGitAccountNotFound, got %v", err)
	}
}

func TestGetGitAccount_Found(t *testing.T) {
	database := openTestDatabase(t)

	err := database.InsertGitAccount(&models.GitAccount{
		UserID: "user-1", Provider: "github", ProviderUserID: "12345", AccessToken: "ghp_secret",
	})
	if err != nil {
		t.Fatalf("failed to seed git_accounts row: %v", err)
	}

	account, err := database.GetGitAccount("user-1", "github")
	if err != nil {
		t.Fatalf("GetGitAccount: %v", err)
	}
	if account.AccessToken != "ghp_secret" {
		t.Errorf("access token = %q, want ghp_secret", account.AccessToken)
	}
}
