package orchestrator

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/db"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/metrics"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

// newTestOrchestrator builds an Orchestrator backed by a real temp-file
// SQLite database but with no docker/supervisor/proxy collaborators, for
// exercising the pure decision logic (mintURL, portInUse,
// resolveAccessToken, hostnameOf) that Run delegates to without needing a
// live Docker daemon, git binary, or pm2 process manager.
func newTestOrchestrator(t *testing.T, config Config) (*Orchestrator, *db.Database) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDatabase() })

	orchestrator := New(database, nil, nil, nil, logger, metrics.New(), config)
	return orchestrator, database
}

func TestHostnameOf(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://widgets-ab12.example.com", "widgets-ab12.example.com"},
		{"http://localhost:4001", "localhost"},
	}

	for _, c := range cases {
		got, err := hostnameOf(c.url)
		if err != nil {
			t.Fatalf("hostnameOf(%q): %v", c.url, err)
		}
		if got != c.want {
			t.Errorf("hostnameOf(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestMintURL_DevelopmentModeReturnsLocalhost(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, Config{ProductionMode: false})

	url, err := orchestrator.mintURL(&models.Project{Name: "widgets"}, "dep-1", 4001)
	if err != nil {
		t.Fatalf("mintURL: %v", err)
	}
	if url != "http://localhost:4001" {
		t.Errorf("url = %q, want http://localhost:4001", url)
	}
}

func TestMintURL_ProductionModeMintsUnderPlatformHost(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, Config{
		ProductionMode: true,
		PlatformHost:   "corvus.example.com",
		UseHTTPS:       true,
	})

	url, err := orchestrator.mintURL(&models.Project{Name: "widgets"}, "dep-1", 4001)
	if err != nil {
		t.Fatalf("mintURL: %v", err)
	}
	if !hasPrefixAndSuffix(url, "https://widgets-", ".corvus.example.com") {
		t.Errorf("url = %q, does not match expected minted shape", url)
	}
}

func TestMintURL_ProductionModeAvoidsCollisionWithActiveDeployment(t *testing.T) {
	orchestrator, database := newTestOrchestrator(t, Config{
		ProductionMode: true,
		PlatformHost:   "corvus.example.com",
	})

	database.InsertProject(&models.Project{ID: "proj-1", Name: "widgets", GitRepoURL: "https://example.com/w.git"})
	database.InsertDeployment(&models.Deployment{ID: "dep-1", ProjectID: "proj-1", Name: "widgets"})
	database.TransitionToDeploying("dep-1", "/log/a")

	// claim every possible 5-character suffix upfront would be excessive;
	// instead mint once to learn a real taken URL, then mark it active and
	// confirm a second mint for the same project never collides with it.
	firstURL, err := orchestrator.mintURL(&models.Project{Name: "widgets"}, "dep-1", 4001)
	if err != nil {
		t.Fatalf("first mintURL: %v", err)
	}
	if err := database.MarkSuccess("dep-1", firstURL, 4001, "/out", models.DockerfileDefaultStandalone, "abc123"); err != nil {
		t.Fatalf("MarkSuccess: %v", err)
	}

	secondURL, err := orchestrator.mintURL(&models.Project{Name: "widgets"}, "dep-2", 4002)
	if err != nil {
		t.Fatalf("second mintURL: %v", err)
	}
	if secondURL == firstURL {
		t.Errorf("expected a distinct url on the second mint, got the same one: %q", secondURL)
	}
}

func TestPortInUse_TrueOnlyForActiveDeployments(t *testing.T) {
	orchestrator, database := newTestOrchestrator(t, Config{})

	database.InsertProject(&models.Project{ID: "proj-1", Name: "widgets", GitRepoURL: "https://example.com/w.git"})

	database.InsertDeployment(&models.Deployment{ID: "dep-active", ProjectID: "proj-1"})
	database.TransitionToDeploying("dep-active", "/log/a")
	database.MarkSuccess("dep-active", "https://widgets-aaaa.example.com", 5001, "/out", models.DockerfileDefaultStandalone, "abc")

	database.InsertDeployment(&models.Deployment{ID: "dep-failed", ProjectID: "proj-1"})
	database.TransitionToDeploying("dep-failed", "/log/b")
	database.MarkFailed("dep-failed", "boom", models.DockerfileDefaultStandalone)

	if !orchestrator.portInUse(5001) {
		t.Error("expected port 5001 (bound to a success deployment) to be reported in use")
	}
	if orchestrator.portInUse(5002) {
		t.Error("expected port 5002 (never allocated) to be reported free")
	}
}

func TestResolveAccessToken_MissingAccountReturnsEmptyString(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, Config{})

	token := orchestrator.resolveAccessToken("owner-without-a-github-account")
	if token != "" {
		t.Errorf("expected empty token for an owner with no git account on file, got %q", token)
	}
}

func TestResolveAccessToken_ReturnsStoredToken(t *testing.T) {
	orchestrator, database := newTestOrchestrator(t, Config{})

	err := database.InsertGitAccount(&models.GitAccount{
		UserID: "owner-1", Provider: "github", ProviderUserID: "999", AccessToken: "ghp_token",
	})
	if err != nil {
		t.Fatalf("failed to seed git account: %v", err)
	}

	token := orchestrator.resolveAccessToken("owner-1")
	if token != "ghp_token" {
		t.Errorf("token = %q, want ghp_token", token)
	}
}

func hasPrefixAndSuffix(s, prefix, suffix string) bool {
	return len(s) >= len(prefix)+len(suffix) && s[:len(prefix)] == prefix && s[len(s)-len(suffix):] == suffix
}
