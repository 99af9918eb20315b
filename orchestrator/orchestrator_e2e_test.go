package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/db"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/docker"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/gitfetch"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/metrics"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/proxy"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/supervisor"
)

// fakeDockerClient is a dockerBuildExtractor that never touches a real
// Docker daemon: BuildImage and RunArtifactExtractor just record their
// calls, and RunArtifactExtractor writes a placeholder server.js into the
// output directory the orchestrator created, standing in for the files a
// real extraction would copy there.
type fakeDockerClient struct {
	buildErr   error
	extractErr error

	buildCalls   int
	extractCalls int
}

func (f *fakeDockerClient) BuildImage(ctx context.Context, config docker.BuildImageConfig) error {
	f.buildCalls++
	return f.buildErr
}

func (f *fakeDockerClient) RunArtifactExtractor(ctx context.Context, config docker.ExtractArtifactConfig) error {
	f.extractCalls++
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(filepath.Join(config.HostOutputDirectory, "server.js"), []byte("// fake standalone server\n"), 0644)
}

// fakeSupervisor is a processSupervisor that records every Start call
// instead of shelling out to pm2.
type fakeSupervisor struct {
	startErr  error
	failUntil int // Start fails this many times before succeeding, for retry tests
	calls     []supervisor.StartConfig
}

func (f *fakeSupervisor) Start(config supervisor.StartConfig) error {
	f.calls = append(f.calls, config)
	if len(f.calls) <= f.failUntil {
		return errors.New("simulated transient supervisor failure")
	}
	return f.startErr
}

// fakeProxyOps is a proxy.PrivilegedOps that records calls instead of
// touching the filesystem or an nginx process.
type fakeProxyOps struct {
	written map[string][]byte
	symlink map[string]string
	removed []string
	reloads int
}

func newFakeProxyOps() *fakeProxyOps {
	return &fakeProxyOps{written: make(map[string][]byte), symlink: make(map[string]string)}
}

func (f *fakeProxyOps) WriteFile(path string, contents []byte) error {
	f.written[path] = contents
	return nil
}
func (f *fakeProxyOps) Symlink(oldname, newname string) error {
	f.symlink[newname] = oldname
	return nil
}
func (f *fakeProxyOps) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}
func (f *fakeProxyOps) Chown(path, ownerSpec string) error { return nil }
func (f *fakeProxyOps) ReloadProxy(command string) error {
	f.reloads++
	return nil
}

// e2eHarness bundles everything one end-to-end scenario needs: a real
// temp-file database, an Orchestrator wired to fakes, and the project the
// test seeds.
type e2eHarness struct {
	t            *testing.T
	orchestrator *Orchestrator
	database     *db.Database
	docker       *fakeDockerClient
	supervisor   *fakeSupervisor
	project      *models.Project
}

func newE2EHarness(t *testing.T, config Config, cloneFixture func(dir string) error) *e2eHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDatabase() })

	project := &models.Project{ID: "proj-1", OwnerID: "owner-1", Name: "widgets", GitRepoURL: "https://github.com/acme/widgets.git"}
	if err := database.InsertProject(project); err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}

	config.DeploymentsRoot = filepath.Join(t.TempDir(), "deployments")
	config.ClonesRoot = filepath.Join(t.TempDir(), "clones")
	config.LogsRoot = filepath.Join(t.TempDir(), "logs")
	if config.PortRangeStart == 0 {
		config.PortRangeStart = 21000
		config.PortRangeEnd = 21050
	}

	fakeDocker := &fakeDockerClient{}
	fakeSup := &fakeSupervisor{}

	var proxyConfigurator *proxy.Configurator
	if config.ProductionMode {
		proxyConfigurator = &proxy.Configurator{
			Ops:               newFakeProxyOps(),
			SitesAvailableDir: "/etc/nginx/sites-available",
			SitesEnabledDir:   "/etc/nginx/sites-enabled",
			ReloadCommand:     "true",
			UseHTTPS:          config.UseHTTPS,
		}
	}

	orchestrator := New(database, fakeDocker, fakeSup, proxyConfigurator, logger, metrics.New(), config)
	orchestrator.cloneRepo = func(cfg gitfetch.CloneConfig) (string, error) {
		if cloneFixture != nil {
			if err := cloneFixture(cfg.DestinationDir); err != nil {
				return "", err
			}
		} else {
			if err := os.MkdirAll(cfg.DestinationDir, 0755); err != nil {
				return "", err
			}
		}
		return "deadbeef", nil
	}

	return &e2eHarness{t: t, orchestrator: orchestrator, database: database, docker: fakeDocker, supervisor: fakeSup, project: project}
}

func (h *e2eHarness) enqueueAndRun(id string) *models.Deployment {
	h.t.Helper()
	deployment := &models.Deployment{ID: id, ProjectID: h.project.ID, Name: h.project.Name}
	if err := h.database.InsertDeployment(deployment); err != nil {
		h.t.Fatalf("failed to insert deployment: %v", err)
	}
	h.orchestrator.Run(deployment)

	got, err := h.database.GetDeployment(id)
	if err != nil {
		h.t.Fatalf("failed to reload deployment: %v", err)
	}
	return got
}

func writeStandaloneNextConfig(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "next.config.js"), []byte("module.exports = { output: 'standalone' }\n"), 0644)
}

func writeClassicNextProject(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"dependencies":{"next":"14.0.0"}}`), 0644)
}

func writeUserDockerfileNoFramework(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0644)
}

func writeEmptyRepo(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Scenario 1: standalone Next.js build in production mode succeeds end to
// end, mints a URL under PlatformHost, and configures the proxy.
func TestRun_StandaloneBuildProductionMode_Succeeds(t *testing.T) {
	h := newE2EHarness(t, Config{ProductionMode: true, PlatformHost: "corvus.example.com", UseHTTPS: true}, writeStandaloneNextConfig)

	deployment := h.enqueueAndRun("dep-1")

	if deployment.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want success (error: %v)", deployment.Status, deployment.ErrorMessage)
	}
	if deployment.DockerfileUsed != models.DockerfileDefaultStandalone {
		t.Errorf("dockerfile_used = %q, want default_standalone", deployment.DockerfileUsed)
	}
	if deployment.DeploymentURL == nil || !hasPrefixAndSuffix(*deployment.DeploymentURL, "https://widgets-", ".corvus.example.com") {
		t.Errorf("deployment_url = %v, want a minted widgets-*.corvus.example.com url", deployment.DeploymentURL)
	}
	if len(h.supervisor.calls) != 1 || h.supervisor.calls[0].BuildType != models.BuildTypeStandalone {
		t.Errorf("expected exactly one standalone supervisor start, got %+v", h.supervisor.calls)
	}
}

// Scenario 2: classic Next.js build in development mode succeeds and
// returns a bare localhost URL, with no proxy configuration attempted.
func TestRun_ClassicBuildDevelopmentMode_Succeeds(t *testing.T) {
	h := newE2EHarness(t, Config{ProductionMode: false}, writeClassicNextProject)

	deployment := h.enqueueAndRun("dep-1")

	if deployment.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want success (error: %v)", deployment.Status, deployment.ErrorMessage)
	}
	if deployment.DockerfileUsed != models.DockerfileDefaultClassic {
		t.Errorf("dockerfile_used = %q, want default_classic", deployment.DockerfileUsed)
	}
	if deployment.DeploymentURL == nil || !hasPrefixAndSuffix(*deployment.DeploymentURL, "http://localhost:", "") {
		t.Errorf("deployment_url = %v, want a bare localhost url", deployment.DeploymentURL)
	}
	if len(h.supervisor.calls) != 1 || h.supervisor.calls[0].BuildType != models.BuildTypeClassic {
		t.Errorf("expected exactly one classic supervisor start, got %+v", h.supervisor.calls)
	}
}

// Scenario 3: a user-supplied Dockerfile with no detectable framework
// signature is used as-is (dockerfile_used = user) and the deployment
// still succeeds.
func TestRun_UserDockerfileNoFrameworkSignature_Succeeds(t *testing.T) {
	h := newE2EHarness(t, Config{ProductionMode: false}, writeUserDockerfileNoFramework)

	deployment := h.enqueueAndRun("dep-1")

	if deployment.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want success (error: %v)", deployment.Status, deployment.ErrorMessage)
	}
	if deployment.DockerfileUsed != models.DockerfileUser {
		t.Errorf("dockerfile_used = %q, want user", deployment.DockerfileUsed)
	}
}

// Scenario 4: no Dockerfile and no detectable framework signature fails the
// deployment before any image is ever built.
func TestRun_NoDockerfileNoFramework_Fails(t *testing.T) {
	h := newE2EHarness(t, Config{ProductionMode: false}, writeEmptyRepo)

	deployment := h.enqueueAndRun("dep-1")

	if deployment.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", deployment.Status)
	}
	if h.docker.buildCalls != 0 {
		t.Errorf("expected no image build attempt, got %d", h.docker.buildCalls)
	}
}

// Scenario 5: port range exhaustion fails the deployment without ever
// calling the supervisor.
func TestRun_PortRangeExhausted_Fails(t *testing.T) {
	config := Config{ProductionMode: false, PortRangeStart: 21100, PortRangeEnd: 21100}
	h := newE2EHarness(t, config, writeStandaloneNextConfig)

	// occupy the only port in range with an already-active deployment.
	taken := 21100
	existing := &models.Deployment{ID: "dep-existing", ProjectID: h.project.ID, Name: h.project.Name}
	if err := h.database.InsertDeployment(existing); err != nil {
		t.Fatalf("failed to seed existing deployment: %v", err)
	}
	if err := h.database.TransitionToDeploying(existing.ID, "/log/existing"); err != nil {
		t.Fatalf("failed to transition seed deployment: %v", err)
	}
	if err := h.database.MarkSuccess(existing.ID, "http://localhost:21100", taken, "/out", models.DockerfileDefaultStandalone, "abc"); err != nil {
		t.Fatalf("failed to mark seed deployment successful: %v", err)
	}

	deployment := h.enqueueAndRun("dep-1")

	if deployment.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", deployment.Status)
	}
	if len(h.supervisor.calls) != 0 {
		t.Errorf("expected no supervisor start attempts when the port range is exhausted, got %d", len(h.supervisor.calls))
	}
}

// Scenario 6 (partial): the deployment-id-derived fallback hostname is
// already held by another active deployment. Forcing every randomized
// candidate to collide is not practical here, so this test only checks
// that the run reaches a terminal status; the exhaust-then-fallback path
// itself is covered by urlmint's Mint tests.
func TestRun_FallbackURLAlreadyTaken_ReachesTerminalStatus(t *testing.T) {
	h := newE2EHarness(t, Config{ProductionMode: true, PlatformHost: "corvus.example.com"}, writeStandaloneNextConfig)

	// seed an active deployment that occupies dep-1's fallback url.
	conflicting := &models.Deployment{ID: "dep-conflict", ProjectID: h.project.ID, Name: h.project.Name}
	if err := h.database.InsertDeployment(conflicting); err != nil {
		t.Fatalf("failed to seed conflicting deployment: %v", err)
	}
	if err := h.database.TransitionToDeploying(conflicting.ID, "/log/conflict"); err != nil {
		t.Fatalf("failed to transition conflicting deployment: %v", err)
	}
	if err := h.database.MarkSuccess(conflicting.ID, "https://deploy-dep-1.corvus.example.com", 21200, "/out", models.DockerfileDefaultStandalone, "abc"); err != nil {
		t.Fatalf("failed to mark conflicting deployment successful: %v", err)
	}

	deployment := h.enqueueAndRun("dep-1")

	// Minting either lands on a free randomized widgets-<suffix> URL (the
	// overwhelmingly likely outcome) or, in the vanishingly unlikely case
	// every attempt collides, fails because the fallback is also taken.
	// Either outcome is a correct implementation of the documented
	// behavior; what this test actually pins down is exercised directly
	// in urlmint's own table of collision/fallback tests. Here we only
	// assert the orchestrator never panics and reaches a terminal status.
	if deployment.Status != models.StatusSuccess && deployment.Status != models.StatusFailed {
		t.Fatalf("status = %q, want a terminal status", deployment.Status)
	}
}

// supervisorStartRetries (2 extra attempts) lets a transient C7 failure
// succeed on retry with a freshly allocated port each time.
func TestRun_SupervisorTransientFailure_RetriesAndSucceeds(t *testing.T) {
	h := newE2EHarness(t, Config{ProductionMode: false}, writeStandaloneNextConfig)
	h.supervisor.failUntil = 2 // fail the first two attempts, succeed on the third

	deployment := h.enqueueAndRun("dep-1")

	if deployment.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want success after retrying past two transient failures", deployment.Status)
	}
	if len(h.supervisor.calls) != 3 {
		t.Errorf("expected 3 supervisor start attempts (1 + 2 retries), got %d", len(h.supervisor.calls))
	}
}

// supervisorStartRetries is exhausted when every attempt fails, and the
// deployment fails terminally rather than retrying forever.
func TestRun_SupervisorPermanentFailure_ExhaustsRetriesAndFails(t *testing.T) {
	h := newE2EHarness(t, Config{ProductionMode: false}, writeStandaloneNextConfig)
	h.supervisor.startErr = errors.New("permanent supervisor failure")

	deployment := h.enqueueAndRun("dep-1")

	if deployment.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", deployment.Status)
	}
	if len(h.supervisor.calls) != supervisorStartRetries+1 {
		t.Errorf("expected %d total supervisor start attempts, got %d", supervisorStartRetries+1, len(h.supervisor.calls))
	}
}
