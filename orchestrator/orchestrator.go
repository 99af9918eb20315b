// Package orchestrator implements the Deployment State Machine (C10): it
// drives one deployment through clone, build plan, image build, artifact
// extraction, port allocation, process supervision, URL minting, and proxy
// configuration, persisting status transitions at each step. Grounded on
// the original control plane's DeployerPipeline: a single struct holding
// every collaborator, one method per deployment run, and a small logger
// helper that writes to both the structured application log and a
// dedicated per-deployment log file.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/buildplan"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/db"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/docker"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/gitfetch"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/logsink"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/metrics"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/portalloc"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/proxy"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/supervisor"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/urlmint"

	"log/slog"
)

// Config groups the Orchestrator's static configuration, mirroring the
// relevant fields out of config.AppConfig so this package does not need to
// import config directly (keeps the dependency graph one-directional).
type Config struct {
	DeploymentsRoot string
	ClonesRoot      string
	LogsRoot        string

	ProductionMode bool
	PlatformHost   string
	UseHTTPS       bool

	PortRangeStart int
	PortRangeEnd   int
}

// dockerBuildExtractor is the subset of *docker.DockerClient the pipeline
// needs (C5 and C6). Abstracted behind an interface so tests can substitute
// a fake that records calls instead of requiring a live Docker daemon;
// *docker.DockerClient satisfies it without any change on its side.
type dockerBuildExtractor interface {
	BuildImage(ctx context.Context, config docker.BuildImageConfig) error
	RunArtifactExtractor(ctx context.Context, config docker.ExtractArtifactConfig) error
}

// processSupervisor is the subset of *supervisor.Supervisor the pipeline
// needs (C7), abstracted for the same reason.
type processSupervisor interface {
	Start(config supervisor.StartConfig) error
}

// Orchestrator owns every collaborator the pipeline needs. Constructed
// once in cmd/corvusd and handed to the admission queue as its Handler.
type Orchestrator struct {
	database     *db.Database
	dockerClient dockerBuildExtractor
	supervisor   processSupervisor
	proxy        *proxy.Configurator // nil in development mode
	logger       *slog.Logger
	metrics      *metrics.Metrics
	config       Config

	// cloneRepo defaults to gitfetch.Clone; overridable in tests so C3 can
	// be exercised without shelling out to a real git binary.
	cloneRepo func(gitfetch.CloneConfig) (string, error)
}

// New constructs an Orchestrator. proxyConfigurator may be nil when
// config.ProductionMode is false: the Proxy Configurator is never invoked
// in development mode.
func New(
	database *db.Database,
	dockerClient dockerBuildExtractor,
	sup processSupervisor,
	proxyConfigurator *proxy.Configurator,
	logger *slog.Logger,
	m *metrics.Metrics,
	config Config,
) *Orchestrator {
	return &Orchestrator{
		database:     database,
		dockerClient: dockerClient,
		supervisor:   sup,
		proxy:        proxyConfigurator,
		logger:       logger,
		metrics:      m,
		config:       config,
		cloneRepo:    gitfetch.Clone,
	}
}

// Run drives deployment through the full pipeline. It is the Handler
// passed to admission.Queue, so it never returns an error: every failure
// is terminal for this one deployment and is recorded on the row itself.
// A fresh background context is used because whatever triggered the
// enqueue (an HTTP request, a CLI invocation) has already returned by the
// time a worker picks this deployment up.
func (o *Orchestrator) Run(deployment *models.Deployment) {
	ctx := context.Background()
	startedAt := time.Now()

	project, err := o.database.GetProject(deployment.ProjectID)
	if err != nil {
		o.logger.Error("cannot start deployment: project lookup failed", "deployment_id", deployment.ID, "error", err)
		// failed is only reachable through deploying, so the row leaves
		// pending first for the failure to be recorded on it.
		if transitionErr := o.database.TransitionToDeploying(deployment.ID, logsink.PathFor(o.config.LogsRoot, deployment.ID)); transitionErr != nil {
			o.logger.Error("cannot record project lookup failure: invalid transition", "deployment_id", deployment.ID, "error", transitionErr)
			return
		}
		_ = o.database.MarkFailed(deployment.ID, logsink.TruncateErrorMessage(err), models.DockerfileUnknown)
		return
	}

	logFilePath := logsink.PathFor(o.config.LogsRoot, deployment.ID)
	if err := o.database.TransitionToDeploying(deployment.ID, logFilePath); err != nil {
		o.logger.Error("cannot start deployment: invalid transition", "deployment_id", deployment.ID, "error", err)
		return
	}

	logFile, logErr := logsink.Open(o.config.LogsRoot, deployment.ID)
	if logErr != nil {
		o.logger.Error("failed to open deployment log file (continuing without it)",
			"deployment_id", deployment.ID, "error", logErr)
	}
	sink := logsink.New(o.logger, logFile, deployment.ID)
	defer sink.Close()

	sink.Infof("starting deployment pipeline for project %q (%s)", project.Name, project.GitRepoURL)

	dockerfileUsed := models.DockerfileUnknown

	fail := func(reason string, cause error) {
		sink.Errorf("%s: %v", reason, cause)
		if err := o.database.MarkFailed(deployment.ID, logsink.TruncateErrorMessage(fmt.Errorf("%s: %w", reason, cause)), dockerfileUsed); err != nil {
			o.logger.Error("failed to persist failure status", "deployment_id", deployment.ID, "error", err)
		}
		o.metrics.RecordDeployment(string(models.StatusFailed), string(dockerfileUsed), time.Since(startedAt).Seconds())
	}

	cloneDir := filepath.Join(o.config.ClonesRoot, deployment.ID)
	defer os.RemoveAll(cloneDir)

	accessToken := o.resolveAccessToken(project.OwnerID)

	cloneSection := sink.OpenSection("Clone")
	cloneSection.Infof("cloning %s", project.GitRepoURL)
	commitHash, cloneErr := o.cloneRepo(gitfetch.CloneConfig{
		RepoURL:        project.GitRepoURL,
		DestinationDir: cloneDir,
		AccessToken:    accessToken,
		LogWriter:      cloneSection.Writer(),
	})
	if cloneErr != nil {
		cloneSection.Fail()
	}
	cloneSection.Close()
	if cloneErr != nil {
		fail("git clone failed", cloneErr)
		return
	}
	if err := o.database.UpdateVersion(deployment.ID, commitHash); err != nil {
		o.logger.Warn("failed to persist commit hash (non-fatal)", "deployment_id", deployment.ID, "error", err)
	}
	sink.Infof("cloned commit %s", commitHash)

	buildPlanSection := sink.OpenSection("Build Plan")
	plan, planErr := buildplan.PlanBuild(cloneDir)
	if planErr != nil {
		buildPlanSection.Fail()
	}
	buildPlanSection.Close()
	if planErr != nil {
		fail("build planning failed", planErr)
		return
	}
	dockerfileUsed = plan.Source
	sink.Infof("build plan: dockerfile_used=%s build_type=%s", plan.Source, plan.BuildType)

	imageTag := "corvus-build-" + deployment.ID
	imageBuildSection := sink.OpenSection("Image Build")
	buildErr := o.dockerClient.BuildImage(ctx, docker.BuildImageConfig{
		ContextDir: cloneDir,
		ImageTag:   imageTag,
		LogWriter:  imageBuildSection.Writer(),
	})
	if buildErr != nil {
		imageBuildSection.Fail()
	}
	imageBuildSection.Close()
	if buildErr != nil {
		fail("image build failed", buildErr)
		return
	}
	sink.Infof("image built: %s", imageTag)

	outputDir := filepath.Join(o.config.DeploymentsRoot, deployment.ID, "build-output")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fail("failed to create build output directory", err)
		return
	}
	extractSection := sink.OpenSection("Artifact Extraction")
	extractErr := o.dockerClient.RunArtifactExtractor(ctx, docker.ExtractArtifactConfig{
		ContainerName:       "extract-" + deployment.ID,
		ImageTag:            imageTag,
		SourcePathInImage:   plan.SourcePathInImage,
		HostOutputDirectory: outputDir,
		LogWriter:           extractSection.Writer(),
	})
	if extractErr != nil {
		extractSection.Fail()
	}
	extractSection.Close()
	if extractErr != nil {
		fail("artifact extraction failed", extractErr)
		return
	}
	sink.Infof("artifact extracted to %s", outputDir)

	processName := "deploy-" + deployment.ID
	supervisorSection := sink.OpenSection("Supervisor Start")
	port, startErr := o.startSupervisedProcess(processName, outputDir, plan.BuildType, supervisorSection)
	if startErr != nil {
		supervisorSection.Fail()
	}
	supervisorSection.Close()
	if startErr != nil {
		fail("failed to start supervised process", startErr)
		return
	}
	sink.Infof("process %s started on port %d", processName, port)

	deploymentURL, urlErr := o.mintURL(project, deployment.ID, port)
	if urlErr != nil {
		fail("url minting failed", urlErr)
		return
	}

	if o.config.ProductionMode && o.proxy != nil {
		hostname, hostErr := hostnameOf(deploymentURL)
		if hostErr != nil {
			fail("could not derive hostname from minted url", hostErr)
			return
		}
		proxySection := sink.OpenSection("Proxy Configure")
		proxyErr := o.proxy.Configure(proxy.ConfigureRequest{
			Hostname:        hostname,
			InternalPort:    port,
			DeploymentID:    deployment.ID,
			BuildOutputPath: outputDir,
		})
		if proxyErr != nil {
			proxySection.Fail()
		}
		proxySection.Close()
		if proxyErr != nil {
			fail("proxy configuration failed", proxyErr)
			return
		}
		sink.Infof("proxy configured for %s -> 127.0.0.1:%d", hostname, port)
	}

	if err := o.database.MarkSuccess(deployment.ID, deploymentURL, port, outputDir, plan.Source, commitHash); err != nil {
		o.logger.Error("failed to persist success status", "deployment_id", deployment.ID, "error", err)
		return
	}

	sink.Infof("deployment succeeded: %s", deploymentURL)
	o.metrics.RecordDeployment(string(models.StatusSuccess), string(dockerfileUsed), time.Since(startedAt).Seconds())
}

// supervisorStartRetries is how many additional attempts (fresh port
// allocation each time) follow an initial C7 failure, per spec §4.10's
// "C7 failure may be retried up to 2 times with fresh port allocations" —
// compensating for the inherent TOCTOU between C2's probe and C7's bind.
const supervisorStartRetries = 2

// startSupervisedProcess allocates a port and starts processName, retrying
// the whole allocate+start pair up to supervisorStartRetries further times
// on failure so a port lost to the TOCTOU race between allocation and bind
// does not sink the entire deployment.
func (o *Orchestrator) startSupervisedProcess(processName, outputDir string, buildType models.BuildType, section *logsink.Section) (int, error) {
	allocator := &portalloc.Allocator{
		RangeStart: o.config.PortRangeStart,
		RangeEnd:   o.config.PortRangeEnd,
		InUse:      o.portInUse,
	}

	var lastErr error
	for attempt := 0; attempt <= supervisorStartRetries; attempt++ {
		port, portErr := allocator.Allocate()
		if portErr != nil {
			o.metrics.PortAllocationFailure.Inc()
			return 0, portErr
		}

		startErr := o.supervisor.Start(supervisor.StartConfig{
			ProcessName: processName,
			WorkingDir:  outputDir,
			Port:        port,
			BuildType:   buildType,
		})
		if startErr == nil {
			return port, nil
		}

		lastErr = startErr
		section.Infof("supervisor start attempt %d/%d on port %d failed: %v", attempt+1, supervisorStartRetries+1, port, startErr)
	}

	return 0, fmt.Errorf("exhausted %d attempts: %w", supervisorStartRetries+1, lastErr)
}

// resolveAccessToken looks up the owner's GitHub account, treating "no
// account on file" as "clone anonymously" rather than a hard failure,
// since public repositories need no credential.
func (o *Orchestrator) resolveAccessToken(ownerID string) string {
	account, err := o.database.GetGitAccount(ownerID, "github")
	if err != nil {
		return ""
	}
	return account.AccessToken
}

// portInUse checks already-allocated ports among active deployments so the
// allocator does not re-offer a port still tied to a live handoff.
func (o *Orchestrator) portInUse(port int) bool {
	deployments, err := o.database.ListDeployments()
	if err != nil {
		return false
	}
	for _, d := range deployments {
		if d.IsActive() && d.InternalPort != nil && *d.InternalPort == port {
			return true
		}
	}
	return false
}

// mintURL returns the deployment's public URL: a minted, collision-checked
// hostname under PlatformHost in production mode, or a bare localhost URL
// in development mode (the Proxy Configurator and URL Minter are never
// invoked when PlatformURL is unset, per spec).
func (o *Orchestrator) mintURL(project *models.Project, deploymentID string, port int) (string, error) {
	if !o.config.ProductionMode {
		return fmt.Sprintf("http://localhost:%d", port), nil
	}

	return urlmint.Mint(project.Name, deploymentID, o.config.PlatformHost, o.config.UseHTTPS, func(candidate string) bool {
		active, err := o.database.ListActiveDeploymentURLs()
		if err != nil {
			// fail closed: treat a lookup error as "taken" so a collision
			// is never silently possible, forcing the next attempt.
			return true
		}
		return active[candidate]
	})
}

func hostnameOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	return parsed.Hostname(), nil
}
