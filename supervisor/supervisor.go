// Package supervisor implements the App Supervisor (C7): starts, stops, and
// queries the long-running process for a deployed app via an external
// process manager (pm2 by default) rather than re-implementing process
// supervision in Go. pm2 already solves respawn-on-crash, log capture, and
// process listing; shelling out to it is far less code than a homegrown
// supervisor and matches how a single-node PaaS control plane is expected
// to hand off process lifecycle to an existing, well-tested tool.
package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

// readinessTimeout and readinessTick bound how long Start polls pm2 for an
// `online` status before giving up, per the readiness-polling floor spec
// requires for this step (at least 30s, ticking every 1s).
const (
	readinessTimeout = 30 * time.Second
	readinessTick    = 1 * time.Second
)

// Supervisor wraps the pm2 CLI binary configured in AppConfig.Supervisor.Binary.
type Supervisor struct {
	Binary string
}

// New constructs a Supervisor for the given CLI binary name (normally "pm2").
func New(binary string) *Supervisor {
	return &Supervisor{Binary: binary}
}

// StartConfig holds the parameters for Start.
type StartConfig struct {
	// ProcessName is the pm2 process name, e.g. "deploy-<deploymentID>".
	ProcessName string

	// WorkingDir is the extracted build output directory the process runs from.
	WorkingDir string

	// Port is the internal port the process must bind to; exported as the
	// PORT environment variable, which both Next.js standalone's
	// server.js and `next start`/`npm start` honor.
	Port int

	// BuildType decides the start command: a standalone bundle is run
	// directly as server.js, a classic build is started with the project's
	// local node_modules/.bin/next start.
	BuildType models.BuildType
}

// Start launches ProcessName under pm2. Any prior registration under the
// same name is deleted first (a "not found" response from pm2 is treated
// as success, same as Stop), so redeploying the same project is idempotent
// rather than erroring on "process already exists". After pm2 accepts the
// start command, Start polls until pm2 reports the process `online`; any
// other terminal status (or a timeout) is a failure.
func (s *Supervisor) Start(config StartConfig) error {
	if config.BuildType == models.BuildTypeClassic {
		if err := validateClassicPreconditions(config.WorkingDir); err != nil {
			return err
		}
	}

	if err := s.Stop(config.ProcessName); err != nil {
		return fmt.Errorf("failed to clear prior registration for %q: %w", config.ProcessName, err)
	}

	script, args := startCommand(config.BuildType)

	pm2Args := append([]string{
		"start", script,
		"--name", config.ProcessName,
		"--cwd", config.WorkingDir,
		"--env", fmt.Sprintf("PORT=%d", config.Port),
	}, args...)

	cmd := exec.Command(s.Binary, pm2Args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pm2 start failed for %q: %w (%s)", config.ProcessName, err, string(output))
	}

	return s.waitUntilOnline(config.ProcessName)
}

// waitUntilOnline polls pm2 jlist for processName's status every
// readinessTick until it reports `online` or readinessTimeout elapses. Any
// other status, terminal or not, keeps the loop polling; once the deadline
// passes it fails with the last known status rather than looping forever.
func (s *Supervisor) waitUntilOnline(processName string) error {
	deadline := time.Now().Add(readinessTimeout)
	var lastStatus string

	for {
		status, err := s.processStatus(processName)
		if err != nil {
			return fmt.Errorf("failed to poll pm2 status for %q: %w", processName, err)
		}
		lastStatus = status
		if status == "online" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("process %q did not reach online status within %s (last known status: %q, see pm2 logs)", processName, readinessTimeout, lastStatus)
		}
		time.Sleep(readinessTick)
	}
}

// validateClassicPreconditions enforces spec §4.7's minimum viable shape
// for a classic start: the extracted build output must contain a
// package.json and must exist as a directory at all, since `next start`
// cannot run without either.
func validateClassicPreconditions(workingDir string) error {
	info, err := os.Stat(workingDir)
	if err != nil {
		return fmt.Errorf("build output directory %q does not exist: %w", workingDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("build output path %q is not a directory", workingDir)
	}
	if _, err := os.Stat(filepath.Join(workingDir, "package.json")); err != nil {
		return fmt.Errorf("classic build output %q is missing package.json: %w", workingDir, err)
	}
	return nil
}

// startCommand returns the command pm2 should run and any extra arguments,
// based on the Build Planner's BuildType decision.
func startCommand(buildType models.BuildType) (script string, args []string) {
	if buildType == models.BuildTypeStandalone {
		return "server.js", nil
	}
	return "node_modules/.bin/next", []string{"start"}
}

// Stop removes ProcessName from pm2's process list. Safe to call on a
// process that is already gone; pm2 reports a non-fatal error in that case
// which Stop treats as success.
func (s *Supervisor) Stop(processName string) error {
	cmd := exec.Command(s.Binary, "delete", processName)
	_ = cmd.Run()
	return nil
}

// pm2ProcessEntry is the subset of `pm2 jlist`'s JSON output this package
// cares about.
type pm2ProcessEntry struct {
	Name string `json:"name"`
	Pm2Env struct {
		Status string `json:"status"`
	} `json:"pm2_env"`
}

// IsRunning reports whether pm2 currently lists processName as online.
func (s *Supervisor) IsRunning(processName string) (bool, error) {
	status, err := s.processStatus(processName)
	if err != nil {
		return false, err
	}
	return status == "online", nil
}

// processStatus returns pm2's current status string for processName, or ""
// if pm2 does not list it at all (covers both "never started" and "deleted
// after crashing past its restart limit").
func (s *Supervisor) processStatus(processName string) (string, error) {
	cmd := exec.Command(s.Binary, "jlist")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pm2 jlist failed: %w", err)
	}

	var processes []pm2ProcessEntry
	if err := json.Unmarshal(output, &processes); err != nil {
		return "", fmt.Errorf("failed to parse pm2 jlist output: %w", err)
	}

	for _, p := range processes {
		if p.Name == processName {
			return p.Pm2Env.Status, nil
		}
	}
	return "", nil
}
