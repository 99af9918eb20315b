package proxy

import (
	"fmt"
	"path/filepath"
)

// Configurator is the Proxy Configurator (C8): it owns the nginx
// sites-available/sites-enabled convention and delegates every filesystem
// or process-control action to a PrivilegedOps binding.
type Configurator struct {
	Ops PrivilegedOps

	SitesAvailableDir string
	SitesEnabledDir   string
	ReloadCommand     string
	CertDir           string
	UseHTTPS          bool
}

// ConfigureRequest carries the per-call part of the configure(url, port,
// deploymentId, buildOutputPath, useHttps) contract spec §4.8 describes;
// useHttps comes from the Configurator's own UseHTTPS field. DeploymentID
// names the server block file (not Hostname), so a redeploy that mints a
// fresh hostname still overwrites the same file rather than leaking the
// previous hostname's config under sites-available.
type ConfigureRequest struct {
	Hostname        string
	InternalPort    int
	DeploymentID    string
	BuildOutputPath string
}

// Configure writes, enables, and activates a server block for req.Hostname
// pointing at req.InternalPort. It is idempotent: redeploying the same
// deployment ID overwrites the existing config and reloads again.
func (c *Configurator) Configure(req ConfigureRequest) error {
	config := ServerBlockConfig{
		Hostname:        req.Hostname,
		InternalPort:    req.InternalPort,
		BuildOutputPath: req.BuildOutputPath,
		UseHTTPS:        c.UseHTTPS,
	}
	if c.UseHTTPS {
		config.CertPath = filepath.Join(c.CertDir, req.Hostname+".crt")
		config.KeyPath = filepath.Join(c.CertDir, req.Hostname+".key")
	}

	availablePath, enabledPath := c.serverBlockPaths(req.DeploymentID)

	if err := c.Ops.WriteFile(availablePath, []byte(RenderServerBlock(config))); err != nil {
		return fmt.Errorf("failed to write server block for %q: %w", req.Hostname, err)
	}
	if err := c.Ops.Symlink(availablePath, enabledPath); err != nil {
		return fmt.Errorf("failed to enable server block for %q: %w", req.Hostname, err)
	}
	if err := c.Ops.ReloadProxy(c.ReloadCommand); err != nil {
		return fmt.Errorf("failed to reload proxy after configuring %q: %w", req.Hostname, err)
	}
	return nil
}

// Retract disables and removes deploymentID's server block. Per the design
// note decision recorded in DESIGN.md, a later deployment failure does not
// retract an already-live proxy config for the same project — Retract is
// only ever called for an explicit teardown, never automatically on a
// redeploy's failure path.
func (c *Configurator) Retract(deploymentID string) error {
	availablePath, enabledPath := c.serverBlockPaths(deploymentID)

	if err := c.Ops.Remove(enabledPath); err != nil {
		return fmt.Errorf("failed to disable server block for deployment %q: %w", deploymentID, err)
	}
	if err := c.Ops.Remove(availablePath); err != nil {
		return fmt.Errorf("failed to remove server block for deployment %q: %w", deploymentID, err)
	}
	return c.Ops.ReloadProxy(c.ReloadCommand)
}

// serverBlockPaths names a deployment's config file as deploy-<id>.conf per
// spec §4.8 item 3, rather than by hostname: a deployment's minted hostname
// can change across redeploys (urlmint.Mint's collision fallback), but its
// ID never does.
func (c *Configurator) serverBlockPaths(deploymentID string) (available, enabled string) {
	filename := "deploy-" + deploymentID + ".conf"
	return filepath.Join(c.SitesAvailableDir, filename), filepath.Join(c.SitesEnabledDir, filename)
}
