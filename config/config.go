/*
Package config handles loading and validating application configuration
from an optional YAML file plus environment variable overrides. All values
have sensible defaults so the daemon can start with zero setup during local
development.
*/
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AppConfig holds every configuration value the daemon needs. Values are
// read once at startup and passed through the app via dependency injection;
// no global config variable is used.
type AppConfig struct {
	// Port is the TCP port the operator HTTP surface (health/metrics/status)
	// listens on.
	Port string

	// DBPath is the file path to the SQLite database file.
	DBPath string

	// DeploymentsRoot is the base directory on disk under which each
	// deployment gets its own <id>/build-output subdirectory. corvusd keeps
	// the per-deployment log files in its logs/ subdirectory, as
	// logs/<id>.log.
	DeploymentsRoot string

	// ClonesRoot is the base directory git clones are checked out into
	// before the build, one <ClonesRoot>/<id> directory per deployment. The
	// default is ./data/clones; it is not placed under the user's home
	// directory.
	ClonesRoot string

	// LogFormat controls slog's output format: "text" (the default) for
	// local development, anything else (e.g. "json") for structured output.
	LogFormat string

	// PlatformURL is YOUR_PLATFORM_URL. Non-empty => production mode: the
	// Proxy Configurator and URL Minter are engaged and URLs are HTTPS.
	// Empty or unset => development mode: URL is http://localhost:<port>
	// and the Proxy Configurator is never invoked.
	PlatformURL string

	// MaxConcurrentDeployments is the Admission Queue's global concurrency
	// ceiling (spec.md §4.11's MAX_CONCURRENT).
	MaxConcurrentDeployments int

	// DeploymentPortRangeStart/End bound the Port Allocator's scan range.
	DeploymentPortRangeStart int
	DeploymentPortRangeEnd   int

	// UseHTTPS controls whether the Proxy Configurator renders the
	// HTTP-to-HTTPS redirect plus TLS-terminating block, or a single
	// HTTP-only block. Only consulted in production mode.
	UseHTTPS bool

	// Proxy holds everything the Proxy Configurator needs to reach its
	// privileged-operations binding.
	Proxy ProxyConfig

	// Supervisor holds the App Supervisor's CLI binary name.
	Supervisor SupervisorConfig

	// GitHubClientID, GitHubClientSecret, and JWTSecret are declared here
	// purely so corvusd.yaml documents them for operators; per spec.md §6
	// they belong to the external façade and no orchestrator code reads
	// these fields.
	GitHubClientID     string
	GitHubClientSecret string
	JWTSecret          string
}

// ProxyConfig configures the Proxy Configurator's PrivilegedOps binding.
type ProxyConfig struct {
	// SitesAvailableDir and SitesEnabledDir are the nginx-style directories
	// server blocks are written to and symlinked from.
	SitesAvailableDir string
	SitesEnabledDir   string

	// ReloadCommand is the privileged command issued after installing a
	// config, e.g. "systemctl reload nginx" or "nginx -s reload".
	ReloadCommand string

	// CertDir is the conventional certificate directory a hostname's cert
	// and key paths are derived from when UseHTTPS is set.
	CertDir string

	// Remote, when true, selects the SSH-backed PrivilegedOps binding
	// instead of the local exec-backed one (nginx runs on a separate host
	// from the orchestrator process).
	Remote bool
	SSHHost string
	SSHPort int
	SSHUser string
	SSHKeyPath string
}

// SupervisorConfig configures the App Supervisor's external CLI contract.
type SupervisorConfig struct {
	// Binary is the process supervisor executable name, e.g. "pm2".
	Binary string
}

// NewLogger constructs a *slog.Logger based on LogFormat. "text" produces
// human-readable output for local development; any other value produces
// structured JSON for production log shipping. AddSource is always on, with
// the absolute file path trimmed to its basename so log lines stay
// terminal-width-friendly.
func (config *AppConfig) NewLogger() *slog.Logger {
	var handler slog.Handler

	options := &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(groups []string, attribute slog.Attr) slog.Attr {
			if attribute.Key == slog.SourceKey {
				source := attribute.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attribute
		},
	}

	if config.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, options)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, options)
	}

	return slog.New(handler)
}

// ProductionMode reports whether PlatformURL is set and non-empty. Per the
// open question in spec.md §9, an empty string counts as development mode,
// same as unset.
func (config *AppConfig) ProductionMode() bool {
	return strings.TrimSpace(config.PlatformURL) != ""
}

// LoadAppConfig reads configuration from an optional corvusd.yaml (searched
// in the current directory and /etc/corvusd) plus environment variable
// overrides, and returns a populated AppConfig. Missing values fall back to
// safe local-development defaults.
//
// viper is used instead of the plain getEnv pattern so operators can check
// in a corvusd.yaml alongside their deployment tooling while still being
// able to override any single key with an env var — the same shape
// celestiaorg-popsigner's control plane uses for its own config, just with
// a flat (non-nested) key set to match the flat env var names spec.md §6
// already commits to.
func LoadAppConfig() (*AppConfig, error) {
	v := viper.New()

	v.SetConfigName("corvusd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/corvusd")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := map[string]any{
		"port":                         "8080",
		"db_path":                      "./corvus.db",
		"deployments_root":             "./data/deployments",
		"clones_root":                  "./data/clones",
		"log_format":                   "text",
		"your_platform_url":            "",
		"max_concurrent_deployments":   1,
		"deployment_port_range_start":  4001,
		"deployment_port_range_end":    4999,
		"use_https":                    true,
		"proxy_sites_available_dir":    "/etc/nginx/sites-available",
		"proxy_sites_enabled_dir":      "/etc/nginx/sites-enabled",
		"proxy_reload_command":         "systemctl reload nginx",
		"proxy_cert_dir":               "/etc/ssl/corvus",
		"proxy_remote":                 false,
		"proxy_ssh_host":               "",
		"proxy_ssh_port":               22,
		"proxy_ssh_user":               "corvus",
		"proxy_ssh_key_path":           "~/.ssh/id_ed25519",
		"supervisor_binary":            "pm2",
		"github_client_id":             "",
		"github_client_secret":         "",
		"jwt_secret":                   "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read corvusd.yaml: %w", err)
		}
		// no config file on disk is fine; defaults + env vars still apply.
	}

	return &AppConfig{
		Port:                     v.GetString("port"),
		DBPath:                   v.GetString("db_path"),
		DeploymentsRoot:          v.GetString("deployments_root"),
		ClonesRoot:               v.GetString("clones_root"),
		LogFormat:                v.GetString("log_format"),
		PlatformURL:              v.GetString("your_platform_url"),
		MaxConcurrentDeployments: v.GetInt("max_concurrent_deployments"),
		DeploymentPortRangeStart: v.GetInt("deployment_port_range_start"),
		DeploymentPortRangeEnd:   v.GetInt("deployment_port_range_end"),
		UseHTTPS:                 v.GetBool("use_https"),
		Proxy: ProxyConfig{
			SitesAvailableDir: v.GetString("proxy_sites_available_dir"),
			SitesEnabledDir:   v.GetString("proxy_sites_enabled_dir"),
			ReloadCommand:     v.GetString("proxy_reload_command"),
			CertDir:           v.GetString("proxy_cert_dir"),
			Remote:            v.GetBool("proxy_remote"),
			SSHHost:           v.GetString("proxy_ssh_host"),
			SSHPort:           v.GetInt("proxy_ssh_port"),
			SSHUser:           v.GetString("proxy_ssh_user"),
			SSHKeyPath:        v.GetString("proxy_ssh_key_path"),
		},
		Supervisor: SupervisorConfig{
			Binary: v.GetString("supervisor_binary"),
		},
		GitHubClientID:     v.GetString("github_client_id"),
		GitHubClientSecret: v.GetString("github_client_secret"),
		JWTSecret:          v.GetString("jwt_secret"),
	}, nil
}
