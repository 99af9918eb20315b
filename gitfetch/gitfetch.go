// Package gitfetch implements the Git Fetcher (C3): shallow-clones a
// project's repository to a scratch directory on the host and reports the
// commit hash that was checked out. It shells out to the system `git`
// binary rather than a pure-Go library for the same reason corvus-paas's
// original clone helper did: the native binary already handles every
// protocol and auth edge case, at the cost of one `apk add git` in the
// daemon's own image.
package gitfetch

import (
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"strings"
)

// CloneConfig holds the parameters for Clone.
type CloneConfig struct {
	// RepoURL is the project's git_repo_url, e.g. "https://github.com/acme/app.git".
	RepoURL string

	// Branch is cloned with --single-branch. Empty means the remote's
	// default branch (git clone omits --branch entirely in that case).
	Branch string

	// DestinationDir is where the repo is cloned to. Must not already
	// exist; git clone creates it.
	DestinationDir string

	// AccessToken, when non-empty, is injected into the clone URL as HTTP
	// basic auth so private repositories can be cloned. It is never
	// logged or written to LogWriter.
	AccessToken string

	// LogWriter receives git's combined stdout/stderr. Git writes clone
	// progress to stderr.
	LogWriter io.Writer
}

// Clone performs a shallow, single-branch clone and returns the commit
// hash of the checked-out HEAD.
func Clone(config CloneConfig) (commitHash string, err error) {
	cloneURL, urlErr := authenticatedURL(config.RepoURL, config.AccessToken)
	if urlErr != nil {
		return "", fmt.Errorf("failed to build clone url: %w", urlErr)
	}

	args := []string{"clone", "--depth", "1", "--single-branch"}
	if config.Branch != "" {
		args = append(args, "--branch", config.Branch)
	}
	args = append(args, cloneURL, config.DestinationDir)

	cloneCommand := exec.Command("git", args...)
	cloneCommand.Stdout = logWriterOrDiscard(config.LogWriter)
	cloneCommand.Stderr = logWriterOrDiscard(config.LogWriter)

	if err := cloneCommand.Run(); err != nil {
		return "", fmt.Errorf("git clone failed for %q (branch %q): %w", config.RepoURL, config.Branch, err)
	}

	hash, hashErr := revParseHead(config.DestinationDir)
	if hashErr != nil {
		return "", fmt.Errorf("clone succeeded but could not resolve commit hash: %w", hashErr)
	}

	return hash, nil
}

// revParseHead runs `git rev-parse HEAD` inside the cloned directory to
// capture the commit hash actually checked out, since a shallow clone of a
// branch name alone does not tell the caller which commit it landed on.
func revParseHead(repoDir string) (string, error) {
	command := exec.Command("git", "rev-parse", "HEAD")
	command.Dir = repoDir

	output, err := command.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// authenticatedURL rewrites a github.com https:// repo URL to carry the
// access token as HTTP basic auth, username "oauth2" and the token as the
// password — the literal scheme GitHub's own git-over-https accepts for an
// OAuth/PAT token. Any other host (GitLab, Bitbucket, a self-hosted git
// server, git@ SSH remotes) is passed through unchanged, per spec §4.3: C3
// only knows how to authenticate GitHub clones.
func authenticatedURL(repoURL string, accessToken string) (string, error) {
	if accessToken == "" {
		return repoURL, nil
	}

	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("invalid repo url %q: %w", repoURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return repoURL, nil
	}
	if parsed.Hostname() != "github.com" {
		return repoURL, nil
	}

	parsed.User = url.UserPassword("oauth2", accessToken)
	return parsed.String(), nil
}

func logWriterOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
