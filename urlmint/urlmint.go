// Package urlmint implements the URL Minter (C9): derives the public
// deploymentUrl for a deployment from its project name plus a random
// suffix, retrying against a uniqueness check until it lands on a URL no
// other active deployment is using. Keeps the same math/rand/v2 idiom the
// corvus control plane's original slug generator used, but mints from the
// project's own name rather than a random adjective-noun pair, since a
// deployment's URL should be recognizable as belonging to its project.
package urlmint

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// maxAttempts bounds the collision-retry loop before falling back to the
// deployment-id-derived hostname, per spec's "retry up to 5 attempts".
const maxAttempts = 5

// maxSanitizedLength is the longest a sanitized project name slug may be,
// leaving room for the "-<rand5>" suffix within a reasonable DNS label.
const maxSanitizedLength = 20

// suffixAlphabet is the alphanumeric character set the random suffix draws
// from, per spec's "5-character alphanumeric string".
const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const suffixLength = 5

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Mint builds a deploymentUrl of the form
// "<scheme>://<sanitized-name>-<rand5>.<platformHost>" (https when useHTTPS,
// otherwise http), retrying the random
// suffix until isTaken reports false. isTaken is expected to consult
// db.ListActiveDeploymentURLs (invariant 3: unique among active
// deployments). If every attempt collides, Mint falls back to
// "deploy-<deploymentID>.<platformHost>", which is unique by construction;
// if even that fallback collides, minting fails fatally.
func Mint(projectName string, deploymentID string, platformHost string, useHTTPS bool, isTaken func(url string) bool) (string, error) {
	base := sanitize(projectName)
	if base == "" {
		base = "app"
	}

	scheme := "http"
	if useHTTPS {
		scheme = "https"
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		suffix := randomSuffix()
		hostname := fmt.Sprintf("%s-%s.%s", base, suffix, platformHost)
		candidateURL := fmt.Sprintf("%s://%s", scheme, hostname)
		if !isTaken(candidateURL) {
			return candidateURL, nil
		}
	}

	fallbackHostname := fmt.Sprintf("deploy-%s.%s", deploymentID, platformHost)
	fallbackURL := fmt.Sprintf("%s://%s", scheme, fallbackHostname)
	if isTaken(fallbackURL) {
		return "", fmt.Errorf("could not mint a unique url for project %q: fallback %q is also taken", projectName, fallbackURL)
	}
	return fallbackURL, nil
}

// sanitize lowercases projectName, collapses every run of characters that
// are not [a-z0-9] into a single hyphen, trims leading/trailing hyphens,
// and truncates to maxSanitizedLength so the result is a valid, bounded DNS
// label component.
func sanitize(projectName string) string {
	lowered := strings.ToLower(projectName)
	collapsed := nonAlphanumeric.ReplaceAllString(lowered, "-")
	trimmed := strings.Trim(collapsed, "-")
	if len(trimmed) > maxSanitizedLength {
		trimmed = strings.Trim(trimmed[:maxSanitizedLength], "-")
	}
	return trimmed
}

// randomSuffix draws a 5-character alphanumeric string from suffixAlphabet.
func randomSuffix() string {
	var b strings.Builder
	b.Grow(suffixLength)
	for i := 0; i < suffixLength; i++ {
		b.WriteByte(suffixAlphabet[rand.IntN(len(suffixAlphabet))])
	}
	return b.String()
}
