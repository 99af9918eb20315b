// Package buildplan implements the Build Planner (C4): given a freshly
// cloned repository on disk, it decides which Dockerfile strategy to use
// and which directory inside the eventual image holds the build's output.
package buildplan

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

//go:embed templates/Dockerfile.standalone
var standaloneDockerfile string

//go:embed templates/Dockerfile.classic
var classicDockerfile string

// Plan is the Build Planner's decision for one deployment: which
// DockerfileSource was used, and where the built image keeps its output.
type Plan struct {
	Source            models.DockerfileSource
	BuildType         models.BuildType
	SourcePathInImage string
}

// standaloneOutputMarker matches next.config.{js,ts,mjs,cjs} declaring
// `output: "standalone"` or `output: 'standalone'`, the one detail that
// decides whether a Next.js app can be run with `node server.js` out of a
// trimmed standalone bundle instead of needing `next start` plus the full
// node_modules tree.
var standaloneOutputMarker = regexp.MustCompile(`(?i)output\s*:\s*['"` + "`" + `]standalone['"` + "`" + `]`)

// nextConfigCandidates are the filenames checked both for framework
// detection and for a standalone-output declaration.
var nextConfigCandidates = []string{"next.config.js", "next.config.mjs", "next.config.ts", "next.config.cjs"}

const (
	standaloneSourcePath = "/app/.next/standalone"
	classicSourcePath    = "/app"
)

// packageJSON is the subset of package.json this package inspects for a
// `next` dependency, the fallback framework signature when no next.config
// file is present at the repo root.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// PlanBuild inspects repoDir and decides the Dockerfile strategy, writing a
// bundled default Dockerfile into repoDir's root when the repository does
// not already ship its own.
func PlanBuild(repoDir string) (*Plan, error) {
	hasDockerfile, err := fileExists(filepath.Join(repoDir, "Dockerfile"))
	if err != nil {
		return nil, fmt.Errorf("failed to stat Dockerfile: %w", err)
	}

	frameworkDetected, err := detectNextFramework(repoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect package.json: %w", err)
	}

	nextConfigIsStandalone, err := detectNextStandaloneOutput(repoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect next.config: %w", err)
	}

	var source models.DockerfileSource
	switch {
	case hasDockerfile && frameworkDetected && nextConfigIsStandalone:
		source = models.DockerfileUser
	case hasDockerfile && frameworkDetected && !nextConfigIsStandalone:
		source = models.DockerfileUserClassicAssumed
	case hasDockerfile && !frameworkDetected:
		source = models.DockerfileUser
	case !hasDockerfile && frameworkDetected && nextConfigIsStandalone:
		source = models.DockerfileDefaultStandalone
	case !hasDockerfile && frameworkDetected && !nextConfigIsStandalone:
		source = models.DockerfileDefaultClassic
	default:
		return nil, fmt.Errorf("no Dockerfile found at the repository root and no recognizable framework detected: add a Dockerfile")
	}

	if !hasDockerfile {
		template := classicDockerfile
		if source == models.DockerfileDefaultStandalone {
			template = standaloneDockerfile
		}
		if err := os.WriteFile(filepath.Join(repoDir, "Dockerfile"), []byte(template), 0644); err != nil {
			return nil, fmt.Errorf("failed to write default Dockerfile: %w", err)
		}
	}

	buildType := models.BuildTypeFor(source)
	sourcePath := classicSourcePath
	if buildType == models.BuildTypeStandalone {
		sourcePath = standaloneSourcePath
	}

	return &Plan{
		Source:            source,
		BuildType:         buildType,
		SourcePathInImage: sourcePath,
	}, nil
}

func detectNextStandaloneOutput(repoDir string) (bool, error) {
	for _, name := range nextConfigCandidates {
		path := filepath.Join(repoDir, name)
		contents, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return false, err
		}
		if standaloneOutputMarker.Match(contents) {
			return true, nil
		}
	}
	return false, nil
}

// detectNextFramework reports whether repoDir looks like a Next.js project:
// either a next.config.* file is present, or package.json declares `next`
// as a dependency or devDependency.
func detectNextFramework(repoDir string) (bool, error) {
	for _, name := range nextConfigCandidates {
		exists, err := fileExists(filepath.Join(repoDir, name))
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}

	contents, err := os.ReadFile(filepath.Join(repoDir, "package.json"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var pkg packageJSON
	if err := json.Unmarshal(contents, &pkg); err != nil {
		// a malformed package.json is not this function's problem to report;
		// the build step will fail loudly enough on its own.
		return false, nil
	}
	if _, ok := pkg.Dependencies["next"]; ok {
		return true, nil
	}
	if _, ok := pkg.DevDependencies["next"]; ok {
		return true, nil
	}
	return false, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
