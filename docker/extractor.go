package docker

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"
)

// ExtractArtifactConfig holds the parameters the Artifact Extractor (C6)
// needs to pull a built image's compiled output back onto the host.
type ExtractArtifactConfig struct {
	// ContainerName is the Docker container name, e.g. "extract-<deploymentID>".
	ContainerName string

	// ImageTag is the image built by the Image Builder for this deployment.
	ImageTag string

	// SourcePathInImage is the directory inside the image that holds the
	// compiled output (e.g. "/app/.next/standalone" for a Next.js
	// standalone build, or "/app" for a classic build). The Build
	// Planner decides this path based on the DockerfileSource it chose.
	SourcePathInImage string

	// HostOutputDirectory is the absolute path on the host the extracted
	// artifact is copied into. Bind-mounted read-write at /output.
	HostOutputDirectory string

	// LogWriter receives the extraction container's combined output.
	LogWriter io.Writer
}

// copyFallbackScript is a three-tier fallback: `cp -a` preserves the most
// (ownership, timestamps, symlinks) but is unavailable on some minimal
// base images; `cp -p -R` preserves permissions without needing `-a`; a
// bare `cp -r` is the last resort that should work everywhere a `cp`
// binary exists at all. The trailing `exit 0` is a sentinel: the
// container's own exit code only reflects "did the shell run", never "did
// the copy succeed", because RunArtifactExtractor checks success by
// looking for files in HostOutputDirectory afterward rather than trusting
// the exit code of a chain of fallback commands.
const copyFallbackScript = `cp -a "$SRC/." "$DEST/" 2>/dev/null || cp -p -R "$SRC/." "$DEST/" 2>/dev/null || cp -r "$SRC/." "$DEST/"; exit 0`

// RunArtifactExtractor starts ImageTag once, running the copy-fallback
// script to move SourcePathInImage's contents into the bind-mounted
// /output, then removes the container. It returns an error if the output
// directory is empty afterward, which is the signal that every fallback
// tier failed (e.g. SourcePathInImage does not exist in the image — a
// Build Planner / Dockerfile mismatch).
func (dockerClient *DockerClient) RunArtifactExtractor(ctx context.Context, config ExtractArtifactConfig) error {
	containerConfig := &container.Config{
		Image: config.ImageTag,
		Cmd:   []string{"sh", "-c", copyFallbackScript},
		Env: []string{
			"SRC=" + config.SourcePathInImage,
			"DEST=/output",
		},
		User: fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   config.HostOutputDirectory,
				Target:   "/output",
				ReadOnly: false,
			},
		},
	}

	createResponse, createErr := dockerClient.sdk.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, config.ContainerName)
	if createErr != nil {
		return fmt.Errorf("failed to create extractor container %q: %w", config.ContainerName, createErr)
	}

	defer func() {
		if err := dockerClient.sdk.ContainerRemove(ctx, createResponse.ID, container.RemoveOptions{Force: true}); err != nil {
			dockerClient.logger.Warn("failed to remove extractor container (non-fatal)",
				"container_name", config.ContainerName, "error", err)
		}
	}()

	if err := dockerClient.sdk.ContainerStart(ctx, createResponse.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start extractor container %q: %w", config.ContainerName, err)
	}

	statusChannel, errorChannel := dockerClient.sdk.ContainerWait(ctx, createResponse.ID, container.WaitConditionNotRunning)
	select {
	case waitErr := <-errorChannel:
		if waitErr != nil {
			return fmt.Errorf("error waiting for extractor container %q: %w", config.ContainerName, waitErr)
		}
	case <-statusChannel:
	}

	if logs, err := dockerClient.sdk.ContainerLogs(ctx, createResponse.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true}); err == nil {
		defer logs.Close()
		stdcopy.StdCopy(config.LogWriter, config.LogWriter, logs)
	}

	entries, readErr := os.ReadDir(config.HostOutputDirectory)
	if readErr != nil {
		return fmt.Errorf("failed to inspect extracted output %q: %w", config.HostOutputDirectory, readErr)
	}
	if len(entries) == 0 {
		return fmt.Errorf("artifact extraction produced no files in %q; source path %q likely does not exist in image %q",
			config.HostOutputDirectory, config.SourcePathInImage, config.ImageTag)
	}

	return nil
}
