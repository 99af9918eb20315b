package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/build"
)

// BuildImageConfig holds the parameters the Image Builder (C5) needs.
// Grouping them in a struct keeps the function signature stable as more
// options are added later (build args, target stage, platform override).
type BuildImageConfig struct {
	// ContextDir is the absolute path on the host filesystem to the root of
	// the cloned repository. By the time this is called, the Build Planner
	// has already ensured a Dockerfile exists at the root of this
	// directory — either the user's own, or a bundled default one written
	// there by the planner.
	ContextDir string

	// ImageTag is the Docker image tag to build, e.g. "corvus/build-<deploymentID>".
	ImageTag string

	// LogWriter receives the build's combined stream output. Typically the
	// deployment log file on disk.
	LogWriter io.Writer
}

// BuildImage tars up ContextDir and submits it to the Docker daemon's image
// build API, streaming the build log to LogWriter and returning once the
// image has been built or the build has failed.
//
// A literal tar archive is used instead of a bind mount because the build
// API consumes its context as a stream; the daemon may run on a different
// host than this process, so nothing here assumes shared filesystem access
// beyond ContextDir itself.
func (dockerClient *DockerClient) BuildImage(ctx context.Context, config BuildImageConfig) error {
	archive, archiveErr := tarDirectory(config.ContextDir)
	if archiveErr != nil {
		return fmt.Errorf("failed to tar build context %q: %w", config.ContextDir, archiveErr)
	}

	dockerClient.logger.Info("building image",
		"image_tag", config.ImageTag,
		"context_dir", config.ContextDir,
	)

	response, buildErr := dockerClient.sdk.ImageBuild(ctx, archive, build.ImageBuildOptions{
		Tags:       []string{config.ImageTag},
		Dockerfile: "Dockerfile",
		Remove:     true,
		ForceRemove: true,
	})
	if buildErr != nil {
		return fmt.Errorf("failed to start image build for %q: %w", config.ImageTag, buildErr)
	}
	defer response.Body.Close()

	if err := streamBuildLog(response.Body, config.LogWriter); err != nil {
		return fmt.Errorf("image build failed for %q: %w", config.ImageTag, err)
	}

	dockerClient.logger.Info("image built", "image_tag", config.ImageTag)
	return nil
}

// streamBuildLog decodes the newline-delimited JSON messages the build API
// emits, copying the human-readable "stream" field to LogWriter and
// treating a non-empty "error" field as the build's failure reason.
func streamBuildLog(body io.Reader, logWriter io.Writer) error {
	decoder := json.NewDecoder(body)
	for {
		var message struct {
			Stream string `json:"stream"`
			Error  string `json:"error"`
		}
		if err := decoder.Decode(&message); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading build output: %w", err)
		}
		if message.Error != "" {
			return fmt.Errorf("%s", message.Error)
		}
		if message.Stream != "" && logWriter != nil {
			io.WriteString(logWriter, message.Stream)
		}
	}
}

// tarDirectory walks dir and produces an in-memory tar archive of its
// contents, rooted at dir (so "Dockerfile" inside dir becomes the tar entry
// "Dockerfile", matching what ImageBuildOptions.Dockerfile expects). The
// .git directory is skipped since it is never relevant to an image build
// and can be large.
func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tarWriter := tar.NewWriter(&buf)

	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if relPath == "." {
			return nil
		}
		if entry.IsDir() && entry.Name() == ".git" {
			return filepath.SkipDir
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return infoErr
		}

		header, headerErr := tar.FileInfoHeader(info, "")
		if headerErr != nil {
			return headerErr
		}
		header.Name = filepath.ToSlash(relPath)

		if entry.IsDir() {
			return tarWriter.WriteHeader(header)
		}
		if !info.Mode().IsRegular() {
			// skip symlinks and other non-regular files; the build context
			// does not need them and they complicate tar portability.
			return nil
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		file, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer file.Close()

		_, copyErr := io.Copy(tarWriter, file)
		return copyErr
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if err := tarWriter.Close(); err != nil {
		return nil, err
	}

	return &buf, nil
}
