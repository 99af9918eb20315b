package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/image"
)

// pullImageIfNotPresent pulls a Docker image if it is not already present in
// the local image cache. The check for whether to download or not is
// handled by the Docker daemon; this function always issues the pull
// request and lets the daemon short-circuit when the layers already exist.
// The pull response is a stream of newline-delimited JSON progress lines
// that must be fully consumed and closed, or the daemon can block once its
// write buffer fills.
func (dockerClient *DockerClient) pullImageIfNotPresent(ctx context.Context, imageName string) error {
	dockerClient.logger.Info("pulling docker image", "image", imageName)

	imagePullResponseStream, pullError := dockerClient.sdk.ImagePull(ctx, imageName, image.PullOptions{})
	if pullError != nil {
		return fmt.Errorf("failed to initiate image pull for %q: %w", imageName, pullError)
	}
	defer imagePullResponseStream.Close()

	if _, err := io.Copy(io.Discard, imagePullResponseStream); err != nil {
		return fmt.Errorf("failed to stream image pull response for %q: %w", imageName, err)
	}

	dockerClient.logger.Info("docker image pulled/downloaded and ready", "image", imageName)
	return nil
}
