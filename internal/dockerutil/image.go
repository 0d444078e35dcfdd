package dockerutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
)

// Image the runner image is derived from. catthehacker's image mirrors the
// GitHub-hosted ubuntu runner.
const upstreamRunnerImage = "catthehacker/ubuntu:full-latest"

// Label marking every image and container created by the harness.
const ownedLabel = "gitbug-java"

// Label carrying the digest of the Dockerfile an image was built from.
const dockerfileDigestLabel = "gitbug-java.dockerfile"

// baseImageDockerfile composes the Dockerfile remapping the runner user to the
// host uid/gid, so files created inside workflow containers stay writable.
func baseImageDockerfile() (string, error) {
	group, err := user.LookupGroupId(fmt.Sprint(os.Getgid()))
	if err != nil {
		return "", errors.Join(fmt.Errorf("couldn't look up group %d", os.Getgid()), err)
	}

	var dockerfile strings.Builder
	fmt.Fprintf(&dockerfile, "FROM %s\n", upstreamRunnerImage)
	// runneradmin gets an arbitrarily large uid so it cannot clash with the host's
	fmt.Fprintf(&dockerfile, "RUN sudo usermod -u 4000000 runneradmin\n")
	fmt.Fprintf(&dockerfile, "RUN sudo groupadd -o -g %d %s\n", os.Getgid(), group.Name)
	fmt.Fprintf(&dockerfile, "RUN sudo usermod -G %d runner\n", os.Getgid())
	fmt.Fprintf(&dockerfile, "RUN sudo usermod -o -u %d runner\n", os.Getuid())
	return dockerfile.String(), nil
}

// BuildBaseImage builds the runner base image and tags it with the given tag.
// If an image with the tag was already built from an identical Dockerfile the
// build is skipped.
func BuildBaseImage(ctx context.Context, cli *client.Client, tag string) error {
	dockerfile, err := baseImageDockerfile()
	if err != nil {
		return err
	}
	dockerfileDigest := digest.FromString(dockerfile).Encoded()

	if inspect, _, err := cli.ImageInspectWithRaw(ctx, tag); err == nil {
		if inspect.Config != nil && inspect.Config.Labels[dockerfileDigestLabel] == dockerfileDigest {
			logrus.Infof("Image %s is up to date, skipping build", tag)
			return nil
		}
	}

	buildDir, err := os.MkdirTemp("", "")
	if err != nil {
		return err
	}
	defer os.RemoveAll(buildDir)
	if err := os.WriteFile(filepath.Join(buildDir, "Dockerfile"), []byte(dockerfile), 0644); err != nil {
		return err
	}

	buildCtx, err := archive.TarWithOptions(buildDir, &archive.TarOptions{})
	if err != nil {
		return errors.Join(fmt.Errorf("couldn't create build context for %s", tag), err)
	}

	logrus.Infof("Building runner image %s from %s, this can take a while...", tag, upstreamRunnerImage)
	buildRes, err := cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{tag},
		ForceRemove: true,
		Labels: map[string]string{
			ownedLabel:            "1",
			dockerfileDigestLabel: dockerfileDigest,
		},
	})
	if err != nil {
		return errors.Join(fmt.Errorf("image build of %s failed", tag), err)
	}
	defer buildRes.Body.Close()

	out, err := io.ReadAll(buildRes.Body)
	if err != nil {
		return err
	}
	logrus.Tracef("Image build output:\n%s", out)

	// The build stream reports failures as a trailing error-detail message
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if strings.HasPrefix(lines[len(lines)-1], `{"errorDetail"`) {
		return fmt.Errorf("image build of %s failed, build output: %s", tag, out)
	}

	return nil
}
